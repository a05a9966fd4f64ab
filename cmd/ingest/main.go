package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rag-backend/internal/app"
	"rag-backend/internal/config"
	"rag-backend/internal/logger"

	"github.com/spf13/cobra"
)

const demoURL = "https://scienceleadership.org/blog/the_entire_bee_movie_script"

var (
	indexDir string
	question string
	topK     int
)

var rootCmd = &cobra.Command{
	Use:   "ingest [url]",
	Short: "Index a web page into the local vector store",
	Long: `Fetch a web page, split it into chunks, embed them and store them in the
collection derived from the URL. Already indexed URLs are left untouched.

Examples:
  ingest                                   # Index the demo page
  ingest https://example.com/article       # Index a specific page
  ingest https://example.com -q "summary?" # Index, then ask a question`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.Flags().StringVar(&indexDir, "index-dir", "", "index directory (default is INDEX_DIR)")
	rootCmd.Flags().StringVarP(&question, "question", "q", "", "ask a question after indexing")
	rootCmd.Flags().IntVarP(&topK, "top-k", "k", 0, "chunks to retrieve for --question (default is DEFAULT_TOP_K)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	url := demoURL
	if len(args) > 0 {
		url = args[0]
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if indexDir != "" {
		cfg.IndexDir = indexDir
	}
	if topK == 0 {
		topK = cfg.DefaultTopK
	}
	logger.InitLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := app.NewPipeline(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	result, err := pipeline.Index.Ingest(ctx, url)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Collection: %s\nIngested: %d\n", result.Collection, result.Count)

	if question == "" {
		return nil
	}
	answer, err := pipeline.Query.Answer(ctx, url, question, topK)
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
