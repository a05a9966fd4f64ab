package services

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"rag-backend/internal/ai"
	"rag-backend/internal/logger"
	"rag-backend/internal/telemetry"
	"rag-backend/models"
)

const answerPromptText = `You are an assistant for question-answering tasks. Use the following pieces of retrieved context to answer the question. If you don't know the answer, say that you don't know. Keep the answer concise.

Context:
{{.Context}}

Question: {{.Question}}

Answer:`

// AnswerPrompt is the fixed template every question is rendered into.
var AnswerPrompt = template.Must(template.New("answer").Parse(answerPromptText))

type promptData struct {
	Context  string
	Question string
}

// QueryService answers questions against the collection of one URL.
type QueryService struct {
	index     *IndexService
	embedder  ai.Embedder
	generator ai.Generator
	prompt    *template.Template
	metrics   *telemetry.Metrics
}

func NewQueryService(index *IndexService, embedder ai.Embedder, generator ai.Generator, prompt *template.Template, metrics *telemetry.Metrics) *QueryService {
	if prompt == nil {
		prompt = AnswerPrompt
	}
	return &QueryService{
		index:     index,
		embedder:  embedder,
		generator: generator,
		prompt:    prompt,
		metrics:   metrics,
	}
}

// Answer indexes url if needed, retrieves the k chunks closest to the
// question and asks the generator for an answer. Indexing failures keep
// their own kind; anything after that is a GenerationError.
func (q *QueryService) Answer(ctx context.Context, url, question string, k int) (string, error) {
	handle, err := q.index.EnsureIndex(ctx, url)
	if err != nil {
		return "", err
	}
	defer handle.Close()

	var chunks []models.ScoredChunk
	if k > 0 {
		vector, err := q.embedder.EmbedQuery(ctx, question)
		if err != nil {
			return "", models.NewGenerationError("embed question", err)
		}

		chunks, err = handle.Search(vector, k)
		if err != nil {
			return "", models.NewGenerationError("retrieve", err)
		}
	}

	prompt, err := q.renderPrompt(chunks, question)
	if err != nil {
		return "", models.NewGenerationError("render prompt", err)
	}

	start := time.Now()
	answer, err := q.generator.Generate(ctx, prompt)
	q.metrics.RecordGeneration(ctx, time.Since(start).Seconds(), err == nil)
	if err != nil {
		logger.Error("Generation failed", "collection", handle.Name(), "error", err, "request_id", logger.RequestID(ctx))
		if models.ErrorKindOf(err) == models.KindGeneration {
			return "", err
		}
		return "", models.NewGenerationError("generate", err)
	}

	logger.Info("Question answered",
		"collection", handle.Name(),
		"k", k,
		"retrieved", len(chunks),
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", logger.RequestID(ctx),
	)
	return answer, nil
}

func (q *QueryService) renderPrompt(chunks []models.ScoredChunk, question string) (string, error) {
	var sb strings.Builder
	if err := q.prompt.Execute(&sb, promptData{Context: FormatContext(chunks), Question: question}); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// FormatContext joins chunks into one block, each prefixed with its source.
func FormatContext(chunks []models.ScoredChunk) string {
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = fmt.Sprintf("[source: %s]\n%s", chunk.Source(), chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}
