package services

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"rag-backend/models"
)

// DefaultSeparators are tried in order: paragraph, line, sentence, word, and
// finally a hard rune cut.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// TextSplitter cuts text into windows of at most chunkSize runes, with up to
// overlap runes carried between consecutive windows. It recursively prefers
// the largest separator present in the text before falling back to smaller
// ones.
type TextSplitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewTextSplitter creates a splitter. overlap must be smaller than chunkSize.
func NewTextSplitter(chunkSize, overlap int) *TextSplitter {
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &TextSplitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
}

// SplitDocuments splits every page into chunks. Each chunk carries the page's
// metadata plus its position within the page.
func (ts *TextSplitter) SplitDocuments(pages []*models.Page) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		if page == nil {
			continue
		}
		for i, text := range ts.SplitText(page.Content) {
			meta := page.Metadata()
			meta[models.MetaChunkIndex] = strconv.Itoa(i)
			chunks = append(chunks, models.Chunk{Text: text, Metadata: meta})
		}
	}
	return chunks
}

// SplitText splits text into chunks. Empty or blank text yields no chunks.
func (ts *TextSplitter) SplitText(text string) []string {
	return ts.splitText(text, ts.separators)
}

func (ts *TextSplitter) splitText(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var remaining []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	var (
		final []string
		good  []string
	)
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < ts.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, ts.mergeSplits(good)...)
			good = nil
		}
		if len(remaining) == 0 {
			final = append(final, strings.TrimSpace(piece))
		} else {
			final = append(final, ts.splitText(piece, remaining)...)
		}
	}
	if len(good) > 0 {
		final = append(final, ts.mergeSplits(good)...)
	}
	return final
}

// mergeSplits greedily packs pieces into windows, then drops pieces from the
// front of the window until at most overlap runes remain for the next one.
func (ts *TextSplitter) mergeSplits(pieces []string) []string {
	var (
		docs    []string
		current []string
		total   int
	)
	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > ts.chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > ts.overlap || (total+n > ts.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeepingSeparator splits text on sep, leaving sep attached to the end
// of each piece so no text is lost. An empty sep splits into runes.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
