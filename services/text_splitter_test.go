package services

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"rag-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%05d", i)
	}
	return strings.Join(words, " ")
}

// sharedOverlap returns the length of the longest suffix of a that is also a
// prefix of b.
func sharedOverlap(a, b string) int {
	ar, br := []rune(a), []rune(b)
	max := len(ar)
	if len(br) < max {
		max = len(br)
	}
	for l := max; l > 0; l-- {
		if string(ar[len(ar)-l:]) == string(br[:l]) {
			return l
		}
	}
	return 0
}

func TestSplitTextRespectsSizeAndOverlap(t *testing.T) {
	splitter := NewTextSplitter(1000, 200)
	chunks := splitter.SplitText(numberedWords(2000))

	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 1000, "chunk %d too long", i)
		if i > 0 {
			overlap := sharedOverlap(chunks[i-1], chunk)
			assert.Greater(t, overlap, 0, "chunk %d has no overlap", i)
			assert.LessOrEqual(t, overlap, 200, "chunk %d overlaps too much", i)
		}
	}
	assert.True(t, strings.HasPrefix(chunks[0], "w00000"))
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "w01999"))
}

func TestSplitTextPrefersParagraphs(t *testing.T) {
	a := strings.Repeat("a", 600)
	b := strings.Repeat("b", 600)
	splitter := NewTextSplitter(1000, 200)

	assert.Equal(t, []string{a, b}, splitter.SplitText(a+"\n\n"+b))
}

func TestSplitTextHardCut(t *testing.T) {
	splitter := NewTextSplitter(1000, 200)
	chunks := splitter.SplitText(strings.Repeat("x", 2500))

	require.NotEmpty(t, chunks)
	assert.Equal(t, 1000, utf8.RuneCountInString(chunks[0]))
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 1000)
	}
}

func TestSplitTextCountsRunes(t *testing.T) {
	splitter := NewTextSplitter(10, 2)
	chunks := splitter.SplitText(strings.Repeat("é", 25))

	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 10)
		assert.True(t, utf8.ValidString(chunk))
	}
}

func TestSplitTextEmpty(t *testing.T) {
	splitter := NewTextSplitter(1000, 200)
	assert.Empty(t, splitter.SplitText(""))
	assert.Empty(t, splitter.SplitText("  \n\n  "))
}

func TestSplitDocumentsCarriesMetadata(t *testing.T) {
	splitter := NewTextSplitter(50, 10)
	pages := []*models.Page{
		{URL: "https://example.com/a", Title: "A", Content: numberedWords(30)},
		{URL: "https://example.com/empty", Content: ""},
	}

	chunks := splitter.SplitDocuments(pages)
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.Equal(t, "https://example.com/a", chunk.Source())
		assert.Equal(t, "A", chunk.Metadata[models.MetaTitle])
		assert.Equal(t, fmt.Sprint(i), chunk.Metadata[models.MetaChunkIndex])
	}
}
