package crawler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rag-backend/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title> Bee Facts </title><style>body { color: red; }</style></head>
<body>
  <nav>Home | About | Contact</nav>
  <main>
    <p>Bees are flying insects closely related to wasps and ants, known for their role in pollination.</p>
    <p>There are over 20,000 known species of bees in seven recognized biological families.</p>
  </main>
  <script>console.log("tracking")</script>
  <footer>Copyright</footer>
</body>
</html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articleHTML))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("  just some text  \n"))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><head></head><body></body></html>"))
	})
	mux.HandleFunc("/brotli", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write([]byte(articleHTML))
		bw.Close()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	})
	mux.HandleFunc("/file.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	})
	mux.HandleFunc("/forbidden", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoadPageExtractsMainContent(t *testing.T) {
	srv := newTestServer(t)
	loader := NewLoader(LoaderConfig{Timeout: 5 * time.Second})

	page, err := loader.LoadPage(context.Background(), srv.URL+"/article")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/article", page.URL)
	assert.Equal(t, "Bee Facts", page.Title)
	assert.Equal(t, "text/html", page.ContentType)
	assert.Contains(t, page.Content, "Bees are flying insects")
	assert.Contains(t, page.Content, "20,000 known species")
	assert.NotContains(t, page.Content, "tracking")
	assert.NotContains(t, page.Content, "Home | About")
	assert.NotContains(t, page.Content, "color: red")
}

func TestLoadPagePlainText(t *testing.T) {
	srv := newTestServer(t)
	loader := NewLoader(LoaderConfig{Timeout: 5 * time.Second})

	page, err := loader.LoadPage(context.Background(), srv.URL+"/plain")
	require.NoError(t, err)
	assert.Equal(t, "just some text", page.Content)
}

func TestLoadPageEmptyDocument(t *testing.T) {
	srv := newTestServer(t)
	loader := NewLoader(LoaderConfig{Timeout: 5 * time.Second})

	page, err := loader.LoadPage(context.Background(), srv.URL+"/empty")
	require.NoError(t, err)
	assert.Empty(t, page.Content)
}

func TestLoadPageBrotli(t *testing.T) {
	srv := newTestServer(t)
	loader := NewLoader(LoaderConfig{Timeout: 5 * time.Second})

	page, err := loader.LoadPage(context.Background(), srv.URL+"/brotli")
	require.NoError(t, err)
	assert.Contains(t, page.Content, "pollination")
}

func TestLoadPageFailures(t *testing.T) {
	srv := newTestServer(t)
	loader := NewLoader(LoaderConfig{Timeout: 2 * time.Second})

	cases := map[string]string{
		"non-text content": srv.URL + "/file.pdf",
		"forbidden":        srv.URL + "/forbidden",
		"relative url":     "/article",
		"bad scheme":       "ftp://example.com/file",
		"unreachable":      "http://127.0.0.1:1/",
	}

	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loader.LoadPage(context.Background(), target)
			require.Error(t, err)
			assert.Equal(t, models.KindFetch, models.ErrorKindOf(err))
		})
	}
}

func TestLoadPageCancelledContext(t *testing.T) {
	srv := newTestServer(t)
	loader := NewLoader(LoaderConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.LoadPage(ctx, srv.URL+"/article")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindFetch))
}

func TestExtractMainContentKeepsParagraphBreaks(t *testing.T) {
	html := "<html><body><p>first line</p>\n\n\n<p>second line</p></body></html>"
	page, err := parseForTest(html)
	require.NoError(t, err)
	assert.Equal(t, "first line\n\nsecond line", strings.TrimSpace(page))
}

func parseForTest(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return extractMainContentFromSelection(doc.Selection), nil
}

func TestDecodeBodyCharset(t *testing.T) {
	latin1 := []byte{'c', 'a', 'f', 0xE9}
	decoded, err := decodeBody(latin1, "", "text/plain; charset=iso-8859-1")
	require.NoError(t, err)
	assert.Equal(t, "café", string(decoded))

	// Already UTF-8 bodies are not converted twice
	decoded, err = decodeBody([]byte("café"), "", "text/plain; charset=iso-8859-1")
	require.NoError(t, err)
	assert.Equal(t, "café", string(decoded))
}
