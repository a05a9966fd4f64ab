package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"rag-backend/internal/logger"
	"rag-backend/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

var (
	// Global HTTP transport with compression enabled
	httpTransport = &http.Transport{
		Proxy:              http.ProxyFromEnvironment,
		DisableCompression: false,
	}
)

// LoaderConfig holds configuration for page loading
type LoaderConfig struct {
	Timeout   time.Duration
	UserAgent string
	// Optional JS rendering before falling back to a plain fetch
	RenderJS         bool
	RenderTimeout    time.Duration
	WaitSelector     string
	NetworkIdleAfter time.Duration
}

// Loader fetches a single URL and reduces it to text. It never follows links.
type Loader struct {
	cfg       LoaderConfig
	transport http.RoundTripper
}

func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Loader{cfg: cfg, transport: httpTransport}
}

// contextTransport binds every outgoing request to the caller's context so a
// cancelled HTTP request also cancels the page fetch.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// LoadPage fetches rawURL and returns its text. Unreachable hosts, non-2xx
// statuses and non-text content fail with a FetchError.
func (l *Loader) LoadPage(ctx context.Context, rawURL string) (*models.Page, error) {
	op := "load " + rawURL

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, models.NewFetchError(op, fmt.Errorf("invalid URL: %w", err))
	}
	if (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
		return nil, models.NewFetchError(op, fmt.Errorf("invalid URL: expected absolute http(s) URL"))
	}
	if err := ctx.Err(); err != nil {
		return nil, models.NewFetchError(op, err)
	}

	if l.cfg.RenderJS {
		page, renderErr := l.renderPage(ctx, rawURL)
		if renderErr == nil {
			return page, nil
		}
		logger.Warn("JS render failed, falling back to plain fetch", "url", rawURL, "error", renderErr)
	}

	page, err := l.fetch(ctx, rawURL)
	if err != nil {
		return nil, models.NewFetchError(op, err)
	}
	return page, nil
}

func (l *Loader) fetch(ctx context.Context, rawURL string) (*models.Page, error) {
	c := colly.NewCollector(colly.MaxDepth(1))
	c.WithTransport(&contextTransport{ctx: ctx, base: l.transport})
	c.SetRequestTimeout(l.cfg.Timeout)
	c.UserAgent = l.cfg.UserAgent

	var (
		page     *models.Page
		fetchErr error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Accept-Encoding", "gzip, br")
	})

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		mediaType := mediaTypeOf(contentType)
		if !isTextMediaType(mediaType) {
			fetchErr = fmt.Errorf("unsupported content type %q", contentType)
			return
		}

		body, err := decodeBody(r.Body, r.Headers.Get("Content-Encoding"), contentType)
		if err != nil {
			fetchErr = err
			return
		}

		p := &models.Page{
			URL:         rawURL,
			ContentType: mediaType,
			StatusCode:  r.StatusCode,
			FetchedAt:   time.Now(),
		}
		if mediaType == "text/plain" {
			p.Content = strings.TrimSpace(string(body))
		} else {
			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
			if err != nil {
				fetchErr = fmt.Errorf("failed to parse HTML: %w", err)
				return
			}
			p.Title = strings.TrimSpace(doc.Find("title").First().Text())
			p.Content = extractMainContentFromSelection(doc.Selection)
		}
		page = p
	})

	c.OnError(func(r *colly.Response, err error) {
		statusCode := r.StatusCode
		switch {
		case statusCode == http.StatusForbidden:
			fetchErr = fmt.Errorf("access forbidden (403): the website blocked the request")
		case statusCode == http.StatusTooManyRequests:
			fetchErr = fmt.Errorf("rate limited (429): too many requests")
		case statusCode >= 500:
			fetchErr = fmt.Errorf("server error (%d): %v", statusCode, err)
		case statusCode != 0:
			fetchErr = fmt.Errorf("HTTP error (%d): %v", statusCode, err)
		default:
			fetchErr = fmt.Errorf("network error: %w", err)
		}
	})

	if err := c.Visit(rawURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if page == nil {
		return nil, fmt.Errorf("no response received for %s", rawURL)
	}
	return page, nil
}

func mediaTypeOf(contentType string) string {
	if contentType == "" {
		// Servers that omit the header are overwhelmingly serving HTML.
		return "text/html"
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType
}

func isTextMediaType(mediaType string) bool {
	switch mediaType {
	case "text/html", "application/xhtml+xml", "text/plain":
		return true
	}
	return false
}

// decodeBody undoes brotli compression (the standard transport only handles
// gzip) and converts non-UTF-8 bodies to UTF-8.
func decodeBody(body []byte, contentEncoding, contentType string) ([]byte, error) {
	if strings.Contains(contentEncoding, "br") {
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("failed to decode brotli body: %w", err)
		}
		body = decompressed
	}
	// Bodies with a declared charset may already have been converted by colly
	if len(body) == 0 || utf8.Valid(body) {
		return body, nil
	}

	utf8Reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		// Charset detection failed, keep the body as-is (likely already UTF-8)
		return body, nil
	}
	decoded, err := io.ReadAll(utf8Reader)
	if err != nil || len(decoded) == 0 {
		return body, nil
	}
	return decoded, nil
}

// extractMainContentFromSelection extracts main content from a goquery Selection
func extractMainContentFromSelection(selection *goquery.Selection) string {
	doc := selection.Clone()

	// Remove unwanted elements
	doc.Find("script, style, noscript, template, nav, footer, header, aside, .nav, .navbar, .footer, .header, .sidebar, .advertisement, .ads, .skip-link").Remove()

	// Try semantic HTML5 elements first
	contentSelectors := []string{
		"main",
		"article",
		"[role='main']",
		".main-content",
		".content",
		"#content",
		".post",
		".entry",
	}

	var content strings.Builder
	contentFound := false

	for _, selector := range contentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 100 {
				content.WriteString(text)
				content.WriteString("\n\n")
				contentFound = true
			}
		})

		if contentFound {
			break
		}
	}

	if !contentFound {
		content.WriteString(doc.Find("body").Text())
	}

	// Collapse blank lines but keep paragraph breaks for the splitter
	lines := strings.Split(strings.TrimSpace(content.String()), "\n")
	var cleaned []string
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(cleaned) > 0 {
				cleaned = append(cleaned, "")
			}
			blank = true
			continue
		}
		cleaned = append(cleaned, line)
		blank = false
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}
