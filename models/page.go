package models

import "time"

// Page is the textual content fetched from a single URL.
type Page struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type"`
	StatusCode  int       `json:"status_code"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Metadata returns the metadata every chunk cut from this page inherits.
func (p *Page) Metadata() map[string]string {
	meta := map[string]string{MetaSource: p.URL}
	if p.Title != "" {
		meta[MetaTitle] = p.Title
	}
	return meta
}
