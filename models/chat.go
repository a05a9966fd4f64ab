package models

// IngestRequest is the body of POST /ingest and POST /ingest/async.
type IngestRequest struct {
	URL string `json:"url" binding:"required,http_url"`
}

// IngestResponse reports the collection backing a URL and its document count
// after ingestion.
type IngestResponse struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}

// AsyncIngestResponse is returned when ingestion is handed to the worker queue.
type AsyncIngestResponse struct {
	Collection string `json:"collection"`
	TaskID     string `json:"task_id,omitempty"`
	Status     string `json:"status"`
}

// ChatRequest is the body of POST /chat. Older clients send the question as
// "query"; both spellings are accepted.
type ChatRequest struct {
	URL      string `json:"url" binding:"required,http_url"`
	Question string `json:"question" binding:"required_without=Query,max=4000"`
	Query    string `json:"query,omitempty" binding:"max=4000"`
	K        *int   `json:"k,omitempty" binding:"omitempty,max=50"`
}

// QuestionText returns the question, falling back to the legacy field.
func (r ChatRequest) QuestionText() string {
	if r.Question != "" {
		return r.Question
	}
	return r.Query
}

// TopK returns the requested k or def when the field was omitted.
func (r ChatRequest) TopK(def int) int {
	if r.K == nil {
		return def
	}
	return *r.K
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

type HealthResponse struct {
	OK bool `json:"ok"`
}
