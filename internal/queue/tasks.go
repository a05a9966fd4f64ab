package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rag-backend/internal/logger"
	"rag-backend/models"
	"rag-backend/services"

	"github.com/hibiken/asynq"
)

const (
	TaskIngestURL = "rag:ingest"

	QueueDefault = "default"
)

type IngestPayload struct {
	URL string `json:"url"`
}

// NewIngestTask builds an ingestion task. Its ID is the collection name, so
// the queue refuses a second task for the same URL while one is pending or
// running. Finished and archived tasks are replaced by EnqueueIngest.
func NewIngestTask(url string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{URL: url})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestURL,
		payload,
		asynq.TaskID(services.CollectionName(url)),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueDefault),
	), nil
}

// EnqueueResult reports what happened to an ingestion request.
type EnqueueResult struct {
	Collection    string
	TaskID        string
	AlreadyQueued bool
}

// Enqueuer submits ingestion tasks.
type Enqueuer struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewEnqueuer(client *asynq.Client, inspector *asynq.Inspector) *Enqueuer {
	return &Enqueuer{client: client, inspector: inspector}
}

func (e *Enqueuer) EnqueueIngest(ctx context.Context, url string) (*EnqueueResult, error) {
	task, err := NewIngestTask(url)
	if err != nil {
		return nil, err
	}

	collection := services.CollectionName(url)
	info, err := e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		var replaced bool
		replaced, err = e.clearFinished(collection)
		if err != nil {
			return nil, err
		}
		if !replaced {
			return &EnqueueResult{Collection: collection, TaskID: collection, AlreadyQueued: true}, nil
		}
		info, err = e.client.EnqueueContext(ctx, task)
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			// Another request re-enqueued it first
			return &EnqueueResult{Collection: collection, TaskID: collection, AlreadyQueued: true}, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("enqueue ingest task: %w", err)
	}

	logger.Info("Ingest task enqueued", "url", url, "task_id", info.ID, "queue", info.Queue, "request_id", logger.RequestID(ctx))
	return &EnqueueResult{Collection: collection, TaskID: info.ID}, nil
}

// clearFinished deletes a completed or archived task holding the ID, so a URL
// whose last ingestion failed can be queued again. It reports whether the ID
// is free.
func (e *Enqueuer) clearFinished(id string) (bool, error) {
	if e.inspector == nil {
		return false, nil
	}

	info, err := e.inspector.GetTaskInfo(QueueDefault, id)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect ingest task: %w", err)
	}
	if info.State != asynq.TaskStateArchived && info.State != asynq.TaskStateCompleted {
		return false, nil
	}

	if err := e.inspector.DeleteTask(QueueDefault, id); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return false, fmt.Errorf("delete finished ingest task: %w", err)
	}
	logger.Info("Replacing finished ingest task", "task_id", id, "state", info.State.String())
	return true, nil
}

// Ingester is the part of the index service the worker needs.
type Ingester interface {
	Ingest(ctx context.Context, url string) (*services.IngestResult, error)
}

// Task handlers
type TaskProcessor struct {
	ingester Ingester
}

func NewTaskProcessor(ingester Ingester) *TaskProcessor {
	return &TaskProcessor{ingester: ingester}
}

func (p *TaskProcessor) ProcessIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if payload.URL == "" {
		return fmt.Errorf("empty url: %w", asynq.SkipRetry)
	}

	logger.Info("Processing ingest task", "url", payload.URL)

	result, err := p.ingester.Ingest(ctx, payload.URL)
	if err != nil {
		// Retrying cannot fix missing credentials
		if models.IsKind(err, models.KindConfiguration) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	logger.Info("Ingest task completed", "url", payload.URL, "collection", result.Collection, "count", result.Count)
	return nil
}

// NewServeMux registers every task handler.
func NewServeMux(p *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskIngestURL, p.ProcessIngest)
	return mux
}
