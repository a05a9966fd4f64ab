package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindFetch         ErrorKind = "fetch_error"
	KindEmbedding     ErrorKind = "embedding_error"
	KindGeneration    ErrorKind = "generation_error"
	KindConfiguration ErrorKind = "configuration_error"
)

// RAGError wraps a failure from one stage of the ingestion or query pipeline.
type RAGError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *RAGError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *RAGError) Unwrap() error {
	return e.Err
}

func NewFetchError(op string, err error) error {
	return &RAGError{Kind: KindFetch, Op: op, Err: err}
}

func NewEmbeddingError(op string, err error) error {
	return &RAGError{Kind: KindEmbedding, Op: op, Err: err}
}

func NewGenerationError(op string, err error) error {
	return &RAGError{Kind: KindGeneration, Op: op, Err: err}
}

func NewConfigurationError(op string, err error) error {
	return &RAGError{Kind: KindConfiguration, Op: op, Err: err}
}

// ErrorKindOf returns the kind of the outermost RAGError in err's chain, or
// an empty kind when there is none.
func ErrorKindOf(err error) ErrorKind {
	var ragErr *RAGError
	if errors.As(err, &ragErr) {
		return ragErr.Kind
	}
	return ""
}

// IsKind reports whether any RAGError in err's chain has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		var ragErr *RAGError
		if !errors.As(err, &ragErr) {
			return false
		}
		if ragErr.Kind == kind {
			return true
		}
		err = ragErr.Err
	}
	return false
}
