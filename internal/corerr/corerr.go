// Package corerr defines the typed error taxonomy shared by every codewiki
// component (spec §7).
package corerr

import (
	"errors"
	"fmt"
)

// Kind classifies a CoreError into one of the taxonomy buckets.
type Kind string

const (
	KindNotFound  Kind = "not_found"
	KindConflict  Kind = "conflict"
	KindConfig    Kind = "config"
	KindStorage   Kind = "storage"
	KindEmbedding Kind = "embedding"
	KindRetrieval Kind = "retrieval"
	KindGeneration Kind = "generation"
	KindIndexing  Kind = "indexing"
	KindCancelled Kind = "cancelled"
	KindInternal  Kind = "internal"
)

// CoreError is the concrete error type returned by every codewiki package.
type CoreError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error {
	return e.Cause
}

// New builds a CoreError with no underlying cause.
func New(kind Kind, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message}
}

// Wrap builds a CoreError carrying an underlying cause.
func Wrap(kind Kind, message string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a CoreError of the given kind.
func Is(err error, kind Kind) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

func NotFound(format string, args ...any) *CoreError {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) *CoreError {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

func Cancelled(format string, args ...any) *CoreError {
	return New(KindCancelled, fmt.Sprintf(format, args...))
}

func Internal(cause error, format string, args ...any) *CoreError {
	return Wrap(KindInternal, fmt.Sprintf(format, args...), cause)
}
