// ABOUTME: Typed error taxonomy for the conversation orchestrator
// ABOUTME: Every adapter and pipeline failure surfaces as one of these kinds
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies the failure class a caller can act on
type Kind string

const (
	KindInvalidArgument      Kind = "invalid_argument"
	KindUnsupportedInputKind Kind = "unsupported_input_kind"
	KindTranscriptionFailure Kind = "transcription_failure"
	KindSynthesisFailure     Kind = "synthesis_failure"
	KindEmbeddingFailure     Kind = "embedding_failure"
	KindStoreUnavailable     Kind = "store_unavailable"
	KindModelFailure         Kind = "model_failure"
	KindConcurrentGeneration Kind = "concurrent_generation_rejected"
	KindTimeout              Kind = "timeout"
	KindCancelled            Kind = "cancelled"
)

// Error is the structured error carried through the pipeline.
// Stage names the pipeline stage that failed (empty outside the pipeline).
// Partial holds model fragments already produced before a mid-stream failure.
type Error struct {
	Kind    Kind
	Stage   string
	Message string
	Err     error
	Partial []string
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Stage != "" {
		msg = fmt.Sprintf("%s: %s", e.Stage, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the wrapped cause for errors.Is/As chains
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// WithStage returns a copy annotated with the failing pipeline stage
func (e *Error) WithStage(stage string) *Error {
	clone := *e
	clone.Stage = stage
	return &clone
}

// KindOf returns the Kind of err, mapping context errors to the taxonomy.
// Unclassified errors report an empty Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return ""
}

// PartialOf returns any partial model output carried by err
func PartialOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Partial
	}
	return nil
}

// IsTransient reports whether err is worth retrying with backoff.
// Only store/engine availability blips and timeouts qualify; caller misuse
// and engine-reported failures are permanent.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindStoreUnavailable, KindTimeout:
		return true
	}
	return false
}

// FromContext converts a context error into a taxonomy error, attributing a
// deadline hit to the named adapter call. Returns nil if ctx is still live.
func FromContext(ctx context.Context, call string) *Error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return New(KindTimeout, call+" timed out", ctx.Err())
	case context.Canceled:
		return New(KindCancelled, call+" cancelled", ctx.Err())
	}
	return nil
}
