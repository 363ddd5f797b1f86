package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for missing tenant/user context.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict signals a unique-constraint violation; callers fall back to the update path.
	ErrConflict = errors.New("already exists")
	// ErrProviderUnavailable signals the LLM, embedding, or graph backend is unreachable.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrQueueFull signals the bounded ingestion queue rejected an enqueue.
	ErrQueueFull = errors.New("queue full")
	// ErrCancelled signals the operation was cooperatively aborted.
	ErrCancelled = errors.New("cancelled")
)
