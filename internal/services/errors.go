package services

import "fmt"

// ValidationError carries per-field messages. Handlers render it as 400.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// FileTooLargeError reports an upload over the configured size limit.
type FileTooLargeError struct {
	LimitBytes int64
}

func (e *FileTooLargeError) Error() string {
	if e.LimitBytes >= 1<<20 {
		return fmt.Sprintf("File size exceeds %dMB limit", e.LimitBytes/(1<<20))
	}
	return fmt.Sprintf("File size exceeds %d byte limit", e.LimitBytes)
}

// UpstreamError reports a failed call to the language model.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }
