package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrMemoryUnavailable  = stderrors.New("memory service unavailable")
	ErrMemoryUnauthorized = stderrors.New("memory service rejected credentials")
)

/*
MemoryKind classifies a failed Memory Gateway call.
*/
type MemoryKind string

const (
	KindUnavailable  MemoryKind = "unavailable"
	KindUnauthorized MemoryKind = "unauthorized"
	KindBadResponse  MemoryKind = "bad_response"
)

/*
MemoryServiceError is recoverable from the caller's point of view: search
failures degrade to an empty memory set and write failures are logged.
Unauthorized failures are kept distinct so they are never mistaken for an
unreachable service.
*/
type MemoryServiceError struct {
	Op     string
	Status int
	Kind   MemoryKind
	Detail string
	Err    error
}

func (e *MemoryServiceError) Error() string {
	msg := fmt.Sprintf("memory %s failed (%s", e.Op, e.Kind)

	if e.Status != 0 {
		msg += fmt.Sprintf(", status %d", e.Status)
	}

	msg += ")"

	if e.Detail != "" {
		msg += ": " + e.Detail
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *MemoryServiceError) Is(target error) bool {
	switch target {
	case ErrMemoryUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrMemoryUnavailable:
		return e.Kind != KindUnauthorized
	}

	return false
}

func (e *MemoryServiceError) Unwrap() error {
	return e.Err
}

/*
IsUnauthorized reports whether err is a Memory Gateway authentication
failure.
*/
func IsUnauthorized(err error) bool {
	return stderrors.Is(err, ErrMemoryUnauthorized)
}

/*
MemoryKindForStatus maps an HTTP status code onto a MemoryKind.
*/
func MemoryKindForStatus(status int) MemoryKind {
	switch {
	case status == 401 || status == 403:
		return KindUnauthorized
	case status >= 400 && status < 500 && status != 408 && status != 429:
		return KindBadResponse
	default:
		return KindUnavailable
	}
}
