// Package apperr holds the failure taxonomy shared by the API client,
// repositories and controllers.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for logs, metrics and user notices.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindRateLimited   Kind = "rate_limited"
	KindRequestFailed Kind = "request_failed"
	KindTransport     Kind = "transport"
	KindCanceled      Kind = "canceled"
	KindUnknown       Kind = "unknown"
)

// ValidationError blocks a submission before any request is issued.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RateLimitedError is returned by the mutation guard; no request was made.
type RateLimitedError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s (retry in %s)", e.Key, e.RetryAfter.Round(time.Millisecond))
}

// RequestFailedError means the server answered with success=false.
type RequestFailedError struct {
	StatusCode int
	Message    string
}

func (e *RequestFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed (http %d)", e.StatusCode)
	}
	return "request failed: " + e.Message
}

// TransportError covers network failures and non-2xx replies without a
// usable envelope.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Message != "":
		return fmt.Sprintf("transport: http %d: %s", e.StatusCode, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("transport: http %d", e.StatusCode)
	case e.Err != nil:
		return "transport: " + e.Err.Error()
	}
	return "transport: " + e.Message
}

func (e *TransportError) Unwrap() error { return e.Err }

// KindOf reports which taxonomy bucket err belongs to.
func KindOf(err error) Kind {
	var (
		verr *ValidationError
		rerr *RateLimitedError
		ferr *RequestFailedError
		terr *TransportError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return KindValidation
	case errors.As(err, &rerr):
		return KindRateLimited
	case errors.As(err, &ferr):
		return KindRequestFailed
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &terr):
		return KindTransport
	}
	return KindUnknown
}

func IsValidation(err error) bool    { return KindOf(err) == KindValidation }
func IsRateLimited(err error) bool   { return KindOf(err) == KindRateLimited }
func IsRequestFailed(err error) bool { return KindOf(err) == KindRequestFailed }
func IsTransport(err error) bool     { return KindOf(err) == KindTransport }
