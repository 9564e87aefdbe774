package service

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrMalformedEvent      = errors.New("malformed webhook event")
	ErrUpstream            = errors.New("payment provider request failed")
	ErrRecordNotFound      = errors.New("payment record not found")
	ErrRecordAlreadyExists = errors.New("payment record already exists")
)

const (
	UpstreamCodeTimeout = "upstream_timeout"
	UpstreamCodeError   = "upstream_error"
)

// UpstreamError reports a failed call to the payment provider. It matches
// ErrUpstream with errors.Is.
type UpstreamError struct {
	Code string
	Err  error
}

func newUpstreamError(err error) *UpstreamError {
	code := UpstreamCodeError
	if errors.Is(err, context.DeadlineExceeded) {
		code = UpstreamCodeTimeout
	}
	return &UpstreamError{Code: code, Err: err}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}
