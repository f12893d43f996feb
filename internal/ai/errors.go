package ai

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrGatewayUnavailable reports a transient transport or provider failure.
	ErrGatewayUnavailable = errors.New("model gateway unavailable")
	// ErrGatewayRejected reports a provider refusal (bad request, auth,
	// unknown model). It also matches ErrGatewayUnavailable but is never retried.
	ErrGatewayRejected = errors.New("model gateway rejected the call")
	// ErrGatewayRateLimited reports that the provider throttled the call.
	ErrGatewayRateLimited = errors.New("model gateway rate limited")
	// ErrSchemaMismatch reports a payload that is not structurally usable.
	ErrSchemaMismatch = errors.New("model output does not match schema")
)

// RateLimitError carries the delay the provider asked for, if any.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	msg := ErrGatewayRateLimited.Error()
	if e.RetryAfter > 0 {
		msg = fmt.Sprintf("%s (retry after %s)", msg, e.RetryAfter)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrGatewayRateLimited
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// RejectedError carries the provider status of a refused call.
type RejectedError struct {
	Code int
	Err  error
}

func (e *RejectedError) Error() string {
	msg := fmt.Sprintf("%s (status %d)", ErrGatewayRejected.Error(), e.Code)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrGatewayRejected || target == ErrGatewayUnavailable
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// SchemaMismatchError lists why a payload was rejected.
type SchemaMismatchError struct {
	TemplateID TemplateID
	Violations []string
	Err        error
}

func (e *SchemaMismatchError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrSchemaMismatch.Error())
	if e.TemplateID != "" {
		fmt.Fprintf(&sb, " (%s)", e.TemplateID)
	}
	if len(e.Violations) > 0 {
		sb.WriteString(": ")
		sb.WriteString(strings.Join(e.Violations, "; "))
	} else if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

func (e *SchemaMismatchError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err so that it matches ErrGatewayUnavailable.
func Unavailable(err error) error {
	if err == nil {
		return ErrGatewayUnavailable
	}
	return fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
}

// Retryable reports whether a failed call may succeed when repeated.
func Retryable(err error) bool {
	if errors.Is(err, ErrGatewayRejected) {
		return false
	}
	return errors.Is(err, ErrGatewayRateLimited) || errors.Is(err, ErrGatewayUnavailable)
}
