// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Class classifies a generation failure for retry decisions.
type Class string

const (
	// ClassTransient marks failures worth retrying: rate limits, server
	// errors, transport faults.
	ClassTransient Class = "transient"

	// ClassPermanent marks failures that must never be retried:
	// authentication and request-validation errors.
	ClassPermanent Class = "permanent"

	// ClassExhausted marks a transient failure whose retries ran out.
	ClassExhausted Class = "exhausted"
)

// Error is a classified generation failure from a backend.
type Error struct {
	// Class drives retry behavior.
	Class Class

	// Op names the backend that failed (e.g. "anthropic").
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err carries the permanent classification.
func IsPermanent(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Class == ClassPermanent
}

// IsExhausted reports whether err carries the retries-exhausted classification.
func IsExhausted(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Class == ClassExhausted
}

// classifyStatus maps a provider HTTP status to an error class. Auth and
// validation failures are permanent; everything else, including rate limits
// and server errors, is transient.
func classifyStatus(status int) Class {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden,
		http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ClassPermanent
	default:
		return ClassTransient
	}
}

// apiError converts a non-200 provider response into a classified error.
func apiError(op string, status int, body io.Reader) *Error {
	b, _ := io.ReadAll(io.LimitReader(body, 4096))
	return &Error{
		Class: classifyStatus(status),
		Op:    op,
		Err:   fmt.Errorf("API returned %d: %s", status, strings.TrimSpace(string(b))),
	}
}
