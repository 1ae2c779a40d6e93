// Copyright 2025 Takhin Data, Inc.

// Package apperr defines the tagged error kinds shared across the agent's
// authorization core. Every operation either returns its typed result or
// one of these kinds; none are recovered silently.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the response envelope can choose the
// right HTTP status and message without inspecting error strings.
type Kind string

const (
	KindAuthMissing      Kind = "AuthMissing"
	KindAuthInvalid      Kind = "AuthInvalid"
	KindInputInvalid     Kind = "InputInvalid"
	KindNotFound         Kind = "NotFound"
	KindPolicyCheckError Kind = "PolicyCheckError"
	KindStorageError     Kind = "StorageError"
	KindIOError          Kind = "IOError"
	KindNotImplemented   Kind = "NotImplemented"
)

// Error is the tagged error type. It wraps an underlying cause without
// losing the classification needed by the envelope.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a new tagged error with no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap tags an existing error with a Kind, preserving it as the cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// As extracts the first *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the Kind of err, defaulting to KindStorageError (treated
// as an unclassified internal failure) when err isn't a tagged *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindStorageError
}
