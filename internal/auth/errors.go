// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds returned by lifecycle operations. Callers classify with
// errors.Is or KindOf; messages are never meant to be inspected.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized covers bad credentials and unknown subjects.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidToken covers malformed, expired, reused and unknown tokens.
	// It is an ErrUnauthorized so transports cannot tell the cases apart.
	ErrInvalidToken = fmt.Errorf("invalid token: %w", ErrUnauthorized)

	// ErrForbidden is returned when the identity resolved but is not permitted.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyExists is returned on an email collision during registration.
	ErrAlreadyExists = errors.New("already exists")

	// ErrIncorrectCredential is returned when an already authenticated caller
	// supplies the wrong current password.
	ErrIncorrectCredential = errors.New("incorrect credential")

	// ErrInvalidInput is returned when caller-supplied input is rejected
	// before any lookup, such as an empty password or malformed email.
	ErrInvalidInput = errors.New("invalid input")

	// errResetCredentialMismatch is a reset token whose credential hash does
	// not verify. It classifies as ErrInvalidToken at the boundary.
	errResetCredentialMismatch = fmt.Errorf("%w: %w", ErrInvalidToken, ErrIncorrectCredential)
)

// Kind classifies an error for the transport boundary.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindAlreadyExists
	KindNotFound
	KindIncorrectCredential
	KindInvalidInput
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindAlreadyExists:
		return "already_exists"
	case KindNotFound:
		return "not_found"
	case KindIncorrectCredential:
		return "incorrect_credential"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "internal"
	}
}

// KindOf returns the kind of err. Errors that do not wrap one of the
// package sentinels are infrastructure failures and map to KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrIncorrectCredential):
		return KindIncorrectCredential
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	default:
		return KindInternal
	}
}

// StatusCode maps err to an HTTP status code. Returns http.StatusOK for a
// nil error.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindAlreadyExists:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindIncorrectCredential:
		return http.StatusBadRequest
	case KindInvalidInput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
