// Package common defines shared constants and sentinel errors used across
// messenger components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Event validation errors (malformed identity pair, empty body).
	ErrorValidation = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// Cipher errors.
	ErrCipherKeyRequired   = errors.New("cipher key required")
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)
