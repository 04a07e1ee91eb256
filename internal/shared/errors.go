package shared

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a resource with the same identity already exists.
	ErrDuplicate = errors.New("already exists")
	// ErrValidation indicates the request payload failed validation.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates login failure. Lookup misses, ambiguous
	// entries and bind failures all collapse into this value so callers cannot
	// tell them apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates a malformed, tampered, expired or wrong-kind token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrForbidden indicates the authenticated actor lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrDirectoryUnavailable indicates a transport-level directory failure.
	ErrDirectoryUnavailable = errors.New("directory unavailable")
	// ErrRateLimited indicates too many attempts in the configured window.
	ErrRateLimited = errors.New("rate limited")
)
