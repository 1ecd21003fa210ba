// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across storage/repo/workflow/service layers.
var (
	// ErrNotFound indicates the requested document, signer or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates the operation is not legal in the current lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrAlreadySigned indicates a repeated signature for a signer that already signed.
	ErrAlreadySigned = errors.New("already signed")

	// ErrConcurrentModification indicates optimistic concurrency failure (base version mismatch).
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrStorage indicates the underlying storage provider failed.
	ErrStorage = errors.New("storage error")

	// ErrInvalidArgument indicates rejected input (empty ids, unsafe field keys, etc).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a uniqueness violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")
)
