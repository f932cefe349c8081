package storage

import "errors"

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrVersionConflict is returned by conditional updates when the stored
	// version no longer matches. Callers re-read and retry.
	ErrVersionConflict = errors.New("version conflict")

	// ErrAssetClaimed is returned when creating a pool for an asset that is
	// already claimed by another active, non-deleted pool.
	ErrAssetClaimed = errors.New("asset already claimed by an active pool")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
