package docstore

import "errors"

var (
	// ErrNotFound is returned when a document key has no row.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidName is returned for collection or field names that are not
	// safe to splice into SQL identifiers.
	ErrInvalidName = errors.New("invalid collection or field name")

	// ErrMissingKey is returned when an upsert is attempted without a key.
	ErrMissingKey = errors.New("document key required for upsert")
)
