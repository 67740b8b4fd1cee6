package data

import "errors"

var (
	// ErrDBNotInitialized is returned when a nil database handle is used.
	ErrDBNotInitialized = errors.New("database not initialized")

	// ErrMissingHistory means neither a snapshot nor a seed could be found.
	ErrMissingHistory = errors.New("no weight history or seed available")

	// ErrMalformedEvidence means no row of a feedback batch survived cleaning.
	ErrMalformedEvidence = errors.New("feedback batch has no usable articles")

	// ErrSnapshotNotFound is returned for an unknown version or an empty history.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotExists is returned when appending a version that is already stored.
	ErrSnapshotExists = errors.New("snapshot version already exists")
)
