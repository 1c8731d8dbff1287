package storage

import "errors"

var (
	// ErrLogNotFound is returned when an execution log row is not found
	ErrLogNotFound = errors.New("execution log not found")

	// ErrTraceNotFound is returned when a trace aggregate row is not found
	ErrTraceNotFound = errors.New("trace not found")

	// ErrTraceExists is returned when inserting a trace aggregate that
	// another writer created first (unique violation on tenant, project,
	// trace id)
	ErrTraceExists = errors.New("trace already exists")
)
