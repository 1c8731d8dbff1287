package blob

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get for keys that were never written.
var ErrNotFound = errors.New("blob not found")

// Store is the archival side of the pipeline: JSON payloads too large or
// too cold for the relational store, addressed by string key. Writes are
// idempotent overwrites; the relational rows stay the source of truth
// for conflict detection, so the blob layer needs no versioning.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Artifact file names under an execution log's prefix.
const (
	FileMetadata  = "metadata.json"
	FileInput     = "input.json"
	FileOutput    = "output.json"
	FileResult    = "result.json"
	FileResponse  = "response.json"
	FileVariables = "variables.json"

	FileTrace = "trace.json"
)

// LogPrefix builds the deterministic directory for one execution log's
// artifacts. The calendar day comes from the log's creation time in UTC.
func LogPrefix(tenantID int64, createdAt time.Time, projectID, promptID, version, logID int64) string {
	return fmt.Sprintf("logs/%d/%s/%d/%d/%d/%d/",
		tenantID, createdAt.UTC().Format("2006-01-02"), projectID, promptID, version, logID)
}

// TracePrefix builds the directory for a trace's consolidated snapshot.
func TracePrefix(tenantID, projectID int64, traceID string) string {
	return fmt.Sprintf("traces/%d/%d/%s/", tenantID, projectID, traceID)
}
