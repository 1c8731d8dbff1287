package processing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"prompt_trace/internal/blob"
	"prompt_trace/internal/logging"
	"prompt_trace/internal/models"
	"prompt_trace/internal/storage"
	"prompt_trace/internal/usage"
)

// ErrTraceConflict marks an extraction that lost the optimistic-lock
// race on every attempt. It is distinct from ordinary failures so the
// worker can redeliver instead of discarding; the platform's outer
// retry policy eventually converges.
var ErrTraceConflict = errors.New("trace aggregate conflict")

// ExtractorConfig bounds the optimistic retry loop.
type ExtractorConfig struct {
	// MaxAttempts is how many times one Extract call recomputes after a
	// conflicting write before giving up.
	MaxAttempts int

	// RetryBackoff is the pause between attempts.
	RetryBackoff time.Duration
}

// DefaultExtractorConfig returns the default retry bounds.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MaxAttempts:  3,
		RetryBackoff: 50 * time.Millisecond,
	}
}

// TraceExtractor recomputes the full aggregate for one trace id from
// all of its execution logs. Conflict resolution is "last writer
// recomputes from scratch": the UpdatedAt token only detects
// interleaving, and a detected conflict restarts the whole computation
// against the now-current log set. That also makes a concurrently
// deleted trace row indistinguishable from one that never existed, so
// deletion mid-flight self-heals instead of erroring.
type TraceExtractor struct {
	logs   LogStore
	traces TraceStore
	blobs  blob.Store
	config ExtractorConfig
	logger *logging.Logger
}

// NewTraceExtractor creates a new trace extractor
func NewTraceExtractor(logs LogStore, traces TraceStore, blobs blob.Store, config ExtractorConfig) *TraceExtractor {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultExtractorConfig().MaxAttempts
	}
	return &TraceExtractor{
		logs:   logs,
		traces: traces,
		blobs:  blobs,
		config: config,
		logger: logging.NewLogger("trace-extractor"),
	}
}

// Extract aggregates one trace id. An empty trace id and a trace id
// with no logs yet are both no-ops. Exhausting the retry bound returns
// ErrTraceConflict.
func (e *TraceExtractor) Extract(ctx context.Context, tenantID, projectID int64, traceID string) error {
	if traceID == "" {
		return nil
	}

	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		if attempt > 1 && e.config.RetryBackoff > 0 {
			time.Sleep(e.config.RetryBackoff)
		}

		done, err := e.attempt(ctx, tenantID, projectID, traceID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		e.logger.Debug("Trace update conflicted, recomputing", "trace_id", traceID, "attempt", attempt)
	}

	return fmt.Errorf("%w: trace %s not written after %d attempts", ErrTraceConflict, traceID, e.config.MaxAttempts)
}

// attempt runs one full recompute-archive-commit pass. done=false with
// a nil error means a concurrent writer got between our read and our
// write and the caller should start over.
func (e *TraceExtractor) attempt(ctx context.Context, tenantID, projectID int64, traceID string) (bool, error) {
	logs, err := e.logs.ListByTrace(ctx, tenantID, projectID, traceID)
	if err != nil {
		return false, fmt.Errorf("failed to list logs for trace %s: %w", traceID, err)
	}
	if len(logs) == 0 {
		return true, nil
	}

	aggregate, stats := e.aggregate(tenantID, projectID, traceID, logs)

	if err := e.archive(ctx, aggregate, stats, logs); err != nil {
		return false, err
	}

	current, err := e.traces.Get(ctx, tenantID, projectID, traceID)
	if errors.Is(err, storage.ErrTraceNotFound) {
		err = e.traces.Insert(ctx, aggregate)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, storage.ErrTraceExists) {
			return false, err
		}
		// Lost the creation race. Update against the row the winner
		// wrote instead of burning a whole recompute attempt.
		current, err = e.traces.Get(ctx, tenantID, projectID, traceID)
		if errors.Is(err, storage.ErrTraceNotFound) {
			// Created and deleted again already; recompute.
			return false, nil
		}
		if err != nil {
			return false, err
		}
	} else if err != nil {
		return false, err
	}

	return e.traces.UpdateIfUnchanged(ctx, aggregate, current.UpdatedAt)
}

// aggregate computes the trace row from the full log set. Everything is
// derived from scratch; nothing from a previous row survives.
func (e *TraceExtractor) aggregate(tenantID, projectID int64, traceID string, logs []models.ExecutionLog) (*models.Trace, *usage.Stats) {
	trace := &models.Trace{
		TenantID:   tenantID,
		ProjectID:  projectID,
		TraceID:    traceID,
		TotalLogs:  int64(len(logs)),
		FirstLogAt: logs[0].CreatedAt,
		LastLogAt:  logs[0].CreatedAt,
		BlobPrefix: blob.TracePrefix(tenantID, projectID, traceID),
	}

	stats := usage.NewStats()
	for _, log := range logs {
		if log.Success {
			trace.SuccessCount++
		} else {
			trace.ErrorCount++
		}
		if log.DurationMS != nil {
			trace.TotalDurationMS += *log.DurationMS
		}
		if log.CreatedAt.Before(trace.FirstLogAt) {
			trace.FirstLogAt = log.CreatedAt
		}
		if log.CreatedAt.After(trace.LastLogAt) {
			trace.LastLogAt = log.CreatedAt
		}

		// A log missing any of provider/model/usage never contributed
		// usage; it is excluded rather than counted as zeros.
		if log.Provider != nil && log.Model != nil && log.Usage != nil {
			stats.Add(*log.Provider, *log.Model, log.Usage)
		}
	}

	trace.UsageStats = stats.JSONB()
	return trace, stats
}

// TraceSnapshot is the consolidated JSON document archived per trace:
// identity, the recomputed stats, and the full ordered log list.
type TraceSnapshot struct {
	TenantID        int64                  `json:"tenant_id"`
	ProjectID       int64                  `json:"project_id"`
	TraceID         string                 `json:"trace_id"`
	TotalLogs       int64                  `json:"total_logs"`
	SuccessCount    int64                  `json:"success_count"`
	ErrorCount      int64                  `json:"error_count"`
	TotalDurationMS int64                  `json:"total_duration_ms"`
	FirstLogAt      time.Time              `json:"first_log_at"`
	LastLogAt       time.Time              `json:"last_log_at"`
	UsageStats      []*usage.ProviderStats `json:"usage_stats,omitempty"`
	Logs            []models.ExecutionLog  `json:"logs"`
	ExtractedAt     time.Time              `json:"extracted_at"`
}

// archive overwrites the trace's consolidated snapshot unconditionally.
// The blob layer needs no versioning; the relational row is the source
// of truth for conflicts, and a later pass overwrites the snapshot
// again anyway.
func (e *TraceExtractor) archive(ctx context.Context, trace *models.Trace, stats *usage.Stats, logs []models.ExecutionLog) error {
	snapshot := TraceSnapshot{
		TenantID:        trace.TenantID,
		ProjectID:       trace.ProjectID,
		TraceID:         trace.TraceID,
		TotalLogs:       trace.TotalLogs,
		SuccessCount:    trace.SuccessCount,
		ErrorCount:      trace.ErrorCount,
		TotalDurationMS: trace.TotalDurationMS,
		FirstLogAt:      trace.FirstLogAt,
		LastLogAt:       trace.LastLogAt,
		UsageStats:      stats.Providers(),
		Logs:            logs,
		ExtractedAt:     time.Now().UTC(),
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal trace snapshot: %w", err)
	}

	key := trace.BlobPrefix + blob.FileTrace
	if err := e.blobs.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to archive trace snapshot: %w", err)
	}

	return nil
}
