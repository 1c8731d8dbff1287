package processing

import (
	"context"
	"sort"
	"sync"
	"time"

	"prompt_trace/internal/models"
	"prompt_trace/internal/storage"
)

// fakeLogStore simulates the execution log repository
type fakeLogStore struct {
	mu   sync.Mutex
	logs map[int64]*models.ExecutionLog
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{logs: make(map[int64]*models.ExecutionLog)}
}

func (f *fakeLogStore) add(log models.ExecutionLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[log.ID] = &log
}

func (f *fakeLogStore) GetByID(ctx context.Context, tenantID, projectID, id int64) (*models.ExecutionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	log, found := f.logs[id]
	if !found || log.TenantID != tenantID || log.ProjectID != projectID {
		return nil, storage.ErrLogNotFound
	}

	copied := *log
	return &copied, nil
}

func (f *fakeLogStore) SetProviderUsage(ctx context.Context, id int64, provider, model string, usage models.JSONB) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	log, found := f.logs[id]
	if !found {
		return storage.ErrLogNotFound
	}
	if log.Provider != nil {
		return nil // write-once, same as the conditional UPDATE
	}

	log.Provider = &provider
	log.Model = &model
	log.Usage = usage
	return nil
}

func (f *fakeLogStore) ListByTrace(ctx context.Context, tenantID, projectID int64, traceID string) ([]models.ExecutionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var logs []models.ExecutionLog
	for _, log := range f.logs {
		if log.TenantID == tenantID && log.ProjectID == projectID &&
			log.TraceID != nil && *log.TraceID == traceID {
			logs = append(logs, *log)
		}
	}

	sort.Slice(logs, func(i, j int) bool {
		if logs[i].CreatedAt.Equal(logs[j].CreatedAt) {
			return logs[i].ID < logs[j].ID
		}
		return logs[i].CreatedAt.Before(logs[j].CreatedAt)
	})

	return logs, nil
}

// fakeFieldStore records batched search-index inserts
type fakeFieldStore struct {
	mu      sync.Mutex
	batches int
	byLog   map[int64][]models.LogField
}

func newFakeFieldStore() *fakeFieldStore {
	return &fakeFieldStore{byLog: make(map[int64][]models.LogField)}
}

func (f *fakeFieldStore) InsertBatch(ctx context.Context, fields []models.LogField) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(fields) == 0 {
		return nil
	}

	f.batches++
	// Same replace-on-reindex behavior as the real repository.
	f.byLog[fields[0].LogID] = append([]models.LogField(nil), fields...)
	return nil
}

func (f *fakeFieldStore) fieldsFor(logID int64) []models.LogField {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byLog[logID]
}

// fakeTraceStore simulates the trace repository, including the unique
// constraint on insert and the conditional update. conflicts makes the
// next N conditional updates lose to a simulated concurrent writer.
type fakeTraceStore struct {
	mu        sync.Mutex
	traces    map[string]*models.Trace
	nextID    int64
	clock     int64
	conflicts  int
	insertRace bool
	inserts    int
	updates    int
}

func newFakeTraceStore() *fakeTraceStore {
	return &fakeTraceStore{traces: make(map[string]*models.Trace), nextID: 1}
}

func (f *fakeTraceStore) tick() time.Time {
	f.clock++
	return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.clock) * time.Millisecond)
}

func (f *fakeTraceStore) key(tenantID, projectID int64, traceID string) string {
	return traceID // tests never mix tenants within one store
}

func (f *fakeTraceStore) Get(ctx context.Context, tenantID, projectID int64, traceID string) (*models.Trace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	trace, found := f.traces[f.key(tenantID, projectID, traceID)]
	if !found {
		return nil, storage.ErrTraceNotFound
	}

	copied := *trace
	return &copied, nil
}

func (f *fakeTraceStore) Insert(ctx context.Context, trace *models.Trace) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := f.key(trace.TenantID, trace.ProjectID, trace.TraceID)
	if _, exists := f.traces[key]; exists {
		return storage.ErrTraceExists
	}

	if f.insertRace {
		// A concurrent extractor won the creation race: its row lands
		// first and our insert hits the unique constraint.
		f.insertRace = false
		competing := *trace
		competing.ID = f.nextID
		f.nextID++
		competing.CreatedAt = f.tick()
		competing.UpdatedAt = competing.CreatedAt
		f.traces[key] = &competing
		return storage.ErrTraceExists
	}

	trace.ID = f.nextID
	f.nextID++
	trace.CreatedAt = f.tick()
	trace.UpdatedAt = trace.CreatedAt

	copied := *trace
	f.traces[key] = &copied
	f.inserts++
	return nil
}

func (f *fakeTraceStore) UpdateIfUnchanged(ctx context.Context, trace *models.Trace, expected time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := f.key(trace.TenantID, trace.ProjectID, trace.TraceID)
	stored, found := f.traces[key]
	if !found || !stored.UpdatedAt.Equal(expected) {
		return false, nil
	}

	if f.conflicts > 0 {
		f.conflicts--
		// A concurrent writer got in between read and write.
		stored.UpdatedAt = f.tick()
		return false, nil
	}

	trace.ID = stored.ID
	trace.CreatedAt = stored.CreatedAt
	trace.UpdatedAt = f.tick()

	copied := *trace
	f.traces[key] = &copied
	f.updates++
	return true, nil
}

func (f *fakeTraceStore) delete(traceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.traces, traceID)
}

func (f *fakeTraceStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.traces)
}

// logSeed is one execution log plus the artifacts archived under its
// blob prefix, keyed by artifact file name.
type logSeed struct {
	models.ExecutionLog
	artifacts map[string]string
}

func newLogSeed(id int64, success bool) logSeed {
	seed := logSeed{artifacts: make(map[string]string)}
	seed.ExecutionLog = models.ExecutionLog{
		ID:            id,
		TenantID:      7,
		ProjectID:     12,
		PromptID:      34,
		PromptVersion: 2,
		Success:       success,
		CreatedAt:     at(int(id)),
	}
	return seed
}

func strPtr(s string) *string { return &s }

func i64Ptr(n int64) *int64 { return &n }

func at(min int) time.Time { return time.Date(2026, 4, 20, 10, min, 0, 0, time.UTC) }
