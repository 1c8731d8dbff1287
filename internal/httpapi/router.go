package httpapi

import (
	"fmt"
	"net/http"

	"prompt_trace/internal/config"
	"prompt_trace/internal/storage"
)

// Dependencies aggregates everything the read API needs.
type Dependencies struct {
	DB     *storage.DB
	Traces *storage.TraceRepository
	Logs   *storage.ExecutionLogRepository
}

// Close releases the resources held by the dependencies
func (d *Dependencies) Close() error {
	return d.DB.Close()
}

// NewRouter creates an HTTP router with all dependencies wired up
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps := &Dependencies{
		DB:     db,
		Traces: storage.NewTraceRepository(db),
		Logs:   storage.NewExecutionLogRepository(db),
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps)

	return mux, deps, nil
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	traces := NewTracesHandler(deps.Traces, deps.Logs)
	mux.HandleFunc("GET /v1/tenants/{tenant_id}/projects/{project_id}/traces", traces.List)
	mux.HandleFunc("GET /v1/tenants/{tenant_id}/projects/{project_id}/traces/{trace_id}", traces.Get)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.Health(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}
