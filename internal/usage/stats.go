package usage

import (
	"encoding/json"

	"prompt_trace/internal/models"
)

// Stats accumulates already-normalized usage records into the nested
// provider → model structure stored on the trace aggregate. Groups keep
// first-appearance order so repeated extraction runs over the same log
// set serialize identically.
type Stats struct {
	providers []*ProviderStats
	index     map[string]*ProviderStats
}

// ProviderStats groups model-level usage under one provider.
type ProviderStats struct {
	Provider string        `json:"provider"`
	Models   []*ModelStats `json:"models"`

	index map[string]*ModelStats
}

// ModelStats tracks how many logs contributed usage for one model and
// the running sum of every token field those logs reported.
type ModelStats struct {
	Model  string           `json:"model"`
	Count  int64            `json:"count"`
	Tokens map[string]int64 `json:"tokens"`
}

func NewStats() *Stats {
	return &Stats{index: make(map[string]*ProviderStats)}
}

// Add accumulates one log's normalized usage. Non-numeric values are
// ignored; the normalizer only ever emits integers, but stored usage
// comes back from jsonb as float64.
func (s *Stats) Add(provider, model string, u models.JSONB) {
	p, found := s.index[provider]
	if !found {
		p = &ProviderStats{Provider: provider, index: make(map[string]*ModelStats)}
		s.index[provider] = p
		s.providers = append(s.providers, p)
	}

	m, found := p.index[model]
	if !found {
		m = &ModelStats{Model: model, Tokens: make(map[string]int64)}
		p.index[model] = m
		p.Models = append(p.Models, m)
	}

	m.Count++
	for field, value := range u {
		if n, ok := asInt64(value); ok {
			m.Tokens[field] += n
		}
	}
}

// Empty reports whether no log contributed any usage.
func (s *Stats) Empty() bool {
	return len(s.providers) == 0
}

// Providers returns the accumulated groups in first-appearance order.
func (s *Stats) Providers() []*ProviderStats {
	return s.providers
}

// JSONB renders the accumulated stats for the traces.usage_stats column.
// It returns nil when nothing was accumulated so the column stays NULL
// instead of holding an empty object.
func (s *Stats) JSONB() models.JSONB {
	if s.Empty() {
		return nil
	}
	return models.JSONB{"providers": s.providers}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
