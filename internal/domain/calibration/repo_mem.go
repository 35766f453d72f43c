package calibration

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memKey struct {
	metric Metric
	key    string
}

// storeMem is an in-memory Store for tests and the server's --memory mode.
// The mutex makes Update an atomic read-modify-write, matching the contract.
type storeMem struct {
	mu      sync.Mutex
	factors map[memKey]Factor
	cases   map[string]int
}

func NewStoreMem() Store {
	return &storeMem{
		factors: make(map[memKey]Factor),
		cases:   make(map[string]int),
	}
}

func (s *storeMem) Get(_ context.Context, metric Metric, key string) (*Factor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.factors[memKey{metric, key}]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (s *storeMem) GetMany(_ context.Context, metric Metric, keys []string) (map[string]Factor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Factor)
	for _, k := range keys {
		if f, ok := s.factors[memKey{metric, k}]; ok {
			out[k] = f
		}
	}
	return out, nil
}

func (s *storeMem) List(_ context.Context, metric Metric) ([]Factor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Factor
	for k, f := range s.factors {
		if k.metric == metric {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *storeMem) Update(_ context.Context, metric Metric, key string, def, adjustment, lo, hi float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memKey{metric, key}
	f, ok := s.factors[k]
	if !ok {
		f = Factor{Metric: metric, Key: key, Value: def}
	}
	f.Value = Clamp(f.Value+adjustment, lo, hi)
	f.Observations++
	f.UpdatedAt = time.Now()
	s.factors[k] = f
	return f.Value, nil
}

func (s *storeMem) CaseCount(_ context.Context, procedureID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cases[procedureID], nil
}

func (s *storeMem) IncrementCaseCount(_ context.Context, procedureID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[procedureID]++
	return nil
}
