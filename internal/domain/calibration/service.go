package calibration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Service wraps the Store with defaults and clamp enforcement. All reads fall
// back to the caller-supplied default when no learning has happened yet.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Value returns the learned value for (metric, key) and its observation
// count, or (def, 0) when nothing has been learned.
func (s *Service) Value(ctx context.Context, metric Metric, key string, def float64) (float64, int, error) {
	f, err := s.store.Get(ctx, metric, key)
	if errors.Is(err, ErrNotFound) {
		return def, 0, nil
	}
	if err != nil {
		return def, 0, fmt.Errorf("get %s/%s: %w", metric, key, err)
	}
	return f.Value, f.Observations, nil
}

// Adjust applies a bounded adjustment to (metric, key). A zero adjustment is
// a no-op that leaves the observation count untouched.
func (s *Service) Adjust(ctx context.Context, metric Metric, key string, def, adjustment float64) (float64, error) {
	if adjustment == 0 {
		v, _, err := s.Value(ctx, metric, key, def)
		return v, err
	}
	lo, hi := BoundsFor(metric, def)
	v, err := s.store.Update(ctx, metric, key, def, adjustment, lo, hi)
	if err != nil {
		return 0, fmt.Errorf("update %s/%s: %w", metric, key, err)
	}
	return v, nil
}

// FineBuckets returns the recorded factors for integer buckets within
// [center-radius, center+radius], keyed by bucket. Used by the interpolation
// engine for age and weight.
func (s *Service) FineBuckets(ctx context.Context, metric Metric, center, radius int) (map[int]Factor, error) {
	keys := make([]string, 0, 2*radius+1)
	for b := center - radius; b <= center+radius; b++ {
		keys = append(keys, strconv.Itoa(b))
	}
	byKey, err := s.store.GetMany(ctx, metric, keys)
	if err != nil {
		return nil, fmt.Errorf("range %s around %d: %w", metric, center, err)
	}
	out := make(map[int]Factor, len(byKey))
	for k, f := range byKey {
		b, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[b] = f
	}
	return out, nil
}

// List returns every recorded factor for a metric.
func (s *Service) List(ctx context.Context, metric Metric) ([]Factor, error) {
	return s.store.List(ctx, metric)
}

// CaseCount returns the number of learning passes recorded for a procedure.
func (s *Service) CaseCount(ctx context.Context, procedureID string) (int, error) {
	return s.store.CaseCount(ctx, procedureID)
}

// RecordCase counts one completed learning pass for a procedure.
func (s *Service) RecordCase(ctx context.Context, procedureID string) error {
	return s.store.IncrementCaseCount(ctx, procedureID)
}

// UserKey builds the store key for the per-user composite calibration
// dimension.
func UserKey(userID, compositeKey string) string {
	return userID + "|" + compositeKey
}

// BucketKey formats an integer bucket as a store key.
func BucketKey(b int) string {
	return strconv.Itoa(b)
}

// RatioKey formats a body-composition ratio bucket as a store key.
func RatioKey(r float64) string {
	return strconv.FormatFloat(r, 'f', 1, 64)
}
