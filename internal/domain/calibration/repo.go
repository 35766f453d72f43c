package calibration

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Store is the calibration persistence contract. Update must be an atomic
// read-modify-write: concurrent updates to the same (metric, key) must not
// lose an increment.
type Store interface {
	// Get returns the factor for (metric, key), or ErrNotFound.
	Get(ctx context.Context, metric Metric, key string) (*Factor, error)

	// GetMany returns the existing factors for the given keys, keyed by key.
	// Missing keys are simply absent from the result.
	GetMany(ctx context.Context, metric Metric, keys []string) (map[string]Factor, error)

	// List returns all factors recorded for a metric.
	List(ctx context.Context, metric Metric) ([]Factor, error)

	// Update applies adjustment to the stored value (starting from def when
	// the record does not exist yet), clamps the result to [lo, hi],
	// increments the observation count and returns the new value.
	Update(ctx context.Context, metric Metric, key string, def, adjustment, lo, hi float64) (float64, error)

	// CaseCount returns the number of learning passes recorded for a
	// procedure, used to pick the adaptive learning rate.
	CaseCount(ctx context.Context, procedureID string) (int, error)

	// IncrementCaseCount records one completed learning pass for a procedure.
	IncrementCaseCount(ctx context.Context, procedureID string) error
}
