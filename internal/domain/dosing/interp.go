package dosing

import (
	"context"
	"math"
	"sort"

	"github.com/opidose/opidose/internal/domain/calibration"
)

// MinObservations is the number of cases a bucket needs before its learned
// value is trusted, directly or as an interpolation source.
const MinObservations = 3

// fullConfidenceObs is the observation count at which a source bucket
// carries full weight.
const fullConfidenceObs = 10

// interpConfig tunes Gaussian interpolation per metric.
type interpConfig struct {
	radius   int
	sigma    float64
	sanityLo float64
	sanityHi float64
}

var (
	ageInterp    = interpConfig{radius: 5, sigma: 2.0, sanityLo: 0.2, sanityHi: 2.0}
	weightInterp = interpConfig{radius: 10, sigma: 3.0, sanityLo: 0.5, sanityHi: 2.0}
)

// interpolator resolves fine-bucket factors from sparse learned data. A
// bucket with enough observations is used directly; otherwise neighbours
// within the radius contribute a Gaussian-weighted average, discounted by
// their own observation counts. With no usable neighbours, or a result
// outside the metric's plausible range, the formula default wins.
type interpolator struct {
	cal *calibration.Service
}

func (in interpolator) factor(ctx context.Context, metric calibration.Metric, bucket int, def float64, cfg interpConfig) (Interpolation, error) {
	nearby, err := in.cal.FineBuckets(ctx, metric, bucket, cfg.radius)
	if err != nil {
		return Interpolation{}, err
	}

	if f, ok := nearby[bucket]; ok && f.Observations >= MinObservations {
		return Interpolation{Method: MethodDirect, Factor: f.Value, NearbyCount: 1, Sources: []int{bucket}}, nil
	}

	var weightSum, valueSum float64
	var sources []int
	for b, f := range nearby {
		if f.Observations < MinObservations {
			continue
		}
		d := float64(b - bucket)
		w := math.Exp(-d * d / (2 * cfg.sigma * cfg.sigma))
		conf := math.Min(1, float64(f.Observations)/fullConfidenceObs)
		w *= conf
		weightSum += w
		valueSum += w * f.Value
		sources = append(sources, b)
	}

	if weightSum == 0 {
		return Interpolation{Method: MethodDefault, Factor: def}, nil
	}

	v := valueSum / weightSum
	if v < cfg.sanityLo || v > cfg.sanityHi {
		return Interpolation{Method: MethodDefault, Factor: def}, nil
	}
	sort.Ints(sources)
	return Interpolation{Method: MethodInterpolated, Factor: v, NearbyCount: len(sources), Sources: sources}, nil
}
