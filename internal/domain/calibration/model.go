package calibration

import (
	"math"
	"time"
)

// Metric identifies one learned calibration dimension. Every learned quantity
// in the system is a (metric, key) pair with its own clamp range, stored in a
// single generic table.
type Metric string

const (
	// Keyed by procedure id.
	MetricProcedureBase   Metric = "procedure_base"
	MetricPainSomatic     Metric = "pain_somatic"
	MetricPainVisceral    Metric = "pain_visceral"
	MetricPainNeuropathic Metric = "pain_neuropathic"

	// Fine-grained integer buckets (age in years, weight in kg).
	MetricAgeFactor    Metric = "age_factor"
	MetricWeightFactor Metric = "weight_factor"

	// Keyed by class ("1".."5"), sex ("male"/"female"), or coarse bucket.
	MetricASAFactor Metric = "asa_factor"
	MetricSexFactor Metric = "sex_factor"
	MetricIBWRatio  Metric = "ibw_ratio"
	MetricABWRatio  Metric = "abw_ratio"
	MetricBMIFactor Metric = "bmi_factor"

	// Singleton factors, keyed by "".
	MetricOpioidTolerance Metric = "opioid_tolerance"
	MetricPainThreshold   Metric = "pain_threshold"
	MetricRenal           Metric = "renal"
	MetricFentanylTail    Metric = "fentanyl_tail"

	// Keyed by sorted drug-class combination, e.g. "Adjuvant+NSAID".
	MetricSynergy Metric = "synergy"

	// Keyed by drug id.
	MetricAdjuvantPotency Metric = "adjuvant_potency"

	// Keyed by "<user id>|<composite key>". The only per-user dimension.
	MetricUserCalibration Metric = "user_calibration"
)

// Factor is one calibration record: the learned value and how many cases
// contributed to it.
type Factor struct {
	Metric       Metric    `db:"metric" json:"metric"`
	Key          string    `db:"key" json:"key"`
	Value        float64   `db:"value" json:"value"`
	Observations int       `db:"observations" json:"observations"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// BoundsFor returns the hard clamp range for a metric. The procedure baseline
// is bounded relative to its catalog default; everything else has a fixed
// absolute range. No sequence of updates can push a value outside its range.
func BoundsFor(m Metric, def float64) (lo, hi float64) {
	switch m {
	case MetricProcedureBase:
		return def * 0.5, def * 2.0
	case MetricPainSomatic, MetricPainVisceral, MetricPainNeuropathic:
		return 0, 10
	case MetricAgeFactor:
		return 0.3, 2.0
	case MetricWeightFactor:
		return 0.5, 2.0
	case MetricASAFactor:
		return 0.5, 1.5
	case MetricSexFactor:
		return 0.85, 1.15
	case MetricIBWRatio, MetricABWRatio, MetricBMIFactor:
		return 0.6, 1.4
	case MetricOpioidTolerance:
		return 1.0, 2.5
	case MetricPainThreshold:
		return 1.0, 1.8
	case MetricRenal:
		return 0.6, 1.0
	case MetricFentanylTail:
		return 0.1, 0.5
	case MetricSynergy:
		return 0.5, 1.5
	case MetricAdjuvantPotency:
		return 0, 0.5
	case MetricUserCalibration:
		return 0.5, 2.0
	}
	return math.Inf(-1), math.Inf(1)
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
