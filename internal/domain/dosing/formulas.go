package dosing

import (
	"math"

	"github.com/opidose/opidose/internal/domain/catalog"
)

// Pharmacokinetic reference constants.
const (
	ReferenceAge    = 65
	AgeSteepness    = 20.0
	MinAgeFactor    = 0.4
	MinIdealWeight  = 40.0
	OverweightRatio = 1.2

	// 100 µg fentanyl is 10 MME.
	FentanylMMEPer100MCG = 10.0

	// Bi-exponential fentanyl decay: fast redistribution and slow
	// elimination component.
	fentanylFastFraction = 0.6
	fentanylFastHalfLife = 15.0 // minutes
	fentanylSlowFraction = 0.4
	fentanylSlowHalfLife = 210.0 // minutes
)

// BMI returns weight/height² with height in centimeters. Returns 0 for
// non-positive inputs rather than an error so the pipeline degrades
// gracefully.
func BMI(weightKG, heightCM float64) float64 {
	if weightKG <= 0 || heightCM <= 0 {
		return 0
	}
	h := heightCM / 100
	return weightKG / (h * h)
}

// IdealBodyWeight is a Devine-style estimate: height minus 100 (male) or
// 105 (female), floored at 40 kg.
func IdealBodyWeight(heightCM float64, sex Sex) float64 {
	if heightCM <= 0 {
		return MinIdealWeight
	}
	adj := 100.0
	if sex == SexFemale {
		adj = 105.0
	}
	ibw := heightCM - adj
	if ibw < MinIdealWeight {
		return MinIdealWeight
	}
	return ibw
}

// AdjustedBodyWeight is the dosing weight: actual weight up to 120% of IBW,
// beyond that IBW plus 40% of the excess.
func AdjustedBodyWeight(weightKG, ibw float64) float64 {
	if weightKG <= 0 {
		return ibw
	}
	if weightKG <= ibw*OverweightRatio {
		return weightKG
	}
	return ibw + 0.4*(weightKG-ibw)
}

// LeanBodyMass uses the James formula, clamped to [40%, 95%] of actual
// weight. Falls back to 75% of weight when height is invalid.
func LeanBodyMass(weightKG, heightCM float64, sex Sex) float64 {
	if weightKG <= 0 {
		return 0
	}
	if heightCM <= 0 {
		return 0.75 * weightKG
	}
	ratio := weightKG / heightCM
	var lbm float64
	if sex == SexFemale {
		lbm = 1.07*weightKG - 148*ratio*ratio
	} else {
		lbm = 1.10*weightKG - 128*ratio*ratio
	}
	lo, hi := 0.40*weightKG, 0.95*weightKG
	if lbm < lo {
		return lo
	}
	if lbm > hi {
		return hi
	}
	return lbm
}

// AgeFactor is 1.0 up to the reference age, then decays exponentially with a
// floor of 0.4.
func AgeFactor(age int) float64 {
	if age <= ReferenceAge {
		return 1.0
	}
	return math.Max(MinAgeFactor, math.Exp(float64(ReferenceAge-age)/AgeSteepness))
}

// maxPainDistance is the corner-to-corner distance of the 10x10x10 pain cube.
var maxPainDistance = math.Sqrt(300)

// MismatchPenalty scores how well a drug's pain coverage matches a
// procedure's pain profile: 1.0 at a perfect match, 0.5 at maximum mismatch.
func MismatchPenalty(procedure, drug catalog.PainScores) float64 {
	ds := procedure.Somatic - drug.Somatic
	dv := procedure.Visceral - drug.Visceral
	dn := procedure.Neuropathic - drug.Neuropathic
	dist := math.Sqrt(ds*ds + dv*dv + dn*dn)
	return math.Max(0.5, 1-dist/maxPainDistance)
}

// FentanylRemainingMCG returns the residual fentanyl after minutesSince, as
// the sum of a fast and a slow decay component, floored at 0.
func FentanylRemainingMCG(doseMCG, minutesSince float64) float64 {
	if doseMCG <= 0 {
		return 0
	}
	if minutesSince < 0 {
		minutesSince = 0
	}
	fast := fentanylFastFraction * doseMCG * math.Pow(0.5, minutesSince/fentanylFastHalfLife)
	slow := fentanylSlowFraction * doseMCG * math.Pow(0.5, minutesSince/fentanylSlowHalfLife)
	remaining := fast + slow
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FentanylMME converts a fentanyl dose in µg to morphine milligram
// equivalents.
func FentanylMME(doseMCG float64) float64 {
	return doseMCG / 100 * FentanylMMEPer100MCG
}
