package outcome

import "math"

// Adaptive learning rates by accumulated procedure experience.
const (
	initialRate      = 0.30
	intermediateRate = 0.18
	advancedRate     = 0.12
	rateDecay        = 0.05

	errorAdjustmentFactor = 0.35
	respiratoryFactor     = 0.8
	outlierDamping        = 0.5

	// Outlier thresholds: a single extreme case must not destabilize the
	// global calibration.
	outlierVAS    = 8.0
	outlierRescue = 15.0
)

// Options carries the tunable learning targets.
type Options struct {
	TargetVAS   float64
	ProbeFactor float64
}

func (o *Options) setDefaults() {
	if o.TargetVAS <= 0 {
		o.TargetVAS = 3.0
	}
	if o.ProbeFactor <= 0 || o.ProbeFactor > 1 {
		o.ProbeFactor = 0.97
	}
}

// learningRate shrinks as evidence for a procedure accumulates.
func learningRate(priorCases int) float64 {
	switch {
	case priorCases < 3:
		return initialRate
	case priorCases < 10:
		return intermediateRate
	case priorCases < 20:
		return advancedRate
	default:
		return initialRate / (1 + rateDecay*float64(priorCases))
	}
}

// Assess back-calculates the actual opioid requirement from the observed
// outcome. Classification is evaluated in strict priority order: a rescue
// dose or pain above target always reads as underdosing, even when a
// respiratory issue is present too.
func Assess(rep Report, recommendedMME float64, priorCases int, opts Options) Requirement {
	opts.setDefaults()

	rate := learningRate(priorCases)
	givenTotal := rep.GivenDoseMME + rep.RescueDoseMME

	req := Requirement{
		GivenTotal:   givenTotal,
		LearningRate: rate,
	}

	switch {
	case rep.VAS <= opts.TargetVAS && rep.RescueDoseMME == 0 && !rep.Respiratory:
		req.Quality = QualityPerfect
		if rep.GivenDoseMME < recommendedMME*0.95 {
			// The clinician undercut the recommendation and it still
			// worked: a strong signal the prediction is too high.
			req.ActualRequirement = givenTotal
			req.Magnitude = rate * 1.5
		} else {
			// The recommendation was followed and worked. Probe for a
			// slightly lower dose to keep searching for the minimum.
			req.ActualRequirement = givenTotal * opts.ProbeFactor
			req.Magnitude = rate * 0.5
		}

	case rep.VAS > opts.TargetVAS || rep.RescueDoseMME > 0:
		req.Quality = QualityUnderdosed
		deficit := math.Max(0, rep.VAS-opts.TargetVAS)
		additional := (deficit/7)*rep.GivenDoseMME*0.3 + rep.RescueDoseMME*0.5
		req.ActualRequirement = givenTotal + additional

		vasError := math.Sqrt(deficit) / math.Sqrt(10-opts.TargetVAS)
		var rescueError float64
		if rep.RescueDoseMME > 0 {
			rescueError = math.Sqrt(math.Min(1, rep.RescueDoseMME/10))
		}
		boost := 1.0
		if rep.RescueDoseMME > 0 {
			boost = 1.5
		}
		req.Magnitude = (rate + math.Max(vasError, rescueError)*errorAdjustmentFactor) * boost

	case rep.Respiratory:
		req.Quality = QualityOverdosed
		req.ActualRequirement = givenTotal * 0.85
		req.Magnitude = rate * respiratoryFactor

	default:
		req.Quality = QualityAcceptable
		req.ActualRequirement = givenTotal
		req.Magnitude = rate * 0.2
	}

	req.PredictionError = req.ActualRequirement - recommendedMME

	if rep.VAS > outlierVAS || rep.RescueDoseMME > outlierRescue {
		req.Outlier = true
		req.Magnitude *= outlierDamping
	}
	return req
}
