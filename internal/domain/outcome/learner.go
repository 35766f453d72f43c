package outcome

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/opidose/opidose/internal/domain/calibration"
	"github.com/opidose/opidose/internal/domain/catalog"
	"github.com/opidose/opidose/internal/domain/dosing"
)

// Materiality thresholds: prediction errors smaller than these fractions of
// the recommended dose carry too little signal to attribute to individual
// factors.
const (
	patientFactorMateriality = 0.15
	adjuvantMateriality      = 0.10
	userMateriality          = 0.10

	baselineShare = 0.1
	// A single case never moves a procedure baseline by more than a
	// quarter of its default.
	baselinePerCaseCap = 0.25

	painAxisShare = 0.15
	// An adjuvant axis score below this counts as weak coverage of that
	// pain dimension.
	painCoverageThreshold = 7.0

	fentanylAdjEarlyOnly = -0.03
	fentanylAdjBoth      = -0.02
)

// Learner distributes bounded calibration updates after an outcome is
// recorded. Every dimension persists independently: a failed update is
// logged and skipped so the remaining dimensions still learn.
type Learner struct {
	catalog *catalog.Service
	cal     *calibration.Service
	opts    Options
}

func NewLearner(cat *catalog.Service, cal *calibration.Service, opts Options) *Learner {
	opts.setDefaults()
	return &Learner{catalog: cat, cal: cal, opts: opts}
}

// Learn runs one back-calculation pass for a completed case and returns what
// was learned.
func (l *Learner) Learn(ctx context.Context, cc CaseContext, rep Report) (*Result, error) {
	if err := rep.Validate(); err != nil {
		return nil, err
	}
	proc, err := l.catalog.GetProcedure(ctx, cc.ProcedureID)
	if err != nil {
		return nil, fmt.Errorf("load procedure: %w", err)
	}
	priorCases, err := l.cal.CaseCount(ctx, cc.ProcedureID)
	if err != nil {
		return nil, fmt.Errorf("case count: %w", err)
	}

	res := &Result{Requirement: Assess(rep, cc.RecommendedMME, priorCases, l.opts)}

	denom := cc.RecommendedMME
	if denom == 0 {
		denom = 1
	}
	errRatio := math.Abs(res.PredictionError) / denom
	sign := 1.0
	if res.PredictionError < 0 {
		sign = -1.0
	}

	l.learnBaseline(ctx, res, proc)
	if errRatio >= patientFactorMateriality {
		l.learnPatientFactors(ctx, res, cc.Patient, sign)
		l.learnPainProfile(ctx, res, proc, cc.Adjuvants, res.PredictionError > 0)
	}
	if errRatio >= adjuvantMateriality {
		l.learnAdjuvantPotency(ctx, res, cc.Adjuvants, sign)
	}
	l.learnFentanylTail(ctx, res, cc, rep)
	if cc.UserID != "" && errRatio >= userMateriality {
		l.learnUserCalibration(ctx, res, cc, sign)
	}

	if err := l.cal.RecordCase(ctx, cc.ProcedureID); err != nil {
		log.Warn().Err(err).Str("procedure_id", cc.ProcedureID).Msg("record case count failed")
	}

	log.Info().
		Str("procedure_id", cc.ProcedureID).
		Str("quality", string(res.Quality)).
		Float64("prediction_error", res.PredictionError).
		Float64("magnitude", res.Magnitude).
		Int("changes", len(res.Changes)).
		Msg("learning pass complete")
	return res, nil
}

// adjust applies one bounded update, records the change description, and
// swallows the error so one failed dimension cannot block the rest.
func (l *Learner) adjust(ctx context.Context, res *Result, metric calibration.Metric, key string, def, adjustment float64, label string) {
	if adjustment == 0 {
		return
	}
	v, err := l.cal.Adjust(ctx, metric, key, def, adjustment)
	if err != nil {
		log.Warn().Err(err).Str("metric", string(metric)).Str("key", key).Msg("calibration update failed")
		return
	}
	res.Changes = append(res.Changes, fmt.Sprintf("%s: %.3f -> %.3f", label, def, v))
}

// learnBaseline is the single authoritative path for procedure baseline
// learning, capped per case.
func (l *Learner) learnBaseline(ctx context.Context, res *Result, proc *catalog.Procedure) {
	adj := res.PredictionError * res.Magnitude * baselineShare
	limit := proc.BaseMME * baselinePerCaseCap
	adj = math.Max(-limit, math.Min(limit, adj))
	l.adjust(ctx, res, calibration.MetricProcedureBase, proc.ID, proc.BaseMME, adj,
		fmt.Sprintf("baseline %s", proc.ID))
}

func (l *Learner) learnPatientFactors(ctx context.Context, res *Result, p dosing.Patient, sign float64) {
	mag := res.Magnitude

	ageBucket := dosing.FineAgeBucket(p.Age)
	l.adjust(ctx, res, calibration.MetricAgeFactor, calibration.BucketKey(ageBucket),
		dosing.AgeFactor(p.Age), mag*0.05*sign, fmt.Sprintf("age factor (%dy)", p.Age))

	weightBucket := dosing.FineWeightBucket(p.WeightKG)
	l.adjust(ctx, res, calibration.MetricWeightFactor, calibration.BucketKey(weightBucket),
		1.0, mag*0.03*sign, fmt.Sprintf("weight factor (%dkg)", weightBucket))

	l.adjust(ctx, res, calibration.MetricASAFactor, fmt.Sprintf("%d", p.ASA),
		dosing.DefaultASAFactor(p.ASA), mag*0.05*sign, fmt.Sprintf("ASA %d factor", p.ASA))

	l.adjust(ctx, res, calibration.MetricSexFactor, string(p.Sex),
		1.0, mag*0.03*sign, fmt.Sprintf("sex factor (%s)", p.Sex))

	ibw := dosing.IdealBodyWeight(p.HeightCM, p.Sex)
	abw := dosing.AdjustedBodyWeight(p.WeightKG, ibw)
	l.adjust(ctx, res, calibration.MetricIBWRatio, dosing.RatioKey(p.WeightKG/ibw),
		1.0, mag*0.03*sign, fmt.Sprintf("ibw ratio (%s)", dosing.RatioKey(p.WeightKG/ibw)))
	if p.WeightKG > ibw*dosing.OverweightRatio {
		l.adjust(ctx, res, calibration.MetricABWRatio, dosing.RatioKey(p.WeightKG/abw),
			1.0, mag*0.03*sign, fmt.Sprintf("abw ratio (%s)", dosing.RatioKey(p.WeightKG/abw)))
	}

	class := dosing.BMIClass(dosing.BMI(p.WeightKG, p.HeightCM))
	l.adjust(ctx, res, calibration.MetricBMIFactor, class,
		1.0, mag*0.03*sign, fmt.Sprintf("bmi factor (%s)", class))

	if p.RenalImpairment {
		l.adjust(ctx, res, calibration.MetricRenal, "",
			dosing.DefaultRenalFactor, mag*0.04*sign, "renal factor")
	}
}

// learnAdjuvantPotency moves potency opposite to the error: a patient who
// needed more opioid than predicted got less sparing from the adjuvants than
// they were credited for.
func (l *Learner) learnAdjuvantPotency(ctx context.Context, res *Result, adjuvants []dosing.AdjuvantUse, sign float64) {
	if len(adjuvants) == 0 {
		return
	}
	adj := res.Magnitude * 0.02 * -sign
	if len(adjuvants) > 1 {
		// Cannot tell which adjuvant to blame.
		adj *= 0.7
	}
	for _, use := range adjuvants {
		drug, err := l.catalog.GetDrug(ctx, use.DrugID)
		if err != nil {
			log.Warn().Err(err).Str("drug_id", use.DrugID).Msg("adjuvant lookup failed during learning")
			continue
		}
		if !drug.IsAdjuvant() {
			continue
		}
		l.adjust(ctx, res, calibration.MetricAdjuvantPotency, drug.ID,
			drug.PotencyPercent, adj, fmt.Sprintf("%s potency", drug.ID))
	}
}

// learnPainProfile nudges the procedure's pain axes based on which
// dimensions the administered adjuvants covered. Underdosing with adjuvants
// weak on an axis suggests the procedure has more of that pain type;
// overdosing with strong coverage suggests less.
func (l *Learner) learnPainProfile(ctx context.Context, res *Result, proc *catalog.Procedure, adjuvants []dosing.AdjuvantUse, needsMore bool) {
	if len(adjuvants) == 0 {
		return
	}
	var sumS, sumV, sumN float64
	var count int
	for _, use := range adjuvants {
		drug, err := l.catalog.GetDrug(ctx, use.DrugID)
		if err != nil || !drug.IsAdjuvant() {
			continue
		}
		sumS += drug.Pain.Somatic
		sumV += drug.Pain.Visceral
		sumN += drug.Pain.Neuropathic
		count++
	}
	if count == 0 {
		return
	}
	avgS, avgV, avgN := sumS/float64(count), sumV/float64(count), sumN/float64(count)

	step := res.Magnitude * painAxisShare
	axis := func(metric calibration.Metric, avg, def float64, label string) {
		var adj float64
		if needsMore && avg < painCoverageThreshold {
			adj = step
		} else if !needsMore && avg >= painCoverageThreshold {
			adj = -step
		}
		l.adjust(ctx, res, metric, proc.ID, def, adj, fmt.Sprintf("%s %s pain", proc.ID, label))
	}
	axis(calibration.MetricPainSomatic, avgS, proc.Pain.Somatic, "somatic")
	axis(calibration.MetricPainVisceral, avgV, proc.Pain.Visceral, "visceral")
	axis(calibration.MetricPainNeuropathic, avgN, proc.Pain.Neuropathic, "neuropathic")
}

// learnFentanylTail uses rescue timing to separate a too-short fentanyl tail
// estimate from an undersized baseline. Early rescue alone means the
// residual fentanyl wore off sooner than credited; late rescue alone is a
// baseline problem and is handled by the baseline path.
func (l *Learner) learnFentanylTail(ctx context.Context, res *Result, cc CaseContext, rep Report) {
	if cc.FentanylDoseMCG <= 0 || res.Quality != QualityUnderdosed {
		return
	}
	var adj float64
	switch {
	case rep.RescueEarly && !rep.RescueLate:
		adj = res.Magnitude * fentanylAdjEarlyOnly
	case rep.RescueEarly && rep.RescueLate:
		adj = res.Magnitude * fentanylAdjBoth
	default:
		return
	}
	l.adjust(ctx, res, calibration.MetricFentanylTail, "",
		dosing.DefaultFentanylTail, adj, "fentanyl tail fraction")
}

func (l *Learner) learnUserCalibration(ctx context.Context, res *Result, cc CaseContext, sign float64) {
	key := calibration.UserKey(cc.UserID, cc.CompositeKey)
	l.adjust(ctx, res, calibration.MetricUserCalibration, key,
		1.0, res.Magnitude*0.05*sign, fmt.Sprintf("user calibration (%s)", cc.CompositeKey))
}
