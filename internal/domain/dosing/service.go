package dosing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/opidose/opidose/internal/domain/calibration"
	"github.com/opidose/opidose/internal/domain/catalog"
)

var (
	ErrUnknownProcedure = errors.New("unknown procedure")
	ErrUnknownDrug      = errors.New("unknown drug")
)

// Defaults for patient factors that have no formula behind them. Each is the
// starting point the calibration store learns away from.
var asaDefaults = map[int]float64{1: 1.0, 2: 1.0, 3: 0.9, 4: 0.8, 5: 0.7}

// DefaultASAFactor returns the starting multiplier for an ASA class.
func DefaultASAFactor(asa int) float64 {
	if f, ok := asaDefaults[asa]; ok {
		return f
	}
	return 1.0
}

const (
	DefaultToleranceFactor = 1.5
	DefaultThresholdFactor = 1.2
	DefaultRenalFactor     = 0.85
	DefaultFentanylTail    = 0.25

	// An adjuvant stack never reduces the dose below 30% of the
	// pre-adjuvant base.
	adjuvantFloorFraction = 0.3
)

// Options tunes scaling constants that are deployment configuration rather
// than clinical knowledge.
type Options struct {
	ReferenceWeightKG float64
	RoundingStepMME   float64
}

func (o *Options) setDefaults() {
	if o.ReferenceWeightKG <= 0 {
		o.ReferenceWeightKG = 75.0
	}
	if o.RoundingStepMME <= 0 {
		o.RoundingStepMME = 0.25
	}
}

// Service computes dose recommendations. Every numeric factor it consumes is
// resolved through the calibration store with a formula or catalog value as
// the default, so the pipeline sharpens as outcomes accumulate.
type Service struct {
	catalog *catalog.Service
	cal     *calibration.Service
	interp  interpolator
	opts    Options
}

func NewService(cat *catalog.Service, cal *calibration.Service, opts Options) *Service {
	opts.setDefaults()
	return &Service{
		catalog: cat,
		cal:     cal,
		interp:  interpolator{cal: cal},
		opts:    opts,
	}
}

// Calculate runs the full recommendation pipeline for one patient and
// procedure.
func (s *Service) Calculate(ctx context.Context, req *Request) (*Recommendation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	proc, err := s.catalog.GetProcedure(ctx, req.ProcedureID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProcedure, req.ProcedureID)
		}
		return nil, fmt.Errorf("load procedure: %w", err)
	}

	rec := &Recommendation{
		ProcedureID:  proc.ID,
		CompositeKey: CompositeKey(proc.ID, req.Patient, req.Adjuvants),
	}

	// Stage 1: learned procedure baseline and pain profile.
	mme, _, err := s.cal.Value(ctx, calibration.MetricProcedureBase, proc.ID, proc.BaseMME)
	if err != nil {
		return nil, fmt.Errorf("procedure baseline: %w", err)
	}
	rec.push("procedure_baseline", 0, 0, mme, proc.ID)

	pain, err := s.learnedPainProfile(ctx, proc)
	if err != nil {
		return nil, err
	}

	// Stage 2: patient factors.
	mme, err = s.applyPatientFactors(ctx, rec, req.Patient, mme)
	if err != nil {
		return nil, err
	}

	// Stage 3: snapshot before adjuvants, the anchor for the safety floor
	// and for outcome attribution.
	rec.BaseBeforeAdjuvants = mme

	// Stage 4: adjuvant reductions.
	mme, classes, err := s.applyAdjuvants(ctx, rec, req.Adjuvants, pain, mme)
	if err != nil {
		return nil, err
	}

	// Stage 5: multi-class synergy, then the safety floor.
	mme, err = s.applySynergy(ctx, rec, classes, mme)
	if err != nil {
		return nil, err
	}
	if floor := rec.BaseBeforeAdjuvants * adjuvantFloorFraction; mme < floor {
		rec.push("safety_floor", 0, floor-mme, floor, "")
		mme = floor
	}

	// Stage 6: credit for intraoperative fentanyl still on board.
	if req.FentanylDoseMCG > 0 {
		tail, _, err := s.cal.Value(ctx, calibration.MetricFentanylTail, "", DefaultFentanylTail)
		if err != nil {
			return nil, fmt.Errorf("fentanyl tail: %w", err)
		}
		credit := FentanylMME(req.FentanylDoseMCG) * tail
		mme = math.Max(0, mme-credit)
		rec.push("fentanyl_credit", 0, -credit, mme,
			fmt.Sprintf("%.0f mcg, tail fraction %.2f", req.FentanylDoseMCG, tail))
	}

	// Stage 7: per-user correction for this clinical scenario.
	if req.UserID != "" {
		f, n, err := s.cal.Value(ctx, calibration.MetricUserCalibration,
			calibration.UserKey(req.UserID, rec.CompositeKey), 1.0)
		if err != nil {
			return nil, fmt.Errorf("user calibration: %w", err)
		}
		if n > 0 {
			mme *= f
			rec.push("user_calibration", f, 0, mme, rec.CompositeKey)
		}
	}

	// Stage 8: scale to dosing weight and round to dispensable steps.
	ibw := IdealBodyWeight(req.Patient.HeightCM, req.Patient.Sex)
	abw := AdjustedBodyWeight(req.Patient.WeightKG, ibw)
	rec.AdjustedBodyWeight = abw
	wf := abw / s.opts.ReferenceWeightKG
	mme *= wf
	rec.push("weight_scaling", wf, 0, mme, fmt.Sprintf("abw %.1f kg", abw))

	mme = math.Max(0, math.Round(mme/s.opts.RoundingStepMME)*s.opts.RoundingStepMME)
	rec.DoseMME = mme
	rec.push("rounding", 0, 0, mme, "")

	log.Debug().
		Str("procedure_id", proc.ID).
		Str("composite_key", rec.CompositeKey).
		Float64("dose_mme", mme).
		Msg("dose calculated")
	return rec, nil
}

// learnedPainProfile resolves the procedure's three pain axes through the
// calibration store.
func (s *Service) learnedPainProfile(ctx context.Context, proc *catalog.Procedure) (catalog.PainScores, error) {
	var pain catalog.PainScores
	var err error
	if pain.Somatic, _, err = s.cal.Value(ctx, calibration.MetricPainSomatic, proc.ID, proc.Pain.Somatic); err != nil {
		return pain, fmt.Errorf("pain profile: %w", err)
	}
	if pain.Visceral, _, err = s.cal.Value(ctx, calibration.MetricPainVisceral, proc.ID, proc.Pain.Visceral); err != nil {
		return pain, fmt.Errorf("pain profile: %w", err)
	}
	if pain.Neuropathic, _, err = s.cal.Value(ctx, calibration.MetricPainNeuropathic, proc.ID, proc.Pain.Neuropathic); err != nil {
		return pain, fmt.Errorf("pain profile: %w", err)
	}
	return pain, nil
}

func (s *Service) applyPatientFactors(ctx context.Context, rec *Recommendation, p Patient, mme float64) (float64, error) {
	ageRes, err := s.interp.factor(ctx, calibration.MetricAgeFactor, FineAgeBucket(p.Age), AgeFactor(p.Age), ageInterp)
	if err != nil {
		return 0, fmt.Errorf("age factor: %w", err)
	}
	rec.AgeInterpolation = ageRes
	mme *= ageRes.Factor
	rec.push("age_factor", ageRes.Factor, 0, mme, ageRes.Method)

	wRes, err := s.interp.factor(ctx, calibration.MetricWeightFactor, FineWeightBucket(p.WeightKG), 1.0, weightInterp)
	if err != nil {
		return 0, fmt.Errorf("weight factor: %w", err)
	}
	rec.WeightInterpolation = wRes
	mme *= wRes.Factor
	rec.push("weight_factor", wRes.Factor, 0, mme, wRes.Method)

	asa, _, err := s.cal.Value(ctx, calibration.MetricASAFactor, strconv.Itoa(p.ASA), DefaultASAFactor(p.ASA))
	if err != nil {
		return 0, fmt.Errorf("asa factor: %w", err)
	}
	mme *= asa
	rec.push("asa_factor", asa, 0, mme, fmt.Sprintf("ASA %d", p.ASA))

	sexF, _, err := s.cal.Value(ctx, calibration.MetricSexFactor, string(p.Sex), 1.0)
	if err != nil {
		return 0, fmt.Errorf("sex factor: %w", err)
	}
	mme *= sexF
	rec.push("sex_factor", sexF, 0, mme, string(p.Sex))

	mme, err = s.applyBodyComposition(ctx, rec, p, mme)
	if err != nil {
		return 0, err
	}

	if p.OpioidTolerant {
		f, _, err := s.cal.Value(ctx, calibration.MetricOpioidTolerance, "", DefaultToleranceFactor)
		if err != nil {
			return 0, fmt.Errorf("tolerance factor: %w", err)
		}
		mme *= f
		rec.push("opioid_tolerance", f, 0, mme, "")
	}
	if p.LowPainThreshold {
		f, _, err := s.cal.Value(ctx, calibration.MetricPainThreshold, "", DefaultThresholdFactor)
		if err != nil {
			return 0, fmt.Errorf("threshold factor: %w", err)
		}
		mme *= f
		rec.push("pain_threshold", f, 0, mme, "")
	}
	if p.RenalImpairment {
		f, _, err := s.cal.Value(ctx, calibration.MetricRenal, "", DefaultRenalFactor)
		if err != nil {
			return 0, fmt.Errorf("renal factor: %w", err)
		}
		mme *= f
		rec.push("renal_impairment", f, 0, mme, "")
	}
	return mme, nil
}

func (s *Service) applyBodyComposition(ctx context.Context, rec *Recommendation, p Patient, mme float64) (float64, error) {
	ibw := IdealBodyWeight(p.HeightCM, p.Sex)
	abw := AdjustedBodyWeight(p.WeightKG, ibw)

	f, _, err := s.cal.Value(ctx, calibration.MetricIBWRatio, RatioKey(p.WeightKG/ibw), 1.0)
	if err != nil {
		return 0, fmt.Errorf("ibw ratio factor: %w", err)
	}
	mme *= f
	rec.push("ibw_ratio", f, 0, mme, RatioKey(p.WeightKG/ibw))

	// Only meaningful when dosing weight diverges from actual weight.
	if p.WeightKG > ibw*OverweightRatio {
		f, _, err = s.cal.Value(ctx, calibration.MetricABWRatio, RatioKey(p.WeightKG/abw), 1.0)
		if err != nil {
			return 0, fmt.Errorf("abw ratio factor: %w", err)
		}
		mme *= f
		rec.push("abw_ratio", f, 0, mme, RatioKey(p.WeightKG/abw))
	}

	class := BMIClass(BMI(p.WeightKG, p.HeightCM))
	f, _, err = s.cal.Value(ctx, calibration.MetricBMIFactor, class, 1.0)
	if err != nil {
		return 0, fmt.Errorf("bmi factor: %w", err)
	}
	mme *= f
	rec.push("bmi_factor", f, 0, mme, class)
	return mme, nil
}

// applyAdjuvants subtracts each adjuvant's opioid-sparing effect and returns
// the distinct drug classes involved, for synergy lookup.
func (s *Service) applyAdjuvants(ctx context.Context, rec *Recommendation, adjuvants []AdjuvantUse, procPain catalog.PainScores, mme float64) (float64, []string, error) {
	if len(adjuvants) == 0 {
		return mme, nil, nil
	}
	base := rec.BaseBeforeAdjuvants
	classSet := make(map[string]struct{})
	var total float64
	for _, use := range adjuvants {
		drug, err := s.catalog.GetDrug(ctx, use.DrugID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return 0, nil, fmt.Errorf("%w: %s", ErrUnknownDrug, use.DrugID)
			}
			return 0, nil, fmt.Errorf("load drug %s: %w", use.DrugID, err)
		}
		if !drug.IsAdjuvant() {
			return 0, nil, fmt.Errorf("drug %s is not an adjuvant", use.DrugID)
		}
		potency, _, err := s.cal.Value(ctx, calibration.MetricAdjuvantPotency, drug.ID, drug.PotencyPercent)
		if err != nil {
			return 0, nil, fmt.Errorf("adjuvant potency: %w", err)
		}
		if drug.ReferenceDoseMCG > 0 && use.Dose > 0 {
			potency *= use.Dose / drug.ReferenceDoseMCG
		}
		penalty := MismatchPenalty(procPain, drug.Pain)
		reduction := base * potency * penalty
		total += reduction
		classSet[drug.Class] = struct{}{}
		rec.push("adjuvant_reduction", 0, -reduction, mme-total,
			fmt.Sprintf("%s potency %.3f penalty %.2f", drug.ID, potency, penalty))
	}
	classes := make([]string, 0, len(classSet))
	for c := range classSet {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return mme - total, classes, nil
}

func (s *Service) applySynergy(ctx context.Context, rec *Recommendation, classes []string, mme float64) (float64, error) {
	if len(classes) < 2 {
		return mme, nil
	}
	key := strings.Join(classes, "+")
	f, _, err := s.cal.Value(ctx, calibration.MetricSynergy, key, 1.0)
	if err != nil {
		return 0, fmt.Errorf("synergy factor: %w", err)
	}
	mme *= f
	rec.push("synergy", f, 0, mme, key)
	return mme, nil
}

func (r *Recommendation) push(stage string, factor, delta, mme float64, detail string) {
	r.Steps = append(r.Steps, Step{Stage: stage, Factor: factor, Delta: delta, MME: mme, Detail: detail})
}
