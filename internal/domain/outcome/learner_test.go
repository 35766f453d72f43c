package outcome

import (
	"context"
	"strconv"
	"testing"

	"github.com/opidose/opidose/internal/domain/calibration"
	"github.com/opidose/opidose/internal/domain/catalog"
	"github.com/opidose/opidose/internal/domain/dosing"
)

func newTestLearner(t *testing.T) (*Learner, *calibration.Service) {
	t.Helper()
	cat := catalog.NewService(catalog.NewDrugRepoMem(), catalog.NewProcedureRepoMem())
	cal := calibration.NewService(calibration.NewStoreMem())

	ctx := context.Background()
	pain := catalog.PainScores{Somatic: 4, Visceral: 7, Neuropathic: 2}
	if err := cat.CreateProcedure(ctx, &catalog.Procedure{
		ID: "test_proc", Specialty: "general", Name: "Test procedure",
		BaseMME: 50, Pain: pain,
	}); err != nil {
		t.Fatalf("create procedure: %v", err)
	}
	if err := cat.CreateDrug(ctx, &catalog.Drug{
		ID: "test_nsaid", Name: "Test NSAID", Class: catalog.ClassNSAID,
		PotencyPercent: 0.15, Pain: pain,
	}); err != nil {
		t.Fatalf("create drug: %v", err)
	}
	return NewLearner(cat, cal, Options{}), cal
}

func neutralContext() CaseContext {
	return CaseContext{
		ProcedureID:    "test_proc",
		Patient:        dosing.Patient{Age: 40, Sex: dosing.SexMale, WeightKG: 75, HeightCM: 175, ASA: 1},
		RecommendedMME: 50,
		CompositeKey:   "test_proc:ASA1:N:none",
	}
}

func storedValue(t *testing.T, cal *calibration.Service, metric calibration.Metric, key string, def float64) (float64, int) {
	t.Helper()
	v, n, err := cal.Value(context.Background(), metric, key, def)
	if err != nil {
		t.Fatalf("value %s/%s: %v", metric, key, err)
	}
	return v, n
}

func TestLearner_BaselineFollowsError(t *testing.T) {
	l, cal := newTestLearner(t)
	ctx := context.Background()

	res, err := l.Learn(ctx, neutralContext(), Report{GivenDoseMME: 50, VAS: 6})
	if err != nil {
		t.Fatalf("learn: %v", err)
	}
	if res.Quality != QualityUnderdosed {
		t.Fatalf("quality = %q, want underdosed", res.Quality)
	}
	v, n := storedValue(t, cal, calibration.MetricProcedureBase, "test_proc", 50)
	if v <= 50 {
		t.Errorf("baseline = %.3f, want above 50 after underdosing", v)
	}
	if n != 1 {
		t.Errorf("observations = %d, want 1", n)
	}
	if len(res.Changes) == 0 {
		t.Error("expected change descriptions")
	}
}

func TestLearner_BaselinePerCaseCap(t *testing.T) {
	l, cal := newTestLearner(t)
	cc := neutralContext()
	// A wildly wrong recommendation produces a huge error, but one case
	// can only move the baseline by 25% of its default.
	cc.RecommendedMME = 5
	_, err := l.Learn(context.Background(), cc, Report{GivenDoseMME: 100, VAS: 8, RescueDoseMME: 15})
	if err != nil {
		t.Fatalf("learn: %v", err)
	}
	v, _ := storedValue(t, cal, calibration.MetricProcedureBase, "test_proc", 50)
	if v > 50+50*0.25 {
		t.Errorf("baseline = %.2f, exceeded per-case cap of 62.5", v)
	}
	if v < 60 {
		t.Errorf("baseline = %.2f, expected a large but capped move", v)
	}
}

func TestLearner_MaterialityGate(t *testing.T) {
	l, cal := newTestLearner(t)
	cc := neutralContext()
	cc.UserID = "dr-a"
	// A followed recommendation with a perfect outcome: only the probe
	// signal on the baseline, far below the materiality thresholds.
	res, err := l.Learn(context.Background(), cc, Report{GivenDoseMME: 50, VAS: 2})
	if err != nil {
		t.Fatalf("learn: %v", err)
	}
	if res.Quality != QualityPerfect {
		t.Fatalf("quality = %q, want perfect", res.Quality)
	}
	if _, n := storedValue(t, cal, calibration.MetricAgeFactor, "40", 1.0); n != 0 {
		t.Error("age factor learned despite immaterial error")
	}
	if _, n := storedValue(t, cal, calibration.MetricUserCalibration, calibration.UserKey("dr-a", cc.CompositeKey), 1.0); n != 0 {
		t.Error("user calibration learned despite immaterial error")
	}
	if v, _ := storedValue(t, cal, calibration.MetricProcedureBase, "test_proc", 50); v >= 50 {
		t.Errorf("baseline = %.3f, want nudged below 50 by the probe", v)
	}
}

func TestLearner_UnderdosedRaisesPatientFactors(t *testing.T) {
	l, cal := newTestLearner(t)
	cc := neutralContext()
	cc.RecommendedMME = 30
	cc.Adjuvants = []dosing.AdjuvantUse{{DrugID: "test_nsaid"}}

	res, err := l.Learn(context.Background(), cc, Report{GivenDoseMME: 50, VAS: 7, RescueDoseMME: 10})
	if err != nil {
		t.Fatalf("learn: %v", err)
	}
	if res.PredictionError <= 0 {
		t.Fatalf("prediction error = %.2f, want positive", res.PredictionError)
	}

	if v, _ := storedValue(t, cal, calibration.MetricAgeFactor, strconv.Itoa(cc.Patient.Age), 1.0); v <= 1.0 {
		t.Errorf("age factor = %.3f, want above 1.0", v)
	}
	if v, _ := storedValue(t, cal, calibration.MetricASAFactor, "1", 1.0); v <= 1.0 {
		t.Errorf("asa factor = %.3f, want above 1.0", v)
	}
	// The patient needed more opioid, so the adjuvant must have spared
	// less than credited.
	if v, _ := storedValue(t, cal, calibration.MetricAdjuvantPotency, "test_nsaid", 0.15); v >= 0.15 {
		t.Errorf("adjuvant potency = %.4f, want below 0.15", v)
	}
	// Axes the adjuvant covers weakly get raised, well-covered axes stay.
	if v, _ := storedValue(t, cal, calibration.MetricPainSomatic, "test_proc", 4); v <= 4 {
		t.Errorf("somatic pain = %.2f, want above 4", v)
	}
	if _, n := storedValue(t, cal, calibration.MetricPainVisceral, "test_proc", 7); n != 0 {
		t.Error("visceral pain adjusted despite strong adjuvant coverage")
	}
}

func TestLearner_OverdosedLowersPatientFactors(t *testing.T) {
	l, cal := newTestLearner(t)
	cc := neutralContext()
	cc.Patient.RenalImpairment = true

	res, err := l.Learn(context.Background(), cc, Report{GivenDoseMME: 50, VAS: 2, Respiratory: true})
	if err != nil {
		t.Fatalf("learn: %v", err)
	}
	if res.Quality != QualityOverdosed {
		t.Fatalf("quality = %q, want overdosed", res.Quality)
	}
	if v, _ := storedValue(t, cal, calibration.MetricAgeFactor, "40", 1.0); v >= 1.0 {
		t.Errorf("age factor = %.3f, want below 1.0", v)
	}
	if v, _ := storedValue(t, cal, calibration.MetricRenal, "", dosing.DefaultRenalFactor); v >= dosing.DefaultRenalFactor {
		t.Errorf("renal factor = %.3f, want below default", v)
	}
}

func TestLearner_FentanylTiming(t *testing.T) {
	underdosed := Report{GivenDoseMME: 50, VAS: 6, RescueDoseMME: 5}

	t.Run("early rescue shortens the tail", func(t *testing.T) {
		l, cal := newTestLearner(t)
		cc := neutralContext()
		cc.FentanylDoseMCG = 100
		rep := underdosed
		rep.RescueEarly = true
		if _, err := l.Learn(context.Background(), cc, rep); err != nil {
			t.Fatalf("learn: %v", err)
		}
		if v, _ := storedValue(t, cal, calibration.MetricFentanylTail, "", dosing.DefaultFentanylTail); v >= dosing.DefaultFentanylTail {
			t.Errorf("tail fraction = %.3f, want below %.2f", v, dosing.DefaultFentanylTail)
		}
	})

	t.Run("late rescue leaves the tail alone", func(t *testing.T) {
		l, cal := newTestLearner(t)
		cc := neutralContext()
		cc.FentanylDoseMCG = 100
		rep := underdosed
		rep.RescueLate = true
		if _, err := l.Learn(context.Background(), cc, rep); err != nil {
			t.Fatalf("learn: %v", err)
		}
		if _, n := storedValue(t, cal, calibration.MetricFentanylTail, "", dosing.DefaultFentanylTail); n != 0 {
			t.Error("tail fraction adjusted on late-only rescue")
		}
	})

	t.Run("no fentanyl given", func(t *testing.T) {
		l, cal := newTestLearner(t)
		rep := underdosed
		rep.RescueEarly = true
		if _, err := l.Learn(context.Background(), neutralContext(), rep); err != nil {
			t.Fatalf("learn: %v", err)
		}
		if _, n := storedValue(t, cal, calibration.MetricFentanylTail, "", dosing.DefaultFentanylTail); n != 0 {
			t.Error("tail fraction adjusted without intraoperative fentanyl")
		}
	})
}

func TestLearner_UserCalibration(t *testing.T) {
	l, cal := newTestLearner(t)
	cc := neutralContext()
	cc.UserID = "dr-a"
	cc.RecommendedMME = 30
	if _, err := l.Learn(context.Background(), cc, Report{GivenDoseMME: 50, VAS: 7}); err != nil {
		t.Fatalf("learn: %v", err)
	}
	key := calibration.UserKey("dr-a", cc.CompositeKey)
	if v, _ := storedValue(t, cal, calibration.MetricUserCalibration, key, 1.0); v <= 1.0 {
		t.Errorf("user calibration = %.3f, want above 1.0", v)
	}
}

func TestLearner_RecordsCaseCount(t *testing.T) {
	l, cal := newTestLearner(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := l.Learn(ctx, neutralContext(), Report{GivenDoseMME: 50, VAS: 2}); err != nil {
			t.Fatalf("learn %d: %v", i, err)
		}
	}
	n, err := cal.CaseCount(ctx, "test_proc")
	if err != nil {
		t.Fatalf("case count: %v", err)
	}
	if n != 3 {
		t.Errorf("case count = %d, want 3", n)
	}
}

func TestLearner_UnknownProcedure(t *testing.T) {
	l, _ := newTestLearner(t)
	cc := neutralContext()
	cc.ProcedureID = "no_such_proc"
	if _, err := l.Learn(context.Background(), cc, Report{GivenDoseMME: 50, VAS: 2}); err == nil {
		t.Fatal("expected error for unknown procedure")
	}
}

func TestLearner_InvalidReport(t *testing.T) {
	l, _ := newTestLearner(t)
	if _, err := l.Learn(context.Background(), neutralContext(), Report{GivenDoseMME: 0, VAS: 2}); err == nil {
		t.Fatal("expected error for missing given dose")
	}
}
