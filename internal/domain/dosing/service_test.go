package dosing

import (
	"context"
	"errors"
	"testing"

	"github.com/opidose/opidose/internal/domain/calibration"
	"github.com/opidose/opidose/internal/domain/catalog"
)

func newTestService(t *testing.T) (*Service, *catalog.Service, *calibration.Service) {
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
	// An adjuvant matching the procedure's pain profile exactly, so the
	// mismatch penalty is 1.0 and reductions are easy to predict.
	if err := cat.CreateDrug(ctx, &catalog.Drug{
		ID: "test_nsaid", Name: "Test NSAID", Class: catalog.ClassNSAID,
		PotencyPercent: 0.15, Pain: pain,
	}); err != nil {
		t.Fatalf("create drug: %v", err)
	}
	if err := cat.CreateDrug(ctx, &catalog.Drug{
		ID: "test_alpha2", Name: "Test alpha-2 agonist", Class: catalog.ClassAdjuvant,
		PotencyPercent: 0.075, ReferenceDoseMCG: 75, Pain: pain,
	}); err != nil {
		t.Fatalf("create drug: %v", err)
	}

	return NewService(cat, cal, Options{}), cat, cal
}

// neutralPatient hits every default factor at exactly 1.0: under the
// reference age, at the reference weight, ASA 1, no comorbidity flags.
func neutralPatient() Patient {
	return Patient{Age: 40, Sex: SexMale, WeightKG: 75, HeightCM: 175, ASA: 1}
}

func TestService_Calculate_UnknownProcedure(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Calculate(context.Background(), &Request{
		ProcedureID: "no_such_proc",
		Patient:     neutralPatient(),
	})
	if !errors.Is(err, ErrUnknownProcedure) {
		t.Fatalf("err = %v, want ErrUnknownProcedure", err)
	}
}

func TestService_Calculate_InvalidPatient(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := neutralPatient()
	p.ASA = 9
	if _, err := svc.Calculate(context.Background(), &Request{ProcedureID: "test_proc", Patient: p}); err == nil {
		t.Fatal("expected validation error for ASA 9")
	}
}

func TestService_Calculate_NeutralPatientGetsBaseline(t *testing.T) {
	svc, _, _ := newTestService(t)
	rec, err := svc.Calculate(context.Background(), &Request{
		ProcedureID: "test_proc",
		Patient:     neutralPatient(),
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if rec.DoseMME != 50 {
		t.Errorf("dose = %.2f, want 50 for all-neutral factors", rec.DoseMME)
	}
	if rec.BaseBeforeAdjuvants != 50 {
		t.Errorf("base before adjuvants = %.2f, want 50", rec.BaseBeforeAdjuvants)
	}
	if rec.AgeInterpolation.Method != MethodDefault {
		t.Errorf("age method = %q, want %q on a cold store", rec.AgeInterpolation.Method, MethodDefault)
	}
	if len(rec.Steps) == 0 {
		t.Error("expected a step breakdown")
	}
}

func TestService_Calculate_ElderlyReduction(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := neutralPatient()
	p.Age = 85
	rec, err := svc.Calculate(context.Background(), &Request{ProcedureID: "test_proc", Patient: p})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// Age factor bottoms out at 0.4.
	if rec.DoseMME != 20 {
		t.Errorf("dose = %.2f, want 20 for an 85-year-old", rec.DoseMME)
	}
}

func TestService_Calculate_ASAReduction(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := neutralPatient()
	p.ASA = 4
	rec, err := svc.Calculate(context.Background(), &Request{ProcedureID: "test_proc", Patient: p})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if rec.DoseMME != 40 {
		t.Errorf("dose = %.2f, want 40 at ASA 4 (factor 0.8)", rec.DoseMME)
	}
}

func TestService_Calculate_ComorbidityFlags(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := neutralPatient()
	p.OpioidTolerant = true
	rec, err := svc.Calculate(context.Background(), &Request{ProcedureID: "test_proc", Patient: p})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if rec.DoseMME != 75 {
		t.Errorf("dose = %.2f, want 75 for opioid tolerance (factor 1.5)", rec.DoseMME)
	}

	p = neutralPatient()
	p.RenalImpairment = true
	rec, err = svc.Calculate(context.Background(), &Request{ProcedureID: "test_proc", Patient: p})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if rec.DoseMME != 42.5 {
		t.Errorf("dose = %.2f, want 42.5 for renal impairment (factor 0.85)", rec.DoseMME)
	}
}

func TestService_Calculate_AdjuvantReduction(t *testing.T) {
	svc, _, _ := newTestService(t)
	rec, err := svc.Calculate(context.Background(), &Request{
		ProcedureID: "test_proc",
		Patient:     neutralPatient(),
		Adjuvants:   []AdjuvantUse{{DrugID: "test_nsaid"}},
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// 50 - 50*0.15*1.0 = 42.5, single class so no synergy.
	if rec.DoseMME != 42.5 {
		t.Errorf("dose = %.2f, want 42.5 after one adjuvant", rec.DoseMME)
	}
}

func TestService_Calculate_DoseScaledAdjuvant(t *testing.T) {
	svc, _, _ := newTestService(t)
	// Double the reference dose doubles the sparing effect:
	// 50 - 50*0.075*2 = 42.5.
	rec, err := svc.Calculate(context.Background(), &Request{
		ProcedureID: "test_proc",
		Patient:     neutralPatient(),
		Adjuvants:   []AdjuvantUse{{DrugID: "test_alpha2", Dose: 150}},
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if rec.DoseMME != 42.5 {
		t.Errorf("dose = %.2f, want 42.5 at double reference dose", rec.DoseMME)
	}
}

func TestService_Calculate_UnknownAdjuvant(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Calculate(context.Background(), &Request{
		ProcedureID: "test_proc",
		Patient:     neutralPatient(),
		Adjuvants:   []AdjuvantUse{{DrugID: "no_such_drug"}},
	})
	if !errors.Is(err, ErrUnknownDrug) {
		t.Fatalf("err = %v, want ErrUnknownDrug", err)
	}
}

func TestService_Calculate_SafetyFloor(t *testing.T) {
	svc, cat, _ := newTestService(t)
	ctx := context.Background()
	pain := catalog.PainScores{Somatic: 4, Visceral: 7, Neuropathic: 2}
	// Two maximally potent adjuvants in different classes would wipe out
	// the dose entirely without the floor.
	for _, d := range []*catalog.Drug{
		{ID: "strong_a", Name: "Strong A", Class: catalog.ClassNSAID, PotencyPercent: 0.5, Pain: pain},
		{ID: "strong_b", Name: "Strong B", Class: catalog.ClassRegional, PotencyPercent: 0.5, Pain: pain},
	} {
		if err := cat.CreateDrug(ctx, d); err != nil {
			t.Fatalf("create drug: %v", err)
		}
	}
	rec, err := svc.Calculate(ctx, &Request{
		ProcedureID: "test_proc",
		Patient:     neutralPatient(),
		Adjuvants:   []AdjuvantUse{{DrugID: "strong_a"}, {DrugID: "strong_b"}},
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if rec.DoseMME != 15 {
		t.Errorf("dose = %.2f, want floor at 30%% of base (15)", rec.DoseMME)
	}
}

func TestService_Calculate_FentanylCredit(t *testing.T) {
	svc, _, _ := newTestService(t)
	rec, err := svc.Calculate(context.Background(), &Request{
		ProcedureID:     "test_proc",
		Patient:         neutralPatient(),
		FentanylDoseMCG: 100,
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// 100 µg = 10 MME, default tail fraction 0.25 -> credit 2.5.
	if rec.DoseMME != 47.5 {
		t.Errorf("dose = %.2f, want 47.5 after fentanyl credit", rec.DoseMME)
	}
}

func TestService_Calculate_UserCalibration(t *testing.T) {
	svc, _, cal := newTestService(t)
	ctx := context.Background()
	req := &Request{UserID: "dr-a", ProcedureID: "test_proc", Patient: neutralPatient()}

	// An unlearned user gets the population dose.
	rec, err := svc.Calculate(ctx, req)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if rec.DoseMME != 50 {
		t.Errorf("dose = %.2f, want 50 before any user learning", rec.DoseMME)
	}

	key := calibration.UserKey("dr-a", rec.CompositeKey)
	if _, err := cal.Adjust(ctx, calibration.MetricUserCalibration, key, 1.0, 0.2); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	rec, err = svc.Calculate(ctx, req)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if rec.DoseMME != 60 {
		t.Errorf("dose = %.2f, want 60 after user factor 1.2", rec.DoseMME)
	}

	// A different user is unaffected.
	other := *req
	other.UserID = "dr-b"
	rec, err = svc.Calculate(ctx, &other)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if rec.DoseMME != 50 {
		t.Errorf("dose = %.2f, want 50 for an unlearned user", rec.DoseMME)
	}
}

func TestService_Calculate_WeightScaling(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := neutralPatient()
	p.WeightKG = 100
	rec, err := svc.Calculate(context.Background(), &Request{ProcedureID: "test_proc", Patient: p})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// IBW 75, ABW 85, scaling 85/75; 50*85/75 = 56.67, rounded to 56.75.
	if !almostEqual(rec.AdjustedBodyWeight, 85, 1e-9) {
		t.Errorf("abw = %.2f, want 85", rec.AdjustedBodyWeight)
	}
	if rec.DoseMME != 56.75 {
		t.Errorf("dose = %.2f, want 56.75", rec.DoseMME)
	}
}

func TestService_Calculate_RoundingStep(t *testing.T) {
	svc, _, _ := newTestService(t)
	rec, err := svc.Calculate(context.Background(), &Request{
		ProcedureID:     "test_proc",
		Patient:         neutralPatient(),
		FentanylDoseMCG: 33,
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// 50 - 3.3*0.25 = 49.175 -> nearest 0.25 step is 49.25.
	if rec.DoseMME != 49.25 {
		t.Errorf("dose = %.2f, want 49.25", rec.DoseMME)
	}
}

func TestService_Calculate_LearnedBaseline(t *testing.T) {
	svc, _, cal := newTestService(t)
	ctx := context.Background()
	if _, err := cal.Adjust(ctx, calibration.MetricProcedureBase, "test_proc", 50, 5); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	rec, err := svc.Calculate(ctx, &Request{ProcedureID: "test_proc", Patient: neutralPatient()})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if rec.DoseMME != 55 {
		t.Errorf("dose = %.2f, want learned baseline 55", rec.DoseMME)
	}
}

func TestCompositeKey(t *testing.T) {
	p := neutralPatient()
	p.OpioidTolerant = true
	p.ASA = 3
	got := CompositeKey("test_proc", p, []AdjuvantUse{{DrugID: "zeta"}, {DrugID: "alpha"}})
	want := "test_proc:ASA3:T:alpha+zeta"
	if got != want {
		t.Errorf("composite key = %q, want %q", got, want)
	}
	got = CompositeKey("test_proc", neutralPatient(), nil)
	if got != "test_proc:ASA1:N:none" {
		t.Errorf("composite key = %q, want test_proc:ASA1:N:none", got)
	}
}
