package integration

import (
	"context"
	"testing"

	"github.com/opidose/opidose/internal/domain/calibration"
	"github.com/opidose/opidose/internal/domain/cases"
	"github.com/opidose/opidose/internal/domain/dosing"
	"github.com/opidose/opidose/internal/domain/outcome"
	"github.com/opidose/opidose/internal/platform/db"
)

// newStack wires the full service stack against the shared test database,
// the same way the server entrypoint does.
func newStack(t *testing.T, ctx context.Context) (*cases.Service, *calibration.Service) {
	t.Helper()
	catalogSvc := seedCatalog(t, ctx)
	calSvc := calibration.NewService(calibration.NewStorePG(globalDB.Pool))

	doseSvc := dosing.NewService(catalogSvc, calSvc, dosing.Options{})
	learner := outcome.NewLearner(catalogSvc, calSvc, outcome.Options{})

	txRunner := func(ctx context.Context, fn func(context.Context) error) error {
		return db.WithTx(ctx, globalDB.Pool, fn)
	}
	caseSvc := cases.NewService(cases.NewRepoPG(globalDB.Pool), doseSvc, learner, txRunner)
	return caseSvc, calSvc
}

func testPatient() dosing.Patient {
	return dosing.Patient{
		Age:      45,
		Sex:      dosing.SexMale,
		WeightKG: 80,
		HeightCM: 180,
		ASA:      2,
	}
}

func TestDosingFlow_CalculateCompleteAndLearn(t *testing.T) {
	ctx := context.Background()
	caseSvc, calSvc := newStack(t, ctx)

	req := &dosing.Request{
		UserID:      "it-user-1",
		ProcedureID: "lap_chole",
		Patient:     testPatient(),
	}

	c, err := caseSvc.Create(ctx, req)
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	if c.Recommendation == nil || c.Recommendation.DoseMME <= 0 {
		t.Fatalf("expected positive recommendation, got %+v", c.Recommendation)
	}
	if c.Status != cases.StatusOpen {
		t.Errorf("status = %q, want %q", c.Status, cases.StatusOpen)
	}
	firstDose := c.Recommendation.DoseMME

	// Underdosed outcome: high pain plus a rescue dose.
	rep := outcome.Report{
		GivenDoseMME:  c.Recommendation.DoseMME,
		RescueDoseMME: 5,
		VAS:           7,
		RescueEarly:   true,
	}
	completed, result, err := caseSvc.Complete(ctx, c.ID, rep)
	if err != nil {
		t.Fatalf("complete case: %v", err)
	}
	if completed.Status != cases.StatusCompleted {
		t.Errorf("status = %q, want %q", completed.Status, cases.StatusCompleted)
	}
	if result.Quality != outcome.QualityUnderdosed {
		t.Errorf("quality = %q, want %q", result.Quality, outcome.QualityUnderdosed)
	}
	if len(result.Changes) == 0 {
		t.Error("expected learned changes after underdosed outcome")
	}

	n, err := calSvc.CaseCount(ctx, "lap_chole")
	if err != nil {
		t.Fatalf("case count: %v", err)
	}
	if n < 1 {
		t.Errorf("case count = %d, want >= 1", n)
	}

	// The baseline factor for the procedure must now sit above its default.
	v, obs, err := calSvc.Value(ctx, calibration.MetricProcedureBase, "lap_chole", 1.0)
	if err != nil {
		t.Fatalf("baseline value: %v", err)
	}
	if obs < 1 {
		t.Errorf("baseline observations = %d, want >= 1", obs)
	}
	if v <= 1.0 {
		t.Errorf("baseline factor = %v, want > 1.0 after underdosing", v)
	}

	// A fresh calculation for the same procedure must recommend more.
	c2, err := caseSvc.Create(ctx, req)
	if err != nil {
		t.Fatalf("create second case: %v", err)
	}
	if c2.Recommendation.DoseMME <= firstDose {
		t.Errorf("second recommendation = %v, want > %v", c2.Recommendation.DoseMME, firstDose)
	}
}

func TestDosingFlow_AmendKeepsHistory(t *testing.T) {
	ctx := context.Background()
	caseSvc, _ := newStack(t, ctx)

	req := &dosing.Request{
		UserID:      "it-user-2",
		ProcedureID: "knee_arthroscopy",
		Patient:     testPatient(),
	}

	c, err := caseSvc.Create(ctx, req)
	if err != nil {
		t.Fatalf("create case: %v", err)
	}

	rep := outcome.Report{GivenDoseMME: c.Recommendation.DoseMME, VAS: 4}
	if _, _, err := caseSvc.Complete(ctx, c.ID, rep); err != nil {
		t.Fatalf("complete case: %v", err)
	}

	corrected := outcome.Report{GivenDoseMME: c.Recommendation.DoseMME, VAS: 3}
	amended, err := caseSvc.Amend(ctx, c.ID, corrected, "transcription error")
	if err != nil {
		t.Fatalf("amend case: %v", err)
	}
	if len(amended.Amendments) != 1 {
		t.Fatalf("amendments = %d, want 1", len(amended.Amendments))
	}
	if amended.Amendments[0].Previous.VAS != 4 {
		t.Errorf("previous VAS = %v, want 4", amended.Amendments[0].Previous.VAS)
	}
	if amended.Outcome == nil || amended.Outcome.VAS != 3 {
		t.Errorf("outcome not replaced: %+v", amended.Outcome)
	}

	// Amended cases are still readable with full history.
	got, err := caseSvc.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if got.Quality == "" {
		t.Error("expected quality to be retained")
	}
}
