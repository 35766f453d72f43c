package cases

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/opidose/opidose/internal/domain/calibration"
	"github.com/opidose/opidose/internal/domain/catalog"
	"github.com/opidose/opidose/internal/domain/dosing"
	"github.com/opidose/opidose/internal/domain/outcome"
)

func newTestService(t *testing.T) (*Service, *calibration.Service) {
	t.Helper()
	cat := catalog.NewService(catalog.NewDrugRepoMem(), catalog.NewProcedureRepoMem())
	cal := calibration.NewService(calibration.NewStoreMem())

	ctx := context.Background()
	if err := cat.CreateProcedure(ctx, &catalog.Procedure{
		ID: "test_proc", Specialty: "general", Name: "Test procedure",
		BaseMME: 50, Pain: catalog.PainScores{Somatic: 4, Visceral: 7, Neuropathic: 2},
	}); err != nil {
		t.Fatalf("create procedure: %v", err)
	}

	dose := dosing.NewService(cat, cal, dosing.Options{})
	learner := outcome.NewLearner(cat, cal, outcome.Options{})
	return NewService(NewRepoMem(), dose, learner, nil), cal
}

func testRequest() *dosing.Request {
	return &dosing.Request{
		UserID:      "dr-a",
		ProcedureID: "test_proc",
		Patient:     dosing.Patient{Age: 40, Sex: dosing.SexMale, WeightKG: 75, HeightCM: 175, ASA: 1},
	}
}

func TestService_Create(t *testing.T) {
	svc, _ := newTestService(t)
	c, err := svc.Create(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == uuid.Nil {
		t.Error("expected a generated id")
	}
	if c.Status != StatusOpen {
		t.Errorf("status = %q, want open", c.Status)
	}
	if c.Recommendation == nil || c.Recommendation.DoseMME != 50 {
		t.Errorf("recommendation = %+v, want dose 50", c.Recommendation)
	}
}

func TestService_Create_UnknownProcedure(t *testing.T) {
	svc, _ := newTestService(t)
	req := testRequest()
	req.ProcedureID = "no_such_proc"
	if _, err := svc.Create(context.Background(), req); !errors.Is(err, dosing.ErrUnknownProcedure) {
		t.Fatalf("err = %v, want ErrUnknownProcedure", err)
	}
}

func TestService_Complete(t *testing.T) {
	svc, cal := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, testRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	completed, res, err := svc.Complete(ctx, c.ID, outcome.Report{GivenDoseMME: 50, VAS: 6})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", completed.Status)
	}
	if completed.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if res.Quality != outcome.QualityUnderdosed {
		t.Errorf("quality = %q, want underdosed", res.Quality)
	}
	if completed.Quality != string(outcome.QualityUnderdosed) {
		t.Errorf("case quality = %q, want underdosed", completed.Quality)
	}
	// The learning pass persisted against the shared store.
	n, err := cal.CaseCount(ctx, "test_proc")
	if err != nil {
		t.Fatalf("case count: %v", err)
	}
	if n != 1 {
		t.Errorf("case count = %d, want 1", n)
	}
}

func TestService_Complete_Twice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, testRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Complete(ctx, c.ID, outcome.Report{GivenDoseMME: 50, VAS: 2}); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if _, _, err := svc.Complete(ctx, c.ID, outcome.Report{GivenDoseMME: 50, VAS: 2}); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("err = %v, want ErrAlreadyCompleted", err)
	}
}

func TestService_Complete_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.Complete(context.Background(), uuid.New(), outcome.Report{GivenDoseMME: 50, VAS: 2})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestService_Amend(t *testing.T) {
	svc, cal := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, testRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Complete(ctx, c.ID, outcome.Report{GivenDoseMME: 50, VAS: 6}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	amended, err := svc.Amend(ctx, c.ID, outcome.Report{GivenDoseMME: 50, VAS: 3}, "transcription error")
	if err != nil {
		t.Fatalf("amend: %v", err)
	}
	if len(amended.Amendments) != 1 {
		t.Fatalf("amendments = %d, want 1", len(amended.Amendments))
	}
	if amended.Amendments[0].Previous.VAS != 6 {
		t.Errorf("previous VAS = %.0f, want 6", amended.Amendments[0].Previous.VAS)
	}
	if amended.Outcome.VAS != 3 {
		t.Errorf("current VAS = %.0f, want 3", amended.Outcome.VAS)
	}
	// An amendment must not run another learning pass.
	n, err := cal.CaseCount(ctx, "test_proc")
	if err != nil {
		t.Fatalf("case count: %v", err)
	}
	if n != 1 {
		t.Errorf("case count = %d, want 1 after amendment", n)
	}
}

func TestService_Amend_OpenCase(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, testRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Amend(ctx, c.ID, outcome.Report{GivenDoseMME: 50, VAS: 3}, ""); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("err = %v, want ErrNotCompleted", err)
	}
}

func TestRepoMem_CountByStatus(t *testing.T) {
	repo := NewRepoMem()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := repo.Create(ctx, &Case{ProcedureID: "test_proc", Status: StatusOpen}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if err := repo.Create(ctx, &Case{ProcedureID: "test_proc", Status: StatusCompleted}); err != nil {
		t.Fatalf("create completed: %v", err)
	}

	open, err := repo.CountByStatus(ctx, StatusOpen)
	if err != nil {
		t.Fatalf("count open: %v", err)
	}
	if open != 3 {
		t.Errorf("open count = %d, want 3", open)
	}
	done, err := repo.CountByStatus(ctx, StatusCompleted)
	if err != nil {
		t.Fatalf("count completed: %v", err)
	}
	if done != 1 {
		t.Errorf("completed count = %d, want 1", done)
	}
}

func TestService_List(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, testRequest()); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	items, total, err := svc.List(ctx, "", 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(items) != 2 {
		t.Errorf("page size = %d, want 2", len(items))
	}
	items, total, err = svc.List(ctx, "other_proc", 10, 0)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Errorf("filtered list = %d/%d, want empty", len(items), total)
	}
}
