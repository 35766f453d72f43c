package cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opidose/opidose/internal/domain/dosing"
	"github.com/opidose/opidose/internal/domain/outcome"
)

var (
	ErrNotFound         = errors.New("case not found")
	ErrAlreadyCompleted = errors.New("case already completed")
	ErrNotCompleted     = errors.New("case not completed")
)

// TxRunner executes fn atomically. The production wiring binds this to
// db.WithTx; tests use a passthrough.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Service manages the case lifecycle: a recommendation opens a case, the
// recorded outcome completes it and triggers one learning pass.
type Service struct {
	repo    Repository
	dosing  *dosing.Service
	learner *outcome.Learner
	tx      TxRunner
}

func NewService(repo Repository, dose *dosing.Service, learner *outcome.Learner, tx TxRunner) *Service {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Service{repo: repo, dosing: dose, learner: learner, tx: tx}
}

// Create calculates a recommendation and opens a case around it.
func (s *Service) Create(ctx context.Context, req *dosing.Request) (*Case, error) {
	rec, err := s.dosing.Calculate(ctx, req)
	if err != nil {
		return nil, err
	}
	c := &Case{
		UserID:          req.UserID,
		ProcedureID:     req.ProcedureID,
		Patient:         req.Patient,
		Adjuvants:       req.Adjuvants,
		FentanylDoseMCG: req.FentanylDoseMCG,
		Recommendation:  rec,
		Status:          StatusOpen,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}
	log.Info().Str("case_id", c.ID.String()).Str("procedure_id", c.ProcedureID).
		Float64("dose_mme", rec.DoseMME).Msg("case opened")
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Case, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, procedureID string, limit, offset int) ([]*Case, int, error) {
	return s.repo.List(ctx, procedureID, limit, offset)
}

// Complete records the outcome, runs the learning pass, and finalizes the
// case. The learning updates and the case transition commit together.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, rep outcome.Report) (*Case, *outcome.Result, error) {
	if err := rep.Validate(); err != nil {
		return nil, nil, err
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if c.Status == StatusCompleted {
		return nil, nil, ErrAlreadyCompleted
	}

	var res *outcome.Result
	err = s.tx(ctx, func(ctx context.Context) error {
		res, err = s.learner.Learn(ctx, outcome.CaseContext{
			UserID:          c.UserID,
			ProcedureID:     c.ProcedureID,
			Patient:         c.Patient,
			Adjuvants:       c.Adjuvants,
			FentanylDoseMCG: c.FentanylDoseMCG,
			RecommendedMME:  c.Recommendation.DoseMME,
			CompositeKey:    c.Recommendation.CompositeKey,
		}, rep)
		if err != nil {
			return fmt.Errorf("learn: %w", err)
		}
		now := time.Now()
		c.Status = StatusCompleted
		c.Outcome = &rep
		c.Quality = string(res.Quality)
		c.LearnedChanges = res.Changes
		c.CompletedAt = &now
		return s.repo.Update(ctx, c)
	})
	if err != nil {
		return nil, nil, err
	}
	return c, res, nil
}

// Amend corrects the outcome of a completed case. The previous report is
// preserved in the amendment history; no additional learning pass runs, so
// a data-entry fix cannot double-count a case.
func (s *Service) Amend(ctx context.Context, id uuid.UUID, rep outcome.Report, reason string) (*Case, error) {
	if err := rep.Validate(); err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusCompleted || c.Outcome == nil {
		return nil, ErrNotCompleted
	}
	c.Amendments = append(c.Amendments, Amendment{
		Previous: *c.Outcome,
		Reason:   reason,
		At:       time.Now(),
	})
	c.Outcome = &rep
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	log.Info().Str("case_id", c.ID.String()).Int("amendments", len(c.Amendments)).
		Msg("case outcome amended")
	return c, nil
}
