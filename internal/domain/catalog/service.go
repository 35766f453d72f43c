package catalog

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type Service struct {
	drugs      DrugRepository
	procedures ProcedureRepository
}

func NewService(drugs DrugRepository, procedures ProcedureRepository) *Service {
	return &Service{drugs: drugs, procedures: procedures}
}

// -- Drugs --

func (s *Service) CreateDrug(ctx context.Context, d *Drug) error {
	if err := validateDrug(d); err != nil {
		return err
	}
	return s.drugs.Create(ctx, d)
}

func (s *Service) GetDrug(ctx context.Context, id string) (*Drug, error) {
	return s.drugs.GetByID(ctx, id)
}

func (s *Service) UpdateDrug(ctx context.Context, d *Drug) error {
	if err := validateDrug(d); err != nil {
		return err
	}
	return s.drugs.Update(ctx, d)
}

func (s *Service) DeleteDrug(ctx context.Context, id string) error {
	return s.drugs.Delete(ctx, id)
}

func (s *Service) ListDrugs(ctx context.Context, limit, offset int) ([]*Drug, int, error) {
	return s.drugs.List(ctx, limit, offset)
}

func validateDrug(d *Drug) error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch d.Class {
	case ClassOpioid, ClassNSAID, ClassAdjuvant, ClassRegional:
	default:
		return fmt.Errorf("invalid class: %s", d.Class)
	}
	if d.PotencyPercent < 0 || d.PotencyPercent > 0.5 {
		return fmt.Errorf("potency_percent must be in [0, 0.5], got %v", d.PotencyPercent)
	}
	if err := validatePain(d.Pain); err != nil {
		return err
	}
	return nil
}

// -- Procedures --

func (s *Service) CreateProcedure(ctx context.Context, p *Procedure) error {
	if err := validateProcedure(p); err != nil {
		return err
	}
	return s.procedures.Create(ctx, p)
}

func (s *Service) GetProcedure(ctx context.Context, id string) (*Procedure, error) {
	return s.procedures.GetByID(ctx, id)
}

func (s *Service) UpdateProcedure(ctx context.Context, p *Procedure) error {
	if err := validateProcedure(p); err != nil {
		return err
	}
	return s.procedures.Update(ctx, p)
}

func (s *Service) DeleteProcedure(ctx context.Context, id string) error {
	return s.procedures.Delete(ctx, id)
}

func (s *Service) ListProcedures(ctx context.Context, specialty string, limit, offset int) ([]*Procedure, int, error) {
	if specialty != "" {
		return s.procedures.ListBySpecialty(ctx, specialty, limit, offset)
	}
	return s.procedures.List(ctx, limit, offset)
}

func validateProcedure(p *Procedure) error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.BaseMME <= 0 {
		return fmt.Errorf("base_mme must be positive, got %v", p.BaseMME)
	}
	if err := validatePain(p.Pain); err != nil {
		return err
	}
	return nil
}

func validatePain(p PainScores) error {
	for _, v := range []float64{p.Somatic, p.Visceral, p.Neuropathic} {
		if v < 0 || v > 10 {
			return fmt.Errorf("pain scores must be in [0, 10], got %v", v)
		}
	}
	return nil
}
