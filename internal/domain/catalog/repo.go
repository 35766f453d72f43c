package catalog

import "context"

type DrugRepository interface {
	Create(ctx context.Context, d *Drug) error
	GetByID(ctx context.Context, id string) (*Drug, error)
	Update(ctx context.Context, d *Drug) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*Drug, int, error)
}

type ProcedureRepository interface {
	Create(ctx context.Context, p *Procedure) error
	GetByID(ctx context.Context, id string) (*Procedure, error)
	Update(ctx context.Context, p *Procedure) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*Procedure, int, error)
	ListBySpecialty(ctx context.Context, specialty string, limit, offset int) ([]*Procedure, int, error)
}
