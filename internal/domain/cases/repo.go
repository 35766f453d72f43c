package cases

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Case) error
	GetByID(ctx context.Context, id uuid.UUID) (*Case, error)
	Update(ctx context.Context, c *Case) error
	// List returns cases newest first, optionally filtered by procedure.
	List(ctx context.Context, procedureID string, limit, offset int) ([]*Case, int, error)
	CountByStatus(ctx context.Context, status Status) (int, error)
}
