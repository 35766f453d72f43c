package cases

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opidose/opidose/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const caseCols = `id, user_id, procedure_id, patient, adjuvants, fentanyl_dose_mcg,
	recommendation, status, outcome, quality, learned_changes, amendments,
	completed_at, created_at, updated_at`

func scanCase(row pgx.Row) (*Case, error) {
	var c Case
	err := row.Scan(&c.ID, &c.UserID, &c.ProcedureID, &c.Patient, &c.Adjuvants,
		&c.FentanylDoseMCG, &c.Recommendation, &c.Status, &c.Outcome, &c.Quality,
		&c.LearnedChanges, &c.Amendments, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) Create(ctx context.Context, c *Case) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinical_case (id, user_id, procedure_id, patient, adjuvants,
			fentanyl_dose_mcg, recommendation, status, outcome, quality,
			learned_changes, amendments, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		c.ID, c.UserID, c.ProcedureID, c.Patient, c.Adjuvants,
		c.FentanylDoseMCG, c.Recommendation, c.Status, c.Outcome, c.Quality,
		c.LearnedChanges, c.Amendments, c.CompletedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Case, error) {
	return scanCase(r.conn(ctx).QueryRow(ctx,
		`SELECT `+caseCols+` FROM clinical_case WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, c *Case) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinical_case
		SET status=$2, outcome=$3, quality=$4, learned_changes=$5,
			amendments=$6, completed_at=$7, updated_at=NOW()
		WHERE id=$1`,
		c.ID, c.Status, c.Outcome, c.Quality, c.LearnedChanges,
		c.Amendments, c.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) CountByStatus(ctx context.Context, status Status) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM clinical_case WHERE status = $1`, status).Scan(&n)
	return n, err
}

func (r *repoPG) List(ctx context.Context, procedureID string, limit, offset int) ([]*Case, int, error) {
	where := ``
	args := []interface{}{}
	if procedureID != "" {
		where = ` WHERE procedure_id = $1`
		args = append(args, procedureID)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clinical_case`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + caseCols + ` FROM clinical_case` + where +
		` ORDER BY created_at DESC`
	if procedureID != "" {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}
