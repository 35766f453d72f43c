package calibration

import (
	"context"
	"errors"

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

type storePG struct{ pool *pgxpool.Pool }

func NewStorePG(pool *pgxpool.Pool) Store { return &storePG{pool: pool} }

func (s *storePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return s.pool
}

func (s *storePG) Get(ctx context.Context, metric Metric, key string) (*Factor, error) {
	var f Factor
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT metric, key, value, observations, updated_at
		FROM calibration_factor WHERE metric = $1 AND key = $2`,
		metric, key).Scan(&f.Metric, &f.Key, &f.Value, &f.Observations, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *storePG) GetMany(ctx context.Context, metric Metric, keys []string) (map[string]Factor, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT metric, key, value, observations, updated_at
		FROM calibration_factor WHERE metric = $1 AND key = ANY($2)`,
		metric, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Factor)
	for rows.Next() {
		var f Factor
		if err := rows.Scan(&f.Metric, &f.Key, &f.Value, &f.Observations, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out[f.Key] = f
	}
	return out, rows.Err()
}

func (s *storePG) List(ctx context.Context, metric Metric) ([]Factor, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT metric, key, value, observations, updated_at
		FROM calibration_factor WHERE metric = $1 ORDER BY key`,
		metric)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Factor
	for rows.Next() {
		var f Factor
		if err := rows.Scan(&f.Metric, &f.Key, &f.Value, &f.Observations, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Update is a single upsert so the read-modify-write is atomic on the row:
// concurrent learners on the same key serialize on the row lock and neither
// increment is lost.
func (s *storePG) Update(ctx context.Context, metric Metric, key string, def, adjustment, lo, hi float64) (float64, error) {
	var value float64
	err := s.conn(ctx).QueryRow(ctx, `
		INSERT INTO calibration_factor (metric, key, value, observations)
		VALUES ($1, $2, LEAST($6, GREATEST($5, $3 + $4)), 1)
		ON CONFLICT (metric, key) DO UPDATE
		SET value = LEAST($6, GREATEST($5, calibration_factor.value + $4)),
		    observations = calibration_factor.observations + 1,
		    updated_at = NOW()
		RETURNING value`,
		metric, key, def, adjustment, lo, hi).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (s *storePG) CaseCount(ctx context.Context, procedureID string) (int, error) {
	var n int
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT count FROM calibration_case_count WHERE procedure_id = $1`,
		procedureID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *storePG) IncrementCaseCount(ctx context.Context, procedureID string) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO calibration_case_count (procedure_id, count) VALUES ($1, 1)
		ON CONFLICT (procedure_id) DO UPDATE
		SET count = calibration_case_count.count + 1, updated_at = NOW()`,
		procedureID)
	return err
}
