package catalog

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

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

// =========== Drug Repository ===========

type drugRepoPG struct{ pool *pgxpool.Pool }

func NewDrugRepoPG(pool *pgxpool.Pool) DrugRepository { return &drugRepoPG{pool: pool} }

func (r *drugRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const drugCols = `id, name, class, somatic, visceral, neuropathic,
	potency_percent, reference_dose_mcg, units,
	onset_minutes, peak_minutes, duration_minutes, created_at, updated_at`

func (r *drugRepoPG) scanDrug(row pgx.Row) (*Drug, error) {
	var d Drug
	err := row.Scan(&d.ID, &d.Name, &d.Class, &d.Pain.Somatic, &d.Pain.Visceral, &d.Pain.Neuropathic,
		&d.PotencyPercent, &d.ReferenceDoseMCG, &d.Units,
		&d.OnsetMinutes, &d.PeakMinutes, &d.DurationMinutes, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *drugRepoPG) Create(ctx context.Context, d *Drug) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO drug (id, name, class, somatic, visceral, neuropathic,
			potency_percent, reference_dose_mcg, units,
			onset_minutes, peak_minutes, duration_minutes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		d.ID, d.Name, d.Class, d.Pain.Somatic, d.Pain.Visceral, d.Pain.Neuropathic,
		d.PotencyPercent, d.ReferenceDoseMCG, d.Units,
		d.OnsetMinutes, d.PeakMinutes, d.DurationMinutes)
	return translateErr(err)
}

func (r *drugRepoPG) GetByID(ctx context.Context, id string) (*Drug, error) {
	d, err := r.scanDrug(r.conn(ctx).QueryRow(ctx, `SELECT `+drugCols+` FROM drug WHERE id = $1`, id))
	if err != nil {
		return nil, translateErr(err)
	}
	return d, nil
}

func (r *drugRepoPG) Update(ctx context.Context, d *Drug) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE drug SET name=$2, class=$3, somatic=$4, visceral=$5, neuropathic=$6,
			potency_percent=$7, reference_dose_mcg=$8, units=$9,
			onset_minutes=$10, peak_minutes=$11, duration_minutes=$12, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Name, d.Class, d.Pain.Somatic, d.Pain.Visceral, d.Pain.Neuropathic,
		d.PotencyPercent, d.ReferenceDoseMCG, d.Units,
		d.OnsetMinutes, d.PeakMinutes, d.DurationMinutes)
	return err
}

func (r *drugRepoPG) Delete(ctx context.Context, id string) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM drug WHERE id = $1`, id)
	return err
}

func (r *drugRepoPG) List(ctx context.Context, limit, offset int) ([]*Drug, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM drug`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+drugCols+` FROM drug ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Drug
	for rows.Next() {
		d, err := r.scanDrug(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, nil
}

// =========== Procedure Repository ===========

type procedureRepoPG struct{ pool *pgxpool.Pool }

func NewProcedureRepoPG(pool *pgxpool.Pool) ProcedureRepository { return &procedureRepoPG{pool: pool} }

func (r *procedureRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const procedureCols = `id, specialty, name, kva_code, base_mme,
	somatic, visceral, neuropathic, created_at, updated_at`

func (r *procedureRepoPG) scanProcedure(row pgx.Row) (*Procedure, error) {
	var p Procedure
	err := row.Scan(&p.ID, &p.Specialty, &p.Name, &p.KVACode, &p.BaseMME,
		&p.Pain.Somatic, &p.Pain.Visceral, &p.Pain.Neuropathic, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *procedureRepoPG) Create(ctx context.Context, p *Procedure) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO procedure (id, specialty, name, kva_code, base_mme, somatic, visceral, neuropathic)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.Specialty, p.Name, p.KVACode, p.BaseMME,
		p.Pain.Somatic, p.Pain.Visceral, p.Pain.Neuropathic)
	return translateErr(err)
}

func (r *procedureRepoPG) GetByID(ctx context.Context, id string) (*Procedure, error) {
	pr, err := r.scanProcedure(r.conn(ctx).QueryRow(ctx, `SELECT `+procedureCols+` FROM procedure WHERE id = $1`, id))
	if err != nil {
		return nil, translateErr(err)
	}
	return pr, nil
}

func (r *procedureRepoPG) Update(ctx context.Context, p *Procedure) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE procedure SET specialty=$2, name=$3, kva_code=$4, base_mme=$5,
			somatic=$6, visceral=$7, neuropathic=$8, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Specialty, p.Name, p.KVACode, p.BaseMME,
		p.Pain.Somatic, p.Pain.Visceral, p.Pain.Neuropathic)
	return err
}

func (r *procedureRepoPG) Delete(ctx context.Context, id string) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM procedure WHERE id = $1`, id)
	return err
}

func (r *procedureRepoPG) List(ctx context.Context, limit, offset int) ([]*Procedure, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM procedure`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+procedureCols+` FROM procedure ORDER BY specialty, name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return scanProcedures(rows, total)
}

func (r *procedureRepoPG) ListBySpecialty(ctx context.Context, specialty string, limit, offset int) ([]*Procedure, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM procedure WHERE specialty = $1`, specialty).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+procedureCols+` FROM procedure WHERE specialty = $1 ORDER BY name LIMIT $2 OFFSET $3`,
		specialty, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return scanProcedures(rows, total)
}

func scanProcedures(rows pgx.Rows, total int) ([]*Procedure, int, error) {
	var items []*Procedure
	for rows.Next() {
		var p Procedure
		if err := rows.Scan(&p.ID, &p.Specialty, &p.Name, &p.KVACode, &p.BaseMME,
			&p.Pain.Somatic, &p.Pain.Visceral, &p.Pain.Neuropathic, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &p)
	}
	return items, total, nil
}
