package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triage/triage/internal/platform/db"
	"github.com/triage/triage/internal/platform/errs"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const protocolCols = `id, name, description, symptoms, recommendations, exams,
	archived, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Protocol, error) {
	var p Protocol
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Symptoms, &p.Recommendations,
		&p.Exams, &p.Archived, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Protocol) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO protocol (id, name, description, symptoms, recommendations, exams, archived)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.Name, p.Description, p.Symptoms, p.Recommendations, p.Exams, p.Archived)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Protocol, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+protocolCols+` FROM protocol WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Protocol) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE protocol SET name=$2, description=$3, symptoms=$4,
			recommendations=$5, exams=$6, archived=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Description, p.Symptoms, p.Recommendations, p.Exams, p.Archived)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repoPG) Archive(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE protocol SET archived = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, includeArchived bool, limit, offset int) ([]*Protocol, int, error) {
	where := `WHERE archived = FALSE`
	if includeArchived {
		where = ``
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM protocol `+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count protocols: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+protocolCols+` FROM protocol `+where+` ORDER BY name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Protocol
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListActive(ctx context.Context) ([]*Protocol, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+protocolCols+` FROM protocol WHERE archived = FALSE ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Protocol
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
