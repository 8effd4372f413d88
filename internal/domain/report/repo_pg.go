package report

import (
	"context"
	"encoding/json"
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

const reportCols = `id, patient_ref, symptoms, status, exams, recommendations,
	opinion, validated_by, version, created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Report, error) {
	var rep Report
	var examsJSON []byte
	err := row.Scan(&rep.ID, &rep.PatientRef, &rep.Symptoms, &rep.Status, &examsJSON,
		&rep.Recommendations, &rep.Opinion, &rep.ValidatedBy, &rep.Version,
		&rep.CreatedAt, &rep.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(examsJSON, &rep.Exams); err != nil {
		return nil, fmt.Errorf("decode exams: %w", err)
	}
	return &rep, nil
}

func marshalExams(exams []Exam) ([]byte, error) {
	if exams == nil {
		exams = []Exam{}
	}
	return json.Marshal(exams)
}

func (r *repoPG) Create(ctx context.Context, rep *Report) error {
	rep.ID = uuid.New()
	examsJSON, err := marshalExams(rep.Exams)
	if err != nil {
		return fmt.Errorf("encode exams: %w", err)
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO report (id, patient_ref, symptoms, status, exams, recommendations, opinion, validated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING version, created_at, updated_at`,
		rep.ID, rep.PatientRef, rep.Symptoms, rep.Status, examsJSON,
		rep.Recommendations, rep.Opinion, rep.ValidatedBy)
	return row.Scan(&rep.Version, &rep.CreatedAt, &rep.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+reportCols+` FROM report WHERE id = $1`, id))
}

// Update writes the mutable fields with a compare-and-swap on version.
// Identity fields (patient_ref, symptoms, created_at) are immutable after
// creation and never appear in the UPDATE list.
func (r *repoPG) Update(ctx context.Context, rep *Report, expectedVersion int) error {
	examsJSON, err := marshalExams(rep.Exams)
	if err != nil {
		return fmt.Errorf("encode exams: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE report SET status=$3, exams=$4, recommendations=$5, opinion=$6,
			validated_by=$7, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING updated_at`,
		rep.ID, expectedVersion, rep.Status, examsJSON, rep.Recommendations,
		rep.Opinion, rep.ValidatedBy).Scan(&rep.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("report %s at version %d: %w", rep.ID, expectedVersion, errs.ErrConflict)
	}
	if err != nil {
		return err
	}
	rep.Version = expectedVersion + 1
	return nil
}

func (r *repoPG) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Report, int, error) {
	return r.list(ctx, `WHERE status = $1`, status, limit, offset)
}

func (r *repoPG) ListExcludingStatus(ctx context.Context, status Status, limit, offset int) ([]*Report, int, error) {
	return r.list(ctx, `WHERE status <> $1`, status, limit, offset)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*Report, int, error) {
	return r.list(ctx, `WHERE patient_ref = $1`, patientRef, limit, offset)
}

func (r *repoPG) list(ctx context.Context, where string, arg interface{}, limit, offset int) ([]*Report, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM report `+where, arg).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+reportCols+` FROM report `+where+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		arg, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Report
	for rows.Next() {
		rep, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rep)
	}
	return items, total, rows.Err()
}
