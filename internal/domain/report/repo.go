package report

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the report store. Update is compare-and-swap on the record
// version: implementations must fail with errs.ErrConflict when the stored
// version differs from expectedVersion, so concurrent writers never silently
// overwrite each other. Reports are never deleted.
type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	Update(ctx context.Context, r *Report, expectedVersion int) error
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Report, int, error)
	ListExcludingStatus(ctx context.Context, status Status, limit, offset int) ([]*Report, int, error)
	ListByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*Report, int, error)
}
