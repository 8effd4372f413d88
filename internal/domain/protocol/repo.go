package protocol

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Protocol) error
	GetByID(ctx context.Context, id uuid.UUID) (*Protocol, error)
	Update(ctx context.Context, p *Protocol) error
	Archive(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, includeArchived bool, limit, offset int) ([]*Protocol, int, error)
	ListActive(ctx context.Context) ([]*Protocol, error)
}
