package protocol

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/triage/triage/internal/platform/errs"
)

type Service struct {
	protocols Repository
}

func NewService(protocols Repository) *Service {
	return &Service{protocols: protocols}
}

func validateProtocol(p *Protocol) error {
	if strings.TrimSpace(p.Name) == "" {
		return errs.Validationf("name is required")
	}
	if len(p.Symptoms) == 0 {
		return errs.Validationf("symptom set must not be empty")
	}
	for _, s := range p.Symptoms {
		if strings.TrimSpace(s) == "" {
			return errs.Validationf("symptom labels must not be blank")
		}
	}
	return nil
}

func (s *Service) CreateProtocol(ctx context.Context, p *Protocol) error {
	if err := validateProtocol(p); err != nil {
		return err
	}
	return s.protocols.Create(ctx, p)
}

func (s *Service) GetProtocol(ctx context.Context, id uuid.UUID) (*Protocol, error) {
	return s.protocols.GetByID(ctx, id)
}

func (s *Service) UpdateProtocol(ctx context.Context, p *Protocol) error {
	if err := validateProtocol(p); err != nil {
		return err
	}
	return s.protocols.Update(ctx, p)
}

// ArchiveProtocol soft-deletes a protocol. Archived protocols stop matching
// new submissions but stay readable for audit, mirroring report closure.
func (s *Service) ArchiveProtocol(ctx context.Context, id uuid.UUID) error {
	return s.protocols.Archive(ctx, id)
}

func (s *Service) ListProtocols(ctx context.Context, includeArchived bool, limit, offset int) ([]*Protocol, int, error) {
	return s.protocols.List(ctx, includeArchived, limit, offset)
}

// Match returns the protocol whose required symptom set is fully contained
// in the submitted symptoms, or nil when none matches. Among multiple
// matches the most specific wins: largest symptom set, then earliest
// creation. The rule is deterministic so a submission always seeds the same
// guidance.
func (s *Service) Match(ctx context.Context, symptoms []string) (*Protocol, error) {
	active, err := s.protocols.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var best *Protocol
	for _, p := range active {
		if !p.Matches(symptoms) {
			continue
		}
		if best == nil {
			best = p
			continue
		}
		if len(p.Symptoms) > len(best.Symptoms) {
			best = p
		} else if len(p.Symptoms) == len(best.Symptoms) && p.CreatedAt.Before(best.CreatedAt) {
			best = p
		}
	}
	return best, nil
}
