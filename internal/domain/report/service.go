package report

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/triage/triage/internal/platform/errs"
)

// Guidance is the value copy of protocol guidance seeded into a new report.
type Guidance struct {
	Recommendations []string
	Exams           []string
}

// GuidanceSource resolves submitted symptoms to clinical guidance. A nil
// result means no protocol covers the submission. The workflow only ever
// reads from the source; the returned value is copied into the report, so
// later catalog edits never alter reports already created from it.
type GuidanceSource interface {
	GuidanceFor(ctx context.Context, symptoms []string) (*Guidance, error)
}

// Service is the report lifecycle engine. Every mutation is a
// read-modify-write against the stored record version; when a concurrent
// writer got there first the operation fails with errs.ErrConflict and the caller
// retries against fresh state. The service itself never retries.
type Service struct {
	reports  Repository
	guidance GuidanceSource
	now      func() time.Time
}

func NewService(reports Repository, guidance GuidanceSource) *Service {
	return &Service{reports: reports, guidance: guidance, now: time.Now}
}

func cleanSymptoms(symptoms []string) ([]string, error) {
	var cleaned []string
	for _, s := range symptoms {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, errs.Validationf("symptom labels must not be blank")
		}
		cleaned = append(cleaned, s)
	}
	if len(cleaned) == 0 {
		return nil, errs.Validationf("symptoms must not be empty")
	}
	return cleaned, nil
}

// Submit creates a report in the preliminary state from a patient
// submission. When the protocol catalog covers the symptoms, the matching
// guidance is copied in as default recommendations and requested exams;
// otherwise both start empty.
func (s *Service) Submit(ctx context.Context, patientRef string, symptoms []string) (*Report, error) {
	if patientRef == "" {
		return nil, errs.Validationf("patient reference is required")
	}
	cleaned, err := cleanSymptoms(symptoms)
	if err != nil {
		return nil, err
	}

	r := &Report{
		PatientRef:      patientRef,
		Symptoms:        cleaned,
		Status:          StatusPreliminary,
		Exams:           []Exam{},
		Recommendations: []string{},
	}

	if s.guidance != nil {
		g, err := s.guidance.GuidanceFor(ctx, cleaned)
		if err != nil {
			return nil, err
		}
		if g != nil {
			r.Recommendations = append(r.Recommendations, g.Recommendations...)
			requestedAt := s.now().UTC()
			for _, name := range g.Exams {
				r.Exams = append(r.Exams, Exam{Name: name, RequestedAt: requestedAt})
			}
		}
	}

	if err := s.reports.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	return s.reports.GetByID(ctx, id)
}

// mutatePreliminary loads the report, rejects the mutation unless the report
// is still preliminary, applies fn, and writes back with a version check.
func (s *Service) mutatePreliminary(ctx context.Context, id uuid.UUID, fn func(*Report) error) (*Report, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Editable() {
		return nil, errs.InvalidStatef("report is %s", r.Status)
	}
	if err := fn(r); err != nil {
		return nil, err
	}
	if err := s.reports.Update(ctx, r, r.Version); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) AddExam(ctx context.Context, id uuid.UUID, exam Exam) (*Report, error) {
	if strings.TrimSpace(exam.Name) == "" {
		return nil, errs.Validationf("exam name is required")
	}
	return s.mutatePreliminary(ctx, id, func(r *Report) error {
		if exam.RequestedAt.IsZero() {
			exam.RequestedAt = s.now().UTC()
		}
		r.Exams = append(r.Exams, exam)
		return nil
	})
}

func (s *Service) RemoveExam(ctx context.Context, id uuid.UUID, index int) (*Report, error) {
	return s.mutatePreliminary(ctx, id, func(r *Report) error {
		if index < 0 || index >= len(r.Exams) {
			return errs.Validationf("exam index %d out of range", index)
		}
		r.Exams = append(r.Exams[:index], r.Exams[index+1:]...)
		return nil
	})
}

func (s *Service) AddRecommendation(ctx context.Context, id uuid.UUID, text string) (*Report, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.Validationf("recommendation text is required")
	}
	return s.mutatePreliminary(ctx, id, func(r *Report) error {
		r.Recommendations = append(r.Recommendations, text)
		return nil
	})
}

func (s *Service) RemoveRecommendation(ctx context.Context, id uuid.UUID, index int) (*Report, error) {
	return s.mutatePreliminary(ctx, id, func(r *Report) error {
		if index < 0 || index >= len(r.Recommendations) {
			return errs.Validationf("recommendation index %d out of range", index)
		}
		r.Recommendations = append(r.Recommendations[:index], r.Recommendations[index+1:]...)
		return nil
	})
}

// RecordOpinion stores the doctor's opinion text. It does not transition
// state; validation is a separate, explicit step.
func (s *Service) RecordOpinion(ctx context.Context, id uuid.UUID, text string) (*Report, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.Validationf("opinion text is required")
	}
	return s.mutatePreliminary(ctx, id, func(r *Report) error {
		r.Opinion = text
		return nil
	})
}

// Validate finalizes the doctor's review: it requires a preliminary report
// with a recorded opinion, stamps the validating doctor, and moves the
// report to validated.
func (s *Service) Validate(ctx context.Context, id uuid.UUID, doctorID string) (*Report, error) {
	if doctorID == "" {
		return nil, errs.Validationf("doctor identifier is required")
	}
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanTransition(StatusValidated) {
		return nil, errs.InvalidStatef("report is %s", r.Status)
	}
	if strings.TrimSpace(r.Opinion) == "" {
		return nil, errs.Validationf("opinion is required before validation")
	}
	r.Status = StatusValidated
	r.ValidatedBy = doctorID
	if err := s.reports.Update(ctx, r, r.Version); err != nil {
		return nil, err
	}
	return r, nil
}

// Close administratively finalizes a validated report. Closure requires
// passing through validated first; closed is terminal.
func (s *Service) Close(ctx context.Context, id uuid.UUID) (*Report, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanTransition(StatusClosed) {
		return nil, errs.InvalidStatef("report is %s", r.Status)
	}
	r.Status = StatusClosed
	if err := s.reports.Update(ctx, r, r.Version); err != nil {
		return nil, err
	}
	return r, nil
}

// ListPending returns the doctor-dashboard partition of reports awaiting
// review. The partition is a pure filter over the store at call time.
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*Report, int, error) {
	return s.reports.ListByStatus(ctx, StatusPreliminary, limit, offset)
}

// ListOther returns every report past preliminary (validated and closed).
// Together with ListPending it partitions the store into two disjoint views.
func (s *Service) ListOther(ctx context.Context, limit, offset int) ([]*Report, int, error) {
	return s.reports.ListExcludingStatus(ctx, StatusPreliminary, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*Report, int, error) {
	return s.reports.ListByPatient(ctx, patientRef, limit, offset)
}
