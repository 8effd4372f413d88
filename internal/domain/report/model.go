package report

import (
	"time"

	"github.com/google/uuid"
)

// Status is the report lifecycle state.
type Status string

// Lifecycle states. A report moves preliminary → validated → closed and
// never backwards; closed is terminal and closure is a status value, not a
// deletion, so the clinical record survives as audit history.
const (
	StatusPreliminary Status = "preliminary"
	StatusValidated   Status = "validated"
	StatusClosed      Status = "closed"
)

func (s Status) Valid() bool {
	return s == StatusPreliminary || s == StatusValidated || s == StatusClosed
}

// transitions holds the only legal forward edges of the state machine.
// A direct preliminary → closed edge is deliberately absent.
var transitions = map[Status]Status{
	StatusPreliminary: StatusValidated,
	StatusValidated:   StatusClosed,
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s Status) CanTransition(next Status) bool {
	return transitions[s] == next
}

// Exam is one requested exam on a report.
type Exam struct {
	Name        string    `json:"name"`
	RequestedAt time.Time `json:"requested_at"`
	Result      string    `json:"result,omitempty"`
}

// Report maps to the report table. It is one patient's symptom submission
// and its clinical review record.
type Report struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PatientRef      string    `db:"patient_ref" json:"patient_ref"`
	Symptoms        []string  `db:"symptoms" json:"symptoms"`
	Status          Status    `db:"status" json:"status"`
	Exams           []Exam    `db:"exams" json:"exams"`
	Recommendations []string  `db:"recommendations" json:"recommendations"`
	Opinion         string    `db:"opinion" json:"opinion,omitempty"`
	ValidatedBy     string    `db:"validated_by" json:"validated_by,omitempty"`
	Version         int       `db:"version" json:"version"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// OwnedBy reports whether the given user submitted this report.
func (r *Report) OwnedBy(userID string) bool {
	return userID != "" && r.PatientRef == userID
}

// Editable reports whether exams, recommendations, and opinion may still
// change. Only preliminary reports are editable.
func (r *Report) Editable() bool {
	return r.Status == StatusPreliminary
}
