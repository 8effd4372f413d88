package protocol

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Protocol maps to the protocol table. It is admin-curated reference data:
// a required symptom set and the clinical guidance to apply when a
// submission covers it. Reports copy guidance at creation and never hold a
// reference back to the protocol, so edits here never rewrite history.
type Protocol struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Description     string    `db:"description" json:"description,omitempty"`
	Symptoms        []string  `db:"symptoms" json:"symptoms"`
	Recommendations []string  `db:"recommendations" json:"recommendations"`
	Exams           []string  `db:"exams" json:"exams"`
	Archived        bool      `db:"archived" json:"archived"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Guidance is the value copy of a protocol's clinical guidance handed to the
// report workflow when a submission matches.
type Guidance struct {
	Recommendations []string `json:"recommendations"`
	Exams           []string `json:"exams"`
}

// Guidance returns a deep copy so callers can never share slices with the
// stored protocol.
func (p *Protocol) Guidance() Guidance {
	g := Guidance{
		Recommendations: make([]string, len(p.Recommendations)),
		Exams:           make([]string, len(p.Exams)),
	}
	copy(g.Recommendations, p.Recommendations)
	copy(g.Exams, p.Exams)
	return g
}

// Matches reports whether every required protocol symptom is present in the
// submitted symptoms. Matching is case-insensitive and ignores surrounding
// whitespace.
func (p *Protocol) Matches(symptoms []string) bool {
	if len(p.Symptoms) == 0 {
		return false
	}
	submitted := make(map[string]bool, len(symptoms))
	for _, s := range symptoms {
		submitted[normalizeSymptom(s)] = true
	}
	for _, required := range p.Symptoms {
		if !submitted[normalizeSymptom(required)] {
			return false
		}
	}
	return true
}

func normalizeSymptom(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
