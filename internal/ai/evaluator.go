package ai

import (
	"context"
	"encoding/json"
)

const (
	// MaxListItems caps risk flags, strengths and recommendations.
	MaxListItems = 10
	// MaxListItemRunes caps every list entry.
	MaxListItemRunes = 100
	// MaxRationaleRunes caps the free-form rationale.
	MaxRationaleRunes = 800
	// MaxScore is the upper bound of every fit score; the lower bound is zero.
	MaxScore = 100
)

// Provenance tells how an evaluation was recovered from the raw model output.
type Provenance string

const (
	// ProvenanceStrict means the raw output parsed as is.
	ProvenanceStrict Provenance = "strict"
	// ProvenanceRepaired means the output parsed only after syntactic repair.
	ProvenanceRepaired Provenance = "repaired"
)

// ScoringContext is the bounded description of an applicant handed to an evaluator.
// It is assembled fresh for every generation and never persisted.
type ScoringContext struct {
	ApplicantID          int64
	Name                 string
	AppliedRole          string
	Location             string
	YearsExperience      *float64
	ExpectedCompensation string
	// Documents holds the extracted application materials under section headers.
	Documents string
}

// Evaluation is a structured fit evaluation. Nil scores mean the evaluator left them blank.
type Evaluation struct {
	OverallScore    *float64
	ExperienceFit   *float64
	SkillsFit       *float64
	CultureFit      *float64
	LocationFit     *float64
	RiskFlags       []string
	Strengths       []string
	Recommendations []string
	Rationale       string

	Model      string
	Version    string
	Provenance Provenance
	// Raw is the JSON document the evaluation was decoded from.
	Raw json.RawMessage
}

// Evaluator produces a structured evaluation for a scoring context.
// Returned errors should be *Error so callers can classify them.
type Evaluator interface {
	Evaluate(ctx context.Context, sc *ScoringContext) (*Evaluation, error)
	Model() string
}
