// Package storage defines the persistence contract for applicants and their scores.
package storage

import (
	"encoding/json"
	"time"
)

// Applicant is the entity being scored.
type Applicant struct {
	ID                   int64
	Name                 string
	AppliedRole          string
	Location             string
	YearsExperience      *float64
	ExpectedCompensation string
	// ResumeRef and CoverLetterRef point at stored documents; empty when absent.
	ResumeRef      string
	CoverLetterRef string
}

// HasMaterials reports whether the applicant has anything worth evaluating.
func (a *Applicant) HasMaterials() bool {
	return a != nil && (a.ResumeRef != "" || a.CoverLetterRef != "")
}

// Score is one stored evaluation, unique per (ApplicantID, Model, Version).
type Score struct {
	ID          int64           `json:"id"`
	ApplicantID int64           `json:"applicant_id"`
	Model       string          `json:"model"`
	Version     string          `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	Provenance  string          `json:"provenance,omitempty"`
	Overall     *float64        `json:"overall_score"`
	Experience  *float64        `json:"experience_fit"`
	Skills      *float64        `json:"skills_fit"`
	Culture     *float64        `json:"culture_fit"`
	Location    *float64        `json:"location_fit"`
	RiskFlags   []string        `json:"risk_flags"`
	Strengths   []string        `json:"strengths"`
	Recommends  []string        `json:"recommendations"`
	Rationale   string          `json:"rationale"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// DefaultProvenance is stored when a score carries no provenance.
const DefaultProvenance = "strict"

// ProvenanceOrDefault returns the provenance to persist.
func (s *Score) ProvenanceOrDefault() string {
	if s.Provenance == "" {
		return DefaultProvenance
	}
	return s.Provenance
}
