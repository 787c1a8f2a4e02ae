package storage

import (
	"context"
	"errors"
)

// ErrInvalidInput is returned for records missing required fields.
var ErrInvalidInput = errors.New("invalid input")

// ScoreRepository persists versioned scores.
type ScoreRepository interface {
	// LatestScore returns the newest score by creation time, ties broken by
	// the highest id. It returns nil, nil when the applicant has no score.
	LatestScore(ctx context.Context, applicantID int64) (*Score, error)
	// UpsertScore inserts score or, when a row with the same applicant, model
	// and version exists, overwrites its evaluation fields and resets its
	// creation time. It returns the row id and sets score.CreatedAt to the
	// stored creation time.
	UpsertScore(ctx context.Context, score *Score) (int64, error)
	// ScoreHistory lists every score of the applicant, newest first.
	ScoreHistory(ctx context.Context, applicantID int64) ([]*Score, error)
}

// ApplicantRepository reads applicants.
type ApplicantRepository interface {
	// GetApplicant returns nil, nil when the applicant does not exist.
	GetApplicant(ctx context.Context, id int64) (*Applicant, error)
	// ListUnscored returns up to limit ids of applicants that have documents but no score.
	ListUnscored(ctx context.Context, limit int) ([]int64, error)
	// CreateApplicant inserts an applicant and returns its id. A positive
	// applicant.ID is kept, otherwise the backend assigns one.
	CreateApplicant(ctx context.Context, applicant *Applicant) (int64, error)
}

// Store is a complete backend.
type Store interface {
	ScoreRepository
	ApplicantRepository
	Migrate(ctx context.Context) error
	Close() error
}

// Validate checks the fields every backend requires before an upsert.
func (s *Score) Validate() error {
	switch {
	case s == nil:
		return ErrInvalidInput
	case s.ApplicantID <= 0:
		return errors.Join(ErrInvalidInput, errors.New("applicant id is required"))
	case s.Model == "":
		return errors.Join(ErrInvalidInput, errors.New("model is required"))
	case s.Version == "":
		return errors.Join(ErrInvalidInput, errors.New("version is required"))
	}
	return nil
}
