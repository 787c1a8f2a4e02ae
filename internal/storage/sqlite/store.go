// Package sqlite implements storage.Store on SQLite through the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/spigell/hh-scorer/internal/storage"
)

const scoreColumns = `id, applicant_id, model, version, provenance, overall_score, experience_fit,
	skills_fit, culture_fit, location_fit, risk_flags, strengths, recommendations, rationale, raw, created_at`

// Store implements storage.Store using SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens the database at dsn and applies Schema. Use ":memory:" for tests.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serialises writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	store := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LatestScore(ctx context.Context, applicantID int64) (*storage.Score, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scoreColumns+` FROM applicant_scores
		 WHERE applicant_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		applicantID,
	)

	score, err := scanScore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest score: %w", err)
	}
	return score, nil
}

func (s *Store) UpsertScore(ctx context.Context, score *storage.Score) (int64, error) {
	if err := score.Validate(); err != nil {
		return 0, err
	}

	riskFlags, err := storage.EncodeList(score.RiskFlags)
	if err != nil {
		return 0, err
	}
	strengths, err := storage.EncodeList(score.Strengths)
	if err != nil {
		return 0, err
	}
	recommendations, err := storage.EncodeList(score.Recommends)
	if err != nil {
		return 0, err
	}

	createdAt := s.now().UnixNano()

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO applicant_scores (applicant_id, model, version, provenance, overall_score,
			experience_fit, skills_fit, culture_fit, location_fit, risk_flags, strengths,
			recommendations, rationale, raw, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (applicant_id, model, version) DO UPDATE SET
			provenance = excluded.provenance,
			overall_score = excluded.overall_score,
			experience_fit = excluded.experience_fit,
			skills_fit = excluded.skills_fit,
			culture_fit = excluded.culture_fit,
			location_fit = excluded.location_fit,
			risk_flags = excluded.risk_flags,
			strengths = excluded.strengths,
			recommendations = excluded.recommendations,
			rationale = excluded.rationale,
			raw = excluded.raw,
			created_at = excluded.created_at
		 RETURNING id`,
		score.ApplicantID, score.Model, score.Version, score.ProvenanceOrDefault(), score.Overall,
		score.Experience, score.Skills, score.Culture, score.Location, string(riskFlags),
		string(strengths), string(recommendations), score.Rationale,
		string(storage.EncodeRaw(score.Raw)), createdAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert score: %w", err)
	}
	score.CreatedAt = time.Unix(0, createdAt).UTC()
	return id, nil
}

func (s *Store) ScoreHistory(ctx context.Context, applicantID int64) ([]*storage.Score, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scoreColumns+` FROM applicant_scores
		 WHERE applicant_id = ?
		 ORDER BY created_at DESC, id DESC`,
		applicantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list score history: %w", err)
	}
	defer rows.Close()

	var scores []*storage.Score
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score history: %w", err)
	}
	return scores, nil
}

func (s *Store) GetApplicant(ctx context.Context, id int64) (*storage.Applicant, error) {
	var (
		a     storage.Applicant
		years sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, applied_role, location, years_experience, expected_compensation,
			resume_ref, cover_letter_ref
		 FROM applicants WHERE id = ?`,
		id,
	).Scan(&a.ID, &a.Name, &a.AppliedRole, &a.Location, &years,
		&a.ExpectedCompensation, &a.ResumeRef, &a.CoverLetterRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get applicant: %w", err)
	}
	a.YearsExperience = nullableFloat(years)
	return &a, nil
}

func (s *Store) ListUnscored(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id FROM applicants a
		 WHERE (a.resume_ref <> '' OR a.cover_letter_ref <> '')
		   AND NOT EXISTS (SELECT 1 FROM applicant_scores s WHERE s.applicant_id = a.id)
		 ORDER BY a.id
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list unscored applicants: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan applicant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unscored applicants: %w", err)
	}
	return ids, nil
}

func (s *Store) CreateApplicant(ctx context.Context, a *storage.Applicant) (int64, error) {
	if a == nil {
		return 0, storage.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO applicants (id, name, applied_role, location, years_experience,
			expected_compensation, resume_ref, cover_letter_ref, created_at)
		 VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.AppliedRole, a.Location, a.YearsExperience, a.ExpectedCompensation,
		a.ResumeRef, a.CoverLetterRef, s.now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("create applicant: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read applicant id: %w", err)
	}
	return id, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScore(row scanner) (*storage.Score, error) {
	var (
		score                                 storage.Score
		overall, experience, skills           sql.NullFloat64
		culture, location                     sql.NullFloat64
		riskFlags, strengths, recommends, raw string
		createdAt                             int64
	)
	err := row.Scan(&score.ID, &score.ApplicantID, &score.Model, &score.Version, &score.Provenance,
		&overall, &experience, &skills, &culture, &location,
		&riskFlags, &strengths, &recommends, &score.Rationale, &raw, &createdAt)
	if err != nil {
		return nil, err
	}

	score.Overall = nullableFloat(overall)
	score.Experience = nullableFloat(experience)
	score.Skills = nullableFloat(skills)
	score.Culture = nullableFloat(culture)
	score.Location = nullableFloat(location)
	score.CreatedAt = time.Unix(0, createdAt).UTC()

	if score.RiskFlags, err = storage.DecodeList([]byte(riskFlags)); err != nil {
		return nil, err
	}
	if score.Strengths, err = storage.DecodeList([]byte(strengths)); err != nil {
		return nil, err
	}
	if score.Recommends, err = storage.DecodeList([]byte(recommends)); err != nil {
		return nil, err
	}
	score.Raw = []byte(raw)
	return &score, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
