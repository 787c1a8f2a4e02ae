// Package postgres implements storage.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/hh-scorer/internal/storage"
)

const scoreColumns = `id, applicant_id, model, version, provenance, overall_score, experience_fit,
	skills_fit, culture_fit, location_fit, risk_flags, strengths, recommendations, rationale, raw, created_at`

// Store wraps a PostgreSQL connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// Connect establishes a connection pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) LatestScore(ctx context.Context, applicantID int64) (*storage.Score, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+scoreColumns+` FROM applicant_scores
		 WHERE applicant_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		applicantID,
	)

	score, err := scanScore(row)
	if errors.Is(err, pgx.ErrNoRows) {
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

	riskFlags, strengths, recommendations, err := encodeLists(score)
	if err != nil {
		return 0, err
	}

	var (
		id        int64
		createdAt time.Time
	)
	err = s.pool.QueryRow(ctx,
		`INSERT INTO applicant_scores (applicant_id, model, version, provenance, overall_score,
			experience_fit, skills_fit, culture_fit, location_fit, risk_flags, strengths,
			recommendations, rationale, raw)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (applicant_id, model, version) DO UPDATE SET
			provenance = EXCLUDED.provenance,
			overall_score = EXCLUDED.overall_score,
			experience_fit = EXCLUDED.experience_fit,
			skills_fit = EXCLUDED.skills_fit,
			culture_fit = EXCLUDED.culture_fit,
			location_fit = EXCLUDED.location_fit,
			risk_flags = EXCLUDED.risk_flags,
			strengths = EXCLUDED.strengths,
			recommendations = EXCLUDED.recommendations,
			rationale = EXCLUDED.rationale,
			raw = EXCLUDED.raw,
			created_at = NOW()
		 RETURNING id, created_at`,
		score.ApplicantID, score.Model, score.Version, score.ProvenanceOrDefault(), score.Overall,
		score.Experience, score.Skills, score.Culture, score.Location, riskFlags, strengths,
		recommendations, score.Rationale, storage.EncodeRaw(score.Raw),
	).Scan(&id, &createdAt)
	if err != nil {
		return 0, fmt.Errorf("upsert score: %w", err)
	}
	score.CreatedAt = createdAt
	return id, nil
}

func (s *Store) ScoreHistory(ctx context.Context, applicantID int64) ([]*storage.Score, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+scoreColumns+` FROM applicant_scores
		 WHERE applicant_id = $1
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
	var a storage.Applicant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, applied_role, location, years_experience, expected_compensation,
			resume_ref, cover_letter_ref
		 FROM applicants WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Name, &a.AppliedRole, &a.Location, &a.YearsExperience,
		&a.ExpectedCompensation, &a.ResumeRef, &a.CoverLetterRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get applicant: %w", err)
	}
	return &a, nil
}

func (s *Store) ListUnscored(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT a.id FROM applicants a
		 WHERE (a.resume_ref <> '' OR a.cover_letter_ref <> '')
		   AND NOT EXISTS (SELECT 1 FROM applicant_scores s WHERE s.applicant_id = a.id)
		 ORDER BY a.id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list unscored applicants: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect unscored applicants: %w", err)
	}
	return ids, nil
}

func (s *Store) CreateApplicant(ctx context.Context, a *storage.Applicant) (int64, error) {
	if a == nil {
		return 0, storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO applicants (id, name, applied_role, location, years_experience,
			expected_compensation, resume_ref, cover_letter_ref)
		 VALUES (COALESCE(NULLIF($1::BIGINT, 0), nextval(pg_get_serial_sequence('applicants', 'id'))),
			$2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		a.ID, a.Name, a.AppliedRole, a.Location, a.YearsExperience, a.ExpectedCompensation,
		a.ResumeRef, a.CoverLetterRef,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create applicant: %w", err)
	}

	if a.ID > 0 {
		// Explicit ids bypass the sequence; move it past them.
		_, err = tx.Exec(ctx,
			`SELECT setval(pg_get_serial_sequence('applicants', 'id'), (SELECT MAX(id) FROM applicants))`)
		if err != nil {
			return 0, fmt.Errorf("advance applicant sequence: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit applicant: %w", err)
	}
	return id, nil
}

func scanScore(row pgx.Row) (*storage.Score, error) {
	var (
		score                                storage.Score
		riskFlags, strengths, recommendation []byte
		raw                                  []byte
	)
	err := row.Scan(&score.ID, &score.ApplicantID, &score.Model, &score.Version, &score.Provenance,
		&score.Overall, &score.Experience, &score.Skills, &score.Culture, &score.Location,
		&riskFlags, &strengths, &recommendation, &score.Rationale, &raw, &score.CreatedAt)
	if err != nil {
		return nil, err
	}

	if score.RiskFlags, err = storage.DecodeList(riskFlags); err != nil {
		return nil, err
	}
	if score.Strengths, err = storage.DecodeList(strengths); err != nil {
		return nil, err
	}
	if score.Recommends, err = storage.DecodeList(recommendation); err != nil {
		return nil, err
	}
	score.Raw = raw
	return &score, nil
}

func encodeLists(score *storage.Score) (riskFlags, strengths, recommendations []byte, err error) {
	if riskFlags, err = storage.EncodeList(score.RiskFlags); err != nil {
		return nil, nil, nil, err
	}
	if strengths, err = storage.EncodeList(score.Strengths); err != nil {
		return nil, nil, nil, err
	}
	if recommendations, err = storage.EncodeList(score.Recommends); err != nil {
		return nil, nil, nil, err
	}
	return riskFlags, strengths, recommendations, nil
}
