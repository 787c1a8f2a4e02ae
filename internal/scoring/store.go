// Package scoring generates, caches and backfills applicant fit scores.
package scoring

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/hh-scorer/internal/logger"
	"github.com/spigell/hh-scorer/internal/storage"
)

// Store is the degrading view of a score repository used by the pipeline.
// Persistence failures are logged and never reach the caller.
type Store struct {
	scores storage.ScoreRepository
	logger *zap.Logger
}

// NewStore wraps scores.
func NewStore(scores storage.ScoreRepository, log *zap.Logger) *Store {
	return &Store{scores: scores, logger: logger.Component(log, "store")}
}

// GetLatest returns the newest score of the applicant, or nil when there is
// none or the lookup failed.
func (s *Store) GetLatest(ctx context.Context, applicantID int64) *storage.Score {
	score, err := s.scores.LatestScore(ctx, applicantID)
	if err != nil {
		s.logger.Error("getting latest score", append(logger.ApplicantFields(applicantID, ""), zap.Error(err))...)
		return nil
	}
	return score
}

// Upsert stores score and returns its row id, or 0 when the write failed.
func (s *Store) Upsert(ctx context.Context, score *storage.Score) int64 {
	id, err := s.scores.UpsertScore(ctx, score)
	if err != nil {
		s.logger.Error("upserting score", append(logger.ApplicantFields(score.ApplicantID, score.Version), zap.Error(err))...)
		return 0
	}
	return id
}

// History lists every stored score of the applicant, newest first. Failures yield nil.
func (s *Store) History(ctx context.Context, applicantID int64) []*storage.Score {
	scores, err := s.scores.ScoreHistory(ctx, applicantID)
	if err != nil {
		s.logger.Error("listing score history", append(logger.ApplicantFields(applicantID, ""), zap.Error(err))...)
		return nil
	}
	return scores
}
