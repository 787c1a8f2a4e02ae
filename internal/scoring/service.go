package scoring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-scorer/internal/ai"
	"github.com/spigell/hh-scorer/internal/logger"
	"github.com/spigell/hh-scorer/internal/retry"
	"github.com/spigell/hh-scorer/internal/storage"
)

// DefaultVersion is the canonical version of non-forced scores.
const DefaultVersion = "v2"

// rerunSeparator joins the canonical version and the rerun timestamp.
const rerunSeparator = "-rerun-"

// ErrNotFound means the applicant does not exist. It is never retried.
var ErrNotFound = errors.New("applicant not found")

// Status tells how GenerateOrFetch produced its score.
type Status string

const (
	// StatusExisting is a cache hit; the evaluator was not called.
	StatusExisting Status = "existing"
	// StatusGenerated is the first score of an applicant.
	StatusGenerated Status = "generated"
	// StatusRegenerated is a forced rerun stored under a fresh version.
	StatusRegenerated Status = "regenerated"
)

// Result is the outcome of GenerateOrFetch.
type Result struct {
	Score  *storage.Score `json:"score"`
	Status Status         `json:"status"`
}

// Generator produces or returns the cached score of an applicant.
type Generator interface {
	GenerateOrFetch(ctx context.Context, applicantID int64, force bool) (*Result, error)
}

// ServiceConfig tunes the orchestrator.
type ServiceConfig struct {
	// Version is the canonical version used when the evaluator reports none.
	Version string
	// MaxAttempts bounds evaluator calls per generation, clamped by retry.ClampAttempts.
	MaxAttempts int
}

// Service checks the cache, builds the context, evaluates with retries and
// persists the result.
type Service struct {
	store     *Store
	builder   ContextBuilder
	evaluator ai.Evaluator
	policy    *retry.Policy
	version   string
	now       func() time.Time
	logger    *zap.Logger
}

var _ Generator = (*Service)(nil)

// NewService wires the orchestrator.
func NewService(store *Store, builder ContextBuilder, evaluator ai.Evaluator, cfg ServiceConfig, log *zap.Logger) *Service {
	log = logger.Component(log, "scoring")

	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = DefaultVersion
	}

	return &Service{
		store:     store,
		builder:   builder,
		evaluator: evaluator,
		policy:    retry.NewPolicy(cfg.MaxAttempts, ai.IsRetryable, log),
		version:   version,
		now:       time.Now,
		logger:    log,
	}
}

// MaxAttempts returns the effective attempt bound.
func (s *Service) MaxAttempts() int {
	return s.policy.MaxAttempts
}

// GenerateOrFetch returns the latest score unless force is set, in which case
// or on a cache miss it evaluates the applicant and stores a new row. Forced
// runs never overwrite the canonical row: they get a version suffixed with the
// current time in milliseconds.
func (s *Service) GenerateOrFetch(ctx context.Context, applicantID int64, force bool) (*Result, error) {
	log := logger.WithFields(s.logger, logger.ApplicantFields(applicantID, "")...)

	if !force {
		if existing := s.store.GetLatest(ctx, applicantID); existing != nil {
			log.Debug("returning existing score", zap.Int64("score_id", existing.ID), zap.String(logger.FieldVersion, existing.Version))
			return &Result{Score: existing, Status: StatusExisting}, nil
		}
	}

	sc, ok := s.builder.Build(ctx, applicantID)
	if !ok {
		return nil, fmt.Errorf("applicant %d: %w", applicantID, ErrNotFound)
	}

	var evaluation *ai.Evaluation
	err := s.policy.Do(ctx, func(ctx context.Context, a retry.Attempt) error {
		log.Debug("evaluating applicant", zap.Int("attempt", a.Number), zap.Int("max_attempts", a.MaxAttempts))

		ev, err := s.evaluator.Evaluate(ctx, sc)
		if err != nil {
			return err
		}
		evaluation = ev
		return nil
	})
	if err != nil {
		log.Error("evaluation failed", zap.Error(err))
		return nil, fmt.Errorf("evaluate applicant %d: %w", applicantID, err)
	}

	score := s.toScore(applicantID, evaluation, force)
	score.ID = s.store.Upsert(ctx, score)
	if score.ID == 0 {
		// Not persisted; report when it was generated instead.
		score.CreatedAt = s.now().UTC()
	}

	status := StatusGenerated
	if force {
		status = StatusRegenerated
	}

	log.Info("stored score",
		zap.Int64("score_id", score.ID),
		zap.String(logger.FieldVersion, score.Version),
		zap.String("status", string(status)),
		zap.String("provenance", score.Provenance),
	)

	return &Result{Score: score, Status: status}, nil
}

func (s *Service) toScore(applicantID int64, ev *ai.Evaluation, force bool) *storage.Score {
	version := strings.TrimSpace(ev.Version)
	if version == "" {
		version = s.version
	}
	if force {
		version += rerunSeparator + strconv.FormatInt(s.now().UnixMilli(), 10)
	}

	model := ev.Model
	if model == "" {
		model = s.evaluator.Model()
	}

	provenance := string(ev.Provenance)
	if provenance == "" {
		provenance = string(ai.ProvenanceStrict)
	}

	return &storage.Score{
		ApplicantID: applicantID,
		Model:       model,
		Version:     version,
		Provenance:  provenance,
		Overall:     ev.OverallScore,
		Experience:  ev.ExperienceFit,
		Skills:      ev.SkillsFit,
		Culture:     ev.CultureFit,
		Location:    ev.LocationFit,
		RiskFlags:   ev.RiskFlags,
		Strengths:   ev.Strengths,
		Recommends:  ev.Recommendations,
		Rationale:   ev.Rationale,
		Raw:         ev.Raw,
	}
}

// IsRerunVersion reports whether version belongs to a forced rerun.
func IsRerunVersion(version string) bool {
	return strings.Contains(version, rerunSeparator)
}
