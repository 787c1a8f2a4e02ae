package scoring

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spigell/hh-scorer/internal/ai"
	"github.com/spigell/hh-scorer/internal/storage"
	"github.com/spigell/hh-scorer/internal/storage/sqlite"
)

type stubExtractor map[string]string

func (s stubExtractor) Extract(_ context.Context, ref string) string {
	return s[ref]
}

type stubEvaluator struct {
	mu      sync.Mutex
	calls   int
	respond func(call int, sc *ai.ScoringContext) (*ai.Evaluation, error)
}

func (s *stubEvaluator) Evaluate(_ context.Context, sc *ai.ScoringContext) (*ai.Evaluation, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if s.respond == nil {
		return scoreOf(80), nil
	}
	return s.respond(call, sc)
}

func (s *stubEvaluator) Model() string { return "stub-model" }

func (s *stubEvaluator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func floatPtr(v float64) *float64 { return &v }

func scoreOf(overall float64) *ai.Evaluation {
	return &ai.Evaluation{
		OverallScore: floatPtr(overall),
		SkillsFit:    floatPtr(70),
		Strengths:    []string{"Go"},
		Rationale:    "solid",
		Provenance:   ai.ProvenanceStrict,
		Raw:          json.RawMessage(`{"overall_score":80}`),
	}
}

type fixture struct {
	db        *sqlite.Store
	store     *Store
	evaluator *stubEvaluator
	service   *Service
	waits     []time.Duration
}

func newFixture(t *testing.T, maxAttempts int) *fixture {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{db: db, evaluator: &stubEvaluator{}}
	f.store = NewStore(db, nil)
	builder := NewBuilder(db, stubExtractor{"cv-42.txt": "Ten years of Go."}, 0, nil)
	f.service = NewService(f.store, builder, f.evaluator, ServiceConfig{MaxAttempts: maxAttempts}, nil)
	f.service.policy.Wait = func(_ context.Context, d time.Duration) error {
		f.waits = append(f.waits, d)
		return nil
	}
	return f
}

func (f *fixture) addApplicant(t *testing.T, id int64) {
	t.Helper()
	_, err := f.db.CreateApplicant(context.Background(), &storage.Applicant{
		ID:          id,
		Name:        "Applicant",
		AppliedRole: "Backend engineer",
		ResumeRef:   "cv-42.txt",
	})
	require.NoError(t, err)
}
