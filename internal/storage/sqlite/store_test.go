package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/hh-scorer/internal/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store, err := Open(":memory:", WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createApplicant(t *testing.T, store *Store, a *storage.Applicant) int64 {
	t.Helper()
	id, err := store.CreateApplicant(context.Background(), a)
	require.NoError(t, err)
	return id
}

func floatPtr(v float64) *float64 { return &v }

func TestLatestScoreMissing(t *testing.T) {
	store := newTestStore(t)

	score, err := store.LatestScore(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, score)
}

func TestUpsertIsUniquePerModelAndVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := createApplicant(t, store, &storage.Applicant{Name: "Ada", ResumeRef: "ada.txt"})

	score := &storage.Score{
		ApplicantID: id,
		Model:       "gemini-2.5-pro",
		Version:     "v2",
		Overall:     floatPtr(70),
		Strengths:   []string{"Go"},
		Raw:         json.RawMessage(`{"overall_score":70}`),
	}
	first, err := store.UpsertScore(ctx, score)
	require.NoError(t, err)
	require.NotZero(t, first)

	score.Overall = floatPtr(85)
	score.Provenance = "repaired"
	second, err := store.UpsertScore(ctx, score)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	history, err := store.ScoreHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 1)

	latest := history[0]
	assert.Equal(t, 85.0, *latest.Overall)
	assert.Equal(t, "repaired", latest.Provenance)
	assert.Nil(t, latest.Culture)
	assert.Equal(t, []string{"Go"}, latest.Strengths)
	assert.Equal(t, []string{}, latest.RiskFlags)
	assert.JSONEq(t, `{"overall_score":70}`, string(latest.Raw))
}

func TestLatestScorePrefersNewestThenHighestID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := createApplicant(t, store, &storage.Applicant{Name: "Grace", ResumeRef: "grace.txt"})

	for _, version := range []string{"v1", "v2", "v2-rerun-1"} {
		_, err := store.UpsertScore(ctx, &storage.Score{ApplicantID: id, Model: "m", Version: version})
		require.NoError(t, err)
	}

	latest, err := store.LatestScore(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "v2-rerun-1", latest.Version)

	// Re-upserting an older version refreshes its creation time.
	_, err = store.UpsertScore(ctx, &storage.Score{ApplicantID: id, Model: "m", Version: "v1"})
	require.NoError(t, err)

	latest, err = store.LatestScore(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "v1", latest.Version)

	history, err := store.ScoreHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "v1", history[0].Version)
	assert.Equal(t, "v2-rerun-1", history[1].Version)
}

func TestLatestScoreBreaksTimestampTiesByID(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store, err := Open(":memory:", WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	id := createApplicant(t, store, &storage.Applicant{Name: "Tie", ResumeRef: "tie.txt"})

	_, err = store.UpsertScore(ctx, &storage.Score{ApplicantID: id, Model: "m", Version: "a"})
	require.NoError(t, err)
	second, err := store.UpsertScore(ctx, &storage.Score{ApplicantID: id, Model: "m", Version: "b"})
	require.NoError(t, err)

	latest, err := store.LatestScore(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, second, latest.ID)
	assert.True(t, latest.CreatedAt.Equal(fixed))
}

func TestUpsertRejectsInvalidScore(t *testing.T) {
	store := newTestStore(t)

	_, err := store.UpsertScore(context.Background(), &storage.Score{ApplicantID: 1, Model: "m"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))
}

func TestUpsertRequiresExistingApplicant(t *testing.T) {
	store := newTestStore(t)

	_, err := store.UpsertScore(context.Background(), &storage.Score{ApplicantID: 999, Model: "m", Version: "v2"})
	require.Error(t, err)
}

func TestGetApplicant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	missing, err := store.GetApplicant(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, missing)

	id := createApplicant(t, store, &storage.Applicant{
		Name:                 "Linus",
		AppliedRole:          "Kernel engineer",
		Location:             "Portland",
		YearsExperience:      floatPtr(12.5),
		ExpectedCompensation: "negotiable",
		ResumeRef:            "linus.md",
	})

	a, err := store.GetApplicant(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "Kernel engineer", a.AppliedRole)
	require.NotNil(t, a.YearsExperience)
	assert.Equal(t, 12.5, *a.YearsExperience)
	assert.Empty(t, a.CoverLetterRef)

	bare := createApplicant(t, store, &storage.Applicant{Name: "NoYears"})
	a, err = store.GetApplicant(ctx, bare)
	require.NoError(t, err)
	assert.Nil(t, a.YearsExperience)
}

func TestListUnscored(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	withResume := createApplicant(t, store, &storage.Applicant{Name: "a", ResumeRef: "a.txt"})
	createApplicant(t, store, &storage.Applicant{Name: "no materials"})
	withLetter := createApplicant(t, store, &storage.Applicant{Name: "b", CoverLetterRef: "b.txt"})
	scored := createApplicant(t, store, &storage.Applicant{Name: "c", ResumeRef: "c.txt"})

	_, err := store.UpsertScore(ctx, &storage.Score{ApplicantID: scored, Model: "m", Version: "v2"})
	require.NoError(t, err)

	ids, err := store.ListUnscored(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, []int64{withResume, withLetter}, ids)

	ids, err = store.ListUnscored(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{withResume}, ids)

	ids, err = store.ListUnscored(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCreateApplicantKeepsExplicitID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := createApplicant(t, store, &storage.Applicant{ID: 42, Name: "Explicit"})
	assert.Equal(t, int64(42), id)

	next := createApplicant(t, store, &storage.Applicant{Name: "Assigned"})
	assert.Equal(t, int64(43), next)

	_, err := store.CreateApplicant(ctx, &storage.Applicant{ID: 42, Name: "Duplicate"})
	require.Error(t, err)
}

func TestUpsertReportsStoredCreationTime(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := createApplicant(t, store, &storage.Applicant{Name: "Clock", ResumeRef: "clock.txt"})

	score := &storage.Score{ApplicantID: id, Model: "m", Version: "v2"}
	_, err := store.UpsertScore(ctx, score)
	require.NoError(t, err)
	require.False(t, score.CreatedAt.IsZero())

	latest, err := store.LatestScore(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, latest.CreatedAt, score.CreatedAt)

	first := score.CreatedAt
	_, err = store.UpsertScore(ctx, score)
	require.NoError(t, err)
	assert.True(t, score.CreatedAt.After(first))

	latest, err = store.LatestScore(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, latest.CreatedAt, score.CreatedAt)
}
