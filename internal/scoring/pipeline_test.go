package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/hh-scorer/internal/storage"
)

func TestBackfillScoresUnscoredApplicants(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	f.addApplicant(t, 1)
	f.addApplicant(t, 2)
	_, err := f.db.CreateApplicant(ctx, &storage.Applicant{ID: 3, Name: "no documents"})
	require.NoError(t, err)

	coalescer := NewCoalescer(f.service, CoalescerConfig{Workers: 2}, nil)
	require.NoError(t, coalescer.Start(ctx))

	backfill := NewBackfill(f.db, coalescer, BackfillConfig{Pace: -1}, nil)
	assert.Equal(t, 2, backfill.Sweep(ctx))

	require.Eventually(t, func() bool { return coalescer.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, coalescer.Close())

	assert.NotNil(t, f.store.GetLatest(ctx, 1))
	assert.NotNil(t, f.store.GetLatest(ctx, 2))
	assert.Nil(t, f.store.GetLatest(ctx, 3))
	assert.Equal(t, 2, f.evaluator.Calls())

	// A second sweep finds nothing left to do.
	assert.Zero(t, backfill.Sweep(ctx))
	assert.Equal(t, 2, f.evaluator.Calls())
}
