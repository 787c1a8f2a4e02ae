package scoring

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type blockingGenerator struct {
	calls   atomic.Int32
	release chan struct{}
	panics  bool
}

func (g *blockingGenerator) GenerateOrFetch(_ context.Context, _ int64, force bool) (*Result, error) {
	g.calls.Add(1)
	if g.release != nil {
		<-g.release
	}
	if g.panics {
		panic("evaluator exploded")
	}
	status := StatusGenerated
	if force {
		status = StatusRegenerated
	}
	return &Result{Status: status}, nil
}

func TestCoalescerRunsOneGenerationPerApplicant(t *testing.T) {
	gen := &blockingGenerator{release: make(chan struct{})}
	c := NewCoalescer(gen, CoalescerConfig{Workers: 4, QueueSize: 16}, nil)
	require.NoError(t, c.Start(context.Background()))

	const callers = 50
	var (
		wg     sync.WaitGroup
		queued atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Enqueue(42) {
				queued.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), queued.Load())
	assert.True(t, c.InFlight(42))

	close(gen.release)
	require.Eventually(t, func() bool { return !c.InFlight(42) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), gen.calls.Load())

	require.NoError(t, c.Close())
}

func TestCoalescerReleasesAfterCompletion(t *testing.T) {
	gen := &blockingGenerator{}
	c := NewCoalescer(gen, CoalescerConfig{Workers: 1}, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	require.True(t, c.Enqueue(7))
	require.Eventually(t, func() bool { return !c.InFlight(7) }, time.Second, 5*time.Millisecond)

	require.True(t, c.Enqueue(7))
	require.Eventually(t, func() bool { return gen.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestCoalescerReleasesAfterPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	gen := &blockingGenerator{panics: true}
	c := NewCoalescer(gen, CoalescerConfig{Workers: 1}, zap.New(core))
	require.NoError(t, c.Start(context.Background()))

	require.True(t, c.Enqueue(3))
	require.Eventually(t, func() bool { return !c.InFlight(3) }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	entries := logs.FilterMessage("generation panicked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "coalescer", entries[0].LoggerName)
}

func TestCoalescerDropsWhenQueueFull(t *testing.T) {
	c := NewCoalescer(&blockingGenerator{}, CoalescerConfig{Workers: 1, QueueSize: 1}, nil)

	assert.True(t, c.Enqueue(1))
	assert.False(t, c.Enqueue(2))
	assert.False(t, c.InFlight(2))
	assert.Equal(t, 1, c.Pending())

	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Pending())
}

func TestCoalescerRejectsAfterClose(t *testing.T) {
	gen := &blockingGenerator{}
	c := NewCoalescer(gen, CoalescerConfig{}, nil)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.False(t, c.Enqueue(1))
	assert.ErrorIs(t, c.Start(context.Background()), ErrCoalescerClosed)
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestCoalescerCloseWaitsForRunningJob(t *testing.T) {
	gen := &blockingGenerator{release: make(chan struct{})}
	c := NewCoalescer(gen, CoalescerConfig{Workers: 1, QueueSize: 4}, nil)
	require.NoError(t, c.Start(context.Background()))

	require.True(t, c.Enqueue(1))
	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, c.Enqueue(2))

	closed := make(chan struct{})
	go func() {
		_ = c.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("close returned while a generation was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(gen.release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close did not return")
	}

	// The queued job for applicant 2 was discarded, not run.
	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Equal(t, 0, c.Pending())
}
