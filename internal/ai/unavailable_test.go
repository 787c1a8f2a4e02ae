package ai

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/hh-scorer/internal/retry"
)

func TestUnavailableAlwaysFailsWithConfigurationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "classified", err: NewError(KindConfiguration, "gemini client", errors.New("gemini api key is required"))},
		{name: "plain", err: errors.New("unknown provider")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &Unavailable{ModelName: "gemini-2.5-pro", Err: tt.err}

			ev, err := u.Evaluate(context.Background(), &ScoringContext{ApplicantID: 1})
			require.Error(t, err)
			assert.Nil(t, ev)
			assert.True(t, IsConfiguration(err))
			assert.False(t, IsRetryable(err))
			assert.Equal(t, "gemini-2.5-pro", u.Model())
		})
	}
}

func TestUnavailableReturnsIndependentErrors(t *testing.T) {
	orig := NewError(KindConfiguration, "gemini client", errors.New("gemini api key is required"))
	u := &Unavailable{ModelName: "gemini-2.5-pro", Err: orig}
	policy := retry.NewPolicy(3, IsRetryable, nil)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = policy.Do(context.Background(), func(ctx context.Context, _ retry.Attempt) error {
				_, err := u.Evaluate(ctx, &ScoringContext{ApplicantID: int64(i)})
				return err
			})
		}()
	}
	wg.Wait()

	seen := make(map[*Error]bool, workers)
	for _, err := range errs {
		var classified *Error
		require.True(t, errors.As(err, &classified))
		assert.Equal(t, 1, classified.Attempt)
		assert.False(t, classified.Retryable)
		assert.False(t, seen[classified], "errors must not be shared between calls")
		seen[classified] = true
		assert.NotSame(t, orig, classified)
	}

	assert.Zero(t, orig.Attempt)
}
