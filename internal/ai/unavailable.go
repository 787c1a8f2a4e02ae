package ai

import (
	"context"
	"errors"
)

// Unavailable is an Evaluator standing in for one that could not be built.
// Every call fails with a non-retryable copy of the construction error, so
// cached scores stay readable while generation reports a configuration problem.
type Unavailable struct {
	ModelName string
	Err       error
}

// Evaluate returns a fresh *Error on every call; callers annotate it in place.
func (u *Unavailable) Evaluate(context.Context, *ScoringContext) (*Evaluation, error) {
	var classified *Error
	if errors.As(u.Err, &classified) {
		e := *classified
		e.Attempt = 0
		e.Retryable = false
		return nil, &e
	}
	return nil, NewError(KindConfiguration, "evaluator", u.Err)
}

func (u *Unavailable) Model() string {
	return u.ModelName
}
