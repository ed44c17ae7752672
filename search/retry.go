package search

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	errs "github.com/sweetpotato0/deepresearch/errors"
)

// Attempt is the retry layer's account of one sub-question search: the final
// output plus how much work it took to get there.
type Attempt struct {
	Output   *Output
	Attempts int
	Backoff  time.Duration // total time slept between attempts
}

// ExecuteWithRetry runs Execute up to maxRetries+1 times with exponential
// backoff between attempts (RetryBaseDelay, doubled per retry, no jitter).
// Credential and rate-limit failures are not transient and abort the loop
// immediately. The returned Attempt is populated even on failure.
func (e *Executor) ExecuteWithRetry(ctx context.Context, in Input, maxRetries int) (*Attempt, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	att := &Attempt{}
	op := func() (*Output, error) {
		att.Attempts++
		out, err := e.Execute(ctx, in)
		if err != nil {
			if errs.IsNonRetryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return out, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = e.cfg.RetryBaseDelay
	expo.RandomizationFactor = 0
	expo.Multiplier = 2

	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(maxRetries)+1),
		backoff.WithNotify(func(err error, delay time.Duration) {
			att.Backoff += delay
			e.logger.Warn("search attempt failed, backing off",
				"sub_question_id", in.SubQuestionID,
				"attempt", att.Attempts,
				"backoff", delay,
				"error", err)
		}),
	)
	if err != nil {
		return att, fmt.Errorf("search %s failed after %d attempt(s): %w", in.SubQuestionID, att.Attempts, err)
	}
	att.Output = out
	return att, nil
}
