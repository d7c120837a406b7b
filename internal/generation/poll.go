package generation

import (
	"context"
	"time"

	"server/internal/domain"
)

// PollPolicy bounds a repeated status check with a fixed interval and a
// wall-clock budget.
type PollPolicy struct {
	Interval time.Duration
	Budget   time.Duration
	Stage    domain.Stage
}

// PollUntil invokes check at a fixed interval until it reports a terminal
// result, fails, or the wall-clock budget elapses. The deadline is verified
// before each sleep-then-poll cycle, so no check starts after the budget is
// spent. Budget exhaustion yields a TimeoutError, distinct from any error the
// check itself returns.
func PollUntil[T any](ctx context.Context, policy PollPolicy, check func(context.Context) (T, bool, error)) (T, error) {
	var zero T
	interval := policy.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	budget := policy.Budget
	if budget <= 0 {
		budget = 300 * time.Second
	}
	deadline := time.Now().Add(budget)

	for {
		result, done, err := check(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return result, nil
		}
		if !time.Now().Add(interval).Before(deadline) {
			return zero, &domain.TimeoutError{Stage: policy.Stage, Budget: budget}
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(interval):
		}
	}
}
