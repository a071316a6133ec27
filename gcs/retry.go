// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gcs

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
)

// RetryConfig bounds a single ExecuteWithRetry call: each attempt gets up
// to PerAttemptTimeout, and the whole sequence of attempts gets up to
// TotalRetryBudget, whichever is hit first aborts with that context's error.
type RetryConfig struct {
	PerAttemptTimeout time.Duration
	TotalRetryBudget  time.Duration
	Initial           time.Duration
	Max               time.Duration
	Multiplier        float64

	// OnRetry, when set, observes each transient failure just before the
	// backoff sleep that precedes the next attempt.
	OnRetry func(err error)
}

// DefaultRetryConfig matches cfg.Default()'s retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		PerAttemptTimeout: 30 * time.Second,
		TotalRetryBudget:  2 * time.Minute,
		Initial:           time.Second,
		Max:               30 * time.Second,
		Multiplier:        2,
	}
}

func newBackoff(cfg RetryConfig) *backoff.Backoff {
	return &backoff.Backoff{
		Min:    cfg.Initial,
		Max:    cfg.Max,
		Factor: cfg.Multiplier,
		Jitter: true,
	}
}

// ExecuteWithRetry runs call, retrying on Transient errors (per
// ShouldRetry) with truncated exponential backoff until it succeeds, a
// non-retryable error is returned, the parent context is done, or the
// total retry budget elapses.
func ExecuteWithRetry[T any](ctx context.Context, cfg RetryConfig, call func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	budgetCtx := ctx
	var cancelBudget context.CancelFunc
	if cfg.TotalRetryBudget > 0 {
		budgetCtx, cancelBudget = context.WithTimeout(ctx, cfg.TotalRetryBudget)
		defer cancelBudget()
	}

	b := newBackoff(cfg)

	for {
		if err := budgetCtx.Err(); err != nil {
			return zero, err
		}

		attemptCtx := budgetCtx
		var cancelAttempt context.CancelFunc
		if cfg.PerAttemptTimeout > 0 {
			attemptCtx, cancelAttempt = context.WithTimeout(budgetCtx, cfg.PerAttemptTimeout)
		}

		result, err := call(attemptCtx)
		attemptErr := attemptCtx.Err()
		if cancelAttempt != nil {
			cancelAttempt()
		}
		if err == nil {
			return result, nil
		}

		if !ShouldRetry(err) {
			if attemptErr != nil && budgetCtx.Err() == nil {
				return zero, attemptErr
			}
			return zero, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(err)
		}

		wait := b.Duration()
		select {
		case <-time.After(wait):
		case <-budgetCtx.Done():
			return zero, budgetCtx.Err()
		}
	}
}
