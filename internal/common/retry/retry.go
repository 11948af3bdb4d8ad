// Package retry re-runs a transaction that lost a stock lock race, and
// redials infrastructure that is not up yet.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"good-food/internal/domain"
)

type Policy struct {
	Attempts int
	Initial  time.Duration
}

func DefaultPolicy() Policy { return Policy{Attempts: 3, Initial: 50 * time.Millisecond} }

// OnLockTimeout calls op until it succeeds, fails with anything other than a
// ReservationTimeoutError, or p.Attempts calls have been made. The last
// error is returned unwrapped.
func OnLockTimeout(ctx context.Context, p Policy, op func() error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Initial
	exp.MaxInterval = 20 * p.Initial
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.Attempts-1)), ctx)
	return backoff.Retry(func() error {
		err := op()
		var timeout *domain.ReservationTimeoutError
		if err == nil || errors.As(err, &timeout) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
}

// Connect calls dial until it succeeds, attempts calls have been made or ctx
// is done, waiting delay between calls. It returns the last dial error, or
// the context error when ctx ended the wait.
func Connect(ctx context.Context, attempts int, delay time.Duration, dial func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)), ctx)
	return backoff.Retry(dial, b)
}
