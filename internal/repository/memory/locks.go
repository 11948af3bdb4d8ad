package memory

import (
	"context"
	"time"

	"good-food/internal/repository"
)

// rowLock is an exclusive lock with a bounded wait.
type rowLock struct {
	ch chan struct{}
}

func newRowLock() *rowLock { return &rowLock{ch: make(chan struct{}, 1)} }

func (l *rowLock) acquire(ctx context.Context, timeout time.Duration) error {
	select {
	case l.ch <- struct{}{}:
		return nil
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-t.C:
		return repository.ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *rowLock) release() { <-l.ch }
