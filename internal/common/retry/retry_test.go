package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"good-food/internal/domain"
)

func TestRetriesOnlyTimeouts(t *testing.T) {
	p := Policy{Attempts: 3, Initial: time.Millisecond}

	calls := 0
	err := OnLockTimeout(context.Background(), p, func() error {
		calls++
		return &domain.ReservationTimeoutError{FranchiseID: "f1"}
	})
	var rte *domain.ReservationTimeoutError
	if !errors.As(err, &rte) || calls != 3 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}

	calls = 0
	err = OnLockTimeout(context.Background(), p, func() error {
		calls++
		return &domain.InsufficientStockError{FranchiseID: "f1"}
	})
	var ise *domain.InsufficientStockError
	if !errors.As(err, &ise) || calls != 1 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}

	calls = 0
	err = OnLockTimeout(context.Background(), p, func() error {
		calls++
		if calls < 2 {
			return &domain.ReservationTimeoutError{FranchiseID: "f1"}
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}
}

func TestConnect(t *testing.T) {
	down := errors.New("connection refused")

	calls := 0
	err := Connect(context.Background(), 4, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return down
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}

	calls = 0
	err = Connect(context.Background(), 4, time.Millisecond, func() error { calls++; return down })
	if !errors.Is(err, down) || calls != 4 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = 0
	err = Connect(ctx, 4, time.Hour, func() error { calls++; return down })
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("err = %v after %d calls", err, calls)
	}
}
