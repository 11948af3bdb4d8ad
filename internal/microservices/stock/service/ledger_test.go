package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"good-food/internal/domain"
	"good-food/internal/repository"
	"good-food/internal/repository/memory"
)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New(time.Second)
	s.AddFranchise(domain.Franchise{ID: "f1", Name: "Central"})
	for _, id := range []string{"a", "b", "c"} {
		s.AddIngredient(domain.Ingredient{ID: id, Name: id, UnitPrice: 100})
	}
	return s
}

func quantity(t *testing.T, s repository.Store, ingredientID string) int64 {
	t.Helper()
	st, err := s.GetStock(context.Background(), "f1", ingredientID)
	if err != nil {
		t.Fatalf("get stock %s: %v", ingredientID, err)
	}
	return st.Quantity
}

func TestReserveCollectsEveryShortfall(t *testing.T) {
	s := newStore(t)
	s.SeedStock("f1", "a", 5)
	s.SeedStock("f1", "b", 10)
	l := NewLedger(s)

	err := l.Reserve(context.Background(), "f1", domain.Demand{"a": 6, "b": 3, "c": 1})
	var ise *domain.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("err = %v, want insufficient stock", err)
	}
	want := []domain.Shortfall{
		{IngredientID: "a", Required: 6, Available: 5},
		{IngredientID: "c", Required: 1, Available: 0},
	}
	if len(ise.Shortfalls) != len(want) {
		t.Fatalf("shortfalls = %+v", ise.Shortfalls)
	}
	for i := range want {
		if ise.Shortfalls[i] != want[i] {
			t.Errorf("shortfall[%d] = %+v, want %+v", i, ise.Shortfalls[i], want[i])
		}
	}
	if got := quantity(t, s, "a"); got != 5 {
		t.Errorf("a = %d after failed reserve", got)
	}
	if got := quantity(t, s, "b"); got != 10 {
		t.Errorf("b = %d after failed reserve", got)
	}
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	s := newStore(t)
	s.SeedStock("f1", "a", 10)
	s.SeedStock("f1", "b", 7)
	l := NewLedger(s)
	ctx := context.Background()
	d := domain.Demand{"a": 4, "b": 7}

	if err := l.Reserve(ctx, "f1", d); err != nil {
		t.Fatal(err)
	}
	if quantity(t, s, "a") != 6 || quantity(t, s, "b") != 0 {
		t.Fatalf("after reserve a=%d b=%d", quantity(t, s, "a"), quantity(t, s, "b"))
	}
	if err := l.Release(ctx, "f1", d); err != nil {
		t.Fatal(err)
	}
	if quantity(t, s, "a") != 10 || quantity(t, s, "b") != 7 {
		t.Fatalf("after release a=%d b=%d", quantity(t, s, "a"), quantity(t, s, "b"))
	}
}

func TestReplenishCreatesAbsentRow(t *testing.T) {
	s := newStore(t)
	s.SeedStock("f1", "a", 1)
	l := NewLedger(s)
	if err := l.Replenish(context.Background(), "f1", domain.Demand{"a": 2, "c": 20}); err != nil {
		t.Fatal(err)
	}
	if got := quantity(t, s, "a"); got != 3 {
		t.Errorf("a = %d", got)
	}
	if got := quantity(t, s, "c"); got != 20 {
		t.Errorf("c = %d", got)
	}
}

func TestEmptyDemandIsNoop(t *testing.T) {
	l := NewLedger(newStore(t))
	if err := l.Reserve(context.Background(), "f1", domain.Demand{}); err != nil {
		t.Fatal(err)
	}
}

func TestNegativeDemandIsRefused(t *testing.T) {
	s := newStore(t)
	s.SeedStock("f1", "a", 5)
	l := NewLedger(s)
	ctx := context.Background()

	var ve *domain.ValidationError
	if err := l.Reserve(ctx, "f1", domain.Demand{"a": 1, "b": -3}); !errors.As(err, &ve) {
		t.Fatalf("reserve: err = %v, want validation error", err)
	}
	if err := l.Replenish(ctx, "f1", domain.Demand{"a": -1}); !errors.As(err, &ve) {
		t.Fatalf("replenish: err = %v, want validation error", err)
	}
	if got := quantity(t, s, "a"); got != 5 {
		t.Fatalf("a = %d", got)
	}
}

func TestConcurrentReservationsNeverOverdraw(t *testing.T) {
	s := newStore(t)
	s.SeedStock("f1", "a", 10)
	s.SeedStock("f1", "b", 10)
	l := NewLedger(s)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Alternate key order in the demand; the ledger sorts before locking.
			d := domain.Demand{"a": 3, "b": 2}
			if i%2 == 1 {
				d = domain.Demand{"b": 2, "a": 3}
			}
			err := l.Reserve(context.Background(), "f1", d)
			var ise *domain.InsufficientStockError
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
			case errors.As(err, &ise):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("succeeded = %d, want 3", succeeded)
	}
	if a, b := quantity(t, s, "a"), quantity(t, s, "b"); a != 1 || b != 4 {
		t.Fatalf("a=%d b=%d, want 1 and 4", a, b)
	}
}

func TestReserveLockTimeout(t *testing.T) {
	s := memory.New(30 * time.Millisecond)
	s.SeedStock("f1", "a", 10)
	l := NewLedger(s)

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.WithTx(context.Background(), func(tx repository.Tx) error {
			if _, err := tx.LockStock(context.Background(), "f1", []string{"a"}); err != nil {
				return err
			}
			close(held)
			<-done
			return nil
		})
	}()
	<-held
	defer close(done)

	err := l.Reserve(context.Background(), "f1", domain.Demand{"a": 1})
	var rte *domain.ReservationTimeoutError
	if !errors.As(err, &rte) {
		t.Fatalf("err = %v, want reservation timeout", err)
	}
}

func TestUpsertInitial(t *testing.T) {
	s := newStore(t)
	l := NewLedger(s)
	ctx := context.Background()

	st, err := l.UpsertInitial(ctx, "f1", "a", 12)
	if err != nil {
		t.Fatal(err)
	}
	if st.Quantity != 12 || quantity(t, s, "a") != 12 {
		t.Fatalf("stock = %+v", st)
	}

	var nf *domain.NotFoundError
	if _, err := l.UpsertInitial(ctx, "nope", "a", 1); !errors.As(err, &nf) || nf.Entity != domain.EntityFranchise {
		t.Errorf("unknown franchise: %v", err)
	}
	if _, err := l.UpsertInitial(ctx, "f1", "zzz", 1); !errors.As(err, &nf) || nf.Entity != domain.EntityIngredient {
		t.Errorf("unknown ingredient: %v", err)
	}
	var ve *domain.ValidationError
	if _, err := l.UpsertInitial(ctx, "f1", "a", -1); !errors.As(err, &ve) {
		t.Errorf("negative quantity: %v", err)
	}
	if _, err := l.UpsertInitial(ctx, "f1", "a", domain.MaxStock+1); !errors.As(err, &ve) {
		t.Errorf("oversized quantity: %v", err)
	}
}

func TestSetQuantityRequiresRow(t *testing.T) {
	s := newStore(t)
	s.SeedStock("f1", "a", 3)
	l := NewLedger(s)
	ctx := context.Background()

	if _, err := l.SetQuantity(ctx, "f1", "a", 9); err != nil {
		t.Fatal(err)
	}
	if got := quantity(t, s, "a"); got != 9 {
		t.Errorf("a = %d", got)
	}
	var nf *domain.NotFoundError
	if _, err := l.SetQuantity(ctx, "f1", "b", 1); !errors.As(err, &nf) {
		t.Errorf("missing row: %v", err)
	}
}
