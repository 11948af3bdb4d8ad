package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"good-food/internal/common/logger"
	"good-food/internal/common/retry"
	"good-food/internal/domain"
	"good-food/internal/idempotency"
	catalog "good-food/internal/microservices/catalog/service"
	stock "good-food/internal/microservices/stock/service"
	"good-food/internal/repository"
	"good-food/internal/repository/memory"
)

const (
	shop     = "f1"
	cheese   = "ing-cheese"
	dough    = "ing-dough"
	pizza    = "dish-pizza" // 2 cheese + 1 dough
	calzone  = "dish-calzone"
	bigPlate = "dish-big" // 7 cheese
)

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Publish(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	store  *memory.Store
	svc    *OrderService
	events *recorder
}

func newFixture(t *testing.T, cheeseQty int64, opts ...Option) *fixture {
	t.Helper()
	s := memory.New(time.Second)
	s.AddFranchise(domain.Franchise{ID: shop, Name: "Downtown"})
	s.AddIngredient(domain.Ingredient{ID: cheese, Name: "cheese", UnitPrice: 150})
	s.AddIngredient(domain.Ingredient{ID: dough, Name: "dough", UnitPrice: 80})
	s.AddDish(domain.Dish{ID: pizza, FranchiseID: shop, Name: "Margherita", BasePrice: 900, Available: true},
		domain.DishIngredient{IngredientID: cheese, QuantityRequired: 2},
		domain.DishIngredient{IngredientID: dough, QuantityRequired: 1})
	s.AddDish(domain.Dish{ID: calzone, FranchiseID: shop, Name: "Calzone", BasePrice: 1100, Available: true},
		domain.DishIngredient{IngredientID: cheese, QuantityRequired: 4})
	s.AddDish(domain.Dish{ID: bigPlate, FranchiseID: shop, Name: "Big plate", BasePrice: 2500, Available: true},
		domain.DishIngredient{IngredientID: cheese, QuantityRequired: 7})
	s.SeedStock(shop, cheese, cheeseQty)
	s.SeedStock(shop, dough, 100)

	rec := &recorder{}
	opts = append([]Option{WithRetry(retry.Policy{Attempts: 3, Initial: time.Millisecond})}, opts...)
	svc := NewOrderService(s, catalog.NewRecipeResolver(), stock.NewLedger(s), rec, logger.Nop(), opts...)
	return &fixture{store: s, svc: svc, events: rec}
}

func (f *fixture) create(t *testing.T, items ...domain.OrderItem) domain.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), NewOrder{UserID: "u1", ShopID: shop, Items: items})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return o
}

func (f *fixture) move(t *testing.T, id string, to domain.OrderStatus) domain.Order {
	t.Helper()
	o, err := f.svc.Transition(context.Background(), id, to, nil, "staff")
	if err != nil {
		t.Fatalf("transition to %s: %v", to, err)
	}
	return o
}

func (f *fixture) qty(t *testing.T, ingredientID string) int64 {
	t.Helper()
	st, err := f.store.GetStock(context.Background(), shop, ingredientID)
	if err != nil {
		t.Fatal(err)
	}
	return st.Quantity
}

func item(dish string, qty int64) domain.OrderItem {
	return domain.OrderItem{ItemID: dish, Quantity: qty, UnitPrice: 1000}
}

func TestConfirmShortfallLeavesDraft(t *testing.T) {
	f := newFixture(t, 5)
	o := f.create(t, item(pizza, 3))

	_, err := f.svc.Transition(context.Background(), o.ID, domain.OrderConfirmed, nil, "staff")
	var ise *domain.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("err = %v, want insufficient stock", err)
	}
	want := []domain.Shortfall{{IngredientID: cheese, Required: 6, Available: 5}}
	if !reflect.DeepEqual(ise.Shortfalls, want) {
		t.Errorf("shortfalls = %+v", ise.Shortfalls)
	}
	if got := f.qty(t, cheese); got != 5 {
		t.Errorf("cheese = %d", got)
	}
	if got := f.qty(t, dough); got != 100 {
		t.Errorf("dough = %d", got)
	}
	stored, _ := f.store.GetOrder(context.Background(), o.ID)
	if stored.Status != domain.OrderDraft {
		t.Errorf("status = %s", stored.Status)
	}
}

func TestConfirmCancelRestoresStock(t *testing.T) {
	f := newFixture(t, 10)
	o1 := f.create(t, item(calzone, 1))  // 4 cheese
	o2 := f.create(t, item(bigPlate, 1)) // 7 cheese

	f.move(t, o1.ID, domain.OrderConfirmed)
	if got := f.qty(t, cheese); got != 6 {
		t.Fatalf("after confirm cheese = %d", got)
	}

	_, err := f.svc.Transition(context.Background(), o2.ID, domain.OrderConfirmed, nil, "staff")
	var ise *domain.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("second confirm err = %v", err)
	}
	if got := f.qty(t, cheese); got != 6 {
		t.Fatalf("after failed confirm cheese = %d", got)
	}

	f.move(t, o1.ID, domain.OrderCanceled)
	if got := f.qty(t, cheese); got != 10 {
		t.Fatalf("after cancel cheese = %d", got)
	}
}

func TestCancelFromPreparationReleases(t *testing.T) {
	f := newFixture(t, 20)
	o := f.create(t, item(pizza, 2), item(calzone, 1))

	confirmed := f.move(t, o.ID, domain.OrderConfirmed)
	if got := f.qty(t, cheese); got != 12 {
		t.Fatalf("cheese = %d", got)
	}
	if want := (domain.Demand{cheese: 8, dough: 2}); !reflect.DeepEqual(confirmed.Reservation, want) {
		t.Errorf("reservation = %v", confirmed.Reservation)
	}
	f.move(t, o.ID, domain.OrderPreparation)
	f.move(t, o.ID, domain.OrderCanceled)
	if f.qty(t, cheese) != 20 || f.qty(t, dough) != 100 {
		t.Fatalf("cheese = %d dough = %d", f.qty(t, cheese), f.qty(t, dough))
	}
}

func TestCancelDraftHasNoStockEffect(t *testing.T) {
	f := newFixture(t, 10)
	o := f.create(t, item(pizza, 1))
	f.move(t, o.ID, domain.OrderCanceled)
	if got := f.qty(t, cheese); got != 10 {
		t.Fatalf("cheese = %d", got)
	}
}

func TestItemsFrozenAfterDraft(t *testing.T) {
	f := newFixture(t, 10)
	o := f.create(t, domain.OrderItem{
		ItemID: pizza, Quantity: 1, UnitPrice: 900,
		SelectedOptions: []domain.SelectedOption{{OptionID: "x", Name: "extra basil", AdditionalPrice: 50}},
	})
	f.move(t, o.ID, domain.OrderConfirmed)
	ctx := context.Background()

	var nm *domain.OrderNotMutableError
	if _, err := f.svc.UpdateItems(ctx, o.ID, []domain.OrderItem{item(pizza, 2)}, nil); !errors.As(err, &nm) {
		t.Fatalf("update err = %v", err)
	}
	if err := f.svc.DeleteOrder(ctx, o.ID, nil); !errors.As(err, &nm) {
		t.Fatalf("delete err = %v", err)
	}

	f.move(t, o.ID, domain.OrderPreparation)
	stored, err := f.store.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(stored.Items, o.Items) {
		t.Errorf("items changed: %+v", stored.Items)
	}
	if stored.Total != 950 {
		t.Errorf("total = %s", stored.Total)
	}
}

func TestReadyToDraftIsInvalid(t *testing.T) {
	f := newFixture(t, 10)
	o := f.create(t, item(pizza, 1))
	for _, to := range []domain.OrderStatus{domain.OrderConfirmed, domain.OrderPreparation, domain.OrderReady} {
		f.move(t, o.ID, to)
	}
	_, err := f.svc.Transition(context.Background(), o.ID, domain.OrderDraft, nil, "staff")
	var ite *domain.InvalidTransitionError
	if !errors.As(err, &ite) || ite.From != "ready" || ite.To != "draft" {
		t.Fatalf("err = %v", err)
	}
}

func TestInvalidTransitions(t *testing.T) {
	f := newFixture(t, 10)
	o := f.create(t, item(pizza, 1))
	ctx := context.Background()

	var ite *domain.InvalidTransitionError
	if _, err := f.svc.Transition(ctx, o.ID, domain.OrderReady, nil, "staff"); !errors.As(err, &ite) {
		t.Errorf("draft -> ready: %v", err)
	}
	var ve *domain.ValidationError
	if _, err := f.svc.Transition(ctx, o.ID, "delivered", nil, "staff"); !errors.As(err, &ve) {
		t.Errorf("unknown status: %v", err)
	}
	var nf *domain.NotFoundError
	if _, err := f.svc.Transition(ctx, "missing", domain.OrderCanceled, nil, "staff"); !errors.As(err, &nf) {
		t.Errorf("missing order: %v", err)
	}
}

func TestConcurrentConfirmOneWinner(t *testing.T) {
	f := newFixture(t, 10)
	a := f.create(t, item(pizza, 3)) // 6 cheese
	b := f.create(t, item(pizza, 3)) // 6 cheese

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.Transition(context.Background(), id, domain.OrderConfirmed, nil, "staff")
		}(i, id)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		var ise *domain.InsufficientStockError
		switch {
		case err == nil:
			wins++
		case errors.As(err, &ise):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d (%v)", wins, errs)
	}
	if got := f.qty(t, cheese); got != 4 {
		t.Fatalf("cheese = %d, want 4", got)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	var ve *domain.ValidationError

	if _, err := f.svc.CreateOrder(ctx, NewOrder{ShopID: shop}); !errors.As(err, &ve) {
		t.Errorf("no items: %v", err)
	}
	if _, err := f.svc.CreateOrder(ctx, NewOrder{ShopID: shop, Items: []domain.OrderItem{item(pizza, 0)}}); !errors.As(err, &ve) || ve.Field != "items[0].quantity" {
		t.Errorf("zero quantity: %v", err)
	}
	if _, err := f.svc.CreateOrder(ctx, NewOrder{Items: []domain.OrderItem{item(pizza, 1)}}); !errors.As(err, &ve) {
		t.Errorf("no shop: %v", err)
	}
	var nf *domain.NotFoundError
	if _, err := f.svc.CreateOrder(ctx, NewOrder{ShopID: "nowhere", Items: []domain.OrderItem{item(pizza, 1)}}); !errors.As(err, &nf) {
		t.Errorf("unknown shop: %v", err)
	}
}

func TestCreateDoesNotCheckStock(t *testing.T) {
	f := newFixture(t, 0)
	o := f.create(t, item(pizza, 50))
	if o.Status != domain.OrderDraft || o.Total != 50000 {
		t.Fatalf("order = %+v", o)
	}
}

func TestUpdateItemsRecomputesTotal(t *testing.T) {
	f := newFixture(t, 10)
	o := f.create(t, item(pizza, 1))
	v := o.Version

	updated, err := f.svc.UpdateItems(context.Background(), o.ID, []domain.OrderItem{item(pizza, 2), item(calzone, 1)}, &v)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Total != 3000 || updated.Version != v+1 || len(updated.Items) != 2 {
		t.Fatalf("updated = %+v", updated)
	}

	var cm *domain.ConcurrentModificationError
	if _, err := f.svc.UpdateItems(context.Background(), o.ID, []domain.OrderItem{item(pizza, 1)}, &v); !errors.As(err, &cm) {
		t.Fatalf("stale version err = %v", err)
	}
}

func TestDeleteDraft(t *testing.T) {
	f := newFixture(t, 10)
	o := f.create(t, item(pizza, 1))
	if err := f.svc.DeleteOrder(context.Background(), o.ID, nil); err != nil {
		t.Fatal(err)
	}
	var nf *domain.NotFoundError
	if _, err := f.store.GetOrder(context.Background(), o.ID); !errors.As(err, &nf) {
		t.Fatalf("err = %v", err)
	}
}

func TestIdempotentCreate(t *testing.T) {
	f := newFixture(t, 10, WithIdempotency(idempotency.NewMemoryGuard(time.Hour)))
	ctx := context.Background()
	req := NewOrder{UserID: "u1", ShopID: shop, Items: []domain.OrderItem{item(pizza, 1)}, IdempotencyKey: "abc"}

	first, err := f.svc.CreateOrder(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.CreateOrder(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("ids differ: %s %s", first.ID, second.ID)
	}
	if got := f.events.types(); len(got) != 1 {
		t.Fatalf("events = %v", got)
	}

	other := req
	other.UserID = "u2"
	third, err := f.svc.CreateOrder(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if third.ID == first.ID || third.UserID != "u2" {
		t.Fatalf("another caller got order %s of %s", third.ID, third.UserID)
	}
}

func TestFailedCreateReleasesKey(t *testing.T) {
	f := newFixture(t, 10, WithIdempotency(idempotency.NewMemoryGuard(time.Hour)))
	ctx := context.Background()
	bad := NewOrder{ShopID: "nowhere", Items: []domain.OrderItem{item(pizza, 1)}, IdempotencyKey: "k"}
	if _, err := f.svc.CreateOrder(ctx, bad); err == nil {
		t.Fatal("expected error")
	}
	good := bad
	good.ShopID = shop
	if _, err := f.svc.CreateOrder(ctx, good); err != nil {
		t.Fatalf("retry with same key: %v", err)
	}
}

func TestEventsAndTimeline(t *testing.T) {
	f := newFixture(t, 10)
	o := f.create(t, item(pizza, 1))
	f.move(t, o.ID, domain.OrderConfirmed)
	f.move(t, o.ID, domain.OrderCanceled)

	want := []string{domain.EventOrderCreated, domain.EventOrderStatusChanged, domain.EventOrderStatusChanged}
	if got := f.events.types(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v", got)
	}
	tl, err := f.store.Timeline(context.Background(), domain.EntityOrder, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	var steps []string
	for _, c := range tl {
		steps = append(steps, c.From+">"+c.To)
	}
	if want := []string{">draft", "draft>confirmed", "confirmed>canceled"}; !reflect.DeepEqual(steps, want) {
		t.Errorf("timeline = %v", steps)
	}
}

type flakyLedger struct {
	stock.LedgerInterface
	failures int
	calls    int
}

func (l *flakyLedger) ReserveTx(ctx context.Context, tx repository.Tx, franchiseID string, d domain.Demand) error {
	l.calls++
	if l.calls <= l.failures {
		return &domain.ReservationTimeoutError{FranchiseID: franchiseID}
	}
	return l.LedgerInterface.ReserveTx(ctx, tx, franchiseID, d)
}

func TestConfirmRetriesLockTimeouts(t *testing.T) {
	f := newFixture(t, 10)
	ledger := &flakyLedger{LedgerInterface: stock.NewLedger(f.store), failures: 2}
	svc := NewOrderService(f.store, catalog.NewRecipeResolver(), ledger, nil, logger.Nop(),
		WithRetry(retry.Policy{Attempts: 3, Initial: time.Millisecond}))
	o := f.create(t, item(pizza, 1))

	if _, err := svc.Transition(context.Background(), o.ID, domain.OrderConfirmed, nil, "staff"); err != nil {
		t.Fatalf("err = %v", err)
	}
	if ledger.calls != 3 || f.qty(t, cheese) != 8 {
		t.Fatalf("calls = %d cheese = %d", ledger.calls, f.qty(t, cheese))
	}

	ledger.calls, ledger.failures = 0, 5
	o2 := f.create(t, item(pizza, 1))
	_, err := svc.Transition(context.Background(), o2.ID, domain.OrderConfirmed, nil, "staff")
	var rte *domain.ReservationTimeoutError
	if !errors.As(err, &rte) || ledger.calls != 3 {
		t.Fatalf("err = %v after %d calls", err, ledger.calls)
	}
}

func TestOversizedOrdersNeverReachStock(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	var ve *domain.ValidationError

	_, err := f.svc.CreateOrder(ctx, NewOrder{UserID: "u1", ShopID: shop, Items: []domain.OrderItem{
		{ItemID: calzone, Quantity: 1 << 62, UnitPrice: 4},
	}})
	if !errors.As(err, &ve) {
		t.Fatalf("huge quantity: %v", err)
	}
	_, err = f.svc.CreateOrder(ctx, NewOrder{UserID: "u1", ShopID: shop, Items: []domain.OrderItem{
		{ItemID: calzone, Quantity: domain.MaxQuantity, UnitPrice: domain.MaxAmount},
	}})
	if !errors.As(err, &ve) {
		t.Fatalf("total past the bound: %v", err)
	}

	const vat = "dish-vat"
	f.store.AddDish(domain.Dish{ID: vat, FranchiseID: shop, Name: "Vat", BasePrice: 100, Available: true},
		domain.DishIngredient{IngredientID: cheese, QuantityRequired: 1 << 50})
	o := f.create(t, item(vat, domain.MaxQuantity))
	if _, err := f.svc.Transition(ctx, o.ID, domain.OrderConfirmed, nil, "staff"); !errors.As(err, &ve) {
		t.Fatalf("confirm: err = %v, want validation error", err)
	}
	got, err := f.store.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.OrderDraft || len(got.Reservation) != 0 {
		t.Fatalf("order = %+v", got)
	}
	if q := f.qty(t, cheese); q != 50 {
		t.Fatalf("cheese = %d, want 50", q)
	}
}
