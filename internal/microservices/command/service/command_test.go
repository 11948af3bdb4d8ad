package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"good-food/internal/common/logger"
	"good-food/internal/common/retry"
	"good-food/internal/domain"
	stock "good-food/internal/microservices/stock/service"
	"good-food/internal/repository/memory"
)

const (
	shop   = "f1"
	flour  = "ing-flour"
	tomato = "ing-tomato"
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

type fixture struct {
	store  *memory.Store
	ledger stock.LedgerInterface
	svc    *CommandService
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New(time.Second)
	s.AddFranchise(domain.Franchise{ID: shop, Name: "Downtown"})
	s.AddIngredient(domain.Ingredient{ID: flour, Name: "flour", UnitPrice: 120})
	s.AddIngredient(domain.Ingredient{ID: tomato, Name: "tomato", UnitPrice: 45})
	s.SeedStock(shop, flour, 10)

	ledger := stock.NewLedger(s)
	rec := &recorder{}
	svc := NewCommandService(s, ledger, rec, logger.Nop(), WithRetry(retry.Policy{Attempts: 3, Initial: time.Millisecond}))
	return &fixture{store: s, ledger: ledger, svc: svc, events: rec}
}

func (f *fixture) create(t *testing.T, items ...domain.CommandItem) domain.Command {
	t.Helper()
	c, err := f.svc.CreateCommand(context.Background(), NewCommand{FranchiseID: shop, UserID: "u1", Items: items})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return c
}

func (f *fixture) move(t *testing.T, id string, to domain.CommandStatus) domain.Command {
	t.Helper()
	c, err := f.svc.Transition(context.Background(), id, to, nil, "supplier")
	if err != nil {
		t.Fatalf("transition to %s: %v", to, err)
	}
	return c
}

func (f *fixture) qty(t *testing.T, ingredientID string) int64 {
	t.Helper()
	st, err := f.store.GetStock(context.Background(), shop, ingredientID)
	if err != nil {
		t.Fatal(err)
	}
	return st.Quantity
}

func TestDeliveryReplenishesDespiteOrderTraffic(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.CommandItem{IngredientID: flour, Quantity: 20})
	f.move(t, c.ID, domain.CommandConfirmed)
	f.move(t, c.ID, domain.CommandInProgress)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := domain.Demand{flour: 1}
			if err := f.ledger.Reserve(ctx, shop, d); err != nil {
				return
			}
			_ = f.ledger.Release(ctx, shop, d)
		}()
	}
	f.move(t, c.ID, domain.CommandDelivered)
	wg.Wait()

	if got := f.qty(t, flour); got != 30 {
		t.Fatalf("flour = %d, want 30", got)
	}
}

func TestDeliveryCreatesMissingStockRow(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.CommandItem{IngredientID: tomato, Quantity: 6})
	for _, to := range []domain.CommandStatus{domain.CommandConfirmed, domain.CommandInProgress, domain.CommandDelivered} {
		f.move(t, c.ID, to)
	}
	if got := f.qty(t, tomato); got != 6 {
		t.Fatalf("tomato = %d, want 6", got)
	}
}

func TestConfirmFreezesEstimatedCost(t *testing.T) {
	f := newFixture(t)
	c := f.create(t,
		domain.CommandItem{IngredientID: flour, Quantity: 3},
		domain.CommandItem{IngredientID: tomato, Quantity: 2})
	if c.EstimatedCost != 0 {
		t.Fatalf("draft cost = %v", c.EstimatedCost)
	}
	c = f.move(t, c.ID, domain.CommandConfirmed)
	if c.EstimatedCost != 3*120+2*45 {
		t.Fatalf("cost = %v", c.EstimatedCost)
	}
	if c.Version != 2 {
		t.Fatalf("version = %d", c.Version)
	}
}

func TestConfirmRequiresItems(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)
	_, err := f.svc.Transition(context.Background(), c.ID, domain.CommandConfirmed, nil, "staff")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestCommandTransitionTable(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.CommandItem{IngredientID: flour, Quantity: 1})

	_, err := f.svc.Transition(context.Background(), c.ID, domain.CommandDelivered, nil, "staff")
	var ite *domain.InvalidTransitionError
	if !errors.As(err, &ite) || ite.From != "draft" || ite.To != "delivered" {
		t.Fatalf("err = %v", err)
	}

	f.move(t, c.ID, domain.CommandConfirmed)
	f.move(t, c.ID, domain.CommandInProgress)
	f.move(t, c.ID, domain.CommandCanceled)
	if _, err := f.svc.Transition(context.Background(), c.ID, domain.CommandDelivered, nil, "staff"); !errors.As(err, &ite) {
		t.Fatalf("delivered after cancel: %v", err)
	}
	if got := f.qty(t, flour); got != 10 {
		t.Fatalf("cancel touched stock: %d", got)
	}
}

func TestRepeatedStatusIsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t, domain.CommandItem{IngredientID: flour, Quantity: 5})

	var ite *domain.InvalidTransitionError
	if _, err := f.svc.Transition(ctx, c.ID, domain.CommandDraft, nil, "staff"); !errors.As(err, &ite) || ite.From != "draft" || ite.To != "draft" {
		t.Fatalf("draft -> draft: %v", err)
	}

	for _, to := range []domain.CommandStatus{domain.CommandConfirmed, domain.CommandInProgress, domain.CommandDelivered} {
		c = f.move(t, c.ID, to)
	}
	_, err := f.svc.Transition(ctx, c.ID, domain.CommandDelivered, nil, "supplier")
	if !errors.As(err, &ite) || ite.From != "delivered" || ite.To != "delivered" {
		t.Fatalf("delivered -> delivered: %v", err)
	}
	if got := f.qty(t, flour); got != 15 {
		t.Fatalf("flour = %d, want 15", got)
	}
	after, err := f.store.GetCommand(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Version != c.Version {
		t.Fatalf("version moved from %d to %d", c.Version, after.Version)
	}
}

func TestQuantitiesAreBounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ve *domain.ValidationError

	_, err := f.svc.CreateCommand(ctx, NewCommand{FranchiseID: shop, Items: []domain.CommandItem{
		{IngredientID: flour, Quantity: domain.MaxQuantity},
		{IngredientID: flour, Quantity: domain.MaxQuantity},
	}})
	if !errors.As(err, &ve) {
		t.Fatalf("merged lines over the bound: %v", err)
	}
	if _, err = f.svc.CreateCommand(ctx, NewCommand{FranchiseID: shop, Items: []domain.CommandItem{
		{IngredientID: flour, Quantity: 1 << 62},
	}}); !errors.As(err, &ve) {
		t.Fatalf("huge line: %v", err)
	}

	c := f.create(t, domain.CommandItem{IngredientID: flour, Quantity: domain.MaxQuantity})
	if _, err = f.svc.AddItem(ctx, c.ID, domain.CommandItem{IngredientID: flour, Quantity: 1}, nil); !errors.As(err, &ve) {
		t.Fatalf("add past the bound: %v", err)
	}
	if _, err = f.svc.UpdateItem(ctx, c.ID, flour, domain.MaxQuantity+1, nil); !errors.As(err, &ve) {
		t.Fatalf("update past the bound: %v", err)
	}
	if got, _ := f.store.GetCommand(ctx, c.ID); got.Items[0].Quantity != domain.MaxQuantity {
		t.Fatalf("items = %+v", got.Items)
	}
}

func TestEstimatedCostOverflowRejectsConfirm(t *testing.T) {
	f := newFixture(t)
	f.store.AddIngredient(domain.Ingredient{ID: "ing-saffron", Name: "saffron", UnitPrice: domain.MaxAmount})
	c := f.create(t, domain.CommandItem{IngredientID: "ing-saffron", Quantity: 2})

	_, err := f.svc.Transition(context.Background(), c.ID, domain.CommandConfirmed, nil, "staff")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if got, _ := f.store.GetCommand(context.Background(), c.ID); got.Status != domain.CommandDraft {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestItemsAreDraftOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.create(t, domain.CommandItem{IngredientID: flour, Quantity: 1})

	c, err := f.svc.AddItem(ctx, c.ID, domain.CommandItem{IngredientID: flour, Quantity: 4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Items) != 1 || c.Items[0].Quantity != 5 {
		t.Fatalf("items = %+v", c.Items)
	}
	if c, err = f.svc.AddItem(ctx, c.ID, domain.CommandItem{IngredientID: tomato, Quantity: 2}, nil); err != nil {
		t.Fatal(err)
	}
	if c, err = f.svc.UpdateItem(ctx, c.ID, tomato, 9, nil); err != nil || c.Items[1].Quantity != 9 {
		t.Fatalf("update item: %v %+v", err, c.Items)
	}
	if c, err = f.svc.RemoveItem(ctx, c.ID, flour, nil); err != nil || len(c.Items) != 1 {
		t.Fatalf("remove item: %v %+v", err, c.Items)
	}
	var nf *domain.NotFoundError
	if _, err = f.svc.RemoveItem(ctx, c.ID, flour, nil); !errors.As(err, &nf) {
		t.Fatalf("remove missing line: %v", err)
	}

	f.move(t, c.ID, domain.CommandConfirmed)
	var nm *domain.CommandNotMutableError
	if _, err = f.svc.AddItem(ctx, c.ID, domain.CommandItem{IngredientID: flour, Quantity: 1}, nil); !errors.As(err, &nm) {
		t.Fatalf("add after confirm: %v", err)
	}
	if _, err = f.svc.ReplaceItems(ctx, c.ID, []domain.CommandItem{{IngredientID: flour, Quantity: 1}}, nil); !errors.As(err, &nm) {
		t.Fatalf("replace after confirm: %v", err)
	}
}

func TestItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ve *domain.ValidationError
	_, err := f.svc.CreateCommand(ctx, NewCommand{FranchiseID: shop, Items: []domain.CommandItem{{IngredientID: flour, Quantity: 0}}})
	if !errors.As(err, &ve) {
		t.Fatalf("zero quantity: %v", err)
	}

	var nf *domain.NotFoundError
	_, err = f.svc.CreateCommand(ctx, NewCommand{FranchiseID: shop, Items: []domain.CommandItem{{IngredientID: "ing-saffron", Quantity: 1}}})
	if !errors.As(err, &nf) || nf.Entity != domain.EntityIngredient {
		t.Fatalf("unknown ingredient: %v", err)
	}

	_, err = f.svc.CreateCommand(ctx, NewCommand{FranchiseID: "nowhere"})
	if !errors.As(err, &nf) || nf.Entity != domain.EntityFranchise {
		t.Fatalf("unknown franchise: %v", err)
	}
}

func TestUpdateFillsAndConfirmsInOneCall(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	status := domain.CommandConfirmed
	user := "u2"
	items := []domain.CommandItem{{IngredientID: tomato, Quantity: 4}}
	version := c.Version
	c, err := f.svc.Update(context.Background(), c.ID, CommandUpdate{Status: &status, UserID: &user, Items: &items}, &version, "staff")
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != domain.CommandConfirmed || c.UserID != "u2" || c.EstimatedCost != 180 {
		t.Fatalf("command = %+v", c)
	}

	_, err = f.svc.Update(context.Background(), c.ID, CommandUpdate{UserID: &user}, &version, "staff")
	var cme *domain.ConcurrentModificationError
	if !errors.As(err, &cme) {
		t.Fatalf("stale version: %v", err)
	}
}

func TestStatusChangePublishesEvent(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.CommandItem{IngredientID: flour, Quantity: 1})
	f.move(t, c.ID, domain.CommandConfirmed)

	user := "u9"
	if _, err := f.svc.Update(context.Background(), c.ID, CommandUpdate{UserID: &user}, nil, "staff"); err != nil {
		t.Fatal(err)
	}

	if len(f.events.events) != 1 {
		t.Fatalf("events = %+v", f.events.events)
	}
	ev := f.events.events[0]
	msg, ok := ev.Payload.(domain.StatusChangedMsg)
	if ev.Type != domain.EventCommandStatusChanged || !ok || msg.OldStatus != "draft" || msg.NewStatus != "confirmed" {
		t.Fatalf("event = %+v", ev)
	}

	timeline, err := f.store.Timeline(context.Background(), domain.EntityCommand, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(timeline) != 2 || timeline[1].From != "draft" || timeline[1].ChangedBy != "supplier" {
		t.Fatalf("timeline = %+v", timeline)
	}
}
