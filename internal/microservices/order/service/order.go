package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"good-food/internal/common/logger"
	"good-food/internal/common/retry"
	"good-food/internal/domain"
	"good-food/internal/events"
	"good-food/internal/idempotency"
	catalog "good-food/internal/microservices/catalog/service"
	stock "good-food/internal/microservices/stock/service"
	"good-food/internal/repository"
)

type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, req NewOrder) (domain.Order, error)
	UpdateItems(ctx context.Context, id string, items []domain.OrderItem, ifVersion *int) (domain.Order, error)
	Transition(ctx context.Context, id string, to domain.OrderStatus, ifVersion *int, actor string) (domain.Order, error)
	DeleteOrder(ctx context.Context, id string, ifVersion *int) error
}

type NewOrder struct {
	UserID         string
	ShopID         string
	Items          []domain.OrderItem
	IdempotencyKey string
}

type OrderService struct {
	store     repository.Store
	recipes   catalog.RecipeResolverInterface
	ledger    stock.LedgerInterface
	publisher events.Publisher
	guard     idempotency.Guard
	lg        *logger.Logger
	tracer    trace.Tracer

	retry retry.Policy
	now   func() time.Time
	newID func() string
}

type Option func(*OrderService)

func WithClock(now func() time.Time) Option    { return func(s *OrderService) { s.now = now } }
func WithIDs(newID func() string) Option         { return func(s *OrderService) { s.newID = newID } }
func WithRetry(p retry.Policy) Option            { return func(s *OrderService) { s.retry = p } }
func WithIdempotency(g idempotency.Guard) Option { return func(s *OrderService) { s.guard = g } }

func NewOrderService(store repository.Store, recipes catalog.RecipeResolverInterface, ledger stock.LedgerInterface,
	publisher events.Publisher, lg *logger.Logger, opts ...Option) *OrderService {
	s := &OrderService{
		store:     store,
		recipes:   recipes,
		ledger:    ledger,
		publisher: publisher,
		lg:        lg,
		tracer:    otel.Tracer("good-food/order"),
		retry:     retry.DefaultPolicy(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.lg == nil {
		s.lg = logger.Nop()
	}
	return s
}

func validateItems(items []domain.OrderItem) error {
	if len(items) == 0 {
		return &domain.ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	for i, it := range items {
		if it.ItemID == "" {
			return &domain.ValidationError{Field: fmt.Sprintf("items[%d].itemId", i), Reason: "is required"}
		}
		if err := domain.CheckQuantity(fmt.Sprintf("items[%d].quantity", i), it.Quantity); err != nil {
			return err
		}
		if it.UnitPrice < 0 || it.UnitPrice > domain.MaxAmount {
			return &domain.ValidationError{Field: fmt.Sprintf("items[%d].unitPrice", i), Reason: "must be between 0 and the supported maximum"}
		}
		for j, opt := range it.SelectedOptions {
			if opt.AdditionalPrice < 0 || opt.AdditionalPrice > domain.MaxAmount {
				return &domain.ValidationError{
					Field:  fmt.Sprintf("items[%d].selectedOptions[%d].additionalPrice", i, j),
					Reason: "must be between 0 and the supported maximum",
				}
			}
		}
	}
	_, err := domain.ComputeTotal(items)
	return err
}

// CreateOrder stores a draft order. It never touches stock.
func (s *OrderService) CreateOrder(ctx context.Context, req NewOrder) (domain.Order, error) {
	if req.ShopID == "" {
		return domain.Order{}, &domain.ValidationError{Field: "shopId", Reason: "is required"}
	}
	if err := validateItems(req.Items); err != nil {
		return domain.Order{}, err
	}
	total, err := domain.ComputeTotal(req.Items)
	if err != nil {
		return domain.Order{}, err
	}

	// Keys are scoped by caller so one user cannot replay another's order.
	key := ""
	if req.IdempotencyKey != "" && s.guard != nil {
		key = req.UserID + ":" + req.IdempotencyKey
	}
	if key != "" {
		prior, fresh, err := s.guard.Claim(ctx, key)
		if err != nil {
			return domain.Order{}, err
		}
		if !fresh {
			if prior == "" {
				return domain.Order{}, &domain.ConcurrentModificationError{Entity: domain.EntityOrder, ID: req.IdempotencyKey}
			}
			return s.store.GetOrder(ctx, prior)
		}
	}

	now := s.now()
	o := domain.Order{
		ID:        s.newID(),
		UserID:    req.UserID,
		ShopID:    req.ShopID,
		Status:    domain.OrderDraft,
		Items:     domain.CloneItems(req.Items),
		Total:     total,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		ok, err := tx.FranchiseExists(ctx, o.ShopID)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.NotFoundError{Entity: domain.EntityFranchise, ID: o.ShopID}
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		return tx.AppendStatusLog(ctx, domain.StatusChange{
			Entity: domain.EntityOrder, EntityID: o.ID, To: string(o.Status), ChangedBy: o.UserID, ChangedAt: now,
		})
	})
	if key != "" {
		s.settleKey(ctx, key, o.ID, err)
	}
	if err != nil {
		return domain.Order{}, err
	}

	s.publish(ctx, events.New(domain.EventOrderCreated, o.ID, domain.NewOrderCreatedMsg(o), now))
	s.lg.Info("order_created", map[string]any{"order_id": o.ID, "shop_id": o.ShopID, "total": o.Total.String()})
	return o, nil
}

func (s *OrderService) settleKey(ctx context.Context, key, orderID string, err error) {
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		if rerr := s.guard.Release(ctx, key); rerr != nil {
			s.lg.Error("idempotency_release_failed", rerr, map[string]any{"key": key})
		}
		return
	}
	if cerr := s.guard.Complete(ctx, key, orderID); cerr != nil {
		s.lg.Error("idempotency_complete_failed", cerr, map[string]any{"key": key, "order_id": orderID})
	}
}

// lockOrder takes the order's record lock inside tx and checks the optional
// version token.
func lockOrder(ctx context.Context, tx repository.Tx, id string, ifVersion *int) (domain.Order, error) {
	o, err := tx.LockOrder(ctx, id)
	if errors.Is(err, repository.ErrLockTimeout) {
		return domain.Order{}, &domain.ConcurrentModificationError{Entity: domain.EntityOrder, ID: id}
	}
	if err != nil {
		return domain.Order{}, err
	}
	if ifVersion != nil && *ifVersion != o.Version {
		return domain.Order{}, &domain.ConcurrentModificationError{Entity: domain.EntityOrder, ID: id}
	}
	return o, nil
}

// UpdateItems replaces the items of a draft order wholesale.
func (s *OrderService) UpdateItems(ctx context.Context, id string, items []domain.OrderItem, ifVersion *int) (domain.Order, error) {
	if err := validateItems(items); err != nil {
		return domain.Order{}, err
	}
	var out domain.Order
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		o, err := lockOrder(ctx, tx, id, ifVersion)
		if err != nil {
			return err
		}
		if o.Status != domain.OrderDraft {
			return &domain.OrderNotMutableError{OrderID: id, Status: o.Status}
		}
		if o.Total, err = domain.ComputeTotal(items); err != nil {
			return err
		}
		o.Items = domain.CloneItems(items)
		o.Version++
		o.UpdatedAt = s.now()
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return out, nil
}

// Transition moves an order along its state table. draft -> confirmed
// reserves the expanded demand in the same transaction as the status write;
// canceling a confirmed or preparing order releases exactly that demand.
func (s *OrderService) Transition(ctx context.Context, id string, to domain.OrderStatus, ifVersion *int, actor string) (domain.Order, error) {
	if !to.Valid() {
		return domain.Order{}, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown order status %q", to)}
	}
	ctx, span := s.tracer.Start(ctx, "order.transition")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id), attribute.String("order.to", string(to)))

	var (
		out  domain.Order
		from domain.OrderStatus
	)
	err := retry.OnLockTimeout(ctx, s.retry, func() error {
		return s.store.WithTx(ctx, func(tx repository.Tx) error {
			o, err := lockOrder(ctx, tx, id, ifVersion)
			if err != nil {
				return err
			}
			from = o.Status
			if !from.CanTransitionTo(to) {
				return &domain.InvalidTransitionError{Entity: domain.EntityOrder, From: string(from), To: string(to)}
			}

			switch {
			case to == domain.OrderConfirmed:
				if len(o.Items) == 0 {
					return &domain.ValidationError{Field: "items", Reason: "order has no items"}
				}
				if o.Total, err = domain.ComputeTotal(o.Items); err != nil {
					return err
				}
				demand, err := s.recipes.Expand(ctx, tx, o.ShopID, o.Items)
				if err != nil {
					return err
				}
				if err := s.ledger.ReserveTx(ctx, tx, o.ShopID, demand); err != nil {
					return err
				}
				o.Reservation = demand
			case to == domain.OrderCanceled && from.HoldsStock():
				if err := s.ledger.ReleaseTx(ctx, tx, o.ShopID, o.Reservation); err != nil {
					return err
				}
			}

			now := s.now()
			o.Status = to
			o.Version++
			o.UpdatedAt = now
			if err := tx.SaveOrder(ctx, o); err != nil {
				return err
			}
			if err := tx.AppendStatusLog(ctx, domain.StatusChange{
				Entity: domain.EntityOrder, EntityID: id, From: string(from), To: string(to), ChangedBy: actor, ChangedAt: now,
			}); err != nil {
				return err
			}
			out = o
			return nil
		})
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Order{}, err
	}
	span.SetStatus(codes.Ok, string(to))

	s.publish(ctx, events.New(domain.EventOrderStatusChanged, id, domain.StatusChangedMsg{
		ID: id, FranchiseID: out.ShopID, OldStatus: string(from), NewStatus: string(to), ChangedBy: actor, Timestamp: out.UpdatedAt,
	}, out.UpdatedAt))
	s.lg.Info("order_status_changed", map[string]any{"order_id": id, "from": from, "to": to, "changed_by": actor})
	return out, nil
}

// DeleteOrder removes a draft order.
func (s *OrderService) DeleteOrder(ctx context.Context, id string, ifVersion *int) error {
	return s.store.WithTx(ctx, func(tx repository.Tx) error {
		o, err := lockOrder(ctx, tx, id, ifVersion)
		if err != nil {
			return err
		}
		if o.Status != domain.OrderDraft {
			return &domain.OrderNotMutableError{OrderID: id, Status: o.Status}
		}
		return tx.DeleteOrder(ctx, id)
	})
}

func (s *OrderService) publish(ctx context.Context, ev domain.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.lg.Error("event_publish_failed", err, map[string]any{"event": ev.Type, "aggregate_id": ev.AggregateID})
	}
}
