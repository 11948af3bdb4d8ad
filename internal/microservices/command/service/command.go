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
	stock "good-food/internal/microservices/stock/service"
	"good-food/internal/repository"
)

type CommandServiceInterface interface {
	CreateCommand(ctx context.Context, req NewCommand) (domain.Command, error)
	AddItem(ctx context.Context, id string, item domain.CommandItem, ifVersion *int) (domain.Command, error)
	UpdateItem(ctx context.Context, id, ingredientID string, quantity int64, ifVersion *int) (domain.Command, error)
	RemoveItem(ctx context.Context, id, ingredientID string, ifVersion *int) (domain.Command, error)
	ReplaceItems(ctx context.Context, id string, items []domain.CommandItem, ifVersion *int) (domain.Command, error)
	Transition(ctx context.Context, id string, to domain.CommandStatus, ifVersion *int, actor string) (domain.Command, error)
	Update(ctx context.Context, id string, upd CommandUpdate, ifVersion *int, actor string) (domain.Command, error)
}

type NewCommand struct {
	FranchiseID string
	UserID      string
	Items       []domain.CommandItem
}

// CommandUpdate is a PUT body: nil fields are left alone. Items are applied
// before Status so one request can fill a draft and confirm it.
type CommandUpdate struct {
	Status *domain.CommandStatus
	UserID *string
	Items  *[]domain.CommandItem
}

type CommandService struct {
	store     repository.Store
	ledger    stock.LedgerInterface
	publisher events.Publisher
	lg        *logger.Logger
	tracer    trace.Tracer

	retry retry.Policy
	now   func() time.Time
	newID func() string
}

type Option func(*CommandService)

func WithClock(now func() time.Time) Option { return func(s *CommandService) { s.now = now } }
func WithIDs(newID func() string) Option      { return func(s *CommandService) { s.newID = newID } }
func WithRetry(p retry.Policy) Option         { return func(s *CommandService) { s.retry = p } }

func NewCommandService(store repository.Store, ledger stock.LedgerInterface, publisher events.Publisher, lg *logger.Logger, opts ...Option) *CommandService {
	s := &CommandService{
		store:     store,
		ledger:    ledger,
		publisher: publisher,
		lg:        lg,
		tracer:    otel.Tracer("good-food/command"),
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

// normalizeItems checks quantities and folds repeated ingredients into one
// line, keeping first-seen order. A merged line is bounded like any other.
func normalizeItems(items []domain.CommandItem) ([]domain.CommandItem, error) {
	out := make([]domain.CommandItem, 0, len(items))
	index := make(map[string]int, len(items))
	for i, it := range items {
		if it.IngredientID == "" {
			return nil, &domain.ValidationError{Field: fmt.Sprintf("items[%d].ingredient_id", i), Reason: "is required"}
		}
		field := fmt.Sprintf("items[%d].quantity", i)
		if err := domain.CheckQuantity(field, it.Quantity); err != nil {
			return nil, err
		}
		if j, ok := index[it.IngredientID]; ok {
			if err := domain.CheckQuantity(field, out[j].Quantity+it.Quantity); err != nil {
				return nil, err
			}
			out[j].Quantity += it.Quantity
			continue
		}
		index[it.IngredientID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

func checkIngredients(ctx context.Context, tx repository.Tx, items []domain.CommandItem) error {
	for _, it := range items {
		if _, err := tx.GetIngredient(ctx, it.IngredientID); err != nil {
			return err
		}
	}
	return nil
}

func (s *CommandService) CreateCommand(ctx context.Context, req NewCommand) (domain.Command, error) {
	if req.FranchiseID == "" {
		return domain.Command{}, &domain.ValidationError{Field: "franchise_id", Reason: "is required"}
	}
	items, err := normalizeItems(req.Items)
	if err != nil {
		return domain.Command{}, err
	}

	now := s.now()
	c := domain.Command{
		ID:          s.newID(),
		FranchiseID: req.FranchiseID,
		UserID:      req.UserID,
		Status:      domain.CommandDraft,
		Items:       items,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		ok, err := tx.FranchiseExists(ctx, c.FranchiseID)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.NotFoundError{Entity: domain.EntityFranchise, ID: c.FranchiseID}
		}
		if err := checkIngredients(ctx, tx, c.Items); err != nil {
			return err
		}
		if err := tx.InsertCommand(ctx, c); err != nil {
			return err
		}
		return tx.AppendStatusLog(ctx, domain.StatusChange{
			Entity: domain.EntityCommand, EntityID: c.ID, To: string(c.Status), ChangedBy: c.UserID, ChangedAt: now,
		})
	})
	if err != nil {
		return domain.Command{}, err
	}
	s.lg.Info("command_created", map[string]any{"command_id": c.ID, "franchise_id": c.FranchiseID, "lines": len(c.Items)})
	return c, nil
}

func lockCommand(ctx context.Context, tx repository.Tx, id string, ifVersion *int) (domain.Command, error) {
	c, err := tx.LockCommand(ctx, id)
	if errors.Is(err, repository.ErrLockTimeout) {
		return domain.Command{}, &domain.ConcurrentModificationError{Entity: domain.EntityCommand, ID: id}
	}
	if err != nil {
		return domain.Command{}, err
	}
	if ifVersion != nil && *ifVersion != c.Version {
		return domain.Command{}, &domain.ConcurrentModificationError{Entity: domain.EntityCommand, ID: id}
	}
	return c, nil
}

// editDraft runs fn against a locked draft command and saves the result.
func (s *CommandService) editDraft(ctx context.Context, id string, ifVersion *int, fn func(tx repository.Tx, c *domain.Command) error) (domain.Command, error) {
	var out domain.Command
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		c, err := lockCommand(ctx, tx, id, ifVersion)
		if err != nil {
			return err
		}
		if c.Status != domain.CommandDraft {
			return &domain.CommandNotMutableError{CommandID: id, Status: c.Status}
		}
		if err := fn(tx, &c); err != nil {
			return err
		}
		c.Version++
		c.UpdatedAt = s.now()
		if err := tx.SaveCommand(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return domain.Command{}, err
	}
	return out, nil
}

// AddItem adds quantity to the ingredient's line, creating the line if needed.
func (s *CommandService) AddItem(ctx context.Context, id string, item domain.CommandItem, ifVersion *int) (domain.Command, error) {
	if _, err := normalizeItems([]domain.CommandItem{item}); err != nil {
		return domain.Command{}, err
	}
	return s.editDraft(ctx, id, ifVersion, func(tx repository.Tx, c *domain.Command) error {
		if _, err := tx.GetIngredient(ctx, item.IngredientID); err != nil {
			return err
		}
		items, err := normalizeItems(append(c.Items, item))
		if err != nil {
			return err
		}
		c.Items = items
		return nil
	})
}

func (s *CommandService) UpdateItem(ctx context.Context, id, ingredientID string, quantity int64, ifVersion *int) (domain.Command, error) {
	if err := domain.CheckQuantity("quantity", quantity); err != nil {
		return domain.Command{}, err
	}
	return s.editDraft(ctx, id, ifVersion, func(_ repository.Tx, c *domain.Command) error {
		for i := range c.Items {
			if c.Items[i].IngredientID == ingredientID {
				c.Items[i].Quantity = quantity
				return nil
			}
		}
		return &domain.NotFoundError{Entity: "command item", ID: ingredientID}
	})
}

func (s *CommandService) RemoveItem(ctx context.Context, id, ingredientID string, ifVersion *int) (domain.Command, error) {
	return s.editDraft(ctx, id, ifVersion, func(_ repository.Tx, c *domain.Command) error {
		for i := range c.Items {
			if c.Items[i].IngredientID == ingredientID {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				return nil
			}
		}
		return &domain.NotFoundError{Entity: "command item", ID: ingredientID}
	})
}

func (s *CommandService) ReplaceItems(ctx context.Context, id string, items []domain.CommandItem, ifVersion *int) (domain.Command, error) {
	items, err := normalizeItems(items)
	if err != nil {
		return domain.Command{}, err
	}
	return s.editDraft(ctx, id, ifVersion, func(tx repository.Tx, c *domain.Command) error {
		if err := checkIngredients(ctx, tx, items); err != nil {
			return err
		}
		c.Items = items
		return nil
	})
}

// applyTransition moves c to `to` inside tx. Confirmation freezes the
// estimated cost; delivery replenishes the franchise's stock with the lines.
func (s *CommandService) applyTransition(ctx context.Context, tx repository.Tx, c *domain.Command, to domain.CommandStatus, actor string) error {
	from := c.Status
	if !from.CanTransitionTo(to) {
		return &domain.InvalidTransitionError{Entity: domain.EntityCommand, From: string(from), To: string(to)}
	}
	switch to {
	case domain.CommandConfirmed:
		if len(c.Items) == 0 {
			return &domain.ValidationError{Field: "items", Reason: "command has no items"}
		}
		var cost domain.Money
		for _, it := range c.Items {
			ing, err := tx.GetIngredient(ctx, it.IngredientID)
			if err != nil {
				return err
			}
			line, err := ing.UnitPrice.CheckedMul("estimated_cost", it.Quantity)
			if err != nil {
				return err
			}
			if cost, err = cost.CheckedAdd("estimated_cost", line); err != nil {
				return err
			}
		}
		c.EstimatedCost = cost
	case domain.CommandDelivered:
		supply, err := c.Supply()
		if err != nil {
			return err
		}
		if err := s.ledger.ReplenishTx(ctx, tx, c.FranchiseID, supply); err != nil {
			return err
		}
	}
	now := s.now()
	c.Status = to
	c.UpdatedAt = now
	return tx.AppendStatusLog(ctx, domain.StatusChange{
		Entity: domain.EntityCommand, EntityID: c.ID, From: string(from), To: string(to), ChangedBy: actor, ChangedAt: now,
	})
}

func (s *CommandService) Transition(ctx context.Context, id string, to domain.CommandStatus, ifVersion *int, actor string) (domain.Command, error) {
	return s.Update(ctx, id, CommandUpdate{Status: &to}, ifVersion, actor)
}

// Update applies items, user and status in one transaction. A status in the
// request is always a transition: repeating the current status is rejected.
func (s *CommandService) Update(ctx context.Context, id string, upd CommandUpdate, ifVersion *int, actor string) (domain.Command, error) {
	var items []domain.CommandItem
	if upd.Items != nil {
		var err error
		if items, err = normalizeItems(*upd.Items); err != nil {
			return domain.Command{}, err
		}
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return domain.Command{}, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown command status %q", *upd.Status)}
	}

	ctx, span := s.tracer.Start(ctx, "command.update")
	defer span.End()
	span.SetAttributes(attribute.String("command.id", id))
	if upd.Status != nil {
		span.SetAttributes(attribute.String("command.to", string(*upd.Status)))
	}

	var (
		out     domain.Command
		from    domain.CommandStatus
		changed bool
	)
	err := retry.OnLockTimeout(ctx, s.retry, func() error {
		return s.store.WithTx(ctx, func(tx repository.Tx) error {
			c, err := lockCommand(ctx, tx, id, ifVersion)
			if err != nil {
				return err
			}
			from, changed = c.Status, false
			if upd.Items != nil {
				if c.Status != domain.CommandDraft {
					return &domain.CommandNotMutableError{CommandID: id, Status: c.Status}
				}
				if err := checkIngredients(ctx, tx, items); err != nil {
					return err
				}
				c.Items = items
			}
			if upd.UserID != nil {
				c.UserID = *upd.UserID
			}
			if upd.Status != nil {
				if err := s.applyTransition(ctx, tx, &c, *upd.Status, actor); err != nil {
					return err
				}
				changed = true
			}
			c.Version++
			if !changed {
				c.UpdatedAt = s.now()
			}
			if err := tx.SaveCommand(ctx, c); err != nil {
				return err
			}
			out = c
			return nil
		})
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Command{}, err
	}
	span.SetStatus(codes.Ok, string(out.Status))

	if changed {
		ev := events.New(domain.EventCommandStatusChanged, id, domain.StatusChangedMsg{
			ID: id, FranchiseID: out.FranchiseID, OldStatus: string(from), NewStatus: string(out.Status),
			ChangedBy: actor, Timestamp: out.UpdatedAt,
		}, out.UpdatedAt)
		if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
			s.lg.Error("event_publish_failed", err, map[string]any{"event": ev.Type, "aggregate_id": id})
		}
		s.lg.Info("command_status_changed", map[string]any{"command_id": id, "from": from, "to": out.Status, "changed_by": actor})
	}
	return out, nil
}
