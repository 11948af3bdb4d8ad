package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"good-food/internal/domain"
	"good-food/internal/repository"
)

// LedgerInterface is the only writer of stock rows. The *Tx variants run
// inside a caller's transaction so a stock effect and the status write that
// caused it commit together.
type LedgerInterface interface {
	ReserveTx(ctx context.Context, tx repository.Tx, franchiseID string, demand domain.Demand) error
	ReleaseTx(ctx context.Context, tx repository.Tx, franchiseID string, demand domain.Demand) error
	ReplenishTx(ctx context.Context, tx repository.Tx, franchiseID string, supply domain.Demand) error

	Reserve(ctx context.Context, franchiseID string, demand domain.Demand) error
	Release(ctx context.Context, franchiseID string, demand domain.Demand) error
	Replenish(ctx context.Context, franchiseID string, supply domain.Demand) error

	UpsertInitial(ctx context.Context, franchiseID, ingredientID string, quantity int64) (domain.Stock, error)
	SetQuantity(ctx context.Context, franchiseID, ingredientID string, quantity int64) (domain.Stock, error)
}

type Ledger struct {
	store  repository.Store
	tracer trace.Tracer
}

func NewLedger(store repository.Store) LedgerInterface {
	return &Ledger{store: store, tracer: otel.Tracer("good-food/stock")}
}

// ReserveTx locks every demanded row in ascending ingredient id order, then
// either decrements all of them or none. The error lists every shortfall.
func (l *Ledger) ReserveTx(ctx context.Context, tx repository.Tx, franchiseID string, demand domain.Demand) error {
	ctx, span := l.tracer.Start(ctx, "stock.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("franchise.id", franchiseID),
		attribute.Int("stock.ingredients", len(demand)),
	)

	ids, err := positiveIDs(demand)
	if err != nil || len(ids) == 0 {
		return err
	}
	available, err := tx.LockStock(ctx, franchiseID, ids)
	if err != nil {
		err = lockError(franchiseID, err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	var shortfalls []domain.Shortfall
	for _, id := range ids {
		if have := available[id]; have < demand[id] {
			shortfalls = append(shortfalls, domain.Shortfall{IngredientID: id, Required: demand[id], Available: have})
		}
	}
	if len(shortfalls) > 0 {
		span.SetAttributes(attribute.Int("stock.shortfalls", len(shortfalls)))
		span.SetStatus(codes.Error, "insufficient stock")
		return &domain.InsufficientStockError{FranchiseID: franchiseID, Shortfalls: shortfalls}
	}

	for _, id := range ids {
		if _, err := tx.AddStock(ctx, franchiseID, id, -demand[id]); err != nil {
			return lockError(franchiseID, err)
		}
	}
	span.SetStatus(codes.Ok, "reserved")
	return nil
}

// ReleaseTx gives back a prior reservation. Calling it twice for the same
// reservation double counts.
func (l *Ledger) ReleaseTx(ctx context.Context, tx repository.Tx, franchiseID string, demand domain.Demand) error {
	ctx, span := l.tracer.Start(ctx, "stock.release")
	defer span.End()
	span.SetAttributes(attribute.String("franchise.id", franchiseID))
	return l.increment(ctx, tx, franchiseID, demand)
}

// ReplenishTx adds supply, creating rows that do not exist yet.
func (l *Ledger) ReplenishTx(ctx context.Context, tx repository.Tx, franchiseID string, supply domain.Demand) error {
	ctx, span := l.tracer.Start(ctx, "stock.replenish")
	defer span.End()
	span.SetAttributes(attribute.String("franchise.id", franchiseID))
	return l.increment(ctx, tx, franchiseID, supply)
}

func (l *Ledger) increment(ctx context.Context, tx repository.Tx, franchiseID string, delta domain.Demand) error {
	ids, err := positiveIDs(delta)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := tx.AddStock(ctx, franchiseID, id, delta[id]); err != nil {
			return lockError(franchiseID, err)
		}
	}
	return nil
}

func (l *Ledger) Reserve(ctx context.Context, franchiseID string, demand domain.Demand) error {
	return l.store.WithTx(ctx, func(tx repository.Tx) error {
		return l.ReserveTx(ctx, tx, franchiseID, demand)
	})
}

func (l *Ledger) Release(ctx context.Context, franchiseID string, demand domain.Demand) error {
	return l.store.WithTx(ctx, func(tx repository.Tx) error {
		return l.ReleaseTx(ctx, tx, franchiseID, demand)
	})
}

func (l *Ledger) Replenish(ctx context.Context, franchiseID string, supply domain.Demand) error {
	return l.store.WithTx(ctx, func(tx repository.Tx) error {
		return l.ReplenishTx(ctx, tx, franchiseID, supply)
	})
}

// UpsertInitial is the administrative set used to open a franchise's stock.
// It does not go through reserve/release accounting.
func (l *Ledger) UpsertInitial(ctx context.Context, franchiseID, ingredientID string, quantity int64) (domain.Stock, error) {
	if err := checkStockQuantity(quantity); err != nil {
		return domain.Stock{}, err
	}
	var out domain.Stock
	err := l.store.WithTx(ctx, func(tx repository.Tx) error {
		ok, err := tx.FranchiseExists(ctx, franchiseID)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.NotFoundError{Entity: domain.EntityFranchise, ID: franchiseID}
		}
		if _, err := tx.GetIngredient(ctx, ingredientID); err != nil {
			return err
		}
		out, err = tx.PutStock(ctx, franchiseID, ingredientID, quantity)
		return lockError(franchiseID, err)
	})
	return out, err
}

// SetQuantity overwrites an existing row.
func (l *Ledger) SetQuantity(ctx context.Context, franchiseID, ingredientID string, quantity int64) (domain.Stock, error) {
	if err := checkStockQuantity(quantity); err != nil {
		return domain.Stock{}, err
	}
	var out domain.Stock
	err := l.store.WithTx(ctx, func(tx repository.Tx) error {
		rows, err := tx.LockStock(ctx, franchiseID, []string{ingredientID})
		if err != nil {
			return lockError(franchiseID, err)
		}
		if _, ok := rows[ingredientID]; !ok {
			return &domain.NotFoundError{Entity: domain.EntityStock, ID: franchiseID + "/" + ingredientID}
		}
		out, err = tx.PutStock(ctx, franchiseID, ingredientID, quantity)
		return lockError(franchiseID, err)
	})
	return out, err
}

// positiveIDs is the sorted lock order of the non-zero entries of d. A
// negative entry is refused rather than skipped.
func positiveIDs(d domain.Demand) ([]string, error) {
	ids := d.SortedIDs()
	out := ids[:0]
	for _, id := range ids {
		switch q := d[id]; {
		case q < 0:
			return nil, &domain.ValidationError{Field: "quantity of " + id, Reason: "must be >= 0"}
		case q > 0:
			out = append(out, id)
		}
	}
	return out, nil
}

func checkStockQuantity(quantity int64) error {
	if quantity < 0 {
		return &domain.ValidationError{Field: "quantity", Reason: "must be >= 0"}
	}
	if quantity > domain.MaxStock {
		return &domain.ValidationError{Field: "quantity", Reason: "exceeds the supported range"}
	}
	return nil
}

func lockError(franchiseID string, err error) error {
	if errors.Is(err, repository.ErrLockTimeout) {
		return &domain.ReservationTimeoutError{FranchiseID: franchiseID}
	}
	return err
}
