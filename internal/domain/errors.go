package domain

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed input rejected before any state is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

type DishUnavailableError struct {
	DishID string
}

func (e *DishUnavailableError) Error() string {
	return fmt.Sprintf("dish %s is not available", e.DishID)
}

type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

type OrderNotMutableError struct {
	OrderID string
	Status  OrderStatus
}

func (e *OrderNotMutableError) Error() string {
	return fmt.Sprintf("order %s is %s; only draft orders can be changed", e.OrderID, e.Status)
}

type CommandNotMutableError struct {
	CommandID string
	Status    CommandStatus
}

func (e *CommandNotMutableError) Error() string {
	return fmt.Sprintf("command %s is %s; only draft commands can be changed", e.CommandID, e.Status)
}

// Shortfall is one ingredient a reservation could not cover.
type Shortfall struct {
	IngredientID string `json:"ingredient_id"`
	Required     int64  `json:"required"`
	Available    int64  `json:"available"`
}

// InsufficientStockError always carries every failing ingredient of the reservation.
type InsufficientStockError struct {
	FranchiseID string
	Shortfalls  []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s (required %d, available %d)", s.IngredientID, s.Required, s.Available))
	}
	return fmt.Sprintf("insufficient stock in franchise %s: %s", e.FranchiseID, strings.Join(parts, ", "))
}

// ReservationTimeoutError means stock row locks could not be acquired in time.
// It is the only engine error worth retrying.
type ReservationTimeoutError struct {
	FranchiseID string
}

func (e *ReservationTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for stock locks in franchise %s", e.FranchiseID)
}

// ConcurrentModificationError is a version or record lock conflict on an order or command.
type ConcurrentModificationError struct {
	Entity string
	ID     string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Entity, e.ID)
}

// ConflictError means the entity to create already exists.
type ConflictError struct {
	Entity string
	ID     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.ID)
}
