package domain

// OrderStatus is the lifecycle state of a customer order.
type OrderStatus string

const (
	OrderDraft       OrderStatus = "draft"
	OrderConfirmed   OrderStatus = "confirmed"
	OrderPreparation OrderStatus = "preparation"
	OrderReady       OrderStatus = "ready"
	OrderCanceled    OrderStatus = "canceled"
)

// orderTransitions lists every legal order move. Anything absent is rejected.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderDraft:       {OrderConfirmed, OrderCanceled},
	OrderConfirmed:   {OrderPreparation, OrderCanceled},
	OrderPreparation: {OrderReady, OrderCanceled},
	OrderReady:       nil,
	OrderCanceled:    nil,
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool { return s.Valid() && len(orderTransitions[s]) == 0 }

// HoldsStock reports whether an order in this state owns a stock reservation.
func (s OrderStatus) HoldsStock() bool { return s == OrderConfirmed || s == OrderPreparation }

// CommandStatus is the lifecycle state of a supplier replenishment command.
type CommandStatus string

const (
	CommandDraft      CommandStatus = "draft"
	CommandConfirmed  CommandStatus = "confirmed"
	CommandInProgress CommandStatus = "in_progress"
	CommandDelivered  CommandStatus = "delivered"
	CommandCanceled   CommandStatus = "canceled"
)

var commandTransitions = map[CommandStatus][]CommandStatus{
	CommandDraft:      {CommandConfirmed, CommandCanceled},
	CommandConfirmed:  {CommandInProgress, CommandCanceled},
	CommandInProgress: {CommandDelivered, CommandCanceled},
	CommandDelivered:  nil,
	CommandCanceled:   nil,
}

func (s CommandStatus) Valid() bool {
	_, ok := commandTransitions[s]
	return ok
}

func (s CommandStatus) CanTransitionTo(to CommandStatus) bool {
	for _, next := range commandTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CommandStatus) Terminal() bool { return s.Valid() && len(commandTransitions[s]) == 0 }
