package domain

import "time"

const (
	EventOrderCreated         = "order.created"
	EventOrderStatusChanged   = "order.status_changed"
	EventCommandStatusChanged = "command.status_changed"
)

// Event is the envelope published after a transaction commits.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	AggregateID string    `json:"aggregate_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Payload     any       `json:"payload"`
}

type OrderCreatedItemMsg struct {
	OrderID   string `json:"orderId"`
	ItemID    string `json:"itemId"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

type OrderCreatedMsg struct {
	OrderID string                `json:"orderId"`
	ShopID  string                `json:"shopId"`
	UserID  *string               `json:"userId,omitempty"`
	Items   []OrderCreatedItemMsg `json:"items"`
	Total   string                `json:"total"`
}

func NewOrderCreatedMsg(o Order) OrderCreatedMsg {
	msg := OrderCreatedMsg{
		OrderID: o.ID,
		ShopID:  o.ShopID,
		Items:   make([]OrderCreatedItemMsg, 0, len(o.Items)),
		Total:   o.Total.String(),
	}
	if o.UserID != "" {
		uid := o.UserID
		msg.UserID = &uid
	}
	for _, it := range o.Items {
		msg.Items = append(msg.Items, OrderCreatedItemMsg{
			OrderID:   o.ID,
			ItemID:    it.ItemID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.String(),
		})
	}
	return msg
}

type StatusChangedMsg struct {
	ID          string    `json:"id"`
	FranchiseID string    `json:"franchise_id"`
	OldStatus   string    `json:"old_status"`
	NewStatus   string    `json:"new_status"`
	ChangedBy   string    `json:"changed_by"`
	Timestamp   time.Time `json:"timestamp"`
}

// SupplierDeliveryMsg is what supplier systems put on the delivery queue.
type SupplierDeliveryMsg struct {
	CommandID string `json:"command_id"`
	Status    string `json:"status"` // in_progress | delivered
	ChangedBy string `json:"changed_by"`
}
