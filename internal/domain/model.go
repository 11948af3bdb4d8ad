package domain

import (
	"sort"
	"time"
)

type Franchise struct {
	ID   string
	Name string
}

type Dish struct {
	ID          string
	FranchiseID string
	Name        string
	BasePrice   Money
	Available   bool
	MenuID      *string
}

// DishIngredient is the consumption of one ingredient per unit of dish sold.
type DishIngredient struct {
	DishID           string
	IngredientID     string
	QuantityRequired int64
}

type Ingredient struct {
	ID         string
	Name       string
	UnitPrice  Money
	SupplierID string
}

// Stock is the ledger row for one (franchise, ingredient) pair.
type Stock struct {
	FranchiseID  string    `json:"franchise_id"`
	IngredientID string    `json:"ingredient_id"`
	Quantity     int64     `json:"quantity"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type SelectedOption struct {
	OptionID        string
	Name            string
	AdditionalPrice Money
}

type OrderItem struct {
	ItemID          string // dish id
	Quantity        int64
	UnitPrice       Money
	SelectedOptions []SelectedOption
}

// LineTotal is (unit price + option surcharges) x quantity. Results beyond
// MaxAmount are a ValidationError.
func (i OrderItem) LineTotal() (Money, error) {
	per := i.UnitPrice
	for _, opt := range i.SelectedOptions {
		var err error
		if per, err = per.CheckedAdd("unitPrice", opt.AdditionalPrice); err != nil {
			return 0, err
		}
	}
	return per.CheckedMul("total", i.Quantity)
}

type Order struct {
	ID          string
	UserID      string
	ShopID      string // franchise id
	Status      OrderStatus
	Total       Money
	Items       []OrderItem
	Reservation Demand // set at draft -> confirmed
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func ComputeTotal(items []OrderItem) (Money, error) {
	var total Money
	for _, it := range items {
		line, err := it.LineTotal()
		if err != nil {
			return 0, err
		}
		if total, err = total.CheckedAdd("total", line); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Clone returns a deep copy so callers never share item slices with a store.
func (o Order) Clone() Order {
	out := o
	out.Items = CloneItems(o.Items)
	out.Reservation = o.Reservation.Clone()
	return out
}

func CloneItems(items []OrderItem) []OrderItem {
	if items == nil {
		return nil
	}
	out := make([]OrderItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.SelectedOptions != nil {
			out[i].SelectedOptions = append([]SelectedOption(nil), it.SelectedOptions...)
		}
	}
	return out
}

type CommandItem struct {
	IngredientID string
	Quantity     int64
}

type Command struct {
	ID            string
	FranchiseID   string
	UserID        string
	Status        CommandStatus
	Items         []CommandItem
	EstimatedCost Money // frozen at draft -> confirmed
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c Command) Clone() Command {
	out := c
	if c.Items != nil {
		out.Items = append([]CommandItem(nil), c.Items...)
	}
	return out
}

// Supply aggregates the command lines per ingredient.
func (c Command) Supply() (Demand, error) {
	d := Demand{}
	for _, it := range c.Items {
		if err := d.Add(it.IngredientID, it.Quantity); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Demand maps ingredient id to a quantity.
type Demand map[string]int64

// Add accumulates qty for ingredientID and refuses sums that overflow.
func (d Demand) Add(ingredientID string, qty int64) error {
	sum, ok := addInt64(d[ingredientID], qty)
	if !ok {
		return outOfRange("quantity of " + ingredientID)
	}
	d[ingredientID] = sum
	return nil
}

// SortedIDs is the fixed global lock order for the ingredients of d.
func (d Demand) SortedIDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d Demand) Clone() Demand {
	if d == nil {
		return nil
	}
	out := make(Demand, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// StatusChange is one row of the status log written with every transition.
type StatusChange struct {
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

const (
	EntityOrder      = "order"
	EntityCommand    = "command"
	EntityDish       = "dish"
	EntityIngredient = "ingredient"
	EntityFranchise  = "franchise"
	EntityStock      = "stock"
	EntityRecipeLine = "dish_ingredient"
)
