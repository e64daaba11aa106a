package order

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"
)

// Quantity bounds for a single line item, inclusive.
const (
	MinQuantity = 1
	MaxQuantity = 100
)

// DeliveryMethod is how a confirmed order reaches the customer.
type DeliveryMethod string

const (
	// DeliveryUnset means the customer has not chosen yet.
	DeliveryUnset DeliveryMethod = ""
	// DeliveryPickup means the customer collects the order at the restaurant.
	DeliveryPickup DeliveryMethod = "pickup"
	// DeliveryHome means the order is delivered to a catalog district.
	DeliveryHome DeliveryMethod = "delivery"
)

// Candidate is an unvalidated (dish, quantity) pair as it came out of the
// customer's text.
type Candidate struct {
	DishName string
	Quantity int
}

// LineItem is a validated order line. LineTotal is fixed at validation time
// and never recomputed from the catalog afterwards.
type LineItem struct {
	DishName  string          `json:"dish"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Draft is an order in progress. Lines keep extraction order; repeated
// dishes stay on separate lines.
type Draft struct {
	Items         []LineItem
	Delivery      DeliveryMethod
	District      string
	PaymentMethod string
}

// Add appends validated lines to the draft.
func (d *Draft) Add(items ...LineItem) {
	d.Items = append(d.Items, items...)
}

// Total recomputes the sum of line totals.
func (d *Draft) Total() decimal.Decimal {
	return Total(d.Items)
}

// Empty reports whether the draft has no lines.
func (d *Draft) Empty() bool {
	return d == nil || len(d.Items) == 0
}

// Clone returns a deep copy of the draft.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	c := *d
	c.Items = slices.Clone(d.Items)
	return &c
}

// Total returns the sum of the line totals of items.
func Total(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal)
	}
	return sum
}

// Ledger is the append-only store of confirmed orders.
type Ledger interface {
	Append(ctx context.Context, o *ConfirmedOrder) error
}
