package order

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ConfirmedOrder is a finalized order accepted for fulfillment. It is built
// once by Confirm and never mutated afterwards.
type ConfirmedOrder struct {
	ID             string
	Items          []LineItem
	Total          decimal.Decimal
	PaymentMethod  string
	Delivery       DeliveryMethod
	District       string
	PickupLocation string
	ConfirmedAt    time.Time
}

// DeliveryTarget describes where the order goes: the district name for
// delivery orders, or the pickup location.
func (o *ConfirmedOrder) DeliveryTarget() string {
	if o.Delivery == DeliveryHome {
		return o.District
	}
	return "Recojo en local " + o.PickupLocation
}

// Confirm freezes a complete draft into a ConfirmedOrder. The total is
// recomputed from the line totals.
func Confirm(d *Draft, id, pickupLocation string, at time.Time) (*ConfirmedOrder, error) {
	if d.Empty() {
		return nil, ErrEmptyItems
	}
	payment := strings.TrimSpace(d.PaymentMethod)
	if payment == "" {
		return nil, &IncompleteError{Field: "payment method"}
	}
	switch d.Delivery {
	case DeliveryPickup:
	case DeliveryHome:
		if d.District == "" {
			return nil, &IncompleteError{Field: "district"}
		}
	default:
		return nil, &IncompleteError{Field: "delivery method"}
	}

	o := &ConfirmedOrder{
		ID:            id,
		Items:         slices.Clone(d.Items),
		Total:         Total(d.Items),
		PaymentMethod: payment,
		Delivery:      d.Delivery,
		ConfirmedAt:   at,
	}
	if d.Delivery == DeliveryHome {
		o.District = d.District
	} else {
		o.PickupLocation = pickupLocation
	}
	return o, nil
}

// SameContent reports whether two confirmed orders carry the same lines,
// totals, payment and delivery target, ignoring ID.
func SameContent(a, b *ConfirmedOrder) bool {
	if a == nil || b == nil {
		return false
	}
	if !a.Total.Equal(b.Total) ||
		a.PaymentMethod != b.PaymentMethod ||
		a.Delivery != b.Delivery ||
		a.DeliveryTarget() != b.DeliveryTarget() ||
		!a.ConfirmedAt.Equal(b.ConfirmedAt) {
		return false
	}
	return slices.EqualFunc(a.Items, b.Items, func(x, y LineItem) bool {
		return x.DishName == y.DishName &&
			x.Quantity == y.Quantity &&
			x.LineTotal.Equal(y.LineTotal)
	})
}
