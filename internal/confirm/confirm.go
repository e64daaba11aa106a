// Package confirm recognizes a fully confirmed order in an assistant reply
// and lifts it into an order.ConfirmedOrder.
//
// Extraction is all-or-nothing: when any of the items, the total, the
// payment method, the delivery target or the confirmation time cannot be
// read as an explicit value, the result is ErrNotConfirmed and no partial
// record is produced.
package confirm

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/sazon-bot/internal/domain/catalog"
	"github.com/xenking/sazon-bot/internal/domain/order"
)

// ErrNotConfirmed is returned when a reply does not carry a complete
// confirmed order.
var ErrNotConfirmed = errors.New("order not confirmed")

// TimestampLayout is the layout of the confirmation time in receipts.
const TimestampLayout = time.DateTime

const pickupPrefix = "recojo en local"

// rawLine and rawOrder hold the literal values read from a reply before they
// are checked against the catalog.
type rawLine struct {
	Dish      string
	Quantity  int
	LineTotal decimal.Decimal
}

type rawOrder struct {
	Lines     []rawLine
	Total     decimal.Decimal
	Payment   string
	Target    string
	Timestamp string
}

// assembler turns a rawOrder into a ConfirmedOrder.
type assembler struct {
	catalog order.Catalog
	loc     *time.Location
}

func (a assembler) assemble(raw rawOrder) (*order.ConfirmedOrder, error) {
	if len(raw.Lines) == 0 {
		return nil, errors.Wrap(ErrNotConfirmed, "no items")
	}

	items := make([]order.LineItem, 0, len(raw.Lines))
	for _, l := range raw.Lines {
		dish, err := a.catalog.FindDish(l.Dish)
		if err != nil {
			return nil, errors.Wrapf(ErrNotConfirmed, "dish %q", l.Dish)
		}
		if l.Quantity < order.MinQuantity || l.Quantity > order.MaxQuantity {
			return nil, errors.Wrapf(ErrNotConfirmed, "quantity %d for %q", l.Quantity, l.Dish)
		}
		if l.LineTotal.IsNegative() {
			return nil, errors.Wrapf(ErrNotConfirmed, "line total for %q", l.Dish)
		}
		items = append(items, order.LineItem{
			DishName:  dish.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.LineTotal.Div(decimal.NewFromInt(int64(l.Quantity))),
			LineTotal: l.LineTotal,
		})
	}

	total := order.Total(items)
	if !total.Equal(raw.Total) {
		return nil, errors.Wrapf(ErrNotConfirmed, "total %s does not match lines %s", raw.Total, total)
	}

	payment := strings.TrimSpace(raw.Payment)
	if payment == "" {
		return nil, errors.Wrap(ErrNotConfirmed, "no payment method")
	}

	at, err := a.parseTime(raw.Timestamp)
	if err != nil {
		return nil, err
	}

	o := &order.ConfirmedOrder{
		Items:         items,
		Total:         total,
		PaymentMethod: payment,
		ConfirmedAt:   at,
	}
	if err := a.setTarget(o, raw.Target); err != nil {
		return nil, err
	}
	return o, nil
}

func (a assembler) setTarget(o *order.ConfirmedOrder, target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return errors.Wrap(ErrNotConfirmed, "no delivery target")
	}

	if norm := catalog.Normalize(target); strings.HasPrefix(norm, pickupPrefix) {
		words := strings.Fields(target)[len(strings.Fields(pickupPrefix)):]
		location := strings.Join(words, " ")
		if location == "" {
			return errors.Wrap(ErrNotConfirmed, "no pickup location")
		}
		o.Delivery = order.DeliveryPickup
		o.PickupLocation = location
		return nil
	}

	district, err := a.catalog.FindDistrict(target)
	if err != nil {
		return errors.Wrapf(ErrNotConfirmed, "district %q", target)
	}
	o.Delivery = order.DeliveryHome
	o.District = district.Name
	return nil
}

func (a assembler) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.Wrap(ErrNotConfirmed, "no confirmation time")
	}
	if t, err := time.ParseInLocation(TimestampLayout, s, a.loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(a.loc), nil
	}
	return time.Time{}, errors.Wrapf(ErrNotConfirmed, "confirmation time %q", s)
}

// parseAmount reads "S/65.00", "S/ 65", "65.5" and the like.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "S/")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, errors.New("empty amount")
	}
	return decimal.NewFromString(s)
}
