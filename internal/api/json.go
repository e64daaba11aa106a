package api

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/sazon-bot/internal/domain/catalog"
	"github.com/xenking/sazon-bot/internal/domain/order"
	"github.com/xenking/sazon-bot/internal/session"
)

// decodeMessage reads {"text": "..."}. Unknown fields are skipped.
func decodeMessage(body []byte) (string, error) {
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return "", errors.New("body must be a JSON object")
	}

	var (
		text  string
		found bool
	)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "text" {
			return d.Skip()
		}
		if d.Next() != jx.String {
			return errors.New("text must be a string")
		}
		v, err := d.Str()
		if err != nil {
			return err
		}
		text, found = v, true
		return nil
	}); err != nil {
		return "", errors.Wrap(err, "invalid body")
	}
	if !found {
		return "", errors.New("text is required")
	}
	return text, nil
}

func encodeSnapshot(e *jx.Encoder, snap session.Snapshot) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(snap.ID) })
		e.Field("phase", func(e *jx.Encoder) { e.Str(string(snap.Phase)) })
		e.Field("reply", func(e *jx.Encoder) { e.Str(snap.Reply) })
		e.Field("retry", func(e *jx.Encoder) { e.Bool(snap.Retry) })
		if snap.Draft != nil {
			e.Field("draft", func(e *jx.Encoder) { encodeDraft(e, snap.Draft) })
		}
		if snap.Confirmed != nil {
			e.Field("order", func(e *jx.Encoder) { encodeOrder(e, snap.Confirmed) })
		}
	})
}

func encodeDraft(e *jx.Encoder, d *order.Draft) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) { encodeItems(e, d.Items) })
		e.Field("total", func(e *jx.Encoder) { encodeAmount(e, d.Total()) })
		e.Field("delivery", func(e *jx.Encoder) { e.Str(string(d.Delivery)) })
		if d.District != "" {
			e.Field("district", func(e *jx.Encoder) { e.Str(d.District) })
		}
	})
}

func encodeOrder(e *jx.Encoder, o *order.ConfirmedOrder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("items", func(e *jx.Encoder) { encodeItems(e, o.Items) })
		e.Field("total", func(e *jx.Encoder) { encodeAmount(e, o.Total) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(o.PaymentMethod) })
		e.Field("delivery", func(e *jx.Encoder) { e.Str(string(o.Delivery)) })
		if o.Delivery == order.DeliveryHome {
			e.Field("district", func(e *jx.Encoder) { e.Str(o.District) })
		} else {
			e.Field("pickup_location", func(e *jx.Encoder) { e.Str(o.PickupLocation) })
		}
		e.Field("confirmed_at", func(e *jx.Encoder) { e.Str(o.ConfirmedAt.Format(time.RFC3339)) })
	})
}

func encodeItems(e *jx.Encoder, items []order.LineItem) {
	e.Arr(func(e *jx.Encoder) {
		for _, it := range items {
			e.Obj(func(e *jx.Encoder) {
				e.Field("dish", func(e *jx.Encoder) { e.Str(it.DishName) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
				e.Field("unit_price", func(e *jx.Encoder) { encodeAmount(e, it.UnitPrice) })
				e.Field("line_total", func(e *jx.Encoder) { encodeAmount(e, it.LineTotal) })
			})
		}
	})
}

// encodeAmount writes money as a fixed two-decimal string.
func encodeAmount(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.StringFixed(2))
}

func encodeMenu(e *jx.Encoder, c *catalog.Catalog) {
	section := func(cat catalog.Category) func(e *jx.Encoder) {
		return func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for dish := range c.DishesIn(cat) {
					e.Obj(func(e *jx.Encoder) {
						e.Field("name", func(e *jx.Encoder) { e.Str(dish.Name) })
						e.Field("description", func(e *jx.Encoder) { e.Str(dish.Description) })
						e.Field("price", func(e *jx.Encoder) { encodeAmount(e, dish.Price) })
					})
				}
			})
		}
	}

	e.Obj(func(e *jx.Encoder) {
		e.Field("dishes", section(catalog.CategoryDish))
		e.Field("drinks", section(catalog.CategoryDrink))
		e.Field("desserts", section(catalog.CategoryDessert))
		e.Field("districts", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for d := range c.Districts() {
					e.Str(d.Name)
				}
			})
		})
	})
}
