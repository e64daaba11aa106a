package csvstore

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/sazon-bot/internal/domain/order"
)

// A ledger record is one CSV line:
//
//	confirmed_at, order_id, n_items, (dish, quantity, line_total) * n_items,
//	total, payment_method, delivery_method, district_or_pickup_location
//
// confirmed_at is RFC 3339 with the zone offset. Amounts are plain decimals.
const (
	headFields = 3
	itemFields = 3
	tailFields = 4
)

// RecordError reports a ledger line that cannot be decoded.
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return "ledger line " + strconv.Itoa(e.Line) + ": " + e.Err.Error()
}

func (e *RecordError) Unwrap() error { return e.Err }

// EncodeRecord renders o as the fields of one ledger record.
func EncodeRecord(o *order.ConfirmedOrder) []string {
	rec := make([]string, 0, headFields+itemFields*len(o.Items)+tailFields)
	rec = append(rec,
		o.ConfirmedAt.Format(time.RFC3339),
		o.ID,
		strconv.Itoa(len(o.Items)),
	)
	for _, item := range o.Items {
		rec = append(rec, item.DishName, strconv.Itoa(item.Quantity), item.LineTotal.String())
	}
	target := o.PickupLocation
	if o.Delivery == order.DeliveryHome {
		target = o.District
	}
	return append(rec, o.Total.String(), o.PaymentMethod, string(o.Delivery), target)
}

// MarshalRecord renders o as one newline-terminated CSV line.
func MarshalRecord(o *order.ConfirmedOrder) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(EncodeRecord(o)); err != nil {
		return nil, errors.Wrap(err, "encode record")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "encode record")
	}
	return buf.Bytes(), nil
}

// DecodeRecord parses the fields of one ledger record.
func DecodeRecord(rec []string) (*order.ConfirmedOrder, error) {
	if len(rec) < headFields+tailFields {
		return nil, errors.Errorf("record has %d fields", len(rec))
	}
	at, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return nil, errors.Wrap(err, "confirmed_at")
	}
	n, err := strconv.Atoi(rec[2])
	if err != nil || n < 0 {
		return nil, errors.Errorf("n_items %q", rec[2])
	}
	if want := headFields + itemFields*n + tailFields; len(rec) != want {
		return nil, errors.Errorf("record has %d fields, want %d", len(rec), want)
	}

	o := &order.ConfirmedOrder{
		ID:          rec[1],
		ConfirmedAt: at,
		Items:       make([]order.LineItem, 0, n),
	}
	for i := range n {
		f := rec[headFields+i*itemFields:]
		qty, err := strconv.Atoi(f[1])
		if err != nil || qty <= 0 {
			return nil, errors.Errorf("item %d: quantity %q", i, f[1])
		}
		lineTotal, err := decimal.NewFromString(f[2])
		if err != nil {
			return nil, errors.Wrapf(err, "item %d: line total", i)
		}
		o.Items = append(o.Items, order.LineItem{
			DishName:  f[0],
			Quantity:  qty,
			UnitPrice: lineTotal.Div(decimal.NewFromInt(int64(qty))),
			LineTotal: lineTotal,
		})
	}

	tail := rec[len(rec)-tailFields:]
	if o.Total, err = decimal.NewFromString(tail[0]); err != nil {
		return nil, errors.Wrap(err, "total")
	}
	o.PaymentMethod = tail[1]
	o.Delivery = order.DeliveryMethod(tail[2])
	switch o.Delivery {
	case order.DeliveryHome:
		o.District = tail[3]
	case order.DeliveryPickup:
		o.PickupLocation = tail[3]
	default:
		return nil, errors.Errorf("delivery method %q", tail[2])
	}
	return o, nil
}

// ReadLedger decodes every record of r in order and calls fn for each.
// Decoding stops at the first malformed line; records that parse as CSV
// but not as orders are reported as *RecordError.
func ReadLedger(r io.Reader, fn func(*order.ConfirmedOrder) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read ledger")
		}
		line, _ := cr.FieldPos(0)
		o, err := DecodeRecord(rec)
		if err != nil {
			return &RecordError{Line: line, Err: err}
		}
		if err := fn(o); err != nil {
			return err
		}
	}
}
