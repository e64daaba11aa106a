package confirm

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/sazon-bot/internal/domain/catalog"
	"github.com/xenking/sazon-bot/internal/domain/order"
)

// JSONSource asks a generation service to restate a reply as order JSON.
type JSONSource interface {
	ExtractOrderJSON(ctx context.Context, reply string) (string, error)
}

// ModelExtractor recognizes confirmed orders through a generation service.
//
// The service answers with a JSON object with the keys "Platos", "Total",
// "metodo de pago", "lugar_entrega" and "timestamp_confirmacion". An empty
// object, a null or empty field, a list, a scalar or invalid JSON all mean
// the order is not confirmed.
type ModelExtractor struct {
	source JSONSource
	asm    assembler
}

// NewModelExtractor creates a ModelExtractor.
func NewModelExtractor(src JSONSource, c order.Catalog, loc *time.Location) *ModelExtractor {
	return &ModelExtractor{source: src, asm: assembler{catalog: c, loc: loc}}
}

// ExtractConfirmed returns the order confirmed by reply or ErrNotConfirmed.
// Failures of the generation service are returned as they are.
func (e *ModelExtractor) ExtractConfirmed(ctx context.Context, reply string) (*order.ConfirmedOrder, error) {
	out, err := e.source.ExtractOrderJSON(ctx, reply)
	if err != nil {
		return nil, err
	}
	raw, err := decodeOrderJSON(stripFences(out))
	if err != nil {
		return nil, err
	}
	return e.asm.assemble(raw)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func fieldKey(key string) string {
	return catalog.Normalize(strings.ReplaceAll(key, "_", " "))
}

func decodeOrderJSON(s string) (rawOrder, error) {
	var (
		raw  rawOrder
		seen = map[string]bool{}
	)

	if !jx.Valid([]byte(s)) {
		return raw, errors.Wrap(ErrNotConfirmed, "invalid JSON")
	}
	d := jx.DecodeStr(s)
	if d.Next() != jx.Object {
		return raw, errors.Wrap(ErrNotConfirmed, "not an object")
	}

	err := d.Obj(func(d *jx.Decoder, key string) error {
		k := fieldKey(key)
		if d.Next() == jx.Null {
			return errors.Wrapf(ErrNotConfirmed, "%s is null", key)
		}
		var err error
		switch k {
		case "platos":
			raw.Lines, err = decodeLines(d)
		case "total":
			raw.Total, err = decodeAmount(d)
		case "metodo de pago":
			raw.Payment, err = d.Str()
		case "lugar entrega":
			raw.Target, err = d.Str()
		case "timestamp confirmacion":
			raw.Timestamp, err = d.Str()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(ErrNotConfirmed, "%s: %v", key, err)
		}
		seen[k] = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotConfirmed) {
			return raw, err
		}
		return raw, errors.Wrapf(ErrNotConfirmed, "decode: %v", err)
	}

	for _, k := range []string{"platos", "total", "metodo de pago", "lugar entrega", "timestamp confirmacion"} {
		if !seen[k] {
			return raw, errors.Wrapf(ErrNotConfirmed, "missing %s", k)
		}
	}
	return raw, nil
}

func decodeLines(d *jx.Decoder) ([]rawLine, error) {
	if d.Next() != jx.Array {
		return nil, errors.New("not a list")
	}
	var lines []rawLine
	err := d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.Object {
			return errors.New("item is not an object")
		}
		var (
			l                      rawLine
			hasDish, hasQty, hasLT bool
		)
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch fieldKey(key) {
			case "plato", "nombre":
				l.Dish, err = d.Str()
				hasDish = err == nil && strings.TrimSpace(l.Dish) != ""
			case "cantidad":
				l.Quantity, err = decodeInt(d)
				hasQty = err == nil
			case "precio total":
				l.LineTotal, err = decodeAmount(d)
				hasLT = err == nil
			default:
				return d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		if !hasDish || !hasQty || !hasLT {
			return errors.New("incomplete item")
		}
		lines = append(lines, l)
		return nil
	})
	return lines, err
}

func decodeAmount(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return parseAmount(s)
	default:
		return decimal.Decimal{}, errors.New("not an amount")
	}
}

func decodeInt(d *jx.Decoder) (int, error) {
	switch d.Next() {
	case jx.Number:
		return d.Int()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		return strconv.Atoi(strings.TrimSpace(s))
	default:
		return 0, errors.New("not an integer")
	}
}
