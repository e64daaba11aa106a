package confirm

import (
	"bufio"
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/sazon-bot/internal/domain/order"
)

var (
	rowRe     = regexp.MustCompile(`^\|\s*([^|*]+?)\s*\|\s*(\d+)\s*\|\s*(S/\s*\d+(?:\.\d+)?)\s*\|$`)
	totalRe   = regexp.MustCompile(`^\|\s*\*\*Total\*\*\s*\|[^|]*\|\s*\*\*(S/\s*\d+(?:\.\d+)?)\*\*\s*\|$`)
	paymentRe = regexp.MustCompile(`(?i)^m[eé]todo de pago:\s*(.+)$`)
	targetRe  = regexp.MustCompile(`(?i)^entrega:\s*(.+)$`)
	timeRe    = regexp.MustCompile(`(?i)^confirmado:\s*(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`)
)

// TextExtractor reads confirmed orders from replies in the receipt format
// produced by RenderReceipt.
type TextExtractor struct {
	asm assembler
}

// NewTextExtractor creates a TextExtractor resolving names against c and
// reading timestamps in loc.
func NewTextExtractor(c order.Catalog, loc *time.Location) *TextExtractor {
	return &TextExtractor{asm: assembler{catalog: c, loc: loc}}
}

// ExtractConfirmed returns the order confirmed by reply or ErrNotConfirmed.
func (e *TextExtractor) ExtractConfirmed(_ context.Context, reply string) (*order.ConfirmedOrder, error) {
	var (
		raw      rawOrder
		hasTotal bool
	)

	sc := bufio.NewScanner(strings.NewReader(reply))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case totalRe.MatchString(line):
			amount, err := parseAmount(totalRe.FindStringSubmatch(line)[1])
			if err != nil {
				return nil, errors.Wrap(ErrNotConfirmed, "total")
			}
			raw.Total, hasTotal = amount, true
		case rowRe.MatchString(line):
			m := rowRe.FindStringSubmatch(line)
			qty, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, errors.Wrapf(ErrNotConfirmed, "quantity %q", m[2])
			}
			amount, err := parseAmount(m[3])
			if err != nil {
				return nil, errors.Wrapf(ErrNotConfirmed, "line total %q", m[3])
			}
			raw.Lines = append(raw.Lines, rawLine{Dish: m[1], Quantity: qty, LineTotal: amount})
		case paymentRe.MatchString(line):
			raw.Payment = paymentRe.FindStringSubmatch(line)[1]
		case targetRe.MatchString(line):
			raw.Target = targetRe.FindStringSubmatch(line)[1]
		case timeRe.MatchString(line):
			raw.Timestamp = timeRe.FindStringSubmatch(line)[1]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "scan reply")
	}
	if !hasTotal {
		return nil, errors.Wrap(ErrNotConfirmed, "no total")
	}

	return e.asm.assemble(raw)
}
