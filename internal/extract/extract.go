// Package extract turns a customer utterance into (dish, quantity) pairs.
//
// The utterance is normalized (lower case, no accents, single spaces) and
// scanned for integer quantities. Each quantity opens a segment that runs to
// the next quantity; the segment is "<qty> [unit] [de] <dish> [filler]".
// The dish is the longest leading run of words naming a catalog item and
// whatever follows it must be connector or filler words. One bad segment
// voids the whole extraction.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/sazon-bot/internal/domain/catalog"
	"github.com/xenking/sazon-bot/internal/domain/order"
)

// ErrNoItems is returned when the utterance holds no (quantity, dish) pair.
var ErrNoItems = errors.New("no items found")

// MalformedQuantityError reports a numeric token that is not a positive
// base-10 integer.
type MalformedQuantityError struct {
	Token string
}

func (e *MalformedQuantityError) Error() string {
	return fmt.Sprintf("malformed quantity %q", e.Token)
}

// DishFinder resolves dish names against the catalog.
type DishFinder interface {
	FindDish(name string) (catalog.Dish, error)
}

var (
	// quantityRe matches numeric tokens, including signed and decimal forms
	// so they can be rejected rather than half-read.
	quantityRe = regexp.MustCompile(`(?:^|[^\w-])(-?\d+(?:[.,]\d+)*)`)
	// punctRe matches characters that only separate words.
	punctRe = regexp.MustCompile(`[,;:.!?¡¿()"'/]+`)
)

var unitWords = map[string]bool{
	"plato": true, "platos": true,
	"porcion": true, "porciones": true,
	"unidad": true, "unidades": true,
	"orden": true, "ordenes": true,
	"vaso": true, "vasos": true,
	"x": true,
}

var fillerWords = map[string]bool{
	"y": true, "e": true, "mas": true, "tambien": true, "ademas": true,
	"por": true, "favor": true, "porfa": true, "porfavor": true,
	"gracias": true, "please": true, "nada": true,
}

// Extractor parses utterances against a catalog.
type Extractor struct {
	dishes DishFinder
}

// New creates an Extractor resolving dishes with d.
func New(d DishFinder) *Extractor {
	return &Extractor{dishes: d}
}

// Extract returns the (dish, quantity) pairs found in text, in order.
//
// Errors: ErrNoItems, *MalformedQuantityError (zero, signed or decimal
// quantities), *order.QuantityOutOfRangeError (above order.MaxQuantity) and
// *order.DishNotFoundError (a segment naming nothing on the menu).
func (e *Extractor) Extract(text string) ([]order.Candidate, error) {
	norm := catalog.Normalize(text)
	if norm == "" {
		return nil, ErrNoItems
	}

	matches := quantityRe.FindAllStringSubmatchIndex(norm, -1)
	if len(matches) == 0 {
		return nil, ErrNoItems
	}

	candidates := make([]order.Candidate, 0, len(matches))
	for i, m := range matches {
		token := norm[m[2]:m[3]]
		end := len(norm)
		if i+1 < len(matches) {
			end = matches[i+1][2]
		}
		words := strings.Fields(punctRe.ReplaceAllString(norm[m[3]:end], " "))

		name, ok, err := e.resolve(words)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNoItems
		}

		qty, err := parseQuantity(token, name)
		if err != nil {
			return nil, err
		}

		candidates = append(candidates, order.Candidate{DishName: name, Quantity: qty})
	}

	return candidates, nil
}

// resolve finds the dish named by a segment. ok is false when the segment
// carries no words at all.
func (e *Extractor) resolve(words []string) (string, bool, error) {
	for len(words) > 0 && unitWords[words[0]] {
		words = words[1:]
	}
	if len(words) > 0 && (words[0] == "de" || words[0] == "del") {
		words = words[1:]
	}
	words = trimFiller(words)
	if len(words) == 0 {
		return "", false, nil
	}

	for n := len(words); n > 0; n-- {
		name := strings.Join(words[:n], " ")
		_, err := e.dishes.FindDish(name)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", false, errors.Wrap(err, "find dish")
		}
		if !allFiller(words[n:]) {
			break
		}
		return name, true, nil
	}

	return "", false, &order.DishNotFoundError{Name: strings.Join(words, " ")}
}

func parseQuantity(token, dish string) (int, error) {
	if strings.ContainsAny(token, ".,") || strings.HasPrefix(token, "-") {
		return 0, &MalformedQuantityError{Token: token}
	}
	qty, err := strconv.Atoi(token)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, outOfRange(dish, order.MaxQuantity+1)
		}
		return 0, &MalformedQuantityError{Token: token}
	}
	switch {
	case qty == 0:
		return 0, &MalformedQuantityError{Token: token}
	case qty > order.MaxQuantity:
		return 0, outOfRange(dish, qty)
	}
	return qty, nil
}

func outOfRange(dish string, qty int) error {
	return &order.QuantityOutOfRangeError{
		Name:     dish,
		Quantity: qty,
		Min:      order.MinQuantity,
		Max:      order.MaxQuantity,
	}
}

func trimFiller(words []string) []string {
	for len(words) > 0 && fillerWords[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return words
}

func allFiller(words []string) bool {
	for _, w := range words {
		if !fillerWords[w] {
			return false
		}
	}
	return true
}
