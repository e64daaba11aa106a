// Package catalog holds the read-only reference tables of the restaurant:
// dishes, side items (drinks and desserts) and delivery districts.
//
// A Catalog is built once at startup and never mutated afterwards, so it can
// be shared by every conversation without locking.
package catalog

import (
	"iter"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a dish or district is not in the catalog.
var ErrNotFound = errors.New("not found in catalog")

// Category groups orderable items for menu rendering.
type Category string

const (
	// CategoryDish is a main course from the menu of the day.
	CategoryDish Category = "dish"
	// CategoryDrink is an optional side drink.
	CategoryDrink Category = "drink"
	// CategoryDessert is an optional side dessert.
	CategoryDessert Category = "dessert"
)

// Dish is an orderable catalog item. Drinks and desserts are dishes with a
// side category.
type Dish struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    Category
}

// District is a delivery district.
type District struct {
	Name string
}

// InvalidEntryError reports a catalog row that cannot be accepted.
type InvalidEntryError struct {
	Name   string
	Reason string
}

func (e *InvalidEntryError) Error() string {
	if e.Name == "" {
		return "invalid catalog entry: " + e.Reason
	}
	return "invalid catalog entry " + e.Name + ": " + e.Reason
}

// Catalog is an immutable set of dishes and districts.
type Catalog struct {
	dishes    []Dish
	districts []District

	dishIndex     map[string]int
	districtIndex map[string]int
}

// New validates the given tables and builds a Catalog. Names must be
// non-empty and unique after normalization, prices must be non-negative
// amounts in whole cents.
// Insertion order is preserved for listing.
func New(dishes []Dish, districts []District) (*Catalog, error) {
	c := &Catalog{
		dishes:        make([]Dish, 0, len(dishes)),
		districts:     make([]District, 0, len(districts)),
		dishIndex:     make(map[string]int, len(dishes)),
		districtIndex: make(map[string]int, len(districts)),
	}

	for _, d := range dishes {
		key := Normalize(d.Name)
		switch {
		case key == "":
			return nil, &InvalidEntryError{Reason: "empty dish name"}
		case d.Price.IsNegative():
			return nil, &InvalidEntryError{Name: d.Name, Reason: "negative price"}
		case !d.Price.Equal(d.Price.Round(2)):
			return nil, &InvalidEntryError{Name: d.Name, Reason: "price has more than 2 decimals"}
		}
		if _, dup := c.dishIndex[key]; dup {
			return nil, &InvalidEntryError{Name: d.Name, Reason: "duplicate dish"}
		}
		if d.Category == "" {
			d.Category = CategoryDish
		}
		c.dishIndex[key] = len(c.dishes)
		c.dishes = append(c.dishes, d)
	}

	for _, d := range districts {
		key := Normalize(d.Name)
		if key == "" {
			return nil, &InvalidEntryError{Reason: "empty district name"}
		}
		if _, dup := c.districtIndex[key]; dup {
			return nil, &InvalidEntryError{Name: d.Name, Reason: "duplicate district"}
		}
		c.districtIndex[key] = len(c.districts)
		c.districts = append(c.districts, d)
	}

	return c, nil
}

// FindDish looks a dish up by name, ignoring case, accents and extra
// whitespace.
func (c *Catalog) FindDish(name string) (Dish, error) {
	i, ok := c.dishIndex[Normalize(name)]
	if !ok {
		return Dish{}, ErrNotFound
	}
	return c.dishes[i], nil
}

// FindDistrict looks a district up by name, ignoring case, accents and extra
// whitespace.
func (c *Catalog) FindDistrict(name string) (District, error) {
	i, ok := c.districtIndex[Normalize(name)]
	if !ok {
		return District{}, ErrNotFound
	}
	return c.districts[i], nil
}

// Dishes yields every orderable item in catalog order.
func (c *Catalog) Dishes() iter.Seq[Dish] {
	return func(yield func(Dish) bool) {
		for _, d := range c.dishes {
			if !yield(d) {
				return
			}
		}
	}
}

// DishesIn yields the items of one category in catalog order.
func (c *Catalog) DishesIn(cat Category) iter.Seq[Dish] {
	return func(yield func(Dish) bool) {
		for _, d := range c.dishes {
			if d.Category != cat {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// Districts yields every delivery district in catalog order.
func (c *Catalog) Districts() iter.Seq[District] {
	return func(yield func(District) bool) {
		for _, d := range c.districts {
			if !yield(d) {
				return
			}
		}
	}
}

// Len reports the number of orderable items.
func (c *Catalog) Len() int { return len(c.dishes) }

// FormatPrice renders an amount in soles with two decimals, e.g. "S/20.00".
func FormatPrice(amount decimal.Decimal) string {
	return "S/" + amount.StringFixed(2)
}
