package order

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/sazon-bot/internal/domain/catalog"
)

// Catalog is the subset of the reference catalog the validator needs.
type Catalog interface {
	FindDish(name string) (catalog.Dish, error)
	FindDistrict(name string) (catalog.District, error)
}

// Validator checks candidates against the catalog and prices them.
type Validator struct {
	catalog Catalog
}

// NewValidator creates a Validator backed by the given catalog.
func NewValidator(c Catalog) *Validator {
	return &Validator{catalog: c}
}

// Validate resolves every candidate to a catalog dish, enforces the quantity
// bounds and computes line totals from the current catalog price. Either all
// candidates validate or none are returned.
func (v *Validator) Validate(candidates []Candidate) ([]LineItem, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptyItems
	}

	items := make([]LineItem, 0, len(candidates))
	for _, c := range candidates {
		if c.Quantity < MinQuantity || c.Quantity > MaxQuantity {
			return nil, &QuantityOutOfRangeError{
				Name:     c.DishName,
				Quantity: c.Quantity,
				Min:      MinQuantity,
				Max:      MaxQuantity,
			}
		}

		dish, err := v.catalog.FindDish(c.DishName)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, &DishNotFoundError{Name: c.DishName}
			}
			return nil, errors.Wrap(err, "find dish")
		}

		items = append(items, LineItem{
			DishName:  dish.Name,
			Quantity:  c.Quantity,
			UnitPrice: dish.Price,
			LineTotal: dish.Price.Mul(decimal.NewFromInt(int64(c.Quantity))),
		})
	}

	return items, nil
}

// ValidateDistrict resolves a delivery district by name.
func (v *Validator) ValidateDistrict(name string) (catalog.District, error) {
	d, err := v.catalog.FindDistrict(name)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.District{}, &DistrictNotFoundError{Name: name}
		}
		return catalog.District{}, errors.Wrap(err, "find district")
	}
	return d, nil
}
