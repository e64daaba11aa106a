// Package csvstore keeps the bot's flat-file data: the reference catalog
// tables and the append-only order ledger.
package csvstore

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/sazon-bot/internal/domain/catalog"
)

// Files names the catalog tables. Drinks and Desserts are optional.
type Files struct {
	Menu      string
	Districts string
	Drinks    string
	Desserts  string
}

var (
	nameColumns        = []string{"plato", "bebida", "postres", "postre", "nombre", "name"}
	descriptionColumns = []string{"descripcion", "description"}
	priceColumns       = []string{"precio", "price"}
	districtColumns    = []string{"distrito", "district", "nombre", "name"}
)

// LoadCatalog reads every table and builds the catalog. Any missing or
// malformed file is an error.
func LoadCatalog(f Files) (*catalog.Catalog, error) {
	var dishes []catalog.Dish
	for _, table := range []struct {
		path     string
		category catalog.Category
		optional bool
	}{
		{f.Menu, catalog.CategoryDish, false},
		{f.Drinks, catalog.CategoryDrink, true},
		{f.Desserts, catalog.CategoryDessert, true},
	} {
		if table.path == "" {
			if table.optional {
				continue
			}
			return nil, errors.New("menu file not set")
		}
		items, err := readFile(table.path, func(r io.Reader) ([]catalog.Dish, error) {
			return ReadDishes(r, table.category)
		})
		if err != nil {
			return nil, err
		}
		dishes = append(dishes, items...)
	}

	if f.Districts == "" {
		return nil, errors.New("districts file not set")
	}
	districts, err := readFile(f.Districts, ReadDistricts)
	if err != nil {
		return nil, err
	}

	c, err := catalog.New(dishes, districts)
	if err != nil {
		return nil, errors.Wrap(err, "build catalog")
	}
	return c, nil
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	items, err := read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return items, nil
}

// ReadDishes reads a {name, description, price} table. Header names are
// matched ignoring case and accents ("Plato", "Descripción", "Precio").
func ReadDishes(r io.Reader, cat catalog.Category) ([]catalog.Dish, error) {
	rows, header, err := readTable(r)
	if err != nil {
		return nil, err
	}
	nameIdx, err := column(header, nameColumns)
	if err != nil {
		return nil, err
	}
	descIdx, err := column(header, descriptionColumns)
	if err != nil {
		return nil, err
	}
	priceIdx, err := column(header, priceColumns)
	if err != nil {
		return nil, err
	}

	dishes := make([]catalog.Dish, 0, len(rows))
	for i, row := range rows {
		name := strings.TrimSpace(field(row, nameIdx))
		if name == "" {
			return nil, errors.Errorf("row %d: empty name", i+2)
		}
		price, err := parsePrice(field(row, priceIdx))
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: price of %q", i+2, name)
		}
		dishes = append(dishes, catalog.Dish{
			Name:        name,
			Description: strings.TrimSpace(field(row, descIdx)),
			Price:       price,
			Category:    cat,
		})
	}
	return dishes, nil
}

// ReadDistricts reads a one-column district table.
func ReadDistricts(r io.Reader) ([]catalog.District, error) {
	rows, header, err := readTable(r)
	if err != nil {
		return nil, err
	}
	idx, err := column(header, districtColumns)
	if err != nil {
		return nil, err
	}

	districts := make([]catalog.District, 0, len(rows))
	for i, row := range rows {
		name := strings.TrimSpace(field(row, idx))
		if name == "" {
			return nil, errors.Errorf("row %d: empty district", i+2)
		}
		districts = append(districts, catalog.District{Name: name})
	}
	return districts, nil
}

func readTable(r io.Reader) (rows [][]string, header []string, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse csv")
	}
	if len(records) == 0 {
		return nil, nil, errors.New("empty table")
	}
	header = records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return records[1:], header, nil
}

func column(header, names []string) (int, error) {
	for _, name := range names {
		for i, h := range header {
			if catalog.Normalize(h) == name {
				return i, nil
			}
		}
	}
	return 0, errors.Errorf("no %q column in header %q", names[0], header)
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func parsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "S/"))
	if s == "" {
		return decimal.Decimal{}, errors.New("empty price")
	}
	return decimal.NewFromString(s)
}
