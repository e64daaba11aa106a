package extract

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/sazon-bot/internal/domain/catalog"
	"github.com/xenking/sazon-bot/internal/domain/order"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Dish{
		{Name: "Ceviche", Price: decimal.RequireFromString("20")},
		{Name: "Lomo Saltado", Price: decimal.RequireFromString("25")},
		{Name: "Arroz con Pollo", Price: decimal.RequireFromString("15")},
		{Name: "Ají de Gallina", Price: decimal.RequireFromString("18")},
		{Name: "Chicha Morada", Price: decimal.RequireFromString("5"), Category: catalog.CategoryDrink},
	}, nil)
	require.NoError(t, err)
	return c
}

type failingFinder struct{ err error }

func (f failingFinder) FindDish(string) (catalog.Dish, error) { return catalog.Dish{}, f.err }

func TestExtract(t *testing.T) {
	ex := New(testCatalog(t))

	tests := []struct {
		name string
		text string
		want []order.Candidate
	}{
		{
			name: "units and connector",
			text: "2 platos ceviche y 1 lomo saltado",
			want: []order.Candidate{{DishName: "ceviche", Quantity: 2}, {DishName: "lomo saltado", Quantity: 1}},
		},
		{
			name: "leading words ignored",
			text: "Hola, quiero 3 arroz con pollo por favor",
			want: []order.Candidate{{DishName: "arroz con pollo", Quantity: 3}},
		},
		{
			name: "accents and case",
			text: "1 AJÍ DE GALLINA",
			want: []order.Candidate{{DishName: "aji de gallina", Quantity: 1}},
		},
		{
			name: "unit with de",
			text: "4 vasos de chicha morada",
			want: []order.Candidate{{DishName: "chicha morada", Quantity: 4}},
		},
		{
			name: "comma separated",
			text: "2 ceviche,1 lomo saltado.",
			want: []order.Candidate{{DishName: "ceviche", Quantity: 2}, {DishName: "lomo saltado", Quantity: 1}},
		},
		{
			name: "multi line",
			text: "2 ceviche\n3 lomo saltado",
			want: []order.Candidate{{DishName: "ceviche", Quantity: 2}, {DishName: "lomo saltado", Quantity: 3}},
		},
		{
			name: "duplicates kept",
			text: "1 ceviche y 2 ceviche",
			want: []order.Candidate{{DishName: "ceviche", Quantity: 1}, {DishName: "ceviche", Quantity: 2}},
		},
		{
			name: "upper bound",
			text: "100 ceviche",
			want: []order.Candidate{{DishName: "ceviche", Quantity: 100}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ex.Extract(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_NoItems(t *testing.T) {
	ex := New(testCatalog(t))

	for _, text := range []string{"", "   ", "hola", "quiero ceviche", "dame 2", "2 por favor"} {
		t.Run(text, func(t *testing.T) {
			_, err := ex.Extract(text)
			require.ErrorIs(t, err, ErrNoItems)
		})
	}
}

func TestExtract_MalformedQuantity(t *testing.T) {
	ex := New(testCatalog(t))

	tests := []struct {
		text  string
		token string
	}{
		{"0 ceviche", "0"},
		{"-2 ceviche", "-2"},
		{"1.5 ceviche", "1.5"},
		{"2,5 lomo saltado", "2,5"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := ex.Extract(tt.text)
			var mqErr *MalformedQuantityError
			require.True(t, errors.As(err, &mqErr), "got %v", err)
			assert.Equal(t, tt.token, mqErr.Token)
		})
	}
}

func TestExtract_OutOfRange(t *testing.T) {
	ex := New(testCatalog(t))

	for _, text := range []string{"101 ceviche", "1000 lomo saltado", "99999999999999999999999 ceviche"} {
		t.Run(text, func(t *testing.T) {
			_, err := ex.Extract(text)
			var rangeErr *order.QuantityOutOfRangeError
			require.True(t, errors.As(err, &rangeErr), "got %v", err)
			assert.Equal(t, order.MaxQuantity, rangeErr.Max)
			assert.Greater(t, rangeErr.Quantity, order.MaxQuantity)
		})
	}
}

func TestExtract_UnknownDishVoidsAll(t *testing.T) {
	ex := New(testCatalog(t))

	tests := []struct {
		text string
		name string
	}{
		{"2 ceviche y 1 pizza", "pizza"},
		{"2 ceviche mixto", "ceviche mixto"},
		{"1 pizza hawaiana y 2 ceviche", "pizza hawaiana"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ex.Extract(tt.text)
			assert.Nil(t, got)
			var nfErr *order.DishNotFoundError
			require.True(t, errors.As(err, &nfErr), "got %v", err)
			assert.Equal(t, tt.name, nfErr.Name)
		})
	}
}

func TestExtract_FinderError(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(failingFinder{err: boom}).Extract("2 ceviche")
	require.ErrorIs(t, err, boom)
}
