package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/sazon-bot/internal/domain/order"
)

type mockExecer struct {
	sql  string
	args []any
	tag  string
	err  error
}

func (m *mockExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.sql, m.args = sql, args
	if m.err != nil {
		return pgconn.CommandTag{}, m.err
	}
	return pgconn.NewCommandTag(m.tag), nil
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func testOrder() *order.ConfirmedOrder {
	return &order.ConfirmedOrder{
		ID:            "9b2f7c1e-8a51-4f3a-9d55-0f3f0b0c1a2b",
		Items:         []order.LineItem{{DishName: "Ceviche", Quantity: 2, UnitPrice: d("20"), LineTotal: d("40")}},
		Total:         d("40"),
		PaymentMethod: "Efectivo",
		Delivery:      order.DeliveryHome,
		District:      "Miraflores",
		ConfirmedAt:   time.Date(2026, 10, 14, 13, 0, 0, 0, time.UTC),
	}
}

func TestLedgerRepository_Append(t *testing.T) {
	db := &mockExecer{tag: "INSERT 0 1"}
	repo := NewLedgerRepository(db)

	require.NoError(t, repo.Append(context.Background(), testOrder()))
	assert.Contains(t, db.sql, "INSERT INTO confirmed_orders")
	require.Len(t, db.args, 8)
	assert.JSONEq(t, `[{"dish":"Ceviche","quantity":2,"unit_price":"20","line_total":"40"}]`, string(db.args[2].([]byte)))
	assert.Equal(t, "delivery", db.args[5])
	require.NotNil(t, db.args[6])
	assert.Equal(t, "Miraflores", *db.args[6].(*string))
	assert.Nil(t, db.args[7].(*string))
}

func TestLedgerRepository_AppendPickup(t *testing.T) {
	db := &mockExecer{tag: "INSERT 0 1"}
	o := testOrder()
	o.Delivery, o.District, o.PickupLocation = order.DeliveryPickup, "", "UPCH123"

	require.NoError(t, NewLedgerRepository(db).Append(context.Background(), o))
	assert.Nil(t, db.args[6].(*string))
	assert.Equal(t, "UPCH123", *db.args[7].(*string))
}

func TestLedgerRepository_Failures(t *testing.T) {
	tests := []struct {
		name string
		db   *mockExecer
	}{
		{"exec error", &mockExecer{err: errors.New("connection refused")}},
		{"no rows", &mockExecer{tag: "INSERT 0 0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewLedgerRepository(tt.db).Append(context.Background(), testOrder())
			var perr *order.PersistenceError
			require.True(t, errors.As(err, &perr))
		})
	}
}
