package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/sazon-bot/internal/domain/order"
)

var _ order.Ledger = (*LedgerRepository)(nil)

// Execer is the subset of pgxpool.Pool the ledger needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertOrder = `INSERT INTO confirmed_orders
	(id, confirmed_at, items, total, payment_method, delivery_method, district, pickup_location)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// LedgerRepository appends confirmed orders to the confirmed_orders table.
// It only ever inserts; every Append is a new row.
type LedgerRepository struct {
	db Execer
}

// NewLedgerRepository returns a LedgerRepository writing through db.
func NewLedgerRepository(db Execer) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append inserts o. Failures are *order.PersistenceError.
func (r *LedgerRepository) Append(ctx context.Context, o *order.ConfirmedOrder) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return &order.PersistenceError{Err: errors.Wrap(err, "marshal items")}
	}

	var district, pickup *string
	if o.Delivery == order.DeliveryHome {
		district = &o.District
	} else {
		pickup = &o.PickupLocation
	}

	tag, err := r.db.Exec(ctx, insertOrder,
		o.ID, o.ConfirmedAt, items, o.Total, o.PaymentMethod, string(o.Delivery), district, pickup,
	)
	if err != nil {
		return &order.PersistenceError{Err: errors.Wrapf(err, "insert order %s", o.ID)}
	}
	if tag.RowsAffected() != 1 {
		return &order.PersistenceError{Err: errors.Errorf("insert order %s: %d rows affected", o.ID, tag.RowsAffected())}
	}
	return nil
}
