package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/sazon-bot/internal/domain/order"
	"github.com/xenking/sazon-bot/internal/storage/csvstore"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var baseTime = time.Date(2026, 10, 14, 13, 30, 0, 0, time.UTC)

func delivery(id string, at time.Time, items ...order.LineItem) *order.ConfirmedOrder {
	return &order.ConfirmedOrder{
		ID:            id,
		Items:         items,
		Total:         order.Total(items),
		PaymentMethod: "Yape",
		Delivery:      order.DeliveryHome,
		District:      "Miraflores",
		ConfirmedAt:   at,
	}
}

func pickup(id string, at time.Time, items ...order.LineItem) *order.ConfirmedOrder {
	return &order.ConfirmedOrder{
		ID:             id,
		Items:          items,
		Total:          order.Total(items),
		PaymentMethod:  "Efectivo",
		Delivery:       order.DeliveryPickup,
		PickupLocation: "UPCH123",
		ConfirmedAt:    at,
	}
}

func line(dish string, qty int, price string) order.LineItem {
	unit := d(price)
	return order.LineItem{DishName: dish, Quantity: qty, UnitPrice: unit, LineTotal: unit.Mul(decimal.NewFromInt(int64(qty)))}
}

func ledgerBytes(t *testing.T, orders ...*order.ConfirmedOrder) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, o := range orders {
		rec, err := csvstore.MarshalRecord(o)
		require.NoError(t, err)
		buf.Write(rec)
	}
	return buf.Bytes()
}

func writeLedger(t *testing.T, path string, orders ...*order.ConfirmedOrder) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, ledgerBytes(t, orders...), 0o600))
}

func writeGzLedger(t *testing.T, path string, orders ...*order.ConfirmedOrder) {
	t.Helper()
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	_, err := gz.Write(ledgerBytes(t, orders...))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestScan(t *testing.T) {
	dir := t.TempDir()

	first := delivery("o1", baseTime, line("Ceviche", 2, "20"), line("Chicha Morada", 1, "5"))
	// Same submission seconds later, in the rotated archive.
	resent := delivery("o2", baseTime.Add(20*time.Second), line("Ceviche", 2, "20"), line("Chicha Morada", 1, "5"))
	later := delivery("o3", baseTime.Add(time.Hour), line("Ceviche", 2, "20"), line("Chicha Morada", 1, "5"))
	other := pickup("o4", baseTime, line("Lomo Saltado", 1, "25.50"))

	writeGzLedger(t, filepath.Join(dir, "orders.csv.1.gz"), first, other)
	writeLedger(t, filepath.Join(dir, "orders.csv"), resent, later)

	files, err := expand([]string{filepath.Join(dir, "orders.csv*")})
	require.NoError(t, err)
	require.Len(t, files, 2)

	s, err := scan(t.Context(), files, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Files)
	assert.Equal(t, 4, s.Orders)
	assert.Equal(t, 1, s.Duplicates)
	assert.True(t, d("160.50").Equal(s.Revenue), s.Revenue.String())

	top := s.TopDishes(0)
	require.Len(t, top, 3)
	assert.Equal(t, "Ceviche", top[0].Name)
	assert.Equal(t, 6, top[0].Quantity)
	assert.True(t, d("120").Equal(top[0].Revenue))
	assert.Equal(t, "Chicha Morada", top[1].Name)
	assert.Equal(t, "Lomo Saltado", top[2].Name)

	assert.Equal(t, map[string]int{"Miraflores": 3, "Recojo en local UPCH123": 1}, s.Targets)
	assert.Equal(t, map[string]int{"yape": 3, "efectivo": 1}, s.Payments)
}

func TestScan_BadRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte("not,a,ledger\n"), 0o600))

	_, err := scan(t.Context(), []string{path}, 1)
	require.Error(t, err)

	var recErr *csvstore.RecordError
	assert.ErrorAs(t, err, &recErr)
}

func TestScan_BadGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv.gz")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o600))

	_, err := scan(t.Context(), []string{path}, 1)
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	writeLedger(t, filepath.Join(dir, "a.csv"))
	writeLedger(t, filepath.Join(dir, "b.csv"))

	files, err := expand([]string{filepath.Join(dir, "*.csv"), filepath.Join(dir, "a.csv")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")}, files)

	_, err = expand([]string{filepath.Join(dir, "missing*.csv")})
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	a := delivery("o1", baseTime.Add(5*time.Second), line("Ceviche", 1, "20"))
	b := delivery("o2", baseTime.Add(50*time.Second), line("ceviche", 1, "20"))
	c := delivery("o3", baseTime.Add(65*time.Second), line("Ceviche", 1, "20"))

	assert.Equal(t, fingerprint(a), fingerprint(b))
	assert.NotEqual(t, fingerprint(a), fingerprint(c))
}

func TestSummary_Write(t *testing.T) {
	s := newSummary()
	s.Files = 1
	s.add(delivery("o1", baseTime, line("Ceviche", 2, "20")))
	s.add(pickup("o2", baseTime, line("Lomo Saltado", 1, "25")))

	var out bytes.Buffer
	require.NoError(t, s.Write(&out, 1))

	text := out.String()
	assert.Contains(t, text, "Orders")
	assert.Contains(t, text, "S/65.00")
	assert.Contains(t, text, "Ceviche")
	assert.NotContains(t, text, "Lomo Saltado")
	assert.Contains(t, text, "Recojo en local UPCH123")
	assert.Contains(t, text, "yape")
}
