package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/sazon-bot/internal/domain/catalog"
	"github.com/xenking/sazon-bot/internal/domain/conversation"
	"github.com/xenking/sazon-bot/internal/domain/order"
	"github.com/xenking/sazon-bot/internal/session"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type mockSessions struct {
	snap     session.Snapshot
	err      error
	lastID   string
	lastText string
}

func (m *mockSessions) Start(context.Context) (session.Snapshot, error) {
	return m.snap, m.err
}

func (m *mockSessions) Send(_ context.Context, id, text string) (session.Snapshot, error) {
	m.lastID, m.lastText = id, text
	return m.snap, m.err
}

func (m *mockSessions) Clear(_ context.Context, id string) (session.Snapshot, error) {
	m.lastID = id
	return m.snap, m.err
}

func (m *mockSessions) Get(id string) (session.Snapshot, error) {
	m.lastID = id
	return m.snap, m.err
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(
		[]catalog.Dish{
			{Name: "Ceviche", Description: "Pescado fresco", Price: d("20"), Category: catalog.CategoryDish},
			{Name: "Chicha Morada", Price: d("5"), Category: catalog.CategoryDrink},
			{Name: "Suspiro", Price: d("8.5"), Category: catalog.CategoryDessert},
		},
		[]catalog.District{{Name: "Miraflores"}, {Name: "Surco"}},
	)
	require.NoError(t, err)
	return c
}

func newServer(t *testing.T, s Sessions) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(s, testCatalog(t)).Register(mux)
	return mux
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestMenu(t *testing.T) {
	w := do(newServer(t, &mockSessions{}), http.MethodGet, "/api/menu", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	dishes := body["dishes"].([]any)
	require.Len(t, dishes, 1)
	assert.Equal(t, map[string]any{
		"name":        "Ceviche",
		"description": "Pescado fresco",
		"price":       "20.00",
	}, dishes[0])
	assert.Len(t, body["drinks"], 1)
	assert.Len(t, body["desserts"], 1)
	assert.Equal(t, []any{"Miraflores", "Surco"}, body["districts"])
}

func TestStartSession(t *testing.T) {
	s := &mockSessions{snap: session.Snapshot{
		ID:    "s1",
		Phase: conversation.PhaseStart,
		Reply: "¡Bienvenido!",
	}}
	w := do(newServer(t, s), http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, w)
	assert.Equal(t, "s1", body["id"])
	assert.Equal(t, "start", body["phase"])
	assert.Equal(t, "¡Bienvenido!", body["reply"])
	assert.Equal(t, false, body["retry"])
	assert.NotContains(t, body, "draft")
	assert.NotContains(t, body, "order")
}

func TestStartSession_TooMany(t *testing.T) {
	s := &mockSessions{err: session.ErrTooManySessions}
	w := do(newServer(t, s), http.MethodPost, "/api/sessions", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Equal(t, "too many sessions", decode(t, w)["message"])
}

func TestSendMessage(t *testing.T) {
	s := &mockSessions{snap: session.Snapshot{
		ID:    "s1",
		Phase: conversation.PhaseConfirmingItems,
		Reply: "¿Estás de acuerdo con el pedido?",
		Draft: &order.Draft{Items: []order.LineItem{
			{DishName: "Ceviche", Quantity: 2, UnitPrice: d("20"), LineTotal: d("40")},
		}},
	}}
	w := do(newServer(t, s), http.MethodPost, "/api/sessions/s1/messages", `{"text":"2 ceviche","extra":[1,2]}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "s1", s.lastID)
	assert.Equal(t, "2 ceviche", s.lastText)

	body := decode(t, w)
	assert.Equal(t, "confirming_items", body["phase"])
	draft := body["draft"].(map[string]any)
	assert.Equal(t, "40.00", draft["total"])
	assert.Equal(t, "", draft["delivery"])
	assert.NotContains(t, draft, "district")
	assert.Equal(t, []any{map[string]any{
		"dish":       "Ceviche",
		"quantity":   float64(2),
		"unit_price": "20.00",
		"line_total": "40.00",
	}}, draft["items"])
}

func TestSendMessage_Confirmed(t *testing.T) {
	at := time.Date(2024, 5, 10, 13, 30, 15, 0, time.UTC)
	s := &mockSessions{snap: session.Snapshot{
		ID:    "s1",
		Phase: conversation.PhaseDone,
		Draft: &order.Draft{},
		Confirmed: &order.ConfirmedOrder{
			ID:             "o1",
			Items:          []order.LineItem{{DishName: "Ceviche", Quantity: 1, UnitPrice: d("20"), LineTotal: d("20")}},
			Total:          d("20"),
			PaymentMethod:  "Yape",
			Delivery:       order.DeliveryPickup,
			PickupLocation: "UPCH123",
			ConfirmedAt:    at,
		},
	}}
	w := do(newServer(t, s), http.MethodPost, "/api/sessions/s1/messages", `{"text":"yape"}`)
	require.Equal(t, http.StatusOK, w.Code)

	o := decode(t, w)["order"].(map[string]any)
	assert.Equal(t, "o1", o["id"])
	assert.Equal(t, "20.00", o["total"])
	assert.Equal(t, "Yape", o["payment_method"])
	assert.Equal(t, "pickup", o["delivery"])
	assert.Equal(t, "UPCH123", o["pickup_location"])
	assert.NotContains(t, o, "district")
	assert.Equal(t, "2024-05-10T13:30:15Z", o["confirmed_at"])
}

func TestSendMessage_Retry(t *testing.T) {
	s := &mockSessions{snap: session.Snapshot{ID: "s1", Phase: conversation.PhaseCollectingPayment, Retry: true}}
	w := do(newServer(t, s), http.MethodPost, "/api/sessions/s1/messages", `{"text":"yape"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["retry"])
}

func TestSendMessage_BadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "Empty", body: ""},
		{name: "Array", body: `["hola"]`},
		{name: "MissingText", body: `{"msg":"hola"}`},
		{name: "NumberText", body: `{"text":5}`},
		{name: "Truncated", body: `{"text":"ho`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &mockSessions{}
			w := do(newServer(t, s), http.MethodPost, "/api/sessions/s1/messages", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, float64(400), decode(t, w)["code"])
			assert.Empty(t, s.lastID)
		})
	}
}

func TestSendMessage_TooLarge(t *testing.T) {
	body := `{"text":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	w := do(newServer(t, &mockSessions{}), http.MethodPost, "/api/sessions/s1/messages", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestUnknownSession(t *testing.T) {
	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/sessions/nope", ""},
		{http.MethodPost, "/api/sessions/nope/messages", `{"text":"hola"}`},
		{http.MethodDelete, "/api/sessions/nope", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			s := &mockSessions{err: session.ErrNotFound}
			w := do(newServer(t, s), tt.method, tt.path, tt.body)

			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, "session not found", decode(t, w)["message"])
			assert.Equal(t, "nope", s.lastID)
		})
	}
}

func TestClearSession(t *testing.T) {
	s := &mockSessions{snap: session.Snapshot{ID: "s1", Phase: conversation.PhaseStart, Reply: "¡Bienvenido!"}}
	w := do(newServer(t, s), http.MethodDelete, "/api/sessions/s1", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", s.lastID)
	assert.Equal(t, "start", decode(t, w)["phase"])
}

func TestInternalError(t *testing.T) {
	s := &mockSessions{err: errors.New("boom")}
	w := do(newServer(t, s), http.MethodGet, "/api/sessions/s1", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w)["message"])
}
