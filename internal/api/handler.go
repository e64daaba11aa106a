// Package api serves the chat ordering API over HTTP.
package api

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/sazon-bot/internal/domain/catalog"
	"github.com/xenking/sazon-bot/internal/session"
)

// maxBodyBytes bounds a message request body.
const maxBodyBytes = 64 << 10

// Sessions is the session store behind the API.
type Sessions interface {
	Start(ctx context.Context) (session.Snapshot, error)
	Send(ctx context.Context, id, text string) (session.Snapshot, error)
	Clear(ctx context.Context, id string) (session.Snapshot, error)
	Get(id string) (session.Snapshot, error)
}

var _ Sessions = (*session.Manager)(nil)

// Handler implements the chat endpoints.
type Handler struct {
	sessions Sessions
	catalog  *catalog.Catalog
}

// NewHandler creates a Handler.
func NewHandler(sessions Sessions, c *catalog.Catalog) *Handler {
	return &Handler{sessions: sessions, catalog: c}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/menu", h.menu)
	mux.HandleFunc("POST /api/sessions", h.startSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.getSession)
	mux.HandleFunc("POST /api/sessions/{id}/messages", h.sendMessage)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.clearSession)
}

func (h *Handler) menu(w http.ResponseWriter, _ *http.Request) {
	var e jx.Encoder
	encodeMenu(&e, h.catalog)
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Start(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSnapshot(w, http.StatusCreated, snap)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSnapshot(w, http.StatusOK, snap)
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	text, err := decodeMessage(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.sessions.Send(r.Context(), r.PathValue("id"), text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSnapshot(w, http.StatusOK, snap)
}

func (h *Handler) clearSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Clear(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSnapshot(w, http.StatusOK, snap)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrTooManySessions):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, "too many sessions")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeSnapshot(w http.ResponseWriter, status int, snap session.Snapshot) {
	var e jx.Encoder
	encodeSnapshot(&e, snap)
	writeJSON(w, status, e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
