// Package session owns the conversations of concurrent customers. Each
// session holds one conversation state; turns on the same session are
// serialized and sessions never share state.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/sazon-bot/internal/domain/conversation"
	"github.com/xenking/sazon-bot/internal/domain/order"
	"github.com/xenking/sazon-bot/internal/generation"
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

// ErrTooManySessions is returned by Start when the session limit is reached.
var ErrTooManySessions = errors.New("too many sessions")

// Driver runs conversation turns.
type Driver interface {
	NewConversation() conversation.State
	HandleTurn(ctx context.Context, st conversation.State, text string) (conversation.State, string, error)
	Clear(st conversation.State) conversation.State
}

// Snapshot is a read-only view of a session after an operation.
type Snapshot struct {
	ID        string
	Phase     conversation.Phase
	Reply     string
	Draft     *order.Draft
	Confirmed *order.ConfirmedOrder
	// Retry is set when the turn could not be processed and the customer
	// should send the message again.
	Retry bool
}

// Options configure a Manager.
type Options struct {
	// TTL evicts sessions idle for longer. Zero disables eviction.
	TTL time.Duration
	// MaxSessions bounds live sessions. Zero means unbounded.
	MaxSessions int

	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
	Now            func() time.Time
}

type session struct {
	mu       sync.Mutex
	id       string
	state    conversation.State
	lastSeen atomic.Int64
}

// Manager keeps sessions in memory.
type Manager struct {
	driver Driver
	ttl    time.Duration
	max    int
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session

	tracer             trace.Tracer
	turns              metric.Int64Counter
	ordersConfirmed    metric.Int64Counter
	ledgerFailures     metric.Int64Counter
	generationFailures metric.Int64Counter
}

const instrumentationName = "github.com/xenking/sazon-bot/internal/session"

// NewManager creates a Manager.
func NewManager(d Driver, opts Options) (*Manager, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MeterProvider == nil || opts.TracerProvider == nil {
		return nil, errors.New("meter and tracer providers are required")
	}

	m := &Manager{
		driver:   d,
		ttl:      opts.TTL,
		max:      opts.MaxSessions,
		now:      opts.Now,
		sessions: make(map[string]*session),
		tracer:   opts.TracerProvider.Tracer(instrumentationName),
	}

	meter := opts.MeterProvider.Meter(instrumentationName)
	var err error
	if m.turns, err = meter.Int64Counter("sazon.turns",
		metric.WithDescription("Conversation turns processed"),
	); err != nil {
		return nil, errors.Wrap(err, "turns counter")
	}
	if m.ordersConfirmed, err = meter.Int64Counter("sazon.orders.confirmed",
		metric.WithDescription("Orders confirmed and written to the ledger"),
	); err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	if m.ledgerFailures, err = meter.Int64Counter("sazon.ledger.failures",
		metric.WithDescription("Ledger append failures"),
	); err != nil {
		return nil, errors.Wrap(err, "ledger failures counter")
	}
	if m.generationFailures, err = meter.Int64Counter("sazon.generation.failures",
		metric.WithDescription("Generation service failures"),
	); err != nil {
		return nil, errors.Wrap(err, "generation failures counter")
	}

	return m, nil
}

// Start opens a new session and returns the welcome message as its reply.
func (m *Manager) Start(ctx context.Context) (Snapshot, error) {
	s := &session{id: uuid.NewString(), state: m.driver.NewConversation()}
	s.lastSeen.Store(m.now().UnixNano())

	m.mu.Lock()
	if m.max > 0 && len(m.sessions) >= m.max {
		m.mu.Unlock()
		if m.Sweep(m.now()) == 0 {
			return Snapshot{}, ErrTooManySessions
		}
		m.mu.Lock()
		if len(m.sessions) >= m.max {
			m.mu.Unlock()
			return Snapshot{}, ErrTooManySessions
		}
	}
	m.sessions[s.id] = s
	m.mu.Unlock()

	zctx.From(ctx).Debug("Session started", zap.String("session_id", s.id))
	return snapshot(s.id, s.state, lastReply(s.state), false), nil
}

// Send runs one turn of session id. Failures of the turn itself are
// reported through Snapshot.Retry; the error is only ErrNotFound.
func (m *Manager) Send(ctx context.Context, id, text string) (Snapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := m.tracer.Start(ctx, "session.Turn",
		trace.WithAttributes(
			attribute.String("session.id", id),
			attribute.String("phase.from", string(s.state.Phase)),
		),
	)
	defer span.End()

	ctx = zctx.With(ctx, zap.String("session_id", id))

	next, reply, err := m.driver.HandleTurn(ctx, s.state, text)
	s.state = next
	s.lastSeen.Store(m.now().UnixNano())

	span.SetAttributes(attribute.String("phase.to", string(next.Phase)))
	m.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", string(next.Phase))))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "turn failed")
		m.countFailure(ctx, err)
		return snapshot(id, next, reply, true), nil
	}
	if next.Phase == conversation.PhaseDone && next.Confirmed != nil {
		m.ordersConfirmed.Add(ctx, 1)
	}
	return snapshot(id, next, reply, false), nil
}

// Clear discards the conversation of session id and starts it over.
func (m *Manager) Clear(ctx context.Context, id string) (Snapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = m.driver.Clear(s.state)
	s.lastSeen.Store(m.now().UnixNano())

	zctx.From(ctx).Debug("Session cleared", zap.String("session_id", id))
	return snapshot(id, s.state, lastReply(s.state), false), nil
}

// Get returns the current view of session id.
func (m *Manager) Get(id string) (Snapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(id, s.state, lastReply(s.state), false), nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle since before now-TTL and returns how many were
// removed.
func (m *Manager) Sweep(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	deadline := now.Add(-m.ttl).UnixNano()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.lastSeen.Load() < deadline {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps expired sessions every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) error {
	if m.ttl <= 0 {
		<-ctx.Done()
		return nil
	}
	if interval <= 0 {
		interval = m.ttl / 2
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lg := zctx.From(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(m.now()); n > 0 {
				lg.Debug("Expired sessions evicted", zap.Int("count", n))
			}
		}
	}
}

func (m *Manager) lookup(id string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Manager) countFailure(ctx context.Context, err error) {
	var (
		perr *order.PersistenceError
		serr *generation.ServiceError
	)
	switch {
	case errors.As(err, &perr):
		m.ledgerFailures.Add(ctx, 1)
	case errors.As(err, &serr):
		m.generationFailures.Add(ctx, 1)
	}
}

func snapshot(id string, st conversation.State, reply string, retry bool) Snapshot {
	return Snapshot{
		ID:        id,
		Phase:     st.Phase,
		Reply:     reply,
		Draft:     st.Draft.Clone(),
		Confirmed: st.Confirmed,
		Retry:     retry,
	}
}

func lastReply(st conversation.State) string {
	for i := len(st.History) - 1; i >= 0; i-- {
		if st.History[i].Role == conversation.RoleAssistant {
			return st.History[i].Content
		}
	}
	return ""
}
