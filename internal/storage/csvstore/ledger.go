package csvstore

import (
	"context"
	"os"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/sazon-bot/internal/domain/order"
)

var _ order.Ledger = (*Ledger)(nil)

// Ledger appends confirmed orders to a CSV file, one record per line.
// Appends are serialized and each record is a single write on an O_APPEND
// file, so records from concurrent sessions never interleave.
type Ledger struct {
	mu     sync.Mutex
	f      *os.File
	path   string
	sync   bool
	closed bool
}

// OpenLedger opens (creating if needed) the ledger file at path. With
// syncWrites every append is fsynced before it is reported as done.
func OpenLedger(path string, syncWrites bool) (*Ledger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open ledger %s", path)
	}
	return &Ledger{f: f, path: path, sync: syncWrites}, nil
}

// Append writes o as one record. Failures are *order.PersistenceError.
func (l *Ledger) Append(ctx context.Context, o *order.ConfirmedOrder) error {
	if err := ctx.Err(); err != nil {
		return &order.PersistenceError{Err: err}
	}
	line, err := MarshalRecord(o)
	if err != nil {
		return &order.PersistenceError{Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return &order.PersistenceError{Err: os.ErrClosed}
	}
	if _, err := l.f.Write(line); err != nil {
		return &order.PersistenceError{Err: errors.Wrap(err, "write")}
	}
	if l.sync {
		if err := l.f.Sync(); err != nil {
			return &order.PersistenceError{Err: errors.Wrap(err, "sync")}
		}
	}
	return nil
}

// Check reports whether the ledger file is still open and present.
func (l *Ledger) Check(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return os.ErrClosed
	}
	if _, err := os.Stat(l.path); err != nil {
		return errors.Wrap(err, "stat ledger")
	}
	return nil
}

// Close closes the ledger file. Later appends fail.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.f.Close()
}
