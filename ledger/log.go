// Package ledger provides the atomic, totally ordered transaction log that
// the file registry and the escrow ledger are submitted to.
//
// Every mutation runs inside a single bbolt write transaction: either all of
// its reads and writes commit, or none do. bbolt admits one writer at a time,
// which gives every transaction a place in one serial order. Each transaction
// snapshots the ledger clock once, and that timestamp is the only time source
// used by the ledgers built on top (refund windows, token lifetimes).
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/filecoin-project/go-clock"
	logging "github.com/ipfs/go-log/v2"
	"go.etcd.io/bbolt"
)

var log = logging.Logger("filepay/ledger")

var (
	bucketAccounts = []byte("accounts")
	bucketEvents   = []byte("events")
)

// Log wraps a bbolt database as an ordered, atomic transaction log.
type Log struct {
	db    *bbolt.DB
	clock clock.Clock

	mu        sync.RWMutex
	observers []func([]Event)
}

// Option configures a Log.
type Option func(*Log)

// WithClock sets the timestamp source. Defaults to the wall clock.
func WithClock(c clock.Clock) Option {
	return func(l *Log) { l.clock = c }
}

// Open opens or creates the ledger database at dbPath.
// The parent directory is created if it does not exist.
func Open(dbPath string, opts ...Option) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	l := &Log{db: db, clock: clock.New()}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.EnsureBuckets(bucketAccounts, bucketEvents); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debugw("ledger opened", "path", dbPath)
	return l, nil
}

// EnsureBuckets creates the named buckets if they do not exist yet.
// Packages built on the log call this from their constructors.
func (l *Log) EnsureBuckets(names ...[]byte) error {
	err := l.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range names {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger: ensure buckets: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (l *Log) Close() error { return l.db.Close() }

// Now returns the current ledger time.
func (l *Log) Now() time.Time { return l.clock.Now() }

// Clock returns the ledger's timestamp source.
func (l *Log) Clock() clock.Clock { return l.clock }

// OnCommit registers fn to receive the events of every committed transaction,
// in commit order. fn runs after the write lock is released and must not
// block for long.
func (l *Log) OnCommit(fn func([]Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// Update runs fn as one atomic write transaction. If fn returns an error the
// transaction is rolled back and nothing it wrote persists.
func (l *Log) Update(fn func(tx *Tx) error) error {
	var committed []Event
	err := l.db.Update(func(btx *bbolt.Tx) error {
		tx := &Tx{btx: btx, now: l.clock.Now(), writable: true}
		if err := fn(tx); err != nil {
			return err
		}
		committed = tx.events
		return nil
	})
	if err != nil {
		return err
	}
	if len(committed) > 0 {
		l.notify(committed)
	}
	return nil
}

// View runs fn as a read-only transaction over a consistent snapshot.
func (l *Log) View(fn func(tx *Tx) error) error {
	return l.db.View(func(btx *bbolt.Tx) error {
		return fn(&Tx{btx: btx, now: l.clock.Now()})
	})
}

func (l *Log) notify(events []Event) {
	l.mu.RLock()
	observers := make([]func([]Event), len(l.observers))
	copy(observers, l.observers)
	l.mu.RUnlock()

	for _, fn := range observers {
		fn(events)
	}
}
