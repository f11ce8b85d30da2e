package history

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bitfsorg/filepay-go/ledger"
)

// Forwarder copies committed ledger events into a Recorder off the commit
// path. Hook is registered with ledger.Log.OnCommit; Run drains the queue.
// A batch that is dropped because the queue is full, or that fails to
// record, marks the forwarder as behind. The next Catchup replays the journal
// from the recorder's LastSeq, the end of the gap-free prefix, so later
// batches that did land do not hide the gap.
type Forwarder struct {
	rec    Recorder
	queue  chan []ledger.Event
	behind atomic.Bool

	mu     sync.Mutex
	closed bool
}

// NewForwarder creates a forwarder with room for buffer pending batches.
func NewForwarder(rec Recorder, buffer int) *Forwarder {
	if buffer <= 0 {
		buffer = 256
	}
	return &Forwarder{rec: rec, queue: make(chan []ledger.Event, buffer)}
}

// Hook enqueues a committed batch. It never blocks.
func (f *Forwarder) Hook(events []ledger.Event) {
	if len(events) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.queue <- events:
	default:
		f.behind.Store(true)
		log.Warnw("history queue full, batch deferred to catch-up", "first_seq", events[0].Seq, "n", len(events))
	}
}

// Behind reports whether a batch was dropped or failed since the last
// successful Catchup.
func (f *Forwarder) Behind() bool { return f.behind.Load() }

// Run records queued batches until ctx is done or the forwarder is closed.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-f.queue:
			if !ok {
				return nil
			}
			if err := f.rec.Record(ctx, batch); err != nil {
				f.behind.Store(true)
				log.Warnw("record events, deferred to catch-up", "first_seq", batch[0].Seq, "err", err)
			}
		}
	}
}

// Catchup replays journal entries the recorder has not seen yet.
func (f *Forwarder) Catchup(ctx context.Context, l *ledger.Log) (n int, err error) {
	// Cleared first so a batch lost while catching up flags again.
	f.behind.Store(false)
	defer func() {
		if err != nil {
			f.behind.Store(true)
		}
	}()

	last, err := f.rec.LastSeq(ctx)
	if err != nil {
		return 0, err
	}
	events, err := l.Events(last, 0)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	if err := f.rec.Record(ctx, events); err != nil {
		return 0, err
	}
	log.Infow("history caught up", "from_seq", last+1, "n", len(events))
	return len(events), nil
}

// KeepUp runs Catchup every interval while the forwarder is behind, until
// ctx is done.
func (f *Forwarder) KeepUp(ctx context.Context, l *ledger.Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !f.Behind() {
				continue
			}
			if _, err := f.Catchup(ctx, l); err != nil {
				log.Warnw("history catch-up", "err", err)
			}
		}
	}
}

// Close stops accepting batches and lets Run return once the queue drains.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.closed = true
	close(f.queue)
	return nil
}
