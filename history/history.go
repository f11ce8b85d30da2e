// Package history keeps a queryable upload history in PostgreSQL. Every
// committed ledger event is copied into the ledger_events table so operators
// can audit a file's lifecycle without reading the bbolt journal.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/bitfsorg/filepay-go/ledger"
)

var log = logging.Logger("filepay/history")

//go:embed migrations/*.sql
var migrations embed.FS

// DBTX is the subset of database/sql used by the store.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Recorder persists ledger events. Record must skip events it already holds.
// LastSeq reports the end of the gap-free recorded prefix.
type Recorder interface {
	Record(ctx context.Context, events []ledger.Event) error
	LastSeq(ctx context.Context) (uint64, error)
}

// Nop discards events. It is used when no database is configured.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) Record(context.Context, []ledger.Event) error { return nil }
func (Nop) LastSeq(context.Context) (uint64, error) { return 0, nil }

// Open connects to PostgreSQL through the pgx stdlib driver and checks the
// connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, ErrNoDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("history: goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Store is a Recorder over a PostgreSQL connection.
type Store struct {
	db DBTX
}

var _ Recorder = (*Store)(nil)

// NewStore constructs a store bound to the given DBTX.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

const insertEvent = `
	INSERT INTO ledger_events (seq, kind, file_id, escrow_id, content_id, actor, amount, detail, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (seq) DO NOTHING`

// Record inserts events. Events already present are skipped, so replaying a
// range after a crash is safe.
func (s *Store) Record(ctx context.Context, events []ledger.Event) error {
	for _, ev := range events {
		_, err := s.db.ExecContext(ctx, insertEvent,
			int64(ev.Seq), ev.Kind, int64(ev.FileID), int64(ev.EscrowID), ev.ContentID,
			ev.Actor, fmt.Sprint(ev.Amount), ev.Detail, time.Unix(ev.At, 0).UTC())
		if err != nil {
			return fmt.Errorf("history: insert event %d: %w", ev.Seq, err)
		}
	}
	return nil
}

// contiguousSeq finds the end of the gap-free prefix 1..n of recorded
// sequences. Journal sequences start at 1.
const contiguousSeq = `
	SELECT CASE
		WHEN NOT EXISTS (SELECT 1 FROM ledger_events WHERE seq = 1) THEN 0
		ELSE (SELECT MIN(e.seq) FROM ledger_events e
			WHERE NOT EXISTS (SELECT 1 FROM ledger_events n WHERE n.seq = e.seq + 1))
	END`

// LastSeq returns the highest sequence n such that every event 1..n is
// recorded, or 0. Events recorded past a gap do not count.
func (s *Store) LastSeq(ctx context.Context) (uint64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, contiguousSeq).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("history: last seq: %w", err)
	}
	return uint64(seq), nil
}

// ByFile returns the recorded events of one file, oldest first.
func (s *Store) ByFile(ctx context.Context, fileID uint64) ([]ledger.Event, error) {
	return s.query(ctx, `
		SELECT seq, kind, file_id, escrow_id, content_id, actor, amount::TEXT, detail, occurred_at
		FROM ledger_events WHERE file_id = $1 ORDER BY seq`, int64(fileID))
}

// ByContentID returns the recorded events carrying contentID, oldest first.
func (s *Store) ByContentID(ctx context.Context, contentID string) ([]ledger.Event, error) {
	return s.query(ctx, `
		SELECT seq, kind, file_id, escrow_id, content_id, actor, amount::TEXT, detail, occurred_at
		FROM ledger_events WHERE content_id = $1 ORDER BY seq`, contentID)
}

func (s *Store) query(ctx context.Context, q string, arg any) ([]ledger.Event, error) {
	rows, err := s.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("history: select events: %w", err)
	}
	defer rows.Close()

	var out []ledger.Event
	for rows.Next() {
		var (
			ev                  ledger.Event
			seq, fileID, escrow int64
			amount              string
			at                  time.Time
		)
		if err := rows.Scan(&seq, &ev.Kind, &fileID, &escrow, &ev.ContentID, &ev.Actor, &amount, &ev.Detail, &at); err != nil {
			return nil, fmt.Errorf("history: scan event: %w", err)
		}
		ev.Seq, ev.FileID, ev.EscrowID = uint64(seq), uint64(fileID), uint64(escrow)
		if _, err := fmt.Sscan(amount, &ev.Amount); err != nil {
			return nil, fmt.Errorf("history: event %d amount %q: %w", seq, amount, err)
		}
		ev.At = at.Unix()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
