package events

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fleetkeeper/core/internal/storage"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const createLogTableSQL = `
CREATE TABLE IF NOT EXISTS event_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT    NOT NULL,
	module     TEXT    NOT NULL,
	occurred_at TEXT   NOT NULL,
	data       BLOB
)`

// Log is an append-only, size-rotated persistence of Bus events, backed by
// modernc.org/sqlite. Every event's Data map is serialized with
// vmihailenco/msgpack/v5 into a BLOB column, the same compact binary
// encoding the teacher uses on its MCU wire protocol.
type Log struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
	db       *storage.DB
	log      zerolog.Logger
}

// NewLog opens (or creates) the event log under dir, rotating into a new
// timestamped database file once the current one exceeds maxBytes.
func NewLog(dir string, maxBytes int64, log zerolog.Logger) (*Log, error) {
	l := &Log{
		dir:      dir,
		maxBytes: maxBytes,
		log:      log.With().Str("component", "event_log").Logger(),
	}
	if err := l.openNew(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) openNew() error {
	name := fmt.Sprintf("events-%s.db", time.Now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(l.dir, name)

	db, err := storage.Open(storage.Config{Path: path, Profile: storage.ProfileAppendOnly, Name: "event_log"})
	if err != nil {
		return fmt.Errorf("events: open log database: %w", err)
	}
	if _, err := db.Exec(context.Background(), createLogTableSQL); err != nil {
		db.Close()
		return fmt.Errorf("events: create event_log table: %w", err)
	}

	l.db = db
	return nil
}

// Record persists e, rotating to a new database file first if the current
// one has grown past maxBytes.
func (l *Log) Record(e *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxBytes > 0 {
		if size, err := l.currentSizeLocked(); err == nil && size >= l.maxBytes {
			if err := l.rotateLocked(); err != nil {
				l.log.Warn().Err(err).Msg("failed to rotate event log")
			}
		}
	}

	blob, err := msgpack.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("events: marshal event data: %w", err)
	}

	_, err = l.db.Exec(context.Background(),
		"INSERT INTO event_log (event_type, module, occurred_at, data) VALUES (?, ?, ?, ?)",
		string(e.Type), e.Module, e.Timestamp.UTC().Format(time.RFC3339Nano), blob,
	)
	if err != nil {
		return fmt.Errorf("events: insert event: %w", err)
	}
	return nil
}

// MaybeRotate checks the current log file's size and rotates to a fresh
// file if it exceeds maxBytes, independent of Record. The scheduler calls
// this periodically so a quiet agent (few events) does not leave a
// perpetually growing file simply because Record was never called again.
func (l *Log) MaybeRotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxBytes <= 0 {
		return nil
	}
	size, err := l.currentSizeLocked()
	if err != nil {
		return err
	}
	if size < l.maxBytes {
		return nil
	}
	return l.rotateLocked()
}

func (l *Log) currentSizeLocked() (int64, error) {
	var pageCount, pageSize int64
	ctx := context.Background()
	if err := l.db.Conn().QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, err
	}
	if err := l.db.Conn().QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, err
	}
	return pageCount * pageSize, nil
}

func (l *Log) rotateLocked() error {
	old := l.db
	if err := l.openNew(); err != nil {
		return err
	}
	return old.Close()
}

// HandleEvent adapts Log.Record to the EventHandler signature so it can be
// passed directly to Bus.Subscribe for every EventType in AllEventTypes.
func (l *Log) HandleEvent(e *Event) {
	if err := l.Record(e); err != nil {
		l.log.Warn().Err(err).Str("event_type", string(e.Type)).Msg("failed to persist event")
	}
}

// SubscribeAll subscribes handler to every EventType the events package
// defines and returns the resulting subscriptions, so a caller can later
// unsubscribe all of them in one loop.
func SubscribeAll(bus *Bus, handler EventHandler) []Subscription {
	subs := make([]Subscription, 0, len(AllEventTypes))
	for _, t := range AllEventTypes {
		subs = append(subs, bus.Subscribe(t, handler))
	}
	return subs
}

// Close closes the currently open log database file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Close()
}
