// Package store provides the local document store for soulsync.
//
// The store is an embedded SQLite database (WAL mode) holding the couple's
// collections: tasks, reflections, dinner plans, dinner preferences,
// feature feedback and the assistant chat history. Every collection can be
// subscribed to; subscribers receive a full replacement snapshot after each
// mutation, never deltas, so a consumer always holds a consistent view.
//
// Document ids are collision-free UUIDs generated at insert time. Records
// mirrored to Google keep the remote id in their own field and are never
// re-keyed.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Collection names a subscribable collection.
type Collection string

const (
	CollectionTasks       Collection = "tasks"
	CollectionReflections Collection = "reflections"
	CollectionDinnerPlans Collection = "dinner_plans"
	CollectionPreferences Collection = "dinner_preferences"
	CollectionFeedback    Collection = "feedback"
	CollectionChat        Collection = "chat"
)

// Snapshot is a full replacement view of one collection.
type Snapshot struct {
	Collection Collection
	Items      interface{}
}

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = fmt.Errorf("document not found")

// Store wraps the SQLite connection and the subscription hub.
type Store struct {
	conn   *sql.DB
	path   string
	logger *log.Logger

	subMu  sync.RWMutex
	subs   map[int]*subscriber
	nextID int
}

type subscriber struct {
	collection Collection
	ch         chan Snapshot
}

// Open creates (or opens) the store at path and initializes the schema.
//
// The caller must Close() the store when done.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn:   conn,
		path:   path,
		logger: logger,
		subs:   make(map[int]*subscriber),
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the connection after a WAL checkpoint.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	s.conn = nil
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		external_task_id TEXT,
		content TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'todo',
		owner TEXT NOT NULL,
		sort_order INTEGER NOT NULL,
		reminder TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner);
	CREATE INDEX IF NOT EXISTS idx_tasks_order ON tasks(sort_order);

	CREATE TABLE IF NOT EXISTS reflections (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reflections_date ON reflections(date);

	CREATE TABLE IF NOT EXISTS dinner_plans (
		id TEXT PRIMARY KEY,  -- calendar day, one plan per day
		updated_at TEXT NOT NULL,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS dinner_preferences (
		id TEXT PRIMARY KEY,  -- owning user id
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_history (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data TEXT NOT NULL
	);
	`
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Subscribe registers a listener for full snapshots of one collection.
// The returned cancel function must be called to release the subscription.
//
// The channel is buffered with latest-value-wins semantics: a slow consumer
// never blocks writers and always observes the most recent snapshot next.
func (s *Store) Subscribe(c Collection) (<-chan Snapshot, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	sub := &subscriber{collection: c, ch: make(chan Snapshot, 1)}
	s.subs[id] = sub

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub.ch)
		}
	}
	return sub.ch, cancel
}

// publish loads the named collection and fans the snapshot out.
func (s *Store) publish(ctx context.Context, c Collection) {
	items, err := s.loadCollection(ctx, c)
	if err != nil {
		s.logger.Printf("Failed to load %s for publish: %v", c, err)
		return
	}
	snap := Snapshot{Collection: c, Items: items}

	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, sub := range s.subs {
		if sub.collection != c {
			continue
		}
		select {
		case sub.ch <- snap:
		default:
			// Replace the stale snapshot so the consumer sees the latest.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snap:
			default:
			}
		}
	}
}

func (s *Store) loadCollection(ctx context.Context, c Collection) (interface{}, error) {
	switch c {
	case CollectionTasks:
		return s.ListTasks(ctx)
	case CollectionReflections:
		return s.ListReflections(ctx)
	case CollectionDinnerPlans:
		return s.ListDinnerPlans(ctx)
	case CollectionPreferences:
		return s.ListDinnerPreferences(ctx)
	case CollectionFeedback:
		return s.ListFeedback(ctx)
	case CollectionChat:
		return s.ChatHistory(ctx)
	default:
		return nil, fmt.Errorf("unknown collection %q", c)
	}
}
