// Package memory is an in-process transactional Store used for development
// and tests. It keeps rows as column maps and evaluates criteria with Match.
//
// A transaction works on a private copy of the tables which replaces the
// committed set on Commit. Other sessions only ever read committed rows.
package memory

import (
	"context"
	"fmt"
	"sync"

	"stockroom/internal/core/storage"
	"stockroom/pkg/logger"
)

type table struct {
	def    storage.TableDef
	rows   map[int64]map[string]any
	nextID int64
}

func (t *table) clone() *table {
	out := &table{def: t.def, rows: make(map[int64]map[string]any, len(t.rows)), nextID: t.nextID}
	for id, row := range t.rows {
		out.rows[id] = storage.CloneRow(row)
	}
	return out
}

// Store is the in-memory Store. Writes are serialized: a transaction holds the
// writer slot from Begin until Commit or Rollback, so nothing else changes the
// committed tables while its copy is open.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table

	// writer is a one-slot semaphore so waiting honors context cancellation.
	writer chan struct{}
	closed bool
}

var _ storage.Store = (*Store)(nil)

// New creates a store with the given tables.
func New(defs ...storage.TableDef) *Store {
	s := &Store{
		tables: make(map[string]*table, len(defs)),
		writer: make(chan struct{}, 1),
	}
	for _, def := range defs {
		s.CreateTable(def)
	}
	return s
}

// CreateTable declares a table. Declaring an existing table replaces its definition and keeps its rows.
func (s *Store) CreateTable(def storage.TableDef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[def.Name]; ok {
		t.def = def
		return
	}
	s.tables[def.Name] = &table{def: def, rows: make(map[int64]map[string]any), nextID: 1}
}

// Session returns a session that locks per statement.
func (s *Store) Session() storage.Session {
	return &session{store: s}
}

// Begin starts the single writer transaction, waiting for the current one to finish.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	working := make(map[string]*table, len(s.tables))
	for name, t := range s.tables {
		working[name] = t.clone()
	}
	s.mu.RUnlock()

	return &transaction{session: session{store: s, inTx: true, tables: working}}, nil
}

// Ping reports whether the store is open.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("memory store closed")
	}
	return nil
}

// Close marks the store closed. Data stays readable.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	logger.Info(context.Background(), "memory store closed")
}

// Rows returns copies of every committed row in table, deleted ones included.
func (s *Store) Rows(name string) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(t.rows))
	for _, id := range sortedIDs(t.rows) {
		out = append(out, storage.CloneRow(t.rows[id]))
	}
	return out
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.writer <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("acquire write lock: %w", ctx.Err())
	}
}

func (s *Store) release() {
	<-s.writer
}
