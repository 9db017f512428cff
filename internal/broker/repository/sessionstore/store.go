// Package sessionstore persists negotiation sessions. It runs against
// Postgres when a DSN is configured and an in-memory map otherwise, so the
// negotiation core stays testable without a database.
package sessionstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"carrierdesk/internal/broker/negotiation"
)

type memEntry struct {
	mu   sync.Mutex
	sess *negotiation.Session
}

type Store struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	mu      sync.RWMutex
	entries map[string]*memEntry
}

func NewMemory() *Store {
	return &Store{entries: make(map[string]*memEntry)}
}

func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Create(ctx context.Context, sess *negotiation.Session) error {
	if sess == nil || strings.TrimSpace(sess.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if s.db != nil {
		return s.createDB(ctx, sess)
	}
	return s.createMem(sess)
}

func (s *Store) Get(ctx context.Context, id string) (*negotiation.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, negotiation.ErrSessionNotFound
	}
	if s.db != nil {
		return s.getDB(ctx, id)
	}
	return s.getMem(id)
}

// Update applies the mutation atomically: per-entry lock in memory, a
// SELECT ... FOR UPDATE transaction on Postgres. When apply errors nothing
// is written.
func (s *Store) Update(ctx context.Context, id string, apply func(*negotiation.Session) error) (*negotiation.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, negotiation.ErrSessionNotFound
	}
	if s.db != nil {
		return s.updateDB(ctx, id, apply)
	}
	return s.updateMem(id, apply)
}

func (s *Store) ActiveForCall(ctx context.Context, callID string) (*negotiation.Session, error) {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return nil, negotiation.ErrSessionNotFound
	}
	if s.db != nil {
		return s.activeForCallDB(ctx, callID)
	}
	return s.activeForCallMem(callID)
}

func (s *Store) ListByCall(ctx context.Context, callID string) ([]*negotiation.Session, error) {
	callID = strings.TrimSpace(callID)
	if s.db != nil {
		return s.listByCallDB(ctx, callID)
	}
	return s.listByCallMem(callID)
}

func (s *Store) OpenExpiredIDs(ctx context.Context, now time.Time) ([]string, error) {
	if s.db != nil {
		return s.openExpiredIDsDB(ctx, now)
	}
	return s.openExpiredIDsMem(now)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
