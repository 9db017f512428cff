// Package carrierstore persists carrier profiles keyed by MC number.
package carrierstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"carrierdesk/internal/broker/entity"
)

var ErrCarrierNotFound = errors.New("carrier not found")

type Store struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	mu   sync.RWMutex
	byMC map[string]*entity.Carrier
}

func NewMemory() *Store {
	return &Store{byMC: make(map[string]*entity.Carrier)}
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

func (s *Store) Get(ctx context.Context, mc string) (*entity.Carrier, error) {
	mc = strings.TrimSpace(mc)
	if mc == "" {
		return nil, ErrCarrierNotFound
	}
	if s.db != nil {
		return s.getDB(ctx, mc)
	}
	return s.getMem(mc)
}

// Put inserts or replaces a carrier profile.
func (s *Store) Put(ctx context.Context, carrier *entity.Carrier) error {
	if carrier == nil || strings.TrimSpace(carrier.MCNumber) == "" {
		return fmt.Errorf("mc number is required")
	}
	if s.db != nil {
		return s.putDB(ctx, carrier)
	}
	return s.putMem(carrier)
}

func (s *Store) Update(ctx context.Context, mc string, apply func(*entity.Carrier) error) (*entity.Carrier, error) {
	mc = strings.TrimSpace(mc)
	if mc == "" {
		return nil, ErrCarrierNotFound
	}
	if s.db != nil {
		return s.updateDB(ctx, mc, apply)
	}
	return s.updateMem(mc, apply)
}

func (s *Store) List(ctx context.Context, limit int) ([]*entity.Carrier, error) {
	if limit <= 0 {
		limit = 100
	}
	if s.db != nil {
		return s.listDB(ctx, limit)
	}
	return s.listMem(limit), nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func cloneCarrier(c *entity.Carrier) *entity.Carrier {
	out := *c
	out.EquipmentTypes = append([]string(nil), c.EquipmentTypes...)
	if c.LastVerifiedAt != nil {
		t := *c.LastVerifiedAt
		out.LastVerifiedAt = &t
	}
	if c.LastContactAt != nil {
		t := *c.LastContactAt
		out.LastContactAt = &t
	}
	return &out
}

func (s *Store) getMem(mc string) (*entity.Carrier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byMC[mc]
	if !ok {
		return nil, ErrCarrierNotFound
	}
	return cloneCarrier(c), nil
}

func (s *Store) putMem(carrier *entity.Carrier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byMC[carrier.MCNumber] = cloneCarrier(carrier)
	return nil
}

func (s *Store) updateMem(mc string, apply func(*entity.Carrier) error) (*entity.Carrier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byMC[mc]
	if !ok {
		return nil, ErrCarrierNotFound
	}
	work := cloneCarrier(c)
	if err := apply(work); err != nil {
		return nil, err
	}
	s.byMC[mc] = work
	return cloneCarrier(work), nil
}

func (s *Store) listMem(limit int) []*entity.Carrier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Carrier, 0, len(s.byMC))
	for _, c := range s.byMC {
		out = append(out, cloneCarrier(c))
		if len(out) == limit {
			break
		}
	}
	return out
}
