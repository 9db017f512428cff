// Package loadstore persists loads and answers the match queries the call
// flow runs while a carrier is on the line. Get-by-id goes through a small
// LRU since the same load is fetched on every negotiation round.
package loadstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"carrierdesk/internal/broker/entity"
)

var ErrLoadNotFound = errors.New("load not found")

const matchLimit = 10

type Store struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	mu    sync.RWMutex
	byID  map[string]*entity.Load
	cache *lru.Cache[string, entity.Load]
}

func NewMemory() *Store {
	return &Store{byID: make(map[string]*entity.Load)}
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
	cache, err := lru.New[string, entity.Load](1024)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, cache: cache}, nil
}

func (s *Store) Create(ctx context.Context, load *entity.Load) error {
	if load == nil || strings.TrimSpace(load.LoadID) == "" {
		return fmt.Errorf("load id is required")
	}
	if load.LoadboardRate.Sign() <= 0 {
		return fmt.Errorf("loadboard rate must be positive")
	}
	if s.db != nil {
		return s.createDB(ctx, load)
	}
	return s.createMem(load)
}

func (s *Store) Get(ctx context.Context, id string) (*entity.Load, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrLoadNotFound
	}
	if s.db != nil {
		if s.cache != nil {
			if cached, ok := s.cache.Get(id); ok {
				out := cached
				return &out, nil
			}
		}
		load, err := s.getDB(ctx, id)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Add(id, *load)
		}
		return load, nil
	}
	return s.getMem(id)
}

func (s *Store) List(ctx context.Context, availableOnly bool, limit int) ([]*entity.Load, error) {
	if limit <= 0 {
		limit = 100
	}
	if s.db != nil {
		return s.listDB(ctx, availableOnly, limit)
	}
	return s.listMem(availableOnly, limit), nil
}

func (s *Store) Update(ctx context.Context, id string, apply func(*entity.Load) error) (*entity.Load, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrLoadNotFound
	}
	var (
		load *entity.Load
		err  error
	)
	if s.db != nil {
		load, err = s.updateDB(ctx, id, apply)
	} else {
		load, err = s.updateMem(id, apply)
	}
	if err == nil && s.cache != nil {
		s.cache.Remove(id)
	}
	return load, err
}

// Match returns the highest-paying available loads a carrier can run,
// capped at ten like the pitch flow expects.
func (s *Store) Match(ctx context.Context, criteria entity.LoadMatch, now time.Time) ([]*entity.Load, error) {
	if s.db != nil {
		return s.matchDB(ctx, criteria, now)
	}
	return s.matchMem(criteria, now), nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func matchesCriteria(load *entity.Load, criteria entity.LoadMatch, now time.Time) bool {
	if !load.IsAvailable {
		return false
	}
	if len(criteria.EquipmentTypes) > 0 {
		found := false
		for _, eq := range criteria.EquipmentTypes {
			if strings.EqualFold(eq, load.EquipmentType) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if criteria.MaxWeight > 0 && load.Weight > 0 && load.Weight > criteria.MaxWeight {
		return false
	}
	if criteria.MinRate.Sign() > 0 && load.LoadboardRate.LessThan(criteria.MinRate) {
		return false
	}
	if criteria.MaxRate.Sign() > 0 && load.LoadboardRate.GreaterThan(criteria.MaxRate) {
		return false
	}
	if criteria.PickupWithinDays > 0 {
		cutoff := now.AddDate(0, 0, criteria.PickupWithinDays)
		if load.PickupAt.After(cutoff) {
			return false
		}
	}
	return true
}

func sortByRateDesc(loads []*entity.Load) {
	sort.Slice(loads, func(i, j int) bool {
		return loads[i].LoadboardRate.GreaterThan(loads[j].LoadboardRate)
	})
}
