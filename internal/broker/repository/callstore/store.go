// Package callstore persists call records and answers the analytics rollup.
package callstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"carrierdesk/internal/broker/entity"
	"carrierdesk/internal/broker/outcome"
)

var ErrCallNotFound = errors.New("call not found")

type Store struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	mu   sync.RWMutex
	byID map[string]*entity.Call
}

func NewMemory() *Store {
	return &Store{byID: make(map[string]*entity.Call)}
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

func (s *Store) Create(ctx context.Context, call *entity.Call) error {
	if call == nil || strings.TrimSpace(call.CallID) == "" {
		return fmt.Errorf("call id is required")
	}
	if s.db != nil {
		return s.createDB(ctx, call)
	}
	return s.createMem(call)
}

func (s *Store) Get(ctx context.Context, id string) (*entity.Call, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrCallNotFound
	}
	if s.db != nil {
		return s.getDB(ctx, id)
	}
	return s.getMem(id)
}

func (s *Store) Update(ctx context.Context, id string, apply func(*entity.Call) error) (*entity.Call, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrCallNotFound
	}
	if s.db != nil {
		return s.updateDB(ctx, id, apply)
	}
	return s.updateMem(id, apply)
}

func (s *Store) Recent(ctx context.Context, limit int) ([]*entity.Call, error) {
	if limit <= 0 {
		limit = 50
	}
	if s.db != nil {
		return s.recentDB(ctx, limit)
	}
	return s.recentMem(limit), nil
}

func (s *Store) ListByCarrier(ctx context.Context, mc string, limit int) ([]*entity.Call, error) {
	if limit <= 0 {
		limit = 100
	}
	if s.db != nil {
		return s.listByCarrierDB(ctx, mc, limit)
	}
	return s.listByCarrierMem(mc, limit), nil
}

// Summary rolls up calls that started after the cutoff.
func (s *Store) Summary(ctx context.Context, since time.Time) (*entity.CallSummary, error) {
	if s.db != nil {
		return s.summaryDB(ctx, since)
	}
	return s.summaryMem(since), nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func cloneCall(c *entity.Call) *entity.Call {
	out := *c
	if c.EndTime != nil {
		t := *c.EndTime
		out.EndTime = &t
	}
	if c.DurationSeconds != nil {
		d := *c.DurationSeconds
		out.DurationSeconds = &d
	}
	if c.InitialRateOffered != nil {
		r := *c.InitialRateOffered
		out.InitialRateOffered = &r
	}
	if c.FinalNegotiatedRate != nil {
		r := *c.FinalNegotiatedRate
		out.FinalNegotiatedRate = &r
	}
	if c.ExtractedData != nil {
		data := make(map[string]any, len(c.ExtractedData))
		for k, v := range c.ExtractedData {
			data[k] = v
		}
		out.ExtractedData = data
	}
	return &out
}

func (s *Store) createMem(call *entity.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[call.CallID]; ok {
		return fmt.Errorf("call %s already exists", call.CallID)
	}
	s.byID[call.CallID] = cloneCall(call)
	return nil
}

func (s *Store) getMem(id string) (*entity.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, ErrCallNotFound
	}
	return cloneCall(c), nil
}

func (s *Store) updateMem(id string, apply func(*entity.Call) error) (*entity.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, ErrCallNotFound
	}
	work := cloneCall(c)
	if err := apply(work); err != nil {
		return nil, err
	}
	s.byID[id] = work
	return cloneCall(work), nil
}

func (s *Store) snapshotMem() []*entity.Call {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Call, 0, len(s.byID))
	for _, c := range s.byID {
		out = append(out, cloneCall(c))
	}
	return out
}

func (s *Store) recentMem(limit int) []*entity.Call {
	out := s.snapshotMem()
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) listByCarrierMem(mc string, limit int) []*entity.Call {
	var out []*entity.Call
	for _, c := range s.snapshotMem() {
		if c.CarrierMC == mc {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) summaryMem(since time.Time) *entity.CallSummary {
	summary := &entity.CallSummary{
		SentimentBreakdown: make(map[outcome.Sentiment]int),
		OutcomeBreakdown:   make(map[outcome.Label]int),
	}
	var durationTotal, durationCount int
	for _, c := range s.snapshotMem() {
		if c.StartTime.Before(since) {
			continue
		}
		summary.TotalCalls++
		if c.Outcome == outcome.SuccessfulBooking {
			summary.SuccessfulBookings++
		}
		if c.Outcome != "" {
			summary.OutcomeBreakdown[c.Outcome]++
		}
		if c.Sentiment != "" {
			summary.SentimentBreakdown[c.Sentiment]++
		}
		if c.DurationSeconds != nil {
			durationTotal += *c.DurationSeconds
			durationCount++
		}
	}
	if durationCount > 0 {
		avg := float64(durationTotal) / float64(durationCount)
		summary.AverageDuration = &avg
	}
	if summary.TotalCalls > 0 {
		summary.ConversionRate = float64(summary.SuccessfulBookings) / float64(summary.TotalCalls) * 100
	}
	return summary
}
