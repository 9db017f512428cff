package loadstore

import (
	"fmt"
	"time"

	"carrierdesk/internal/broker/entity"
)

func cloneLoad(load *entity.Load) *entity.Load {
	out := *load
	if load.FinalRate != nil {
		rate := *load.FinalRate
		out.FinalRate = &rate
	}
	return &out
}

func (s *Store) createMem(load *entity.Load) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[load.LoadID]; ok {
		return fmt.Errorf("load %s already exists", load.LoadID)
	}
	s.byID[load.LoadID] = cloneLoad(load)
	return nil
}

func (s *Store) getMem(id string) (*entity.Load, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	load, ok := s.byID[id]
	if !ok {
		return nil, ErrLoadNotFound
	}
	return cloneLoad(load), nil
}

func (s *Store) listMem(availableOnly bool, limit int) []*entity.Load {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Load
	for _, load := range s.byID {
		if availableOnly && !load.IsAvailable {
			continue
		}
		out = append(out, cloneLoad(load))
	}
	sortByRateDesc(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) updateMem(id string, apply func(*entity.Load) error) (*entity.Load, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	load, ok := s.byID[id]
	if !ok {
		return nil, ErrLoadNotFound
	}
	work := cloneLoad(load)
	if err := apply(work); err != nil {
		return nil, err
	}
	s.byID[id] = work
	return cloneLoad(work), nil
}

func (s *Store) matchMem(criteria entity.LoadMatch, now time.Time) []*entity.Load {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Load
	for _, load := range s.byID {
		if matchesCriteria(load, criteria, now) {
			out = append(out, cloneLoad(load))
		}
	}
	sortByRateDesc(out)
	if len(out) > matchLimit {
		out = out[:matchLimit]
	}
	return out
}
