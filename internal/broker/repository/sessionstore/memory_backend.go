package sessionstore

import (
	"fmt"
	"sort"
	"time"

	"carrierdesk/internal/broker/negotiation"
)

func (s *Store) createMem(sess *negotiation.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[sess.ID]; ok {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	s.entries[sess.ID] = &memEntry{sess: sess.Clone()}
	return nil
}

func (s *Store) entry(id string) (*memEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

func (s *Store) getMem(id string) (*negotiation.Session, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, negotiation.ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Clone(), nil
}

func (s *Store) updateMem(id string, apply func(*negotiation.Session) error) (*negotiation.Session, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, negotiation.ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	work := e.sess.Clone()
	if err := apply(work); err != nil {
		return nil, err
	}
	e.sess = work
	return work.Clone(), nil
}

func (s *Store) snapshotMem() []*negotiation.Session {
	s.mu.RLock()
	entries := make([]*memEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*negotiation.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.sess.Clone())
		e.mu.Unlock()
	}
	return out
}

func (s *Store) activeForCallMem(callID string) (*negotiation.Session, error) {
	var latest *negotiation.Session
	for _, sess := range s.snapshotMem() {
		if sess.CallID != callID || sess.Status != negotiation.StatusOpen {
			continue
		}
		if latest == nil || sess.CreatedAt.After(latest.CreatedAt) {
			latest = sess
		}
	}
	if latest == nil {
		return nil, negotiation.ErrSessionNotFound
	}
	return latest, nil
}

func (s *Store) listByCallMem(callID string) ([]*negotiation.Session, error) {
	var out []*negotiation.Session
	for _, sess := range s.snapshotMem() {
		if sess.CallID == callID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) openExpiredIDsMem(now time.Time) ([]string, error) {
	var ids []string
	for _, sess := range s.snapshotMem() {
		if sess.Status == negotiation.StatusOpen && !sess.ExpiresAt.After(now) {
			ids = append(ids, sess.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
