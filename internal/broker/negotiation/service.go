package negotiation

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// Store is the persistence capability the service depends on. Update must
// apply the mutation atomically: when the closure errors nothing is written,
// otherwise the round increment and history append land together.
type Store interface {
	Create(ctx context.Context, sess *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, id string, apply func(*Session) error) (*Session, error)
	ActiveForCall(ctx context.Context, callID string) (*Session, error)
	ListByCall(ctx context.Context, callID string) ([]*Session, error)
	OpenExpiredIDs(ctx context.Context, now time.Time) ([]string, error)
}

// Sink receives session transitions for the live event feed. Implementations
// must not block.
type Sink interface {
	SessionChanged(view *View)
}

// Config carries the policy constants. They are injected here rather than
// read from ambient state so tests can pin their own configuration.
type Config struct {
	MaxRounds     int
	DefaultMargin decimal.Decimal
	SessionTTL    time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRounds:     3,
		DefaultMargin: decimal.RequireFromString("0.85"),
		SessionTTL:    24 * time.Hour,
	}
}

type Service struct {
	store  Store
	policy Policy
	cfg    Config
	sink   Sink
	now    func() time.Time

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

func NewService(store Store, cfg Config, sink Sink) *Service {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultConfig().MaxRounds
	}
	if cfg.DefaultMargin.Sign() <= 0 {
		cfg.DefaultMargin = DefaultConfig().DefaultMargin
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultConfig().SessionTTL
	}
	return &Service{
		store:   store,
		cfg:     cfg,
		sink:    sink,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) newID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), s.entropy).String()
}

type CreateParams struct {
	CallID         string
	LoadID         string
	CarrierMC      string
	ListedRate     decimal.Decimal
	MarginFraction decimal.Decimal // zero means the configured default
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*View, error) {
	if strings.TrimSpace(p.LoadID) == "" {
		return nil, fmt.Errorf("%w: load id is required", ErrInvalidLoad)
	}
	if p.ListedRate.Sign() <= 0 {
		return nil, fmt.Errorf("%w: listed rate must be positive", ErrInvalidLoad)
	}
	margin := p.MarginFraction
	if margin.IsZero() {
		margin = s.cfg.DefaultMargin
	}
	if margin.Sign() <= 0 || margin.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: margin fraction must be in (0,1]", ErrInvalidLoad)
	}

	now := s.now().UTC()
	sess := &Session{
		ID:         s.newID(),
		CallID:     strings.TrimSpace(p.CallID),
		LoadID:     strings.TrimSpace(p.LoadID),
		CarrierMC:  strings.TrimSpace(p.CarrierMC),
		ListedRate: p.ListedRate,
		FloorRate:  p.ListedRate.Mul(margin).Round(2),
		MaxRounds:  s.cfg.MaxRounds,
		Status:     StatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.SessionTTL),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	view := sess.View()
	s.notify(view)
	return view, nil
}

// SubmitOffer runs one negotiation round. The policy decision, history
// append and status transition execute inside a single store update so
// concurrent submissions for the same session serialize and the session is
// never half-written.
func (s *Service) SubmitOffer(ctx context.Context, id string, offer decimal.Decimal) (*View, error) {
	if offer.Sign() <= 0 {
		return nil, fmt.Errorf("%w: offer must be positive", ErrInvalidOffer)
	}
	sess, err := s.store.Update(ctx, id, func(sess *Session) error {
		if sess.Status.Terminal() {
			return ErrSessionClosed
		}
		d, err := s.policy.Decide(sess, offer)
		if err != nil {
			return err
		}
		return sess.applyDecision(offer, d, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}
	view := sess.View()
	s.notify(view)
	return view, nil
}

func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.View(), nil
}

// Reject closes an open session because the carrier declined. No round is
// consumed; the decline is the carrier walking away, not an exchange.
func (s *Service) Reject(ctx context.Context, id, reason string) (*View, error) {
	sess, err := s.store.Update(ctx, id, func(sess *Session) error {
		if sess.Status.Terminal() {
			return ErrSessionClosed
		}
		sess.Status = StatusRejected
		sess.CloseReason = strings.TrimSpace(reason)
		sess.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	view := sess.View()
	s.notify(view)
	return view, nil
}

func (s *Service) ActiveForCall(ctx context.Context, callID string) (*View, error) {
	sess, err := s.store.ActiveForCall(ctx, callID)
	if err != nil {
		return nil, err
	}
	return sess.View(), nil
}

func (s *Service) HistoryForCall(ctx context.Context, callID string) ([]*View, error) {
	sessions, err := s.store.ListByCall(ctx, callID)
	if err != nil {
		return nil, err
	}
	views := make([]*View, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, sess.View())
	}
	return views, nil
}

// ExpireStale escalates open sessions whose expiry passed; a negotiation
// nobody finished gets handed to a human. Returns the number escalated.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.store.OpenExpiredIDs(ctx, now)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		sess, err := s.store.Update(ctx, id, func(sess *Session) error {
			if sess.Status.Terminal() || sess.ExpiresAt.After(now) {
				return ErrSessionClosed
			}
			sess.Status = StatusEscalated
			sess.CloseReason = "negotiation expired"
			sess.UpdatedAt = s.now().UTC()
			return nil
		})
		if err != nil {
			continue
		}
		expired++
		s.notify(sess.View())
	}
	if expired > 0 {
		log.Printf("negotiation: escalated %d expired sessions", expired)
	}
	return expired, nil
}

func (s *Service) notify(view *View) {
	if s.sink != nil {
		s.sink.SessionChanged(view)
	}
}
