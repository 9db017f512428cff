package negotiation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusEscalated Status = "escalated"
)

func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusEscalated
}

// Round records one carrier-offer / broker-response exchange.
type Round struct {
	Number       int             `json:"number"`
	CarrierOffer decimal.Decimal `json:"carrier_offer"`
	Response     Decision        `json:"response"`
	At           time.Time       `json:"at"`
}

// Session is the negotiation aggregate for one carrier-load pairing.
// It is mutated only through the service; once the status is terminal it
// never changes again.
type Session struct {
	ID         string           `json:"session_id"`
	CallID     string           `json:"call_id,omitempty"`
	LoadID     string           `json:"load_id"`
	CarrierMC  string           `json:"carrier_mc"`
	ListedRate decimal.Decimal  `json:"listed_rate"`
	FloorRate  decimal.Decimal  `json:"floor_rate"`
	MaxRounds  int              `json:"max_rounds"`
	RoundCount int              `json:"round_count"`
	History    []Round          `json:"history"`
	Status     Status           `json:"status"`
	FinalRate  *decimal.Decimal `json:"final_rate,omitempty"`
	CloseReason string          `json:"close_reason,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

// priorAsk is the broker's standing price: the last counter issued, or the
// listed rate before any counter was made.
func (s *Session) priorAsk() decimal.Decimal {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Response.Kind == DecisionCounter {
			return s.History[i].Response.Rate
		}
	}
	return s.ListedRate
}

// applyDecision appends the round and advances the status in one step so a
// session is never left with a round counted but no matching history entry.
func (s *Session) applyDecision(offer decimal.Decimal, d Decision, at time.Time) error {
	if s.Status != StatusOpen {
		return ErrSessionClosed
	}
	if s.RoundCount >= s.MaxRounds {
		return fmt.Errorf("%w: round limit reached without terminal status", ErrInvalidState)
	}
	s.History = append(s.History, Round{
		Number:       s.RoundCount + 1,
		CarrierOffer: offer,
		Response:     d,
		At:           at,
	})
	s.RoundCount++
	switch d.Kind {
	case DecisionAccept:
		rate := d.Rate
		s.Status = StatusAccepted
		s.FinalRate = &rate
	case DecisionReject:
		s.Status = StatusRejected
		s.CloseReason = d.Reason
	case DecisionEscalate:
		s.Status = StatusEscalated
		s.CloseReason = d.Reason
	case DecisionCounter:
		// Stays open; the policy never counters on the final round.
	default:
		return fmt.Errorf("unknown decision kind %q", d.Kind)
	}
	s.UpdatedAt = at
	return nil
}

// View is the serializable projection handed across the API boundary.
type View struct {
	SessionID       string           `json:"session_id"`
	CallID          string           `json:"call_id,omitempty"`
	LoadID          string           `json:"load_id"`
	CarrierMC       string           `json:"carrier_mc"`
	Status          Status           `json:"status"`
	ListedRate      decimal.Decimal  `json:"listed_rate"`
	FloorRate       decimal.Decimal  `json:"floor_rate"`
	RoundCount      int              `json:"round_count"`
	MaxRounds       int              `json:"max_rounds"`
	RemainingRounds int              `json:"remaining_rounds"`
	LastResponse    *Decision        `json:"last_response,omitempty"`
	History         []Round          `json:"history"`
	FinalRate       *decimal.Decimal `json:"final_rate,omitempty"`
	CloseReason     string           `json:"close_reason,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	ExpiresAt       time.Time        `json:"expires_at"`
}

func (s *Session) View() *View {
	v := &View{
		SessionID:   s.ID,
		CallID:      s.CallID,
		LoadID:      s.LoadID,
		CarrierMC:   s.CarrierMC,
		Status:      s.Status,
		ListedRate:  s.ListedRate,
		FloorRate:   s.FloorRate,
		RoundCount:  s.RoundCount,
		MaxRounds:   s.MaxRounds,
		History:     append([]Round(nil), s.History...),
		CloseReason: s.CloseReason,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		ExpiresAt:   s.ExpiresAt,
	}
	if !s.Status.Terminal() {
		v.RemainingRounds = s.MaxRounds - s.RoundCount
	}
	if len(s.History) > 0 {
		last := s.History[len(s.History)-1].Response
		v.LastResponse = &last
	}
	if s.FinalRate != nil {
		rate := *s.FinalRate
		v.FinalRate = &rate
	}
	return v
}

// Clone returns a deep copy so store callers can hand out sessions without
// sharing history slices.
func (s *Session) Clone() *Session {
	out := *s
	out.History = append([]Round(nil), s.History...)
	if s.FinalRate != nil {
		rate := *s.FinalRate
		out.FinalRate = &rate
	}
	return &out
}
