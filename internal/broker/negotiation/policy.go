package negotiation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Policy decides accept/counter/escalate for a carrier offer against the
// session state. It is stateless and side-effect free; every branch is
// reachable from a deterministic unit test.
type Policy struct{}

// Decide evaluates one carrier offer.
//
// An offer between the floor and the listed rate is accepted as-is. An offer
// above the listed rate is countered at the listed rate; the broker never
// pays more than it asked. An offer below the floor is countered at the
// midpoint between the floor and the broker's prior ask (the listed rate on
// round one), clamped at the floor and rounded to the nearest whole currency
// unit. A non-accept decision on the final round escalates instead of
// countering, handing the negotiation to a human.
func (Policy) Decide(sess *Session, offer decimal.Decimal) (Decision, error) {
	if sess == nil {
		return Decision{}, fmt.Errorf("%w: nil session", ErrInvalidState)
	}
	if sess.Status != StatusOpen {
		return Decision{}, fmt.Errorf("%w: status %q", ErrInvalidState, sess.Status)
	}
	if sess.RoundCount >= sess.MaxRounds {
		return Decision{}, fmt.Errorf("%w: round limit already reached", ErrInvalidState)
	}
	if offer.Sign() <= 0 {
		return Decision{}, fmt.Errorf("%w: offer must be positive", ErrInvalidOffer)
	}

	finalRound := sess.RoundCount+1 >= sess.MaxRounds

	if offer.GreaterThanOrEqual(sess.FloorRate) && offer.LessThanOrEqual(sess.ListedRate) {
		return Decision{Kind: DecisionAccept, Rate: offer}, nil
	}

	if offer.GreaterThan(sess.ListedRate) {
		if finalRound {
			return Decision{Kind: DecisionEscalate, Reason: "round limit reached without agreement"}, nil
		}
		return Decision{Kind: DecisionCounter, Rate: sess.ListedRate}, nil
	}

	// Offer is below the floor.
	if finalRound {
		return Decision{Kind: DecisionEscalate, Reason: "round limit reached without agreement"}, nil
	}
	counter := sess.FloorRate.Add(sess.priorAsk()).Div(two).Round(0)
	if counter.LessThan(sess.FloorRate) {
		counter = sess.FloorRate
	}
	return Decision{Kind: DecisionCounter, Rate: counter}, nil
}
