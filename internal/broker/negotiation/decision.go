package negotiation

import "github.com/shopspring/decimal"

type DecisionKind string

const (
	DecisionAccept   DecisionKind = "accept"
	DecisionCounter  DecisionKind = "counter"
	DecisionReject   DecisionKind = "reject"
	DecisionEscalate DecisionKind = "escalate"
)

// Decision is the policy verdict for one carrier offer. Rate carries the
// accepted rate for accept and the counter amount for counter; it is zero
// for reject and escalate.
type Decision struct {
	Kind   DecisionKind    `json:"kind"`
	Rate   decimal.Decimal `json:"rate"`
	Reason string          `json:"reason,omitempty"`
}

func (d Decision) Terminal() bool {
	return d.Kind == DecisionAccept || d.Kind == DecisionReject || d.Kind == DecisionEscalate
}
