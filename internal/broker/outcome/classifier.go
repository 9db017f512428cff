// Package outcome maps finished negotiations and call metadata onto the
// categorical labels the analytics layer consumes. No NLP happens here; the
// conversational platform supplies the raw sentiment signal and this package
// only buckets it.
package outcome

import (
	"strings"

	"carrierdesk/internal/broker/negotiation"
)

type Label string

const (
	SuccessfulBooking  Label = "successful_booking"
	RejectedByCarrier  Label = "rejected_by_carrier"
	FailedVerification Label = "failed_verification"
	NoSuitableLoads    Label = "no_suitable_loads"
	NegotiationFailed  Label = "negotiation_failed"
	TransferredToSales Label = "transferred_to_sales"
	CallDropped        Label = "call_dropped"
	SystemError        Label = "system_error"
)

type Sentiment string

const (
	SentimentPositive   Sentiment = "positive"
	SentimentNeutral    Sentiment = "neutral"
	SentimentNegative   Sentiment = "negative"
	SentimentFrustrated Sentiment = "frustrated"
	SentimentSatisfied  Sentiment = "satisfied"
)

// CallMetadata is what the external call platform hands over alongside a
// finished call.
type CallMetadata struct {
	VerificationFailed bool
	SentimentCategory  string
	SentimentScore     float64
	Transcript         string
}

// ParseLabel maps a webhook string onto a known label.
func ParseLabel(s string) (Label, bool) {
	switch Label(strings.ToLower(strings.TrimSpace(s))) {
	case SuccessfulBooking, RejectedByCarrier, FailedVerification, NoSuitableLoads,
		NegotiationFailed, TransferredToSales, CallDropped, SystemError:
		return Label(strings.ToLower(strings.TrimSpace(s))), true
	}
	return "", false
}

// Classify derives the call outcome. A failed carrier verification overrides
// whatever the negotiation produced; a call that never got a session had no
// suitable loads. An open session at classification time falls back to
// transcript phrase matching.
func Classify(sess *negotiation.Session, meta CallMetadata) Label {
	if sess == nil {
		return classifyStatus("", false, meta)
	}
	return classifyStatus(sess.Status, true, meta)
}

// ClassifyView is Classify for the serialized session projection the service
// layer works with.
func ClassifyView(view *negotiation.View, meta CallMetadata) Label {
	if view == nil {
		return classifyStatus("", false, meta)
	}
	return classifyStatus(view.Status, true, meta)
}

func classifyStatus(status negotiation.Status, hasSession bool, meta CallMetadata) Label {
	if meta.VerificationFailed {
		return FailedVerification
	}
	if !hasSession {
		return NoSuitableLoads
	}
	switch status {
	case negotiation.StatusAccepted:
		return SuccessfulBooking
	case negotiation.StatusRejected:
		return RejectedByCarrier
	case negotiation.StatusEscalated:
		return TransferredToSales
	}
	return classifyTranscript(meta.Transcript)
}

func classifyTranscript(transcript string) Label {
	t := strings.ToLower(transcript)
	switch {
	case containsAny(t, "not interested", "declined", "pass"):
		return RejectedByCarrier
	case strings.Contains(t, "transfer") || strings.Contains(t, "sales rep"):
		return TransferredToSales
	case containsAny(t, "dropped", "hung up", "disconnected"):
		return CallDropped
	}
	return NegotiationFailed
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// BucketSentiment folds the platform's raw sentiment signal into the fixed
// label set. A recognized category wins; otherwise the score is bucketed on
// fixed thresholds.
func BucketSentiment(meta CallMetadata) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(meta.SentimentCategory))) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNeutral:
		return SentimentNeutral
	case SentimentNegative:
		return SentimentNegative
	case SentimentFrustrated:
		return SentimentFrustrated
	case SentimentSatisfied:
		return SentimentSatisfied
	}
	score := meta.SentimentScore
	switch {
	case score >= 0.7:
		return SentimentSatisfied
	case score >= 0.2:
		return SentimentPositive
	case score > -0.2:
		return SentimentNeutral
	case score > -0.7:
		return SentimentNegative
	default:
		return SentimentFrustrated
	}
}
