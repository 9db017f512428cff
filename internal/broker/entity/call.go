package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"carrierdesk/internal/broker/outcome"
)

// Call is one inbound carrier call handled by the external conversational
// platform. The platform owns the conversation; this record is what lands
// here for audit and analytics.
type Call struct {
	CallID              string            `json:"call_id"`
	CarrierMC           string            `json:"carrier_mc_number"`
	StartTime           time.Time         `json:"start_time"`
	EndTime             *time.Time        `json:"end_time,omitempty"`
	DurationSeconds     *int              `json:"duration_seconds,omitempty"`
	PlatformCallID      string            `json:"platform_call_id,omitempty"`
	Transcript          string            `json:"transcript,omitempty"`
	DiscussedLoadID     string            `json:"discussed_load_id,omitempty"`
	InitialRateOffered  *decimal.Decimal  `json:"initial_rate_offered,omitempty"`
	FinalNegotiatedRate *decimal.Decimal  `json:"final_negotiated_rate,omitempty"`
	Outcome             outcome.Label     `json:"outcome,omitempty"`
	Sentiment           outcome.Sentiment `json:"sentiment,omitempty"`
	ExtractedData       map[string]any    `json:"extracted_data,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// CallSummary is the analytics rollup served to the reporting layer.
type CallSummary struct {
	TotalCalls         int                       `json:"total_calls"`
	SuccessfulBookings int                       `json:"successful_bookings"`
	AverageDuration    *float64                  `json:"average_duration,omitempty"`
	SentimentBreakdown map[outcome.Sentiment]int `json:"sentiment_breakdown"`
	OutcomeBreakdown   map[outcome.Label]int     `json:"outcome_breakdown"`
	ConversionRate     float64                   `json:"conversion_rate"`
}
