package call_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"carrierdesk/internal/broker/entity"
	"carrierdesk/internal/broker/fmcsa"
	"carrierdesk/internal/broker/negotiation"
	"carrierdesk/internal/broker/outcome"
	"carrierdesk/internal/broker/repository/callstore"
	"carrierdesk/internal/broker/repository/carrierstore"
	"carrierdesk/internal/broker/repository/loadstore"
	"carrierdesk/internal/broker/repository/sessionstore"
	"carrierdesk/internal/broker/repository/transcript"
	callsvc "carrierdesk/internal/broker/service/call"
	carriersvc "carrierdesk/internal/broker/service/carrier"
)

type okVerifier struct{}

func (okVerifier) Verify(_ context.Context, mc string) (fmcsa.Verification, error) {
	return fmcsa.Verification{MCNumber: mc, IsValid: true, Status: "ACTIVE"}, nil
}

type fixture struct {
	calls       *callstore.Store
	loads       *loadstore.Store
	carriers    *carrierstore.Store
	sessions    *negotiation.Service
	transcripts *transcript.MemoryStore
	svc         *callsvc.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	calls := callstore.NewMemory()
	loads := loadstore.NewMemory()
	carriers := carrierstore.NewMemory()
	transcripts := transcript.NewMemoryStore()
	sessions := negotiation.NewService(sessionstore.NewMemory(), negotiation.DefaultConfig(), nil)
	carrierSvc := carriersvc.NewService(okVerifier{}, carriers)
	svc := callsvc.NewService(calls, loads, sessions, carrierSvc, transcripts, nil)
	return &fixture{
		calls:       calls,
		loads:       loads,
		carriers:    carriers,
		sessions:    sessions,
		transcripts: transcripts,
		svc:         svc,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestIngestWebhookCreatesCallFromPlatformEvent(t *testing.T) {
	f := newFixture(t)

	call, err := f.svc.IngestWebhook(context.Background(), callsvc.WebhookEvent{
		EventType: "call_started",
		CallID:    "abc-123",
		ExtractedData: map[string]any{
			"mc_number": "123456",
			"load_id":   "L001",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "hr_abc-123", call.CallID)
	require.Equal(t, "abc-123", call.PlatformCallID)
	require.Equal(t, "123456", call.CarrierMC)
	require.Equal(t, "L001", call.DiscussedLoadID)
}

func TestIngestWebhookConvergesOnOneRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.IngestWebhook(ctx, callsvc.WebhookEvent{
		EventType:     "call_started",
		CallID:        "abc-123",
		ExtractedData: map[string]any{"mc_number": "123456"},
	})
	require.NoError(t, err)

	call, err := f.svc.IngestWebhook(ctx, callsvc.WebhookEvent{
		EventType: "call_ended",
		CallID:    "abc-123",
		CallData:  map[string]any{"transcript": "thanks, sounds good", "duration_seconds": 185},
		ExtractedData: map[string]any{
			"outcome":         "successful_booking",
			"sentiment":       "positive",
			"final_rate":      1300,
			"sentiment_score": 0.5,
		},
	})
	require.NoError(t, err)
	require.Equal(t, "hr_abc-123", call.CallID)
	require.Equal(t, "123456", call.CarrierMC)
	require.Equal(t, outcome.SuccessfulBooking, call.Outcome)
	require.Equal(t, outcome.SentimentPositive, call.Sentiment)
	require.NotNil(t, call.EndTime)
	require.NotNil(t, call.DurationSeconds)
	require.Equal(t, 185, *call.DurationSeconds)
	require.True(t, call.FinalNegotiatedRate.Equal(dec("1300")))

	recent, err := f.svc.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	archived, err := f.svc.Transcript(ctx, call.CallID)
	require.NoError(t, err)
	require.Equal(t, "thanks, sounds good", archived)
}

func TestIngestWebhookWithoutPlatformIDGeneratesOne(t *testing.T) {
	f := newFixture(t)

	call, err := f.svc.IngestWebhook(context.Background(), callsvc.WebhookEvent{EventType: "call_started"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(call.CallID, "call_"))
}

func TestEndBooksLoadWhenNegotiationAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, f.loads.Create(ctx, &entity.Load{
		LoadID:        "L001",
		Origin:        "Chicago, IL",
		Destination:   "Dallas, TX",
		EquipmentType: "Dry Van",
		LoadboardRate: dec("1500"),
		IsAvailable:   true,
		PickupAt:      now.Add(48 * time.Hour),
		DeliveryAt:    now.Add(96 * time.Hour),
	}))

	call, err := f.svc.IngestWebhook(ctx, callsvc.WebhookEvent{
		EventType:     "call_started",
		CallID:        "abc-123",
		ExtractedData: map[string]any{"mc_number": "123456", "load_id": "L001"},
	})
	require.NoError(t, err)

	require.NoError(t, f.carriers.Put(ctx, &entity.Carrier{MCNumber: "123456", IsVerified: true}))

	sess, err := f.sessions.Create(ctx, negotiation.CreateParams{
		CallID:     call.CallID,
		LoadID:     "L001",
		CarrierMC:  "123456",
		ListedRate: dec("1500"),
	})
	require.NoError(t, err)
	sess, err = f.sessions.SubmitOffer(ctx, sess.SessionID, dec("1300"))
	require.NoError(t, err)
	require.Equal(t, negotiation.StatusAccepted, sess.Status)

	ended, err := f.svc.End(ctx, call.CallID, outcome.CallMetadata{
		SentimentCategory: "satisfied",
		Transcript:        "book it at 1300",
	})
	require.NoError(t, err)
	require.Equal(t, outcome.SuccessfulBooking, ended.Outcome)
	require.Equal(t, outcome.SentimentSatisfied, ended.Sentiment)
	require.NotNil(t, ended.FinalNegotiatedRate)
	require.True(t, ended.FinalNegotiatedRate.Equal(dec("1300")))

	load, err := f.loads.Get(ctx, "L001")
	require.NoError(t, err)
	require.False(t, load.IsAvailable)
	require.Equal(t, "123456", load.AssignedCarrierMC)
	require.NotNil(t, load.FinalRate)
	require.True(t, load.FinalRate.Equal(dec("1300")))

	carrier, err := f.carriers.Get(ctx, "123456")
	require.NoError(t, err)
	require.Equal(t, 1, carrier.SuccessfulLoads)
}

func TestEndWithoutSessionClassifiesNoSuitableLoads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	call, err := f.svc.IngestWebhook(ctx, callsvc.WebhookEvent{CallID: "xyz-9"})
	require.NoError(t, err)

	ended, err := f.svc.End(ctx, call.CallID, outcome.CallMetadata{SentimentScore: -0.1})
	require.NoError(t, err)
	require.Equal(t, outcome.NoSuitableLoads, ended.Outcome)
	require.Equal(t, outcome.SentimentNeutral, ended.Sentiment)
	require.NotNil(t, ended.EndTime)
}

func TestEndVerificationFailureOverridesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	call, err := f.svc.IngestWebhook(ctx, callsvc.WebhookEvent{CallID: "ver-1"})
	require.NoError(t, err)

	_, err = f.sessions.Create(ctx, negotiation.CreateParams{
		CallID:     call.CallID,
		LoadID:     "L001",
		CarrierMC:  "123456",
		ListedRate: dec("1500"),
	})
	require.NoError(t, err)

	ended, err := f.svc.End(ctx, call.CallID, outcome.CallMetadata{VerificationFailed: true})
	require.NoError(t, err)
	require.Equal(t, outcome.FailedVerification, ended.Outcome)
}

func TestSummaryRollsUpRecentCalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, tc := range []struct {
		id      string
		outcome string
	}{
		{"a", "successful_booking"},
		{"b", "rejected_by_carrier"},
		{"c", "successful_booking"},
		{"d", "no_suitable_loads"},
	} {
		_, err := f.svc.IngestWebhook(ctx, callsvc.WebhookEvent{
			CallID:        tc.id,
			ExtractedData: map[string]any{"outcome": tc.outcome, "sentiment": "neutral"},
		})
		require.NoError(t, err)
	}

	summary, err := f.svc.Summary(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 4, summary.TotalCalls)
	require.Equal(t, 2, summary.SuccessfulBookings)
	require.InDelta(t, 50.0, summary.ConversionRate, 0.001)
	require.Equal(t, 2, summary.OutcomeBreakdown[outcome.SuccessfulBooking])
	require.Equal(t, 4, summary.SentimentBreakdown[outcome.SentimentNeutral])
}
