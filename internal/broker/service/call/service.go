// Package call owns the lifecycle of a call record: webhook ingestion from
// the conversational platform, end-of-call classification, booking the load
// a won negotiation produced, and the analytics rollup.
package call

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"carrierdesk/internal/broker/entity"
	"carrierdesk/internal/broker/negotiation"
	"carrierdesk/internal/broker/outcome"
	"carrierdesk/internal/broker/repository/callstore"
	"carrierdesk/internal/broker/repository/loadstore"
	"carrierdesk/internal/broker/repository/transcript"
	carriersvc "carrierdesk/internal/broker/service/carrier"
)

// Notifier receives call transitions for the live event feed.
type Notifier interface {
	CallChanged(payload any)
}

type Service struct {
	calls       *callstore.Store
	loads       *loadstore.Store
	sessions    *negotiation.Service
	carriers    *carriersvc.Service
	transcripts transcript.Store
	notifier    Notifier
	now         func() time.Time
}

func NewService(
	calls *callstore.Store,
	loads *loadstore.Store,
	sessions *negotiation.Service,
	carriers *carriersvc.Service,
	transcripts transcript.Store,
	notifier Notifier,
) *Service {
	return &Service{
		calls:       calls,
		loads:       loads,
		sessions:    sessions,
		carriers:    carriers,
		transcripts: transcripts,
		notifier:    notifier,
		now:         time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WebhookEvent is the payload the conversational platform posts when a call
// starts, progresses, or finishes. extracted_data is whatever the platform's
// extraction step produced; only known keys are consumed.
type WebhookEvent struct {
	EventType     string         `json:"event_type"`
	CallID        string         `json:"call_id"`
	CallData      map[string]any `json:"call_data"`
	ExtractedData map[string]any `json:"extracted_data"`
}

// IngestWebhook upserts the call record for a platform event. The internal
// call id is derived from the platform's id so repeated events for the same
// call converge on one record.
func (s *Service) IngestWebhook(ctx context.Context, event WebhookEvent) (*entity.Call, error) {
	platformID := strings.TrimSpace(event.CallID)
	if platformID == "" {
		platformID = stringField(event.CallData, "call_id")
	}
	id := internalCallID(platformID)
	now := s.now().UTC()

	updated, err := s.calls.Update(ctx, id, func(c *entity.Call) error {
		s.applyEvent(c, event, now)
		return nil
	})
	if errors.Is(err, callstore.ErrCallNotFound) {
		created := &entity.Call{
			CallID:         id,
			PlatformCallID: platformID,
			StartTime:      now,
			CreatedAt:      now,
		}
		s.applyEvent(created, event, now)
		if err := s.calls.Create(ctx, created); err != nil {
			return nil, err
		}
		updated = created
	} else if err != nil {
		return nil, err
	}

	if updated.CarrierMC != "" {
		s.carriers.RecordContact(ctx, updated.CarrierMC)
	}
	if updated.Transcript != "" {
		s.archiveTranscript(ctx, updated.CallID, updated.Transcript)
	}
	s.notify(updated)
	return updated, nil
}

func (s *Service) applyEvent(c *entity.Call, event WebhookEvent, now time.Time) {
	data := event.ExtractedData
	if data == nil {
		data = map[string]any{}
	}
	if mc := stringField(data, "mc_number"); mc != "" {
		c.CarrierMC = mc
	}
	if loadID := stringField(data, "load_id"); loadID != "" {
		c.DiscussedLoadID = loadID
	}
	if t := stringField(event.CallData, "transcript"); t != "" {
		c.Transcript = t
	}
	if rate, ok := decimalField(data, "initial_rate_offered"); ok {
		c.InitialRateOffered = &rate
	}
	if rate, ok := decimalField(data, "final_rate"); ok {
		c.FinalNegotiatedRate = &rate
	}
	if raw := stringField(data, "outcome"); raw != "" {
		if label, ok := outcome.ParseLabel(raw); ok {
			c.Outcome = label
		}
	}
	sentiment := outcome.CallMetadata{
		SentimentCategory: stringField(data, "sentiment"),
		SentimentScore:    floatField(data, "sentiment_score"),
	}
	if sentiment.SentimentCategory != "" || hasField(data, "sentiment_score") {
		c.Sentiment = outcome.BucketSentiment(sentiment)
	}
	if dur, ok := intField(event.CallData, "duration_seconds"); ok {
		c.DurationSeconds = &dur
	}
	if len(event.ExtractedData) > 0 {
		if c.ExtractedData == nil {
			c.ExtractedData = make(map[string]any, len(event.ExtractedData))
		}
		for k, v := range event.ExtractedData {
			c.ExtractedData[k] = v
		}
	}
	if strings.EqualFold(event.EventType, "call_ended") && c.EndTime == nil {
		t := now
		c.EndTime = &t
		if c.DurationSeconds == nil && !c.StartTime.IsZero() {
			dur := int(now.Sub(c.StartTime) / time.Second)
			c.DurationSeconds = &dur
		}
	}
	c.UpdatedAt = now
}

// End closes a call: classifies the outcome from the latest negotiation for
// the call, buckets sentiment, archives the transcript, and books the load
// when the negotiation was won.
func (s *Service) End(ctx context.Context, callID string, meta outcome.CallMetadata) (*entity.Call, error) {
	now := s.now().UTC()

	sessView := s.latestSession(ctx, callID)
	label := outcome.ClassifyView(sessView, meta)
	sentiment := outcome.BucketSentiment(meta)

	updated, err := s.calls.Update(ctx, callID, func(c *entity.Call) error {
		if c.EndTime == nil {
			t := now
			c.EndTime = &t
		}
		if c.DurationSeconds == nil && !c.StartTime.IsZero() {
			dur := int(now.Sub(c.StartTime) / time.Second)
			c.DurationSeconds = &dur
		}
		c.Outcome = label
		c.Sentiment = sentiment
		if meta.Transcript != "" {
			c.Transcript = meta.Transcript
		}
		if sessView != nil && sessView.FinalRate != nil {
			rate := *sessView.FinalRate
			c.FinalNegotiatedRate = &rate
		}
		c.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.Transcript != "" {
		s.archiveTranscript(ctx, updated.CallID, updated.Transcript)
	}
	if label == outcome.SuccessfulBooking && sessView != nil {
		if err := s.bookLoad(ctx, sessView, now); err != nil {
			log.Printf("call: book load %s for session %s: %v", sessView.LoadID, sessView.SessionID, err)
		}
	}
	s.notify(updated)
	return updated, nil
}

// latestSession returns the most recent negotiation tied to the call, open
// or closed, or nil when the call never reached a negotiation.
func (s *Service) latestSession(ctx context.Context, callID string) *negotiation.View {
	views, err := s.sessions.HistoryForCall(ctx, callID)
	if err != nil || len(views) == 0 {
		return nil
	}
	return views[0]
}

// bookLoad assigns the load to the carrier at the agreed rate and bumps the
// carrier's booking counters.
func (s *Service) bookLoad(ctx context.Context, sess *negotiation.View, now time.Time) error {
	if sess.FinalRate == nil {
		return fmt.Errorf("session %s accepted without a final rate", sess.SessionID)
	}
	_, err := s.loads.Update(ctx, sess.LoadID, func(load *entity.Load) error {
		if !load.IsAvailable && load.AssignedCarrierMC != sess.CarrierMC {
			return fmt.Errorf("load %s already assigned to MC %s", load.LoadID, load.AssignedCarrierMC)
		}
		rate := *sess.FinalRate
		load.IsAvailable = false
		load.AssignedCarrierMC = sess.CarrierMC
		load.FinalRate = &rate
		load.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}
	if sess.CarrierMC != "" {
		if err := s.carriers.RecordBooking(ctx, sess.CarrierMC); err != nil {
			log.Printf("call: record booking for MC %s: %v", sess.CarrierMC, err)
		}
	}
	return nil
}

func (s *Service) archiveTranscript(ctx context.Context, callID, text string) {
	if s.transcripts == nil {
		return
	}
	if err := s.transcripts.Put(ctx, callID, []byte(text)); err != nil {
		log.Printf("call: archive transcript for %s: %v", callID, err)
	}
}

func (s *Service) Get(ctx context.Context, callID string) (*entity.Call, error) {
	return s.calls.Get(ctx, callID)
}

func (s *Service) Recent(ctx context.Context, limit int) ([]*entity.Call, error) {
	return s.calls.Recent(ctx, limit)
}

func (s *Service) ByCarrier(ctx context.Context, mc string, limit int) ([]*entity.Call, error) {
	return s.calls.ListByCarrier(ctx, mc, limit)
}

// Summary rolls up the last N days of calls.
func (s *Service) Summary(ctx context.Context, days int) (*entity.CallSummary, error) {
	if days <= 0 {
		days = 7
	}
	since := s.now().UTC().AddDate(0, 0, -days)
	return s.calls.Summary(ctx, since)
}

// Transcript fetches the archived transcript text.
func (s *Service) Transcript(ctx context.Context, callID string) (string, error) {
	if s.transcripts == nil {
		return "", transcript.ErrTranscriptNotFound
	}
	data, err := s.transcripts.Get(ctx, callID)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Service) notify(c *entity.Call) {
	if s.notifier != nil {
		s.notifier.CallChanged(c)
	}
}

// internalCallID keeps platform-originated calls recognizable while giving
// headless test calls a unique id.
func internalCallID(platformID string) string {
	if platformID != "" {
		return "hr_" + platformID
	}
	return "call_" + uuid.NewString()
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func hasField(data map[string]any, key string) bool {
	_, ok := data[key]
	return ok
}

func floatField(data map[string]any, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func intField(data map[string]any, key string) (int, bool) {
	switch v := data[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func decimalField(data map[string]any, key string) (decimal.Decimal, bool) {
	switch v := data[key].(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	}
	return decimal.Decimal{}, false
}
