package negotiation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carrierdesk/internal/broker/negotiation"
	"carrierdesk/internal/broker/repository/sessionstore"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newService(t *testing.T) *negotiation.Service {
	t.Helper()
	return negotiation.NewService(sessionstore.NewMemory(), negotiation.DefaultConfig(), nil)
}

func createSession(t *testing.T, svc *negotiation.Service) *negotiation.View {
	t.Helper()
	view, err := svc.Create(context.Background(), negotiation.CreateParams{
		CallID:     "call-1",
		LoadID:     "LD1001",
		CarrierMC:  "123456",
		ListedRate: dec("1500"),
	})
	require.NoError(t, err)
	return view
}

func TestCreateDerivesFloorFromMargin(t *testing.T) {
	svc := newService(t)
	view := createSession(t, svc)

	assert.Equal(t, negotiation.StatusOpen, view.Status)
	assert.True(t, view.FloorRate.Equal(dec("1275")), "floor = %s", view.FloorRate)
	assert.True(t, view.FloorRate.LessThanOrEqual(view.ListedRate))
	assert.Equal(t, 0, view.RoundCount)
	assert.Equal(t, 3, view.RemainingRounds)
}

func TestCreateRejectsInvalidLoad(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, negotiation.CreateParams{LoadID: "LD1", ListedRate: dec("0")})
	assert.ErrorIs(t, err, negotiation.ErrInvalidLoad)

	_, err = svc.Create(ctx, negotiation.CreateParams{LoadID: "LD1", ListedRate: dec("-100")})
	assert.ErrorIs(t, err, negotiation.ErrInvalidLoad)

	_, err = svc.Create(ctx, negotiation.CreateParams{
		LoadID: "LD1", ListedRate: dec("1500"), MarginFraction: dec("1.2"),
	})
	assert.ErrorIs(t, err, negotiation.ErrInvalidLoad)

	_, err = svc.Create(ctx, negotiation.CreateParams{
		LoadID: "LD1", ListedRate: dec("1500"), MarginFraction: dec("-0.5"),
	})
	assert.ErrorIs(t, err, negotiation.ErrInvalidLoad)

	_, err = svc.Create(ctx, negotiation.CreateParams{ListedRate: dec("1500")})
	assert.ErrorIs(t, err, negotiation.ErrInvalidLoad)
}

func TestSubmitOfferAcceptsWithinThreshold(t *testing.T) {
	svc := newService(t)
	view := createSession(t, svc)

	got, err := svc.SubmitOffer(context.Background(), view.SessionID, dec("1300"))
	require.NoError(t, err)

	assert.Equal(t, negotiation.StatusAccepted, got.Status)
	require.NotNil(t, got.FinalRate)
	assert.True(t, got.FinalRate.Equal(dec("1300")))
	assert.Equal(t, 1, got.RoundCount)
	assert.Len(t, got.History, 1)
	assert.True(t, got.FinalRate.GreaterThanOrEqual(got.FloorRate))
	assert.True(t, got.FinalRate.LessThanOrEqual(got.ListedRate))
}

func TestSubmitOfferMultiRoundEscalation(t *testing.T) {
	svc := newService(t)
	view := createSession(t, svc)
	ctx := context.Background()

	// Round 1: low-ball gets the midpoint of floor and listed.
	got, err := svc.SubmitOffer(ctx, view.SessionID, dec("1000"))
	require.NoError(t, err)
	assert.Equal(t, negotiation.StatusOpen, got.Status)
	assert.Equal(t, 1, got.RoundCount)
	require.NotNil(t, got.LastResponse)
	assert.Equal(t, negotiation.DecisionCounter, got.LastResponse.Kind)
	assert.True(t, got.LastResponse.Rate.Equal(dec("1388")))

	// Round 2: counter converges from the prior ask.
	got, err = svc.SubmitOffer(ctx, view.SessionID, dec("1000"))
	require.NoError(t, err)
	assert.Equal(t, negotiation.StatusOpen, got.Status)
	assert.Equal(t, 2, got.RoundCount)
	assert.True(t, got.LastResponse.Rate.Equal(dec("1332")))

	// Round 3: still below floor, hand off to a human.
	got, err = svc.SubmitOffer(ctx, view.SessionID, dec("1000"))
	require.NoError(t, err)
	assert.Equal(t, negotiation.StatusEscalated, got.Status)
	assert.Equal(t, 3, got.RoundCount)
	assert.Nil(t, got.FinalRate)
	assert.Len(t, got.History, 3)
	assert.Equal(t, 0, got.RemainingRounds)
}

func TestSubmitOfferValidationLeavesSessionUnchanged(t *testing.T) {
	svc := newService(t)
	view := createSession(t, svc)
	ctx := context.Background()

	_, err := svc.SubmitOffer(ctx, view.SessionID, dec("0"))
	assert.ErrorIs(t, err, negotiation.ErrInvalidOffer)

	got, err := svc.Get(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RoundCount)
	assert.Empty(t, got.History)
	assert.Equal(t, negotiation.StatusOpen, got.Status)
}

func TestSubmitOfferOnClosedSessionFails(t *testing.T) {
	svc := newService(t)
	view := createSession(t, svc)
	ctx := context.Background()

	_, err := svc.SubmitOffer(ctx, view.SessionID, dec("1300"))
	require.NoError(t, err)

	_, err = svc.SubmitOffer(ctx, view.SessionID, dec("1400"))
	assert.ErrorIs(t, err, negotiation.ErrSessionClosed)

	got, err := svc.Get(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, negotiation.StatusAccepted, got.Status)
	assert.Equal(t, 1, got.RoundCount)
}

func TestSubmitOfferUnknownSession(t *testing.T) {
	svc := newService(t)

	_, err := svc.SubmitOffer(context.Background(), "missing", dec("1300"))
	assert.ErrorIs(t, err, negotiation.ErrSessionNotFound)
}

func TestGetIsIdempotent(t *testing.T) {
	svc := newService(t)
	view := createSession(t, svc)
	ctx := context.Background()

	_, err := svc.SubmitOffer(ctx, view.SessionID, dec("1000"))
	require.NoError(t, err)

	first, err := svc.Get(ctx, view.SessionID)
	require.NoError(t, err)
	second, err := svc.Get(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRejectClosesWithoutConsumingARound(t *testing.T) {
	svc := newService(t)
	view := createSession(t, svc)
	ctx := context.Background()

	got, err := svc.Reject(ctx, view.SessionID, "carrier declined")
	require.NoError(t, err)
	assert.Equal(t, negotiation.StatusRejected, got.Status)
	assert.Equal(t, 0, got.RoundCount)
	assert.Empty(t, got.History)
	assert.Equal(t, "carrier declined", got.CloseReason)

	_, err = svc.Reject(ctx, view.SessionID, "again")
	assert.ErrorIs(t, err, negotiation.ErrSessionClosed)
}

func TestActiveAndHistoryForCall(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	first := createSession(t, svc)
	_, err := svc.Reject(ctx, first.SessionID, "declined")
	require.NoError(t, err)

	second := createSession(t, svc)

	active, err := svc.ActiveForCall(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, second.SessionID, active.SessionID)

	history, err := svc.HistoryForCall(ctx, "call-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestExpireStaleEscalatesOpenSessions(t *testing.T) {
	store := sessionstore.NewMemory()
	svc := negotiation.NewService(store, negotiation.Config{
		MaxRounds:     3,
		DefaultMargin: dec("0.85"),
		SessionTTL:    time.Hour,
	}, nil)
	ctx := context.Background()

	view, err := svc.Create(ctx, negotiation.CreateParams{
		LoadID: "LD1001", ListedRate: dec("1500"),
	})
	require.NoError(t, err)

	n, err := svc.ExpireStale(ctx, time.Now().UTC().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.Get(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, negotiation.StatusEscalated, got.Status)
	assert.Nil(t, got.FinalRate)
}

func TestConcurrentSubmissionsKeepInvariants(t *testing.T) {
	svc := newService(t)
	view := createSession(t, svc)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.SubmitOffer(ctx, view.SessionID, dec("1000"))
		}()
	}
	wg.Wait()

	got, err := svc.Get(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RoundCount)
	assert.Len(t, got.History, got.RoundCount)
	assert.Equal(t, negotiation.StatusEscalated, got.Status)
	for i, round := range got.History {
		assert.Equal(t, i+1, round.Number)
	}
}
