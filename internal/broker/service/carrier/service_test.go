package carrier_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"carrierdesk/internal/broker/fmcsa"
	"carrierdesk/internal/broker/repository/carrierstore"
	carriersvc "carrierdesk/internal/broker/service/carrier"
)

type stubVerifier struct {
	result fmcsa.Verification
	calls  int
}

func (v *stubVerifier) Verify(_ context.Context, mc string) (fmcsa.Verification, error) {
	v.calls++
	out := v.result
	out.MCNumber = mc
	return out, nil
}

func TestVerifyCreatesProfileOnFirstContact(t *testing.T) {
	verifier := &stubVerifier{result: fmcsa.Verification{
		IsValid:     true,
		Status:      "ACTIVE",
		CompanyName: "ABC Trucking LLC",
		DOTNumber:   "987654",
	}}
	store := carrierstore.NewMemory()
	svc := carriersvc.NewService(verifier, store)

	v, profile, err := svc.Verify(context.Background(), "123456")
	require.NoError(t, err)
	require.True(t, v.IsValid)

	require.NotNil(t, profile)
	require.Equal(t, "123456", profile.MCNumber)
	require.Equal(t, "ABC Trucking LLC", profile.CompanyName)
	require.True(t, profile.IsVerified)
	require.NotNil(t, profile.LastVerifiedAt)

	stored, err := store.Get(context.Background(), "123456")
	require.NoError(t, err)
	require.True(t, stored.IsVerified)
}

func TestVerifyFailureMarksProfileUnverified(t *testing.T) {
	verifier := &stubVerifier{result: fmcsa.Verification{
		IsValid: true, Status: "ACTIVE", CompanyName: "ABC Trucking LLC",
	}}
	store := carrierstore.NewMemory()
	svc := carriersvc.NewService(verifier, store)

	_, _, err := svc.Verify(context.Background(), "123456")
	require.NoError(t, err)

	verifier.result = fmcsa.Verification{IsValid: false, Status: "OUT_OF_SERVICE"}
	v, profile, err := svc.Verify(context.Background(), "123456")
	require.NoError(t, err)
	require.False(t, v.IsValid)
	require.False(t, profile.IsVerified)
	require.Equal(t, "OUT_OF_SERVICE", profile.FMCSAStatus)
	// Identity from the earlier successful lookup is kept.
	require.Equal(t, "ABC Trucking LLC", profile.CompanyName)
}

func TestRecordBookingBumpsCounters(t *testing.T) {
	verifier := &stubVerifier{result: fmcsa.Verification{IsValid: true, Status: "ACTIVE"}}
	store := carrierstore.NewMemory()
	svc := carriersvc.NewService(verifier, store)

	_, _, err := svc.Verify(context.Background(), "123456")
	require.NoError(t, err)

	require.NoError(t, svc.RecordBooking(context.Background(), "123456"))
	require.NoError(t, svc.RecordBooking(context.Background(), "123456"))

	profile, err := svc.Get(context.Background(), "123456")
	require.NoError(t, err)
	require.Equal(t, 2, profile.TotalLoads)
	require.Equal(t, 2, profile.SuccessfulLoads)
}

func TestRecordContactOnUnknownCarrierIsIgnored(t *testing.T) {
	verifier := &stubVerifier{}
	svc := carriersvc.NewService(verifier, carrierstore.NewMemory())

	// Must not panic or create a profile.
	svc.RecordContact(context.Background(), "999999")

	_, err := svc.Get(context.Background(), "999999")
	require.ErrorIs(t, err, carrierstore.ErrCarrierNotFound)
}
