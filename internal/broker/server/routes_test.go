package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"carrierdesk/internal/broker/events"
	"carrierdesk/internal/broker/fmcsa"
	"carrierdesk/internal/broker/handler"
	"carrierdesk/internal/broker/negotiation"
	"carrierdesk/internal/broker/repository/callstore"
	"carrierdesk/internal/broker/repository/carrierstore"
	"carrierdesk/internal/broker/repository/loadstore"
	"carrierdesk/internal/broker/repository/sessionstore"
	"carrierdesk/internal/broker/repository/transcript"
	"carrierdesk/internal/broker/server"
	callsvc "carrierdesk/internal/broker/service/call"
	carriersvc "carrierdesk/internal/broker/service/carrier"
)

func newTestServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	hub := events.NewHub()
	sessions := negotiation.NewService(sessionstore.NewMemory(), negotiation.DefaultConfig(), hub)
	carriers := carriersvc.NewService(fmcsa.NewClient(fmcsa.Config{}), carrierstore.NewMemory())
	loads := loadstore.NewMemory()
	calls := callsvc.NewService(callstore.NewMemory(), loads, sessions, carriers, transcript.NewMemoryStore(), hub)

	svc := handler.NewService(sessions, calls, carriers, loads, hub)
	srv := httptest.NewServer(server.NewMux(svc, apiKey))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestNegotiationFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t, "")

	var sess struct {
		SessionID string `json:"session_id"`
		Status    string `json:"status"`
		FloorRate string `json:"floor_rate"`
	}
	status := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions", map[string]any{
		"call_id":     "hr_abc",
		"load_id":     "L001",
		"carrier_mc":  "123456",
		"listed_rate": "1500",
	}, &sess)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, sess.SessionID)
	require.Equal(t, "open", sess.Status)
	require.Equal(t, "1275.00", sess.FloorRate)

	var afterOffer struct {
		Status       string `json:"status"`
		RoundCount   int    `json:"round_count"`
		LastResponse struct {
			Kind string `json:"kind"`
			Rate string `json:"rate"`
		} `json:"last_response"`
	}
	status = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/"+sess.SessionID+"/offers",
		map[string]any{"offer": "1100"}, &afterOffer)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "open", afterOffer.Status)
	require.Equal(t, 1, afterOffer.RoundCount)
	require.Equal(t, "counter", afterOffer.LastResponse.Kind)
	require.Equal(t, "1388", afterOffer.LastResponse.Rate)

	var accepted struct {
		Status    string `json:"status"`
		FinalRate string `json:"final_rate"`
	}
	status = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/"+sess.SessionID+"/offers",
		map[string]any{"offer": "1388"}, &accepted)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "accepted", accepted.Status)
	require.Equal(t, "1388", accepted.FinalRate)

	// Offers against a closed session conflict.
	var errBody struct {
		Error string `json:"error"`
	}
	status = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions/"+sess.SessionID+"/offers",
		map[string]any{"offer": "1400"}, &errBody)
	require.Equal(t, http.StatusConflict, status)
	require.NotEmpty(t, errBody.Error)

	// The session is retrievable by call id history.
	var history struct {
		Sessions []json.RawMessage `json:"sessions"`
	}
	status = doJSON(t, http.MethodGet, srv.URL+"/api/v1/calls/hr_abc/sessions", nil, &history)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, history.Sessions, 1)
}

func TestSessionNotFoundMapsTo404(t *testing.T) {
	srv := newTestServer(t, "")

	var errBody struct {
		Error string `json:"error"`
	}
	status := doJSON(t, http.MethodGet, srv.URL+"/api/v1/sessions/does-not-exist", nil, &errBody)
	require.Equal(t, http.StatusNotFound, status)
}

func TestInvalidLoadMapsTo400(t *testing.T) {
	srv := newTestServer(t, "")

	var errBody struct {
		Error string `json:"error"`
	}
	status := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions", map[string]any{
		"load_id":     "L001",
		"listed_rate": "-5",
	}, &errBody)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestLoadBoardAndSearchOverHTTP(t *testing.T) {
	srv := newTestServer(t, "")

	for i, rate := range []string{"1500", "2100", "900"} {
		status := doJSON(t, http.MethodPost, srv.URL+"/api/v1/loads", map[string]any{
			"load_id":           fmt.Sprintf("L%03d", i+1),
			"origin":            "Chicago, IL",
			"destination":       "Dallas, TX",
			"equipment_type":    "Dry Van",
			"loadboard_rate":    rate,
			"pickup_datetime":   "2026-09-01T08:00:00Z",
			"delivery_datetime": "2026-09-03T17:00:00Z",
		}, nil)
		require.Equal(t, http.StatusCreated, status)
	}

	var search struct {
		Count int `json:"count"`
		Loads []struct {
			LoadID string `json:"load_id"`
		} `json:"loads"`
	}
	status := doJSON(t, http.MethodPost, srv.URL+"/api/v1/loads/search", map[string]any{
		"equipment_types": []string{"Dry Van"},
		"min_rate":        "1000",
	}, &search)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 2, search.Count)
	// Best paying first.
	require.Equal(t, "L002", search.Loads[0].LoadID)
}

func TestWebhookAndSummaryOverHTTP(t *testing.T) {
	srv := newTestServer(t, "")

	var hook struct {
		Status string `json:"status"`
		CallID string `json:"call_id"`
	}
	status := doJSON(t, http.MethodPost, srv.URL+"/api/v1/webhooks/call-events", map[string]any{
		"event_type": "call_ended",
		"call_id":    "abc-1",
		"extracted_data": map[string]any{
			"mc_number": "123456",
			"outcome":   "successful_booking",
			"sentiment": "positive",
		},
	}, &hook)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "received", hook.Status)
	require.Equal(t, "hr_abc-1", hook.CallID)

	var summary struct {
		TotalCalls         int     `json:"total_calls"`
		SuccessfulBookings int     `json:"successful_bookings"`
		ConversionRate     float64 `json:"conversion_rate"`
	}
	status = doJSON(t, http.MethodGet, srv.URL+"/api/v1/calls/summary?days=7", nil, &summary)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, summary.TotalCalls)
	require.Equal(t, 1, summary.SuccessfulBookings)
}

func TestCarrierVerifyOverHTTP(t *testing.T) {
	srv := newTestServer(t, "")

	var out struct {
		Verification struct {
			IsValid bool   `json:"is_valid"`
			Status  string `json:"status"`
		} `json:"verification"`
		Carrier struct {
			MCNumber   string `json:"mc_number"`
			IsVerified bool   `json:"is_verified"`
		} `json:"carrier"`
	}
	status := doJSON(t, http.MethodPost, srv.URL+"/api/v1/carriers/123456/verify", map[string]any{}, &out)
	require.Equal(t, http.StatusOK, status)
	require.True(t, out.Verification.IsValid)
	require.Equal(t, "123456", out.Carrier.MCNumber)
	require.True(t, out.Carrier.IsVerified)
}
