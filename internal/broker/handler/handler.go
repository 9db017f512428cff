// Package handler exposes the broker over plain HTTP. Handlers decode,
// delegate to a service, and map the domain errors onto status codes; no
// business logic lives here.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"carrierdesk/internal/broker/events"
	"carrierdesk/internal/broker/negotiation"
	"carrierdesk/internal/broker/repository/callstore"
	"carrierdesk/internal/broker/repository/carrierstore"
	"carrierdesk/internal/broker/repository/loadstore"
	"carrierdesk/internal/broker/repository/transcript"
	callsvc "carrierdesk/internal/broker/service/call"
	carriersvc "carrierdesk/internal/broker/service/carrier"
)

// Service holds every handler dependency.
type Service struct {
	sessions *negotiation.Service
	calls    *callsvc.Service
	carriers *carriersvc.Service
	loads    *loadstore.Store
	hub      *events.Hub
}

func NewService(
	sessions *negotiation.Service,
	calls *callsvc.Service,
	carriers *carriersvc.Service,
	loads *loadstore.Store,
	hub *events.Hub,
) *Service {
	return &Service{
		sessions: sessions,
		calls:    calls,
		carriers: carriers,
		loads:    loads,
		hub:      hub,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain sentinels onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, negotiation.ErrInvalidLoad),
		errors.Is(err, negotiation.ErrInvalidOffer):
		status = http.StatusBadRequest
	case errors.Is(err, negotiation.ErrSessionNotFound),
		errors.Is(err, loadstore.ErrLoadNotFound),
		errors.Is(err, carrierstore.ErrCarrierNotFound),
		errors.Is(err, callstore.ErrCallNotFound),
		errors.Is(err, transcript.ErrTranscriptNotFound):
		status = http.StatusNotFound
	case errors.Is(err, negotiation.ErrSessionClosed),
		errors.Is(err, negotiation.ErrInvalidState):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return false
	}
	return true
}

// HandleHealth answers the load balancer probe.
func (s *Service) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
