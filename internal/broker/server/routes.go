package server

import (
	"net/http"

	"carrierdesk/internal/broker/handler"
	"carrierdesk/internal/broker/middleware"
)

// NewMux wires every route. All API routes sit under /api/v1 behind the
// API-key check; /health and the websocket feed are open.
func NewMux(svc *handler.Service, apiKey string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", svc.HandleHealth)

	// Negotiation sessions
	mux.HandleFunc("POST /api/v1/sessions", svc.HandleCreateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", svc.HandleGetSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/offers", svc.HandleSubmitOffer)
	mux.HandleFunc("POST /api/v1/sessions/{id}/reject", svc.HandleRejectSession)
	mux.HandleFunc("GET /api/v1/calls/{callID}/session", svc.HandleActiveSessionForCall)
	mux.HandleFunc("GET /api/v1/calls/{callID}/sessions", svc.HandleSessionHistoryForCall)

	// Load board
	mux.HandleFunc("POST /api/v1/loads", svc.HandleCreateLoad)
	mux.HandleFunc("GET /api/v1/loads", svc.HandleListLoads)
	mux.HandleFunc("GET /api/v1/loads/{id}", svc.HandleGetLoad)
	mux.HandleFunc("PUT /api/v1/loads/{id}", svc.HandleUpdateLoad)
	mux.HandleFunc("POST /api/v1/loads/search", svc.HandleSearchLoads)

	// Carriers
	mux.HandleFunc("GET /api/v1/carriers", svc.HandleListCarriers)
	mux.HandleFunc("GET /api/v1/carriers/{mc}", svc.HandleGetCarrier)
	mux.HandleFunc("POST /api/v1/carriers/{mc}/verify", svc.HandleVerifyCarrier)
	mux.HandleFunc("GET /api/v1/carriers/{mc}/calls", svc.HandleCallsByCarrier)

	// Calls & analytics
	mux.HandleFunc("POST /api/v1/webhooks/call-events", svc.HandleCallWebhook)
	mux.HandleFunc("POST /api/v1/calls/{id}/end", svc.HandleEndCall)
	mux.HandleFunc("GET /api/v1/calls", svc.HandleRecentCalls)
	mux.HandleFunc("GET /api/v1/calls/summary", svc.HandleCallSummary)
	mux.HandleFunc("GET /api/v1/calls/{id}", svc.HandleGetCall)
	mux.HandleFunc("GET /api/v1/calls/{id}/transcript", svc.HandleCallTranscript)

	// Live event feed
	mux.HandleFunc("GET /ws/events", svc.HandleEventsWS)

	// Middleware
	return middleware.CORS(middleware.APIKey(apiKey, mux))
}
