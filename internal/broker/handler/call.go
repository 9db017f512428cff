package handler

import (
	"net/http"
	"strconv"

	"carrierdesk/internal/broker/outcome"
	callsvc "carrierdesk/internal/broker/service/call"
)

// HandleCallWebhook ingests an event from the conversational platform.
func (s *Service) HandleCallWebhook(w http.ResponseWriter, r *http.Request) {
	var event callsvc.WebhookEvent
	if !decodeBody(w, r, &event) {
		return
	}
	call, err := s.calls.IngestWebhook(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "received",
		"call_id": call.CallID,
	})
}

type endCallRequest struct {
	Transcript         string  `json:"transcript"`
	SentimentCategory  string  `json:"sentiment"`
	SentimentScore     float64 `json:"sentiment_score"`
	VerificationFailed bool    `json:"verification_failed"`
}

// HandleEndCall finalizes a call: outcome classification, sentiment,
// transcript archival, and load booking when the negotiation was won.
func (s *Service) HandleEndCall(w http.ResponseWriter, r *http.Request) {
	var in endCallRequest
	if !decodeBody(w, r, &in) {
		return
	}
	call, err := s.calls.End(r.Context(), r.PathValue("id"), outcome.CallMetadata{
		VerificationFailed: in.VerificationFailed,
		SentimentCategory:  in.SentimentCategory,
		SentimentScore:     in.SentimentScore,
		Transcript:         in.Transcript,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (s *Service) HandleGetCall(w http.ResponseWriter, r *http.Request) {
	call, err := s.calls.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (s *Service) HandleRecentCalls(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	calls, err := s.calls.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"calls": calls,
		"count": len(calls),
	})
}

func (s *Service) HandleCallsByCarrier(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	calls, err := s.calls.ByCarrier(r.Context(), r.PathValue("mc"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"calls": calls,
		"count": len(calls),
	})
}

// HandleCallSummary serves the analytics rollup for the reporting dashboard.
func (s *Service) HandleCallSummary(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	summary, err := s.calls.Summary(r.Context(), days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Service) HandleCallTranscript(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("id")
	text, err := s.calls.Transcript(r.Context(), callID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"call_id":    callID,
		"transcript": text,
	})
}
