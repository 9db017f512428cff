package handler

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"carrierdesk/internal/broker/negotiation"
)

type createSessionRequest struct {
	CallID         string          `json:"call_id"`
	LoadID         string          `json:"load_id"`
	CarrierMC      string          `json:"carrier_mc"`
	ListedRate     decimal.Decimal `json:"listed_rate"`
	MarginFraction decimal.Decimal `json:"margin_fraction"`
}

func (s *Service) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var in createSessionRequest
	if !decodeBody(w, r, &in) {
		return
	}
	// A carrier that failed FMCSA verification does not get to negotiate.
	if mc := strings.TrimSpace(in.CarrierMC); mc != "" {
		if profile, err := s.carriers.Get(r.Context(), mc); err == nil && !profile.IsVerified {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "carrier " + mc + " is not verified"})
			return
		}
	}
	view, err := s.sessions.Create(r.Context(), negotiation.CreateParams{
		CallID:         in.CallID,
		LoadID:         in.LoadID,
		CarrierMC:      in.CarrierMC,
		ListedRate:     in.ListedRate,
		MarginFraction: in.MarginFraction,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

type submitOfferRequest struct {
	Offer decimal.Decimal `json:"offer"`
}

func (s *Service) HandleSubmitOffer(w http.ResponseWriter, r *http.Request) {
	var in submitOfferRequest
	if !decodeBody(w, r, &in) {
		return
	}
	view, err := s.sessions.SubmitOffer(r.Context(), r.PathValue("id"), in.Offer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type rejectSessionRequest struct {
	Reason string `json:"reason"`
}

func (s *Service) HandleRejectSession(w http.ResponseWriter, r *http.Request) {
	var in rejectSessionRequest
	if !decodeBody(w, r, &in) {
		return
	}
	view, err := s.sessions.Reject(r.Context(), r.PathValue("id"), in.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Service) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleActiveSessionForCall returns the open negotiation tied to a call.
func (s *Service) HandleActiveSessionForCall(w http.ResponseWriter, r *http.Request) {
	callID := strings.TrimSpace(r.PathValue("callID"))
	view, err := s.sessions.ActiveForCall(r.Context(), callID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleSessionHistoryForCall returns every negotiation a call produced,
// newest first.
func (s *Service) HandleSessionHistoryForCall(w http.ResponseWriter, r *http.Request) {
	callID := strings.TrimSpace(r.PathValue("callID"))
	views, err := s.sessions.HistoryForCall(r.Context(), callID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"call_id":  callID,
		"sessions": views,
	})
}
