package handler

import (
	"net/http"
	"strconv"
)

// HandleVerifyCarrier runs the FMCSA check and returns the verification plus
// the refreshed profile. A failed verification is still a 200; the caller
// routes on is_valid.
func (s *Service) HandleVerifyCarrier(w http.ResponseWriter, r *http.Request) {
	verification, profile, err := s.carriers.Verify(r.Context(), r.PathValue("mc"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verification": verification,
		"carrier":      profile,
	})
}

func (s *Service) HandleGetCarrier(w http.ResponseWriter, r *http.Request) {
	carrier, err := s.carriers.Get(r.Context(), r.PathValue("mc"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, carrier)
}

func (s *Service) HandleListCarriers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	carriers, err := s.carriers.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"carriers": carriers,
		"count":    len(carriers),
	})
}
