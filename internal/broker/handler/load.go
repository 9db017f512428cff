package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"carrierdesk/internal/broker/entity"
)

func (s *Service) HandleCreateLoad(w http.ResponseWriter, r *http.Request) {
	var in entity.Load
	if !decodeBody(w, r, &in) {
		return
	}
	now := time.Now().UTC()
	in.IsAvailable = true
	in.CreatedAt = now
	in.UpdatedAt = now
	if err := s.loads.Create(r.Context(), &in); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

func (s *Service) HandleGetLoad(w http.ResponseWriter, r *http.Request) {
	load, err := s.loads.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, load)
}

func (s *Service) HandleListLoads(w http.ResponseWriter, r *http.Request) {
	availableOnly := strings.EqualFold(r.URL.Query().Get("available"), "true")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	loads, err := s.loads.List(r.Context(), availableOnly, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loads": loads,
		"count": len(loads),
	})
}

// HandleSearchLoads answers the in-call pitch query: which loads can this
// carrier run, best-paying first.
func (s *Service) HandleSearchLoads(w http.ResponseWriter, r *http.Request) {
	var criteria entity.LoadMatch
	if !decodeBody(w, r, &criteria) {
		return
	}
	loads, err := s.loads.Match(r.Context(), criteria, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loads": loads,
		"count": len(loads),
	})
}

type updateLoadRequest struct {
	Notes       *string `json:"notes"`
	IsAvailable *bool   `json:"is_available"`
}

func (s *Service) HandleUpdateLoad(w http.ResponseWriter, r *http.Request) {
	var in updateLoadRequest
	if !decodeBody(w, r, &in) {
		return
	}
	load, err := s.loads.Update(r.Context(), r.PathValue("id"), func(load *entity.Load) error {
		if in.Notes != nil {
			load.Notes = *in.Notes
		}
		if in.IsAvailable != nil {
			load.IsAvailable = *in.IsAvailable
		}
		load.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, load)
}
