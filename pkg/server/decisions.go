package server

import (
	"net/http"

	"fedgrid-hq/triton/pkg/engine"
)

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req engine.DecisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "malformed decision request: "+err.Error(), nil)
		return
	}

	result, err := s.engine.Decide(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Scenario engine.Scenario `json:"scenario"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "malformed scenario: "+err.Error(), nil)
		return
	}
	if len(body.Scenario.Steps) == 0 {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "scenario must have at least one step", nil)
		return
	}

	result, err := s.engine.Simulate(r.Context(), body.Scenario)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
