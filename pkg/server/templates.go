package server

import (
	"net/http"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		writeAPIError(w, http.StatusNotFound, "templates_disabled", "no template directory is configured", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": s.templates.List(),
		"count":     s.templates.Len(),
	})
}

func (s *Server) handleFromTemplate(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		writeAPIError(w, http.StatusNotFound, "templates_disabled", "no template directory is configured", nil)
		return
	}

	var body struct {
		Template   string                 `json:"template"`
		Parameters map[string]interface{} `json:"parameters"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "expected {\"template\", \"parameters\"}: "+err.Error(), nil)
		return
	}
	if body.Template == "" {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "template name is required", nil)
		return
	}

	tmpl, err := s.templates.Get(body.Template)
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := tmpl.Instantiate(body.Parameters)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := s.policies.Create(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := s.policies.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
