package server

import (
	"net/http"
	"strconv"

	"fedgrid-hq/triton/pkg/policy"
	"fedgrid-hq/triton/pkg/policy/store"
)

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var p policy.Policy
	if err := decodeJSON(r, &p); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "malformed policy document: "+err.Error(), nil)
		return
	}

	id, err := s.policies.Create(r.Context(), &p)
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

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ListFilter{
		State:    policy.State(q.Get("state")),
		Category: q.Get("category"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeAPIError(w, http.StatusBadRequest, "invalid_query", "limit must be a non-negative integer", nil)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeAPIError(w, http.StatusBadRequest, "invalid_query", "offset must be a non-negative integer", nil)
			return
		}
		filter.Offset = n
	}

	policies, err := s.policies.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"policies": policies,
		"count":    len(policies),
	})
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := s.policies.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var p policy.Policy
	if err := decodeJSON(r, &p); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "malformed policy document: "+err.Error(), nil)
		return
	}
	if p.ID == "" {
		p.ID = id
	}
	if p.ID != id {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "policy id in body does not match path", nil)
		return
	}

	// The document's version field carries the expected version for the
	// optimistic concurrency check.
	if _, err := s.policies.Update(r.Context(), &p, p.Version); err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.policies.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	if err := s.policies.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		State policy.State `json:"state"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "expected {\"state\": ...}: "+err.Error(), nil)
		return
	}

	if err := s.policies.SetState(r.Context(), id, body.State); err != nil {
		writeError(w, err)
		return
	}

	p, err := s.policies.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRevertPolicy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		Version int `json:"version"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "expected {\"version\": ...}: "+err.Error(), nil)
		return
	}
	if body.Version < 1 {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "version must be at least 1", nil)
		return
	}

	p, err := s.policies.Revert(r.Context(), id, body.Version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePolicyVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.policies.Versions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"versions": versions,
		"count":    len(versions),
	})
}
