package server

import (
	"net/http"
	"strconv"
	"time"

	"fedgrid-hq/triton/pkg/audit"
)

func (s *Server) handleQueryEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := audit.Query{
		PolicyID: q.Get("policy_id"),
		Kind:     audit.Kind(q.Get("kind")),
	}
	if query.Kind != "" && !query.Kind.Valid() {
		writeAPIError(w, http.StatusBadRequest, "invalid_query", "unknown event kind "+strconv.Quote(string(query.Kind)), nil)
		return
	}

	for param, dst := range map[string]**time.Time{"from": &query.From, "to": &query.To} {
		if v := q.Get(param); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeAPIError(w, http.StatusBadRequest, "invalid_query", param+" must be RFC 3339", nil)
				return
			}
			*dst = &ts
		}
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeAPIError(w, http.StatusBadRequest, "invalid_query", "limit must be a positive integer", nil)
			return
		}
		query.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeAPIError(w, http.StatusBadRequest, "invalid_query", "offset must be a non-negative integer", nil)
			return
		}
		query.Offset = n
	}

	events, err := s.events.Query(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}

	total, err := s.events.Count(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"total":  total,
	})
}
