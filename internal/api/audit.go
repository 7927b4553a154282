package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/audit"
)

// handleListAudit returns the command audit trail, newest first.
//
// Query parameters: location_id, command, origin, since (RFC 3339),
// limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		LocationID: q.Get("location_id"),
		Command:    q.Get("command"),
		Origin:     q.Get("origin"),
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}
	for param, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(param)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, param+" must be an integer")
			return
		}
		*dst = n
	}

	res, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit trail", "error", err)
		writeInternalError(w, "failed to list audit trail")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
