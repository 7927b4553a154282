package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-occupancy/internal/audit"
	"github.com/nerrad567/gray-logic-occupancy/internal/auth"
	"github.com/nerrad567/gray-logic-occupancy/internal/location"
	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
	"github.com/nerrad567/gray-logic-occupancy/internal/tracker"
)

// occupancyView is the JSON form of one location's occupancy.
type occupancyView struct {
	LocationID     string              `json:"location_id"`
	Occupied       bool                `json:"occupied"`
	Holds          []string            `json:"holds"`
	Locks          []string            `json:"locks"`
	OccupiedUntil  occupancy.Timestamp `json:"occupied_until"`
	TimerRemaining occupancy.Seconds   `json:"timer_remaining"`

	// EffectiveTimeout is only filled in for single-location reads.
	EffectiveTimeout *occupancy.Timestamp `json:"effective_timeout,omitempty"`
}

func newOccupancyView(id string, st occupancy.State) occupancyView {
	v := occupancyView{
		LocationID: id,
		Occupied:   st.Occupied,
		Holds:      orEmpty(st.Holds),
		Locks:      orEmpty(st.LockedBy),
	}
	if st.HasTimer() {
		v.OccupiedUntil = occupancy.Timestamp{Time: st.OccupiedUntil.UTC(), Valid: true}
	}
	if st.TimerSuspended {
		v.TimerRemaining = occupancy.Seconds{Duration: st.TimerRemaining, Valid: true}
	}
	return v
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

// transitionView is the JSON form of one transition in a command response.
type transitionView struct {
	LocationID       string           `json:"location_id"`
	Occupied         bool             `json:"occupied"`
	PreviousOccupied bool             `json:"previous_occupied"`
	Reason           occupancy.Reason `json:"reason"`
}

// commandResponse is returned by POST /occupancy/{id}/commands.
type commandResponse struct {
	LocationID     string              `json:"location_id"`
	Changed        bool                `json:"changed"`
	Transitions    []transitionView    `json:"transitions"`
	NextExpiration occupancy.Timestamp `json:"next_expiration"`
}

// handleListLocations returns every configured location.
func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.locations.List(r.Context())
	if err != nil {
		s.logger.Error("listing locations", "error", err)
		writeInternalError(w, "failed to list locations")
		return
	}
	if locs == nil {
		locs = []location.Location{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"locations": locs,
		"count":     len(locs),
	})
}

// handleGetLocation returns one location and, when it is tracked, its occupancy.
func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	loc, err := s.locations.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, location.ErrLocationNotFound) {
			writeNotFound(w, "location not found")
			return
		}
		s.logger.Error("getting location", "location_id", id, "error", err)
		writeInternalError(w, "failed to get location")
		return
	}

	resp := map[string]any{"location": loc}
	if st, ok := s.tracker.State(id); ok {
		resp["occupancy"] = newOccupancyView(id, st)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListOccupancy returns the state of every tracked location, sorted by ID.
func (s *Server) handleListOccupancy(w http.ResponseWriter, _ *http.Request) {
	views := s.occupancySnapshot(nil)
	occupied := 0
	for _, v := range views {
		if v.Occupied {
			occupied++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"occupancy": views,
		"count":     len(views),
		"occupied":  occupied,
	})
}

// occupancySnapshot returns the tracked states sorted by location ID,
// limited to only when it is non-empty. Unknown IDs are skipped.
func (s *Server) occupancySnapshot(only []string) []occupancyView {
	states := s.tracker.States()
	ids := make([]string, 0, len(states))
	for id := range states {
		if len(only) == 0 || slices.Contains(only, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	views := make([]occupancyView, 0, len(ids))
	for _, id := range ids {
		views = append(views, newOccupancyView(id, states[id]))
	}
	return views
}

// handleGetOccupancy returns one location's state with its effective timeout.
func (s *Server) handleGetOccupancy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok := s.tracker.State(id)
	if !ok {
		writeNotFound(w, "location is not tracked")
		return
	}

	view := newOccupancyView(id, st)
	eff := occupancy.Timestamp{}
	if until, running := s.tracker.EffectiveTimeout(id); running {
		eff = occupancy.Timestamp{Time: until.UTC(), Valid: true}
	}
	view.EffectiveTimeout = &eff
	writeJSON(w, http.StatusOK, view)
}

// handleOccupancyCommand runs a command through the tracker, the same path
// bus commands take.
func (s *Server) handleOccupancyCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cmd tracker.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if cmd.Command == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "command is required")
		return
	}

	claims := claimsFromContext(r.Context())
	own := "api:" + claims.Subject
	if cmd.SourceID == "" {
		cmd.SourceID = own
	}
	if needsOverride(cmd, own) && !auth.HasPermission(claims.Role, auth.PermOccupancyOverride) {
		writeForbidden(w, "command requires override permission")
		return
	}

	actor := tracker.Actor{Origin: audit.OriginAPI, Subject: claims.Subject}
	result, err := s.tracker.ExecuteAs(r.Context(), id, cmd, actor)
	if err != nil {
		status, code := trackerErrorStatus(err)
		switch status {
		case http.StatusNotFound:
			writeNotFound(w, "location is not tracked")
		case http.StatusInternalServerError:
			s.logger.Error("occupancy command failed", "location_id", id, "command", cmd.Command, "error", err)
			writeInternalError(w, "command failed")
		default:
			writeError(w, status, code, err.Error())
		}
		return
	}

	s.logger.Info("occupancy command via API",
		"location_id", id,
		"command", cmd.Command,
		"source_id", cmd.SourceID,
		"subject", claims.Subject,
		"transitions", len(result.Transitions),
	)
	writeJSON(w, http.StatusOK, newCommandResponse(id, result))
}

// needsOverride reports whether a command can clear locks the caller does
// not own. own is the caller's default source id.
func needsOverride(cmd tracker.Command, own string) bool {
	switch cmd.Command {
	case string(occupancy.EventUnlockAll):
		return true
	case string(occupancy.EventUnlock):
		return cmd.SourceID != own
	case tracker.CommandVacateArea:
		return cmd.IncludeLocked
	}
	return false
}

func newCommandResponse(id string, r occupancy.Result) commandResponse {
	resp := commandResponse{
		LocationID:  id,
		Changed:     r.Changed(),
		Transitions: make([]transitionView, 0, len(r.Transitions)),
	}
	for _, tr := range r.Transitions {
		resp.Transitions = append(resp.Transitions, transitionView{
			LocationID:       tr.LocationID,
			Occupied:         tr.Current.Occupied,
			PreviousOccupied: tr.Previous.Occupied,
			Reason:           tr.Reason,
		})
	}
	if !r.NextExpiration.IsZero() {
		resp.NextExpiration = occupancy.Timestamp{Time: r.NextExpiration.UTC(), Valid: true}
	}
	return resp
}
