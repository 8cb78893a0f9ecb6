package api

import (
	"net/http"
	"strings"

	"github.com/okian/duelboard/internal/domain/stats"
)

// handleGetValidators handles GET /validators.
func (s *Server) handleGetValidators(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_validators"
	list, err := s.deps.Validators(r.Context())
	if err != nil {
		writeOpError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetTiers handles GET /validators/{hotkey}/tiers.
func (s *Server) handleGetTiers(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_tiers"
	hotkey := strings.TrimSpace(r.PathValue("hotkey"))
	if hotkey == "" {
		writeOpError(w, op, NewKind(op, ErrBadRequest))
		return
	}
	report, err := s.deps.Tiers(r.Context(), hotkey)
	if err != nil {
		writeOpError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleGetAvailability handles GET /availability?validator=.
func (s *Server) handleGetAvailability(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_availability"
	rows, err := s.deps.Availability(r.Context(), validatorParam(r))
	if err != nil {
		writeOpError(w, op, err)
		return
	}
	if rows == nil {
		rows = []stats.Availability{}
	}
	writeJSON(w, http.StatusOK, rows)
}
