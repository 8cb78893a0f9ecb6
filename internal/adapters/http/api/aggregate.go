package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/duelboard/internal/domain/types"
)

type rankingResponse struct {
	Validator string           `json:"validator,omitempty"`
	Ranking   []types.Standing `json:"ranking"`
}

func validatorParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("validator"))
}

// handleGetAggregate handles GET /aggregate?validator=. Participants are in
// numeric-suffix order.
func (s *Server) handleGetAggregate(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_aggregate"
	view, err := s.deps.Aggregate(r.Context(), validatorParam(r))
	if err != nil {
		writeOpError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleGetRanking handles GET /ranking?validator=&limit=N. limit is
// optional and defaults to the configured maximum.
func (s *Server) handleGetRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ranking"
	n := s.maxRankingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeOpError(w, op, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid limit %q", raw)))
			return
		}
		if v > s.maxRankingLimit {
			writeOpError(w, op, WrapKind(op, ErrBadRequest, fmt.Errorf("limit exceeds %d", s.maxRankingLimit)))
			return
		}
		n = v
	}
	validator := validatorParam(r)
	ranking, err := s.deps.Ranking(r.Context(), validator, n)
	if err != nil {
		writeOpError(w, op, err)
		return
	}
	if ranking == nil {
		ranking = []types.Standing{}
	}
	writeJSON(w, http.StatusOK, rankingResponse{Validator: validator, Ranking: ranking})
}
