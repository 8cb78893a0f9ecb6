// Package battle turns raw batch reports into pairwise battles.
package battle

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/duelboard/internal/domain/model"
)

const arrow = "->"

// ParseRatingChange parses "before -> after" into a RatingChange. The
// upstream "N/A" marker yields ErrNotAvailable; anything else that is not
// two finite numbers yields ErrMalformedRatingChange.
func ParseRatingChange(raw model.RawRatingChange) (model.RatingChange, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return model.RatingChange{}, ErrMissingRatingChange
	}
	if strings.EqualFold(s, model.NotAvailable) {
		return model.RatingChange{}, ErrNotAvailable
	}
	parts := strings.Split(s, arrow)
	if len(parts) != 2 {
		return model.RatingChange{}, fmt.Errorf("%w: %q", ErrMalformedRatingChange, s)
	}
	before, err := parseFinite(parts[0])
	if err != nil {
		return model.RatingChange{}, fmt.Errorf("%w: before %q", ErrMalformedRatingChange, s)
	}
	after, err := parseFinite(parts[1])
	if err != nil {
		return model.RatingChange{}, fmt.Errorf("%w: after %q", ErrMalformedRatingChange, s)
	}
	return model.RatingChange{Before: before, After: after}, nil
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %v", v)
	}
	return v, nil
}
