package aggregate

import (
	"sort"
	"strings"

	"github.com/okian/duelboard/internal/domain/model"
)

// OrderBySuffix returns a copy of ids sorted by their trailing number
// ascending ("UID_2" before "UID_10"). Ids without a trailing number sort
// after numbered ones, lexically. Equal numbers fall back to the full id.
func OrderBySuffix(ids []model.ParticipantID) []model.ParticipantID {
	out := make([]model.ParticipantID, len(ids))
	copy(out, ids)
	sort.SliceStable(out, func(i, j int) bool {
		return suffixLess(out[i], out[j])
	})
	return out
}

func suffixLess(a, b model.ParticipantID) bool {
	na, okA := numericSuffix(string(a))
	nb, okB := numericSuffix(string(b))
	switch {
	case okA && !okB:
		return true
	case !okA && okB:
		return false
	case okA && okB:
		// Compare digit strings without parsing so arbitrarily long
		// suffixes never overflow.
		if len(na) != len(nb) {
			return len(na) < len(nb)
		}
		if na != nb {
			return na < nb
		}
	}
	return a < b
}

// numericSuffix returns the trailing digits of s with leading zeros removed.
func numericSuffix(s string) (string, bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return "", false
	}
	digits := strings.TrimLeft(s[i:], "0")
	if digits == "" {
		digits = "0"
	}
	return digits, true
}
