package model

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"
)

// NotAvailable is the upstream marker for an entry without a rating change.
const NotAvailable = "N/A"

// RawRatingChange is the unparsed rating change of one batch entry. Upstream
// sends either "before -> after" or a two element [before, after] array; the
// array form is normalized to the string form when decoded. Any other shape
// is kept verbatim so the entry fails parsing on its own instead of failing
// the whole batch.
type RawRatingChange string

// UnmarshalJSON accepts a string or a two-number array and keeps anything
// else as its raw JSON text.
func (r *RawRatingChange) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = RawRatingChange(s)
		return nil
	}
	var pair []float64
	if err := json.Unmarshal(b, &pair); err == nil && len(pair) == 2 {
		*r = RawRatingChange(strconv.FormatFloat(pair[0], 'f', -1, 64) + " -> " + strconv.FormatFloat(pair[1], 'f', -1, 64))
		return nil
	}
	*r = RawRatingChange(bytes.TrimSpace(b))
	return nil
}

// BatchReport is one raw reporting batch: a timestamp, the participants that
// took part keyed by a small positional index, and their rating changes keyed
// by the same index.
type BatchReport struct {
	BatchID       string                     `json:"batch_id,omitempty"`
	Validator     string                     `json:"validator,omitempty"`
	Timestamp     float64                    `json:"timestamp" validate:"gte=0"`
	UIDs          map[string]ParticipantID   `json:"uid" validate:"required"`
	RatingChanges map[string]RawRatingChange `json:"rating_change"`
}

// Time converts the fractional unix timestamp to a time.Time.
func (r BatchReport) Time() time.Time {
	sec, frac := math.Modf(r.Timestamp)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}

// Indices returns every positional index present in either map. Integer
// indices come first in numeric order, the rest follow in lexical order.
func (r BatchReport) Indices() []string {
	seen := make(map[string]struct{}, len(r.UIDs))
	out := make([]string, 0, len(r.UIDs))
	for k := range r.UIDs {
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for k := range r.RatingChanges {
		if _, ok := seen[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return indexLess(out[i], out[j]) })
	return out
}

func indexLess(x, y string) bool {
	a, errA := strconv.Atoi(x)
	b, errB := strconv.Atoi(y)
	switch {
	case errA == nil && errB == nil:
		if a != b {
			return a < b
		}
		return x < y
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return x < y
}

// ParticipantMeta is a validator's view of one participant.
type ParticipantMeta struct {
	Tier  string  `json:"tier"`
	Score float64 `json:"score"`
}

// ValidatorReport is the latest metadata a validator published.
type ValidatorReport struct {
	Hotkey   string                            `json:"hotkey"`
	Metadata map[ParticipantID]ParticipantMeta `json:"metadata"`
}
