package stats

import (
	"github.com/okian/duelboard/internal/domain/aggregate"
	"github.com/okian/duelboard/internal/domain/battle"
	"github.com/okian/duelboard/internal/domain/model"
)

// Availability is the share of a participant's batch entries that carried a
// usable rating change. InvalidRate + ValidRate == 1.
type Availability struct {
	ParticipantID model.ParticipantID `json:"participantId"`
	Entries       int                 `json:"entries"`
	Invalid       int                 `json:"invalid"`
	InvalidRate   float64             `json:"invalidRate"`
	ValidRate     float64             `json:"validRate"`
}

// Availabilities computes per-participant availability across reports.
// Entries without a participant id cannot be attributed and are skipped.
func Availabilities(reports []model.BatchReport) []Availability {
	type tally struct{ entries, invalid int }
	tallies := make(map[model.ParticipantID]*tally)
	var ids []model.ParticipantID

	for _, r := range reports {
		for idx, id := range r.UIDs {
			if id == "" {
				continue
			}
			t, ok := tallies[id]
			if !ok {
				t = &tally{}
				tallies[id] = t
				ids = append(ids, id)
			}
			t.entries++
			if _, err := battle.ParseRatingChange(r.RatingChanges[idx]); err != nil {
				t.invalid++
			}
		}
	}

	out := make([]Availability, 0, len(ids))
	for _, id := range aggregate.OrderBySuffix(ids) {
		t := tallies[id]
		invalidRate := float64(t.invalid) / float64(t.entries)
		out = append(out, Availability{
			ParticipantID: id,
			Entries:       t.entries,
			Invalid:       t.invalid,
			InvalidRate:   invalidRate,
			ValidRate:     1 - invalidRate,
		})
	}
	return out
}
