package aggregate

import (
	"sort"

	"github.com/okian/duelboard/internal/domain/model"
	"github.com/okian/duelboard/internal/domain/types"
)

// Result is the full aggregation of one battle snapshot.
type Result struct {
	// Participants in presentation order (numeric suffix ascending).
	Participants []model.ParticipantID `json:"participants"`
	Counts       CountMatrix           `json:"counts"`
	WinFractions WinFractionMatrix     `json:"winFractions"`
	Ranking      []types.Standing      `json:"ranking"`
	Battles      int                   `json:"battles"`
}

// Aggregate computes counts, win fractions and the ranking for battles. It is
// a pure function of its input: identical input yields identical output.
// Battles of a participant against itself are ignored.
func Aggregate(battles []model.Battle) Result {
	counts := make(CountMatrix)
	wins := make(CountMatrix)
	var seen []model.ParticipantID
	known := make(map[model.ParticipantID]struct{})
	observe := func(id model.ParticipantID) {
		if _, ok := known[id]; !ok {
			known[id] = struct{}{}
			seen = append(seen, id)
		}
	}

	n := 0
	for _, b := range battles {
		if b.A == b.B {
			continue
		}
		n++
		observe(b.A)
		observe(b.B)
		counts.add(b.A, b.B)
		counts.add(b.B, b.A)
		switch b.Winner {
		case model.WinnerA:
			wins.add(b.A, b.B)
		case model.WinnerB:
			wins.add(b.B, b.A)
		}
	}

	fractions := make(WinFractionMatrix, len(counts))
	for x, row := range counts {
		for y, total := range row {
			if total == 0 {
				continue
			}
			fractions.set(x, y, float64(wins.Get(x, y))/float64(total))
		}
	}

	return Result{
		Participants: OrderBySuffix(seen),
		Counts:       counts,
		WinFractions: fractions,
		Ranking:      rank(seen, fractions),
		Battles:      n,
	}
}

// rank orders participants by their mean win fraction over every opponent
// with a defined fraction. Equal means keep first-seen order.
func rank(seen []model.ParticipantID, fractions WinFractionMatrix) []types.Standing {
	out := make([]types.Standing, 0, len(seen))
	for _, id := range seen {
		row := fractions[id]
		if len(row) == 0 {
			continue
		}
		// Sum in a fixed opponent order so the mean is bit-identical across runs.
		opponents := make([]model.ParticipantID, 0, len(row))
		for opp := range row {
			opponents = append(opponents, opp)
		}
		sort.Slice(opponents, func(i, j int) bool { return opponents[i] < opponents[j] })
		var sum float64
		for _, opp := range opponents {
			sum += row[opp]
		}
		out = append(out, types.Standing{
			ParticipantID:   id,
			MeanWinFraction: sum / float64(len(row)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MeanWinFraction > out[j].MeanWinFraction
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
