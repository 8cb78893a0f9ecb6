// Package stats derives the per-validator dashboard statistics: tier
// distribution, per-tier scores and entry availability.
package stats

import (
	"sort"

	"github.com/okian/duelboard/internal/domain/aggregate"
	"github.com/okian/duelboard/internal/domain/model"
)

// TierCount is the number of participants a validator placed in a tier.
type TierCount struct {
	Tier  string `json:"tier"`
	Count int    `json:"count"`
}

// ParticipantScore is a participant's score inside its tier.
type ParticipantScore struct {
	ParticipantID model.ParticipantID `json:"participantId"`
	Score         float64             `json:"score"`
}

// TierScores lists a tier's participants in numeric-suffix order.
type TierScores struct {
	Tier   string             `json:"tier"`
	Scores []ParticipantScore `json:"scores"`
}

// TierReport is the tier view of one validator report.
type TierReport struct {
	Hotkey       string       `json:"hotkey"`
	Distribution []TierCount  `json:"distribution"`
	Tiers        []TierScores `json:"tiers"`
}

// Tiers builds the tier distribution and per-tier scores of a validator
// report. Tiers are ordered by participant count descending, then by name;
// tiers without participants never appear.
func Tiers(r model.ValidatorReport) TierReport {
	byTier := make(map[string][]model.ParticipantID)
	for id, meta := range r.Metadata {
		byTier[meta.Tier] = append(byTier[meta.Tier], id)
	}

	names := make([]string, 0, len(byTier))
	for tier := range byTier {
		names = append(names, tier)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := len(byTier[names[i]]), len(byTier[names[j]])
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})

	out := TierReport{
		Hotkey:       r.Hotkey,
		Distribution: make([]TierCount, 0, len(names)),
		Tiers:        make([]TierScores, 0, len(names)),
	}
	for _, tier := range names {
		ids := aggregate.OrderBySuffix(byTier[tier])
		scores := make([]ParticipantScore, len(ids))
		for i, id := range ids {
			scores[i] = ParticipantScore{ParticipantID: id, Score: r.Metadata[id].Score}
		}
		out.Distribution = append(out.Distribution, TierCount{Tier: tier, Count: len(ids)})
		out.Tiers = append(out.Tiers, TierScores{Tier: tier, Scores: scores})
	}
	return out
}
