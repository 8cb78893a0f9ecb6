package simulate

import (
	"math/rand"
	"strconv"

	"github.com/okian/duelboard/internal/domain/model"
)

const (
	baseRating   = 1000.0
	ratingSpread = 200.0
	skillSpread  = 10.0
	noiseSpread  = 15.0
	baseUnixTime = 1_700_000_000
)

// Generate builds cfg.Batches synthetic batches. Each pool participant has
// a hidden skill; a participant's rating change in a batch is its skill
// plus noise, so stronger participants win more often. Entries are replaced
// by "N/A" with probability cfg.MalformedRatio.
func Generate(cfg Config) []model.BatchReport {
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // synthetic data

	pool := make([]model.ParticipantID, cfg.Pool)
	skill := make(map[model.ParticipantID]float64, cfg.Pool)
	rating := make(map[model.ParticipantID]float64, cfg.Pool)
	for i := range pool {
		id := model.ParticipantID("uid_" + strconv.Itoa(i+1))
		pool[i] = id
		skill[id] = (rng.Float64()*2 - 1) * skillSpread
		rating[id] = baseRating + (rng.Float64()*2-1)*ratingSpread
	}

	out := make([]model.BatchReport, 0, cfg.Batches)
	for b := 0; b < cfg.Batches; b++ {
		r := model.BatchReport{
			Validator:     cfg.Validator,
			Timestamp:     float64(baseUnixTime + b),
			UIDs:          make(map[string]model.ParticipantID, cfg.Participants),
			RatingChanges: make(map[string]model.RawRatingChange, cfg.Participants),
		}
		for i, pick := range rng.Perm(cfg.Pool)[:cfg.Participants] {
			id := pool[pick]
			idx := strconv.Itoa(i)
			r.UIDs[idx] = id
			if rng.Float64() < cfg.MalformedRatio {
				r.RatingChanges[idx] = model.NotAvailable
				continue
			}
			before := rating[id]
			after := before + skill[id] + (rng.Float64()*2-1)*noiseSpread
			rating[id] = after
			r.RatingChanges[idx] = model.RawRatingChange(formatRating(before) + " -> " + formatRating(after))
		}
		out = append(out, r)
	}
	return out
}

func formatRating(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
