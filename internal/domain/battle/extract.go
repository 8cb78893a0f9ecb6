package battle

import (
	"github.com/okian/duelboard/internal/domain/model"
)

// Warning describes one entry or battle dropped during extraction.
type Warning struct {
	BatchID string
	Index   string
	Other   string // opposing index when a whole battle was dropped
	Err     error
}

// WarnFunc receives dropped entries. It must not retain the batch.
type WarnFunc func(Warning)

// Option configures Extract.
type Option func(*extractor)

// WithWarnFunc routes drop warnings to fn.
func WithWarnFunc(fn WarnFunc) Option {
	return func(e *extractor) {
		if fn != nil {
			e.warn = fn
		}
	}
}

// Extraction is the result of turning batch reports into battles.
type Extraction struct {
	Battles []model.Battle
	// Discarded counts battles that could not be built because one side's
	// entry was malformed.
	Discarded int
	// DroppedEntries counts individual batch entries that were unusable.
	DroppedEntries int
}

type extractor struct {
	warn WarnFunc
}

type entry struct {
	index  string
	id     model.ParticipantID
	change model.RatingChange
	err    error
}

// Extract builds one battle for every unordered pair of distinct indices in
// every batch. A pair where either entry is unusable is skipped and counted
// in Discarded; it never aborts the rest of the batch.
func Extract(reports []model.BatchReport, opts ...Option) Extraction {
	e := &extractor{warn: func(Warning) {}}
	for _, opt := range opts {
		opt(e)
	}

	var out Extraction
	for _, r := range reports {
		entries := e.entries(r)
		for _, en := range entries {
			if en.err != nil {
				out.DroppedEntries++
				e.warn(Warning{BatchID: r.BatchID, Index: en.index, Err: en.err})
			}
		}

		ts := r.Time()
		for i := 0; i < len(entries); i++ {
			for j := i + 1; j < len(entries); j++ {
				a, b := entries[i], entries[j]
				if err := pairError(a, b); err != nil {
					out.Discarded++
					e.warn(Warning{BatchID: r.BatchID, Index: a.index, Other: b.index, Err: err})
					continue
				}
				out.Battles = append(out.Battles, model.Battle{
					A:         a.id,
					B:         b.id,
					Winner:    model.Decide(a.change, b.change),
					Timestamp: ts,
				})
			}
		}
	}
	return out
}

func (e *extractor) entries(r model.BatchReport) []entry {
	indices := r.Indices()
	out := make([]entry, 0, len(indices))
	for _, idx := range indices {
		en := entry{index: idx, id: r.UIDs[idx]}
		if en.id == "" {
			en.err = ErrMissingParticipant
			out = append(out, en)
			continue
		}
		raw, ok := r.RatingChanges[idx]
		if !ok {
			en.err = ErrMissingRatingChange
			out = append(out, en)
			continue
		}
		en.change, en.err = ParseRatingChange(raw)
		out = append(out, en)
	}
	return out
}

func pairError(a, b entry) error {
	switch {
	case a.err != nil:
		return a.err
	case b.err != nil:
		return b.err
	case a.id == b.id:
		return ErrDuplicateParticipant
	}
	return nil
}
