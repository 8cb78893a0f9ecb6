// Package aggregate computes pairwise battle counts, win fractions and the
// win-rate ranking from a snapshot of battles.
package aggregate

import "github.com/okian/duelboard/internal/domain/model"

// CountMatrix maps (participant, opponent) to the number of battles between
// them. It is symmetric.
type CountMatrix map[model.ParticipantID]map[model.ParticipantID]int

// Get returns the battle count between a and b, zero when they never met.
func (m CountMatrix) Get(a, b model.ParticipantID) int {
	return m[a][b]
}

func (m CountMatrix) add(a, b model.ParticipantID) {
	row, ok := m[a]
	if !ok {
		row = make(map[model.ParticipantID]int)
		m[a] = row
	}
	row[b]++
}

// Fraction is a win fraction that may be undefined. Defined is false when
// the pair never met, which is distinct from a 0% win rate.
type Fraction struct {
	Value   float64
	Defined bool
}

// WinFractionMatrix maps (participant, opponent) to how often the participant
// beat the opponent. Pairs without battles have no entry.
type WinFractionMatrix map[model.ParticipantID]map[model.ParticipantID]float64

// Get looks up the win fraction of x against y.
func (m WinFractionMatrix) Get(x, y model.ParticipantID) Fraction {
	v, ok := m[x][y]
	return Fraction{Value: v, Defined: ok}
}

func (m WinFractionMatrix) set(x, y model.ParticipantID, v float64) {
	row, ok := m[x]
	if !ok {
		row = make(map[model.ParticipantID]float64)
		m[x] = row
	}
	row[y] = v
}
