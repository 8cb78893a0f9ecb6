// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ParticipantID identifies a ranked participant (miner/node), e.g. "UID_7".
type ParticipantID string

// UnmarshalJSON accepts both string and integer identifiers. Integer uids are
// kept in their decimal form so they order and compare like any other id.
// Any other value decodes to the empty id, which marks the entry as missing
// its participant.
func (p *ParticipantID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = ParticipantID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		if _, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			*p = ParticipantID(n.String())
			return nil
		}
	}
	*p = ""
	return nil
}

// Winner is the outcome of a single battle.
type Winner int

const (
	// WinnerTie means both participants had the same rating delta.
	WinnerTie Winner = iota
	// WinnerA means the participant in slot A won.
	WinnerA
	// WinnerB means the participant in slot B won.
	WinnerB
)

func (w Winner) String() string {
	switch w {
	case WinnerA:
		return "A"
	case WinnerB:
		return "B"
	default:
		return "tie"
	}
}

// MarshalText encodes the winner as "A", "B" or "tie".
func (w Winner) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText decodes "A", "B" or "tie".
func (w *Winner) UnmarshalText(b []byte) error {
	switch string(b) {
	case "A":
		*w = WinnerA
	case "B":
		*w = WinnerB
	case "tie":
		*w = WinnerTie
	default:
		return fmt.Errorf("unknown winner %q", string(b))
	}
	return nil
}

// Battle is one pairwise comparison between two participants within a batch.
// Battles are values and never mutated after extraction.
type Battle struct {
	A         ParticipantID `json:"participantA"`
	B         ParticipantID `json:"participantB"`
	Winner    Winner        `json:"winner"`
	Timestamp time.Time     `json:"timestamp"`
}

// RatingChange is a participant's score transition within one battle.
type RatingChange struct {
	Before float64
	After  float64
}

// Delta returns After - Before.
func (r RatingChange) Delta() float64 {
	return r.After - r.Before
}

// Decide derives the battle outcome from the two participants' rating changes.
// The larger delta wins; equal deltas are a tie.
func Decide(a, b RatingChange) Winner {
	da, db := a.Delta(), b.Delta()
	switch {
	case da > db:
		return WinnerA
	case db > da:
		return WinnerB
	default:
		return WinnerTie
	}
}
