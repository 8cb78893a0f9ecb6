// Package types contains read shapes shared by the service and the HTTP API.
package types

import "github.com/okian/duelboard/internal/domain/model"

// Standing is one row of the win-rate leaderboard.
type Standing struct {
	Rank            int                 `json:"rank"`
	ParticipantID   model.ParticipantID `json:"participantId"`
	MeanWinFraction float64             `json:"meanWinFraction"`
}

// ValidatorInfo names a validator whose reports are tracked.
type ValidatorInfo struct {
	Hotkey string `json:"hotkey"`
	Name   string `json:"name,omitempty"`
}
