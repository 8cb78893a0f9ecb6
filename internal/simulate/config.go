// Package simulate generates synthetic battle batches, submits them to a
// running server and reads back the ranking.
package simulate

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/duelboard/internal/domain/types"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL        string        // Base URL of the service
	Validator      string        // Hotkey the batches are filed under
	Batches        int           // Number of batches to generate
	Participants   int           // Participants per batch
	Pool           int           // Distinct participants across all batches
	MalformedRatio float64       // Share of entries reported as "N/A"
	ChunkSize      int           // Batches per POST /reports
	Workers        int           // Concurrent submitters
	Timeout        time.Duration // HTTP request timeout
	Settle         time.Duration // How long to wait for stored batches
	Top            int           // Ranking rows to fetch
	Seed           int64         // RNG seed; equal seeds generate equal batches
}

// DefaultConfig returns the CLI defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:9080",
		Validator:      "simulated",
		Batches:        200,
		Participants:   4,
		Pool:           16,
		MalformedRatio: 0.05,
		ChunkSize:      50,
		Workers:        4,
		Timeout:        10 * time.Second,
		Settle:         10 * time.Second,
		Top:            10,
		Seed:           1,
	}
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.Batches < 1:
		return fmt.Errorf("%w: batches must be positive", ErrInvalidConfig)
	case c.Participants < 2:
		return fmt.Errorf("%w: a batch needs at least two participants", ErrInvalidConfig)
	case c.Pool < c.Participants:
		return fmt.Errorf("%w: pool (%d) is smaller than participants per batch (%d)", ErrInvalidConfig, c.Pool, c.Participants)
	case c.MalformedRatio < 0 || c.MalformedRatio > 1:
		return fmt.Errorf("%w: malformed ratio must be within [0,1]", ErrInvalidConfig)
	case c.ChunkSize < 1 || c.Workers < 1:
		return fmt.Errorf("%w: chunk size and workers must be positive", ErrInvalidConfig)
	}
	return nil
}

// Stats summarizes a run.
type Stats struct {
	Generated  int
	Accepted   int
	Duplicates int
	Rejected   int
	Failed     int
	Ranking    []types.Standing
	Duration   time.Duration
}
