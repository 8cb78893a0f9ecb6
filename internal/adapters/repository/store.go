// Package repository holds battle-report snapshots and cached aggregation results.
package repository

import (
	"context"

	"github.com/okian/duelboard/internal/domain/model"
)

// Snapshot is an immutable view of the batches stored for a validator (or
// for every validator when Validator is empty). Hash changes whenever a
// batch is added, so it can key caches.
type Snapshot struct {
	Validator string
	Reports   []model.BatchReport
	Hash      uint64
}

// Store provides read/write access to stored batch reports and validator metadata.
type Store interface {
	// Append stores batches. Each batch is filed under its Validator.
	Append(ctx context.Context, reports ...model.BatchReport) error

	// Snapshot returns the batches for validator, or all batches when
	// validator is empty. Unknown validators yield an empty snapshot.
	Snapshot(ctx context.Context, validator string) (Snapshot, error)

	// PutMetadata replaces the latest metadata report of a validator.
	PutMetadata(ctx context.Context, report model.ValidatorReport) error

	// Metadata returns the latest metadata report of a validator.
	// Returns ErrNotFound if none was stored.
	Metadata(ctx context.Context, hotkey string) (model.ValidatorReport, error)

	// Validators lists every hotkey with stored batches or metadata.
	Validators(ctx context.Context) []string

	// Count returns the number of stored batches.
	Count(ctx context.Context) int
}
