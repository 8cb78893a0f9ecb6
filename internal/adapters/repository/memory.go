package repository

import (
	"context"
	"encoding/binary"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/duelboard/internal/domain/model"
	"github.com/okian/duelboard/pkg/metrics"
)

// series is an append-only list of batches with a rolling content hash.
type series struct {
	reports []model.BatchReport
	hash    uint64
}

func (s *series) append(r model.BatchReport) {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], s.hash)
	binary.LittleEndian.PutUint64(buf[8:], r.Fingerprint())
	s.hash = xxhash.Sum64(buf[:])
	s.reports = append(s.reports, r)
}

func (s *series) snapshot(validator string) Snapshot {
	// Full slice expression so appends after the snapshot never alias it.
	return Snapshot{
		Validator: validator,
		Reports:   s.reports[:len(s.reports):len(s.reports)],
		Hash:      s.hash,
	}
}

// MemoryStore is an in-memory Store. Reports are immutable once stored, so
// snapshots share the backing arrays without copying.
type MemoryStore struct {
	mu          sync.RWMutex
	all         series
	byValidator map[string]*series
	metadata    map[string]model.ValidatorReport
	maxReports  int
	closed      bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byValidator: make(map[string]*series),
		metadata:    make(map[string]model.ValidatorReport),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Append(ctx context.Context, reports ...model.BatchReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, r := range reports {
		s.all.append(r)
		vs, ok := s.byValidator[r.Validator]
		if !ok {
			vs = &series{}
			s.byValidator[r.Validator] = vs
		}
		vs.append(r)
	}
	if s.maxReports > 0 && len(s.all.reports) > s.maxReports {
		s.trim()
	}
	metrics.UpdateReportsStored(len(s.all.reports))
	return nil
}

// trim drops the oldest batches beyond maxReports and rebuilds every series
// so hashes keep describing exactly what is stored. Must hold s.mu.
func (s *MemoryStore) trim() {
	keep := s.all.reports[len(s.all.reports)-s.maxReports:]
	s.all = series{}
	s.byValidator = make(map[string]*series)
	for _, r := range keep {
		s.all.append(r)
		vs, ok := s.byValidator[r.Validator]
		if !ok {
			vs = &series{}
			s.byValidator[r.Validator] = vs
		}
		vs.append(r)
	}
}

func (s *MemoryStore) Snapshot(ctx context.Context, validator string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if validator == "" {
		return s.all.snapshot(""), nil
	}
	vs, ok := s.byValidator[validator]
	if !ok {
		return Snapshot{Validator: validator}, nil
	}
	return vs.snapshot(validator), nil
}

func (s *MemoryStore) PutMetadata(ctx context.Context, report model.ValidatorReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.metadata[report.Hotkey] = report
	return nil
}

func (s *MemoryStore) Metadata(_ context.Context, hotkey string) (model.ValidatorReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.metadata[hotkey]
	if !ok {
		return model.ValidatorReport{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) Validators(_ context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{}, len(s.byValidator)+len(s.metadata))
	for k := range s.byValidator {
		if k != "" {
			seen[k] = struct{}{}
		}
	}
	for k := range s.metadata {
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.all.reports)
}

// Close rejects further writes.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
