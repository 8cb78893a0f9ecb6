// Package service wires the store, ingestion pipeline and aggregation into
// the operations the HTTP API serves.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/duelboard/internal/adapters/mq/queue"
	"github.com/okian/duelboard/internal/adapters/mq/worker"
	"github.com/okian/duelboard/internal/adapters/repository"
	"github.com/okian/duelboard/internal/domain/aggregate"
	"github.com/okian/duelboard/internal/domain/battle"
	"github.com/okian/duelboard/internal/domain/dedupe"
	"github.com/okian/duelboard/internal/domain/model"
	"github.com/okian/duelboard/internal/domain/stats"
	"github.com/okian/duelboard/internal/domain/types"
	"github.com/okian/duelboard/pkg/logger"
	"github.com/okian/duelboard/pkg/metrics"
)

const otherValidatorLabel = "other"

// IngestResult reports what happened to the batches of one ingest call.
type IngestResult struct {
	Accepted   int      `json:"accepted"`
	Duplicates int      `json:"duplicates"`
	Rejected   int      `json:"rejected"`
	BatchIDs   []string `json:"batchIds"`
}

// AggregateView is an aggregation plus the bookkeeping of how it was built.
type AggregateView struct {
	Validator      string `json:"validator,omitempty"`
	Batches        int    `json:"batches"`
	Discarded      int    `json:"discarded"`
	DroppedEntries int    `json:"droppedEntries"`
	aggregate.Result
}

// Service implements the API dependencies for the battle dashboard.
type Service struct {
	mu sync.RWMutex

	store   *repository.MemoryStore
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	cache   *repository.Cache[AggregateView]

	workerCount      int
	queueSize        int
	dedupeSize       int
	maxStoredReports int
	cacheTTL         time.Duration
	validatorNames   map[string]string

	started bool
	logger  logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU(),
		queueSize:      10_000,
		dedupeSize:     200_000,
		cacheTTL:       30 * time.Second,
		validatorNames: map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates the components and launches the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.store = repository.NewMemoryStore(repository.WithMaxReports(s.maxStoredReports))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.cache = repository.NewCache[AggregateView](repository.WithTTL(s.cacheTTL))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.store)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "battle service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("cacheTTL", s.cacheTTL.String()),
	)
	return nil
}

// Stop drains queued batches into the store, then closes it.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping battle service")

	var err error
	if perr := s.pool.Stop(ctx); perr != nil {
		err = fmt.Errorf("stop workers: %w", perr)
	}
	_ = s.store.Close()
	s.started = false
	s.logger.Info(ctx, "battle service stopped", logger.Int64("stored", s.pool.Stored()))
	return err
}

// Ingest assigns batch ids, drops batches already seen and queues the rest
// for storage. validator, when set, tags batches that carry no validator of
// their own. A full queue rejects the batch and forgets its fingerprint so a
// retry is not mistaken for a duplicate.
func (s *Service) Ingest(ctx context.Context, source, validator string, batches []model.BatchReport) (IngestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return IngestResult{}, ErrNotStarted
	}
	if len(batches) == 0 {
		return IngestResult{}, ErrNoBatches
	}

	res := IngestResult{BatchIDs: make([]string, 0, len(batches))}
	for i := range batches {
		b := batches[i]
		if b.Validator == "" {
			b.Validator = validator
		}
		key := b.FingerprintKey()
		if s.deduper.SeenAndRecord(ctx, key) {
			res.Duplicates++
			metrics.RecordReportDuplicate()
			s.logger.Debug(ctx, "duplicate batch skipped", logger.String("fingerprint", key))
			continue
		}
		if b.BatchID == "" {
			b.BatchID = uuid.NewString()
		}
		if !s.queue.Enqueue(ctx, b) {
			s.deduper.Unrecord(ctx, key)
			res.Rejected++
			metrics.RecordReportRejected()
			continue
		}
		res.Accepted++
		res.BatchIDs = append(res.BatchIDs, b.BatchID)
		metrics.RecordReportIngested(source)
	}
	if res.Rejected > 0 {
		s.logger.Warn(ctx, "ingest queue full",
			logger.String("source", source),
			logger.Int("rejected", res.Rejected),
		)
	}
	return res, nil
}

// PutMetadata stores the latest metadata report of a validator.
func (s *Service) PutMetadata(ctx context.Context, report model.ValidatorReport) error {
	store, err := s.readStore()
	if err != nil {
		return err
	}
	return store.PutMetadata(ctx, report)
}

// Aggregate extracts battles from the stored batches of validator (all
// validators when empty) and aggregates them. Results are cached per
// snapshot.
func (s *Service) Aggregate(ctx context.Context, validator string) (AggregateView, error) {
	store, err := s.readStore()
	if err != nil {
		return AggregateView{}, err
	}
	snap, err := store.Snapshot(ctx, validator)
	if err != nil {
		return AggregateView{}, err
	}

	key := repository.CacheKey{Validator: validator, Hash: snap.Hash}
	if view, ok := s.cache.Get(key); ok {
		metrics.RecordCacheLookup(true)
		return view, nil
	}
	metrics.RecordCacheLookup(false)

	start := time.Now()
	ex := battle.Extract(snap.Reports, battle.WithWarnFunc(func(w battle.Warning) {
		s.logger.Warn(ctx, "battle entry dropped",
			logger.String("batch_id", w.BatchID),
			logger.String("index", w.Index),
			logger.String("other", w.Other),
			logger.Error(w.Err),
		)
	}))
	res := aggregate.Aggregate(ex.Battles)
	metrics.RecordExtraction(len(ex.Battles), ex.Discarded, ex.DroppedEntries)
	metrics.RecordAggregationLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateParticipants(s.metricsLabel(ctx, store, validator), len(res.Participants))

	view := AggregateView{
		Validator:      validator,
		Batches:        len(snap.Reports),
		Discarded:      ex.Discarded,
		DroppedEntries: ex.DroppedEntries,
		Result:         res,
	}
	s.cache.Put(key, view)
	return view, nil
}

// metricsLabel keeps the validator label bounded to configured or stored
// hotkeys; any other query value shares the "other" series.
func (s *Service) metricsLabel(ctx context.Context, store *repository.MemoryStore, validator string) string {
	if validator == "" {
		return ""
	}
	if _, ok := s.validatorNames[validator]; ok {
		return validator
	}
	for _, hk := range store.Validators(ctx) {
		if hk == validator {
			return validator
		}
	}
	return otherValidatorLabel
}

// Ranking returns the first limit standings; limit <= 0 returns all of them.
func (s *Service) Ranking(ctx context.Context, validator string, limit int) ([]types.Standing, error) {
	view, err := s.Aggregate(ctx, validator)
	if err != nil {
		return nil, err
	}
	ranking := view.Ranking
	if limit > 0 && limit < len(ranking) {
		ranking = ranking[:limit]
	}
	return ranking, nil
}

// Availability returns per-participant invalid/valid entry rates.
func (s *Service) Availability(ctx context.Context, validator string) ([]stats.Availability, error) {
	store, err := s.readStore()
	if err != nil {
		return nil, err
	}
	snap, err := store.Snapshot(ctx, validator)
	if err != nil {
		return nil, err
	}
	return stats.Availabilities(snap.Reports), nil
}

// Tiers returns the tier view of a validator's latest metadata.
// Returns repository.ErrNotFound when no metadata was stored.
func (s *Service) Tiers(ctx context.Context, hotkey string) (stats.TierReport, error) {
	store, err := s.readStore()
	if err != nil {
		return stats.TierReport{}, err
	}
	report, err := store.Metadata(ctx, hotkey)
	if err != nil {
		return stats.TierReport{}, err
	}
	return stats.Tiers(report), nil
}

// Validators lists configured validators and any others seen in the data,
// sorted by hotkey.
func (s *Service) Validators(ctx context.Context) ([]types.ValidatorInfo, error) {
	store, err := s.readStore()
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(s.validatorNames))
	for hk := range s.validatorNames {
		known[hk] = struct{}{}
	}
	for _, hk := range store.Validators(ctx) {
		known[hk] = struct{}{}
	}
	out := make([]types.ValidatorInfo, 0, len(known))
	for hk := range known {
		out = append(out, types.ValidatorInfo{Hotkey: hk, Name: s.validatorNames[hk]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hotkey < out[j].Hotkey })
	return out, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	st := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if s.started {
		queueLen := s.queue.Len()
		st["queueLength"] = queueLen
		st["storedBatches"] = s.store.Count(ctx)
		st["seenFingerprints"] = s.deduper.Size()
		st["cachedAggregations"] = s.cache.Len()
		st["workerStored"] = s.pool.Stored()
		st["workerFailed"] = s.pool.Failed()
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}
	return st
}

// Stored returns how many batches the workers have written so far.
func (s *Service) Stored() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pool == nil {
		return 0
	}
	return s.pool.Stored()
}

func (s *Service) readStore() (*repository.MemoryStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}
