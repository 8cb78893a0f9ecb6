package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/duelboard/internal/domain/model"
	"github.com/okian/duelboard/pkg/logger"
)

const (
	sourceUpstream = "upstream"

	defaultPollInterval    = 5 * time.Minute
	defaultPollConcurrency = 4
)

// Fetcher reads the remote report API.
type Fetcher interface {
	FetchReports(ctx context.Context) ([]model.ValidatorReport, error)
	FetchBattles(ctx context.Context, hotkey string) ([]model.BatchReport, error)
}

// Sink receives what the poller fetched.
type Sink interface {
	PutMetadata(ctx context.Context, report model.ValidatorReport) error
	Ingest(ctx context.Context, source, validator string, batches []model.BatchReport) (IngestResult, error)
}

// PollerOption applies a configuration option to the Poller.
type PollerOption func(*Poller)

// WithPollInterval sets the delay between polls.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithPollConcurrency caps concurrent per-validator battle fetches.
func WithPollConcurrency(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithHotkeys adds validators whose battles are fetched even when the
// metadata endpoint does not list them.
func WithHotkeys(hotkeys ...string) PollerOption {
	return func(p *Poller) {
		p.hotkeys = append(p.hotkeys, hotkeys...)
	}
}

// WithPollerLogger sets a custom logger for the poller.
func WithPollerLogger(l logger.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// Poller periodically copies validator metadata and battles from the
// remote API into a Sink.
type Poller struct {
	fetcher     Fetcher
	sink        Sink
	interval    time.Duration
	concurrency int
	hotkeys     []string
	logger      logger.Logger
}

// NewPoller creates a poller.
func NewPoller(fetcher Fetcher, sink Sink, opts ...PollerOption) *Poller {
	p := &Poller{
		fetcher:     fetcher,
		sink:        sink,
		interval:    defaultPollInterval,
		concurrency: defaultPollConcurrency,
		logger:      logger.Get().Named("poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PollResult summarizes one poll.
type PollResult struct {
	Validators int
	Ingested   IngestResult
}

// PollOnce fetches metadata, then every validator's battles concurrently.
// A failing validator does not stop the others; the joined errors are
// returned alongside whatever was ingested.
func (p *Poller) PollOnce(ctx context.Context) (PollResult, error) {
	var errs []error

	known := make(map[string]struct{}, len(p.hotkeys))
	for _, hk := range p.hotkeys {
		if hk != "" {
			known[hk] = struct{}{}
		}
	}

	reports, err := p.fetcher.FetchReports(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("fetch reports: %w", err))
	}
	for _, r := range reports {
		known[r.Hotkey] = struct{}{}
		if err := p.sink.PutMetadata(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("store metadata %s: %w", r.Hotkey, err))
		}
	}

	hotkeys := make([]string, 0, len(known))
	for hk := range known {
		hotkeys = append(hotkeys, hk)
	}
	sort.Strings(hotkeys)

	results := make([]IngestResult, len(hotkeys))
	fetchErrs := make([]error, len(hotkeys))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, hk := range hotkeys {
		g.Go(func() error {
			batches, err := p.fetcher.FetchBattles(ctx, hk)
			if err != nil {
				fetchErrs[i] = fmt.Errorf("fetch battles %s: %w", hk, err)
				return nil
			}
			if len(batches) == 0 {
				return nil
			}
			res, err := p.sink.Ingest(ctx, sourceUpstream, hk, batches)
			if err != nil {
				fetchErrs[i] = fmt.Errorf("ingest %s: %w", hk, err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := PollResult{Validators: len(hotkeys)}
	for i := range hotkeys {
		out.Ingested.Accepted += results[i].Accepted
		out.Ingested.Duplicates += results[i].Duplicates
		out.Ingested.Rejected += results[i].Rejected
		out.Ingested.BatchIDs = append(out.Ingested.BatchIDs, results[i].BatchIDs...)
		if fetchErrs[i] != nil {
			errs = append(errs, fetchErrs[i])
		}
	}
	return out, errors.Join(errs...)
}

// Run polls immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		res, err := p.PollOnce(ctx)
		if err != nil {
			p.logger.Warn(ctx, "poll finished with errors", logger.Error(err))
		}
		p.logger.Info(ctx, "poll complete",
			logger.Int("validators", res.Validators),
			logger.Int("accepted", res.Ingested.Accepted),
			logger.Int("duplicates", res.Ingested.Duplicates),
			logger.Int("rejected", res.Ingested.Rejected),
		)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
