package simulate

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/duelboard/pkg/logger"
)

const settlePollInterval = 100 * time.Millisecond

// Run generates batches, submits them, waits for them to be stored and
// fetches the ranking.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}
	log := logger.Get().Named("simulate")
	start := time.Now()
	c := newClient(cfg.BaseURL, cfg.Timeout)

	if err := c.health(ctx); err != nil {
		return Stats{}, fmt.Errorf("service health check failed: %w", err)
	}

	batches := Generate(cfg)
	st := Stats{Generated: len(batches)}
	log.Info(ctx, "generated batches",
		logger.Int("batches", len(batches)),
		logger.Int("participants", cfg.Participants),
		logger.Float64("malformedRatio", cfg.MalformedRatio),
	)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for lo := 0; lo < len(batches); lo += cfg.ChunkSize {
		chunk := batches[lo:min(lo+cfg.ChunkSize, len(batches))]
		g.Go(func() error {
			res, err := c.submit(gctx, cfg.Validator, chunk)
			mu.Lock()
			defer mu.Unlock()
			st.Accepted += res.Accepted
			st.Duplicates += res.Duplicates
			if err != nil {
				st.Rejected += res.Rejected
				st.Failed += len(chunk) - res.Accepted - res.Duplicates - res.Rejected
				log.Warn(gctx, "chunk submission failed", logger.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	log.Info(ctx, "submission completed",
		logger.Int("accepted", st.Accepted),
		logger.Int("duplicates", st.Duplicates),
		logger.Int("rejected", st.Rejected),
		logger.Int("failed", st.Failed),
	)

	if err := waitStored(ctx, c, st.Accepted, cfg.Settle); err != nil {
		log.Warn(ctx, "batches not fully stored before ranking", logger.Error(err))
	}

	ranking, err := c.ranking(ctx, cfg.Validator, cfg.Top)
	if err != nil {
		return st, fmt.Errorf("ranking retrieval failed: %w", err)
	}
	st.Ranking = ranking
	st.Duration = time.Since(start)
	return st, nil
}

func waitStored(ctx context.Context, c *client, want int, settle time.Duration) error {
	deadline := time.Now().Add(settle)
	for {
		n, err := c.storedBatches(ctx)
		if err == nil && n >= want {
			return nil
		}
		if time.Now().After(deadline) {
			if err != nil {
				return err
			}
			return fmt.Errorf("stored %d of %d batches after %s", n, want, settle)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settlePollInterval):
		}
	}
}

// Print writes a human-readable summary of st.
func Print(w io.Writer, st Stats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "generated\t%d\n", st.Generated)
	fmt.Fprintf(tw, "accepted\t%d\n", st.Accepted)
	fmt.Fprintf(tw, "duplicates\t%d\n", st.Duplicates)
	fmt.Fprintf(tw, "rejected\t%d\n", st.Rejected)
	fmt.Fprintf(tw, "failed\t%d\n", st.Failed)
	fmt.Fprintf(tw, "duration\t%s\n\n", st.Duration.Round(time.Millisecond))
	fmt.Fprintln(tw, "RANK\tPARTICIPANT\tMEAN WIN FRACTION")
	for _, s := range st.Ranking {
		fmt.Fprintf(tw, "%d\t%s\t%.4f\n", s.Rank, s.ParticipantID, s.MeanWinFraction)
	}
	return tw.Flush()
}
