package simulate

import (
	"github.com/spf13/cobra"

	"github.com/okian/duelboard/pkg/logger"
)

// NewCommand returns the simulate root command.
func NewCommand() *cobra.Command {
	cfg := DefaultConfig()
	var logLevel string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Submit synthetic battle batches and print the resulting ranking",
		Long: "simulate generates batches of participants with random rating changes, " +
			"posts them to a running duelboard server and prints the ranking it computes.",
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWith(cmd.ErrOrStderr(), "text"); err != nil {
				return err
			}
			return logger.SetLevelString(logLevel)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return Print(cmd.OutOrStdout(), st)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of the service")
	f.StringVar(&cfg.Validator, "validator", cfg.Validator, "validator hotkey the batches are filed under")
	f.IntVarP(&cfg.Batches, "batches", "n", cfg.Batches, "number of batches to generate")
	f.IntVarP(&cfg.Participants, "participants", "k", cfg.Participants, "participants per batch")
	f.IntVar(&cfg.Pool, "pool", cfg.Pool, "distinct participants across all batches")
	f.Float64Var(&cfg.MalformedRatio, "malformed", cfg.MalformedRatio, "share of entries reported as N/A")
	f.IntVar(&cfg.ChunkSize, "chunk", cfg.ChunkSize, "batches per request")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent submitters")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	f.DurationVar(&cfg.Settle, "settle", cfg.Settle, "how long to wait for batches to be stored")
	f.IntVar(&cfg.Top, "top", cfg.Top, "ranking rows to print")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	f.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	return cmd
}
