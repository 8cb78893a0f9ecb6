package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/duelboard/internal/simulate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := simulate.NewCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
