package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	anarchoresp "github.com/awinterman/anarchoresp/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := anarchoresp.Run(ctx)
	if err != nil {
		slog.Error("exiting;", "error", err)
		os.Exit(1)
	}
}
