// Package main validates the game content tables.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/delving.space/internal/cmd/contentcheck"
	entrypoint "github.com/louisbranch/delving.space/internal/platform/cmd"
	"github.com/louisbranch/delving.space/internal/platform/config"
)

func main() {
	cfg, err := contentcheck.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceContentCheck, func(ctx context.Context) error {
		return contentcheck.Run(ctx, cfg, os.Stdout)
	})
	if err != nil {
		config.Exitf("Error: %v", err)
	}
}
