// Package main runs the game core.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	gamecmd "github.com/louisbranch/delving.space/internal/cmd/game"
	"github.com/louisbranch/delving.space/internal/platform/config"
)

func main() {
	cfg, err := gamecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	log.SetPrefix("[GAME] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HealthCheck {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := gamecmd.Probe(ctx, cfg); err != nil {
			config.Exitf("Error: %v", err)
		}
		return
	}
	if err := gamecmd.Run(ctx, cfg); err != nil {
		log.Fatalf("game core stopped: %v", err)
	}
}
