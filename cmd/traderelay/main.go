package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"traderelay/internal/app"
	"traderelay/internal/config"
	"traderelay/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, v, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	config.Watch(v, a.Reload)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Infof("traderelay starting, venue driver %s", cfg.Venue.Driver)
	if err := a.Run(ctx); err != nil {
		logger.Errorf("engine stopped: %v", err)
		os.Exit(1)
	}
	logger.Infof("traderelay stopped")
}
