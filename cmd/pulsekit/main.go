package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/luminave/pulsekit/app"
	"github.com/luminave/pulsekit/internal/config"
	"github.com/luminave/pulsekit/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the configuration file (default: $PULSEKIT_CONFIG or config/pulsekit.yaml)")
		role       = flag.String("role", "", "force the node role (desktop, primary, renderer, audio, simulator)")
		monitorOn  = flag.Bool("monitor", true, "enable the HTTP introspection server")
	)
	flag.Parse()

	if err := run(*configPath, *role, *monitorOn); err != nil {
		fmt.Fprintf(os.Stderr, "pulsekit: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, role string, monitorOn bool) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if role != "" {
		cfg.Node.Role = role
	}
	if !monitorOn {
		cfg.Monitor.Enabled = false
	}

	log := logger.New(cfg.Logging)

	a, err := app.New(cfg, app.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Init(ctx); err != nil {
		return err
	}

	log.WithField("role", a.Role()).Info("pulsekit initialized")
	if err := a.Run(ctx); err != nil {
		return err
	}
	log.Info("pulsekit stopped")
	return nil
}
