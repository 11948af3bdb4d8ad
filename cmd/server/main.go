package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"good-food/internal/app"
	"good-food/internal/app/api"
	"good-food/internal/app/notify"
	"good-food/internal/app/supplier"
	"good-food/internal/common/logger"
	"good-food/internal/common/tracing"
	"good-food/internal/config"
)

const modes = "api | supplier-worker | notification-subscriber | all"

func main() {
	mode := flag.String("mode", "api", modes)
	cfgPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	lg := logger.New(cfg.Service+"/"+*mode, cfg.LogLevel)
	defer lg.Sync()

	if err := run(*mode, cfg, lg); err != nil {
		lg.Error("fatal", err, map[string]any{"mode": *mode})
		lg.Sync()
		os.Exit(1)
	}
}

func run(mode string, cfg *config.Config, lg *logger.Logger) error {
	var runners []func(context.Context, *app.Deps) error
	needRabbit := false
	switch mode {
	case "api":
		runners = append(runners, api.Run)
	case "supplier-worker":
		runners, needRabbit = append(runners, supplier.Run), true
	case "notification-subscriber":
		runners, needRabbit = append(runners, notify.Run), notify.NeedsRabbit(cfg.Events.Driver)
	case "all":
		runners, needRabbit = append(runners, api.Run, supplier.Run, notify.Run), true
	default:
		return fmt.Errorf("unknown --mode %q: want %s", mode, modes)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Service, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			lg.Error("tracing_shutdown_failed", err, nil)
		}
	}()

	deps, err := app.Open(ctx, cfg, lg, needRabbit)
	if err != nil {
		return err
	}
	defer deps.Close()

	lg.Info("service_started", map[string]any{"mode": mode, "store": cfg.Store.Driver, "events": cfg.Events.Driver})
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error { return r(gctx, deps) })
	}
	err = g.Wait()
	lg.Info("service_stopped", map[string]any{"mode": mode})
	return err
}
