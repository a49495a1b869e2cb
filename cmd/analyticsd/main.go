package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/deepclaw/nostr-analytics/internal/api"
	"github.com/deepclaw/nostr-analytics/internal/cache"
	"github.com/deepclaw/nostr-analytics/internal/config"
	nostrclient "github.com/deepclaw/nostr-analytics/internal/nostr"
	"github.com/deepclaw/nostr-analytics/internal/ops"
	"github.com/deepclaw/nostr-analytics/internal/registry"
	"github.com/deepclaw/nostr-analytics/internal/relaypool"
	"github.com/deepclaw/nostr-analytics/internal/router"
	"github.com/deepclaw/nostr-analytics/internal/scanner"
	"github.com/deepclaw/nostr-analytics/internal/store"
	"github.com/deepclaw/nostr-analytics/internal/timing"
	"github.com/deepclaw/nostr-analytics/internal/webhook"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		configPath  = flag.String("config", "", "Path to configuration file")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("analyticsd %s (%s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := ops.NewLogger(&cfg.Logging)
	ops.SetDefault(logger)
	logger.LogStartup(version, map[string]interface{}{
		"port":   cfg.Server.Port,
		"relays": cfg.Relays.Seeds,
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *ops.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.New(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer st.Close()

	reg, err := registry.New(ctx, st, cfg.Registry, logger.WithComponent("registry"))
	if err != nil {
		return fmt.Errorf("initializing registry: %w", err)
	}

	nc := nostrclient.New(ctx, &cfg.Relays)
	defer nc.Close()

	insightCache := cache.New(cfg.Cache, st, logger.WithComponent("cache"))
	defer insightCache.Close()

	sc := scanner.New(nc, st, reg, cfg.Relays.Policy, logger.WithComponent("scanner"))
	pool := relaypool.New(nc, reg, cfg.Relays, logger.WithComponent("relaypool"))
	rt := router.New(st, reg, cfg.Webhook, logger.WithComponent("router"))
	dispatcher := webhook.New(st, reg, cfg.Webhook, logger.WithComponent("webhook"))
	aggregator := timing.New(st, reg, cfg.Cache, logger.WithComponent("timing"))
	httpServer := api.New(cfg, st, reg, sc, insightCache, logger.WithComponent("api"))

	var wg sync.WaitGroup
	background := []func(context.Context){
		reg.Run,
		pool.Run,
		func(ctx context.Context) { rt.Run(ctx, pool.Events()) },
		dispatcher.Run,
		aggregator.Run,
		sc.Run,
	}
	for _, fn := range background {
		wg.Add(1)
		go func(fn func(context.Context)) {
			defer wg.Done()
			fn(ctx)
		}(fn)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.Run(ctx); err != nil {
			logger.Error("http server stopped with error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.LogShutdown("signal received")
	cancel()
	wg.Wait()
	return nil
}
