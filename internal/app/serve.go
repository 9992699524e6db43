package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tsesc/tw-homedog/internal/cleanup"
	"github.com/tsesc/tw-homedog/internal/cli"
	"github.com/tsesc/tw-homedog/internal/db"
	"github.com/tsesc/tw-homedog/internal/httpapi"
	"github.com/tsesc/tw-homedog/internal/ingest"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "", "Host interface to bind (empty = configured default)")
	port := fs.Int("port", 0, "HTTP port (0 = configured default)")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port < 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	cfg, logger, ok := loadRuntime(envLoader)
	if !ok {
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	gate := ingest.NewService(pool, logger, ingest.Options{
		Source:         cfg.Source,
		DedupEnabled:   cfg.DedupEnabled,
		Threshold:      cfg.DedupThreshold,
		PriceTolerance: cfg.DedupPriceTolerance,
		SizeTolerance:  cfg.DedupSizeTolerance,
		CandidateLimit: cfg.DedupCandidateLimit,
	})
	cleaner := cleanup.NewService(pool, logger)

	bindHost := cfg.HTTPHost
	if *host != "" {
		bindHost = *host
	}
	bindPort := cfg.HTTPPort
	if *port > 0 {
		bindPort = *port
	}

	srv := httpapi.NewServer(pool, logger, gate, cleaner, httpapi.Options{
		Host:             bindHost,
		Port:             bindPort,
		Source:           cfg.Source,
		APIKeyHash:       cfg.APIKeyHash,
		AllowedOrigins:   cfg.CORSAllowedOriginsList(),
		ReadTimeout:      *readTimeout,
		WriteTimeout:     *writeTimeout,
		ShutdownTimeout:  *shutdownTimeout,
		DedupThreshold:   cfg.DedupThreshold,
		PriceTolerance:   cfg.DedupPriceTolerance,
		SizeTolerance:    cfg.DedupSizeTolerance,
		CleanupBatchSize: cfg.CleanupBatchSize,
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", bindHost).Int("port", bindPort).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
