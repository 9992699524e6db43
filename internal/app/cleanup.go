package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tsesc/tw-homedog/internal/cleanup"
	"github.com/tsesc/tw-homedog/internal/cli"
	"github.com/tsesc/tw-homedog/internal/db"
)

func runCleanup(args []string) int {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	apply := fs.Bool("apply", false, "Apply the merge plans instead of a dry run")
	threshold := fs.Float64("threshold", 0, "Duplicate score threshold (0 = configured default)")
	priceTolerance := fs.Float64("price-tolerance", 0, "Relative price tolerance (0 = configured default)")
	sizeTolerance := fs.Float64("size-tolerance", 0, "Relative size tolerance (0 = configured default)")
	batchSize := fs.Int("batch-size", 0, "Maximum merge groups per pass (0 = configured default)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *threshold < 0 || *threshold > 1 {
		fmt.Fprintln(os.Stderr, "--threshold must be in [0, 1]")
		return 2
	}
	if *batchSize < 0 {
		fmt.Fprintln(os.Stderr, "--batch-size must be >= 0")
		return 2
	}

	cfg, logger, ok := loadRuntime(envLoader)
	if !ok {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	opts := cleanup.Options{
		Source:         cfg.Source,
		Threshold:      cfg.DedupThreshold,
		PriceTolerance: cfg.DedupPriceTolerance,
		SizeTolerance:  cfg.DedupSizeTolerance,
		BatchSize:      cfg.CleanupBatchSize,
		DryRun:         !*apply,
	}
	if *threshold > 0 {
		opts.Threshold = *threshold
	}
	if *priceTolerance > 0 {
		opts.PriceTolerance = *priceTolerance
	}
	if *sizeTolerance > 0 {
		opts.SizeTolerance = *sizeTolerance
	}
	if *batchSize > 0 {
		opts.BatchSize = *batchSize
	}

	report, err := cleanup.NewService(pool, logger).Run(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
		return 1
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode report: %v\n", err)
		return 1
	}
	fmt.Println(string(encoded))

	if report.CleanupFailed > 0 {
		return 1
	}
	return 0
}
