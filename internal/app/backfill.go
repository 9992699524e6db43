package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tsesc/tw-homedog/internal/cli"
	"github.com/tsesc/tw-homedog/internal/db"
	"github.com/tsesc/tw-homedog/internal/dedup"
)

func runBackfill(args []string) int {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	recomputeAll := fs.Bool("recompute-all", false, "Recompute fingerprints for every listing, not only missing ones")
	limit := fs.Int("limit", 500, "Rows processed per batch")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *limit < 1 {
		fmt.Fprintln(os.Stderr, "--limit must be >= 1")
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

	updated, err := backfillFingerprints(ctx, pool, cfg.Source, *recomputeAll, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backfill failed after %d update(s): %v\n", updated, err)
		return 1
	}

	logger.Info().Int("updated", updated).Bool("recompute_all", *recomputeAll).Msg("fingerprint backfill finished")
	fmt.Printf("updated=%d\n", updated)
	return 0
}

type fingerprintStore interface {
	ListingsMissingFingerprint(ctx context.Context, source string, recomputeAll bool, afterID int64, limit int) ([]db.Listing, error)
	SetListingFingerprint(ctx context.Context, source, listingID, fingerprint, contentHash string) error
}

// backfillFingerprints pages through every matching row with an id cursor and
// recomputes fingerprint and content hash for each.
func backfillFingerprints(ctx context.Context, store fingerprintStore, source string, recomputeAll bool, limit int) (int, error) {
	updated := 0
	afterID := int64(0)
	for {
		rows, err := store.ListingsMissingFingerprint(ctx, source, recomputeAll, afterID, limit)
		if err != nil {
			return updated, err
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			view := row.DedupListing()
			fingerprint := dedup.Fingerprint(view)
			contentHash := view.ContentHash
			if contentHash == "" {
				contentHash = dedup.ContentHash(view.Title, view.Price, view.Address)
			}
			if err := store.SetListingFingerprint(ctx, row.Source, row.ListingID, fingerprint, contentHash); err != nil {
				return updated, err
			}
			updated++
		}

		afterID = rows[len(rows)-1].ID
		if len(rows) < limit {
			break
		}
	}
	return updated, nil
}
