package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tsesc/tw-homedog/internal/cli"
	"github.com/tsesc/tw-homedog/internal/db"
	"github.com/tsesc/tw-homedog/internal/ingest"
	listingschema "github.com/tsesc/tw-homedog/schema"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")
	payload := fs.String("payload", "", "Listing payload JSON (object or array of objects)")
	payloadFile := fs.String("payload-file", "", "Path to payload JSON file (overrides --payload)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, ok := loadRuntime(envLoader)
	if !ok {
		return 1
	}

	payloadJSON, err := loadJSONInput(*payload, *payloadFile, "payload")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	payloads, err := splitPayloads(payloadJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
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

	gate := ingest.NewService(pool, logger, ingest.Options{
		Source:         cfg.Source,
		DedupEnabled:   cfg.DedupEnabled,
		Threshold:      cfg.DedupThreshold,
		PriceTolerance: cfg.DedupPriceTolerance,
		SizeTolerance:  cfg.DedupSizeTolerance,
		CandidateLimit: cfg.DedupCandidateLimit,
	})

	inserted := 0
	skipped := 0
	for i, raw := range payloads {
		item, err := listingschema.ValidateListingPayload(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid payload[%d]: %v\n", i, err)
			return 2
		}

		decision, err := gate.DecideAndInsert(ctx, item.ToRow(cfg.Source))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingest failed for %s: %v\n", item.ListingID, err)
			return 1
		}

		if decision.Inserted {
			inserted++
			fmt.Printf("listing_id=%s inserted=true\n", item.ListingID)
			continue
		}
		skipped++
		score := ""
		if decision.Score != nil {
			score = fmt.Sprintf(" score=%.4f", *decision.Score)
		}
		canonical := ""
		if decision.CanonicalListingID != "" {
			canonical = " canonical=" + decision.CanonicalListingID
		}
		fmt.Printf("listing_id=%s inserted=false reason=%s%s%s\n", item.ListingID, decision.Reason, score, canonical)
	}

	fmt.Printf("total=%d inserted=%d skipped=%d\n", len(payloads), inserted, skipped)
	return 0
}

func loadJSONInput(inlineValue, filePath, label string) (json.RawMessage, error) {
	if path := strings.TrimSpace(filePath); path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s file %q: %w", label, path, err)
		}
		trimmed := strings.TrimSpace(string(payload))
		if trimmed == "" {
			return nil, fmt.Errorf("%s file %q is empty", label, path)
		}
		return json.RawMessage(trimmed), nil
	}

	trimmed := strings.TrimSpace(inlineValue)
	if trimmed == "" {
		return nil, fmt.Errorf("%s JSON is empty", label)
	}
	return json.RawMessage(trimmed), nil
}

// splitPayloads accepts either a single payload object or an array of them.
func splitPayloads(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("parse payload array: %w", err)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("payload array is empty")
		}
		return items, nil
	}
	return []json.RawMessage{raw}, nil
}
