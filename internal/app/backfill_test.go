package app

import (
	"context"
	"testing"

	"github.com/tsesc/tw-homedog/internal/db"
)

type fakeFingerprintStore struct {
	listings []db.Listing
	updates  map[string]int
	pages    int
}

func (f *fakeFingerprintStore) ListingsMissingFingerprint(_ context.Context, _ string, recomputeAll bool, afterID int64, limit int) ([]db.Listing, error) {
	f.pages++
	var out []db.Listing
	for _, l := range f.listings {
		if l.ID <= afterID {
			continue
		}
		if !recomputeAll && l.EntityFingerprint != nil && *l.EntityFingerprint != "" {
			continue
		}
		out = append(out, l)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeFingerprintStore) SetListingFingerprint(_ context.Context, _, listingID, fingerprint, _ string) error {
	if fingerprint == "" {
		return nil
	}
	if f.updates == nil {
		f.updates = map[string]int{}
	}
	f.updates[listingID]++
	return nil
}

func backfillListing(id int64, listingID string, fingerprint string) db.Listing {
	l := db.Listing{
		ID:        id,
		Source:    "591",
		ListingID: listingID,
		Title:     "南港區 三房",
		Address:   "南港區研究院路一段18號",
		District:  "南港區",
	}
	if fingerprint != "" {
		l.EntityFingerprint = &fingerprint
	}
	return l
}

func TestBackfillFingerprintsRecomputeAllPagesEveryRow(t *testing.T) {
	t.Parallel()

	// All five rows already carry a fingerprint, so only recompute-all
	// touches them; a batch size of 2 forces three pages.
	store := &fakeFingerprintStore{}
	for i := int64(1); i <= 5; i++ {
		store.listings = append(store.listings, backfillListing(i, string(rune('a'+i-1)), "stale"))
	}

	updated, err := backfillFingerprints(context.Background(), store, "591", true, 2)
	if err != nil {
		t.Fatalf("backfill failed: %v", err)
	}
	if updated != 5 {
		t.Fatalf("expected all 5 rows recomputed, got %d", updated)
	}
	if store.pages < 3 {
		t.Fatalf("expected at least 3 pages for 5 rows at limit 2, got %d", store.pages)
	}
	for id, n := range store.updates {
		if n != 1 {
			t.Fatalf("listing %s updated %d times", id, n)
		}
	}
}

func TestBackfillFingerprintsOnlyMissingByDefault(t *testing.T) {
	t.Parallel()

	store := &fakeFingerprintStore{
		listings: []db.Listing{
			backfillListing(1, "100", "existing"),
			backfillListing(2, "200", ""),
			backfillListing(3, "300", ""),
		},
	}

	updated, err := backfillFingerprints(context.Background(), store, "591", false, 10)
	if err != nil {
		t.Fatalf("backfill failed: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 missing rows updated, got %d", updated)
	}
	if _, touched := store.updates["100"]; touched {
		t.Fatalf("fingerprinted row recomputed without --recompute-all")
	}
}
