package ingest

import (
	"reflect"
	"testing"

	"github.com/tsesc/tw-homedog/internal/db"
	"github.com/tsesc/tw-homedog/internal/dedup"
)

func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestSkipEventAuditShape(t *testing.T) {
	t.Parallel()

	incoming := dedup.Listing{Source: "591", ListingID: "22222", Fingerprint: "fp"}

	// Exact-id skips: event type "skip", reason names the decision, the
	// existing row is canonical and candidate, score 1.0.
	exact := 1.0
	event := skipEvent(incoming, Decision{
		Reason:             ReasonDuplicateListingID,
		CanonicalListingID: "22222",
		EntityFingerprint:  "fp",
	}, ReasonDuplicateListingID, &exact)
	if event.EventType != "skip" {
		t.Fatalf("expected event type skip, got %q", event.EventType)
	}
	if event.Reason != ReasonDuplicateListingID {
		t.Fatalf("unexpected reason %q", event.Reason)
	}
	if event.CanonicalListingID != "22222" || !reflect.DeepEqual(event.CandidateIDs, []string{"22222"}) {
		t.Fatalf("canonical/candidates not recorded: %+v", event)
	}
	if event.Score == nil || *event.Score != 1.0 {
		t.Fatalf("expected score 1.0, got %v", event.Score)
	}

	// Entity skips carry the scorer's dimension tags, not the decision
	// reason, so batch-cache hits keep their prefix.
	fuzzy := 0.91
	event = skipEvent(incoming, Decision{
		Reason:             ReasonDuplicateEntity,
		Score:              &fuzzy,
		CanonicalListingID: "11111",
		EntityFingerprint:  "fp",
	}, "batch:district,address,price", &fuzzy)
	if event.EventType != "skip" {
		t.Fatalf("expected event type skip, got %q", event.EventType)
	}
	if event.Reason != "batch:district,address,price" {
		t.Fatalf("scorer tags lost: %q", event.Reason)
	}
	if event.Score == nil || *event.Score != fuzzy {
		t.Fatalf("expected score %v, got %v", fuzzy, event.Score)
	}
}

func TestPrepareDerivesHashAndFingerprint(t *testing.T) {
	t.Parallel()

	row := db.Listing{
		Source:    "591",
		ListingID: "11111",
		Title:     "南港區 三房美寓",
		Price:     int64Ptr(2980),
		Address:   "南港區研究院路一段18號",
		District:  "南港區",
	}

	prepared := Prepare(row)
	if prepared.ContentHash == nil || len(*prepared.ContentHash) != 64 {
		t.Fatalf("expected sha256 content hash, got %v", prepared.ContentHash)
	}
	if prepared.EntityFingerprint == nil || len(*prepared.EntityFingerprint) != 40 {
		t.Fatalf("expected sha1 fingerprint, got %v", prepared.EntityFingerprint)
	}

	// A caller-provided content hash is kept verbatim.
	custom := "precomputed"
	row.ContentHash = &custom
	prepared = Prepare(row)
	if prepared.ContentHash == nil || *prepared.ContentHash != custom {
		t.Fatalf("expected provided content hash to survive, got %v", prepared.ContentHash)
	}
}

func TestBestMatchPicksHighestAboveThreshold(t *testing.T) {
	t.Parallel()

	opts := Options{
		Threshold:      dedup.DefaultThreshold,
		PriceTolerance: dedup.DefaultPriceTolerance,
		SizeTolerance:  dedup.DefaultSizeTolerance,
	}
	incoming := dedup.Listing{
		Source:    "591",
		ListingID: "30000",
		Title:     "南港區 三房",
		Price:     int64Ptr(2980),
		Address:   "南港區研究院路一段18號",
		District:  "南港區",
		SizePing:  floatPtr(36.5),
		Room:      "3房2廳2衛",
	}
	near := incoming
	near.ListingID = "30001"
	near.Price = int64Ptr(2988)
	near.SizePing = floatPtr(36.49)

	exact := incoming
	exact.ListingID = "30002"

	far := dedup.Listing{
		Source:    "591",
		ListingID: "30003",
		Title:     "信義區 套房",
		Address:   "信義區松仁路100號",
		District:  "信義區",
		Price:     int64Ptr(900),
	}

	id, score, ok := bestMatch(incoming, []dedup.Listing{far, near, exact}, opts)
	if !ok {
		t.Fatalf("expected a match above threshold")
	}
	if id != "30002" {
		t.Fatalf("expected exact copy to win, got %q at %v", id, score.Score)
	}

	if _, _, ok := bestMatch(incoming, []dedup.Listing{far}, opts); ok {
		t.Fatalf("expected no match against an unrelated listing")
	}

	// The incoming listing never matches itself.
	if _, _, ok := bestMatch(incoming, []dedup.Listing{incoming}, opts); ok {
		t.Fatalf("expected self candidate to be ignored")
	}
}

func TestBatchCache(t *testing.T) {
	t.Parallel()

	cache := newBatchCache()
	l := dedup.Listing{ListingID: "40000", Fingerprint: "fp-1"}
	cache.add(l)
	cache.add(dedup.Listing{ListingID: "40001", Fingerprint: "fp-2"})
	cache.add(dedup.Listing{ListingID: "40002"})

	got := cache.candidates("fp-1")
	if len(got) != 1 || got[0].ListingID != "40000" {
		t.Fatalf("unexpected bucket contents: %+v", got)
	}
	if got := cache.candidates(""); got != nil {
		t.Fatalf("expected no candidates for empty fingerprint, got %+v", got)
	}
	if got := cache.candidates("missing"); len(got) != 0 {
		t.Fatalf("expected empty bucket, got %+v", got)
	}
}
