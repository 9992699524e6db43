package dedup

import (
	"testing"
	"time"
)

func TestChooseCanonicalPrefersLinkedState(t *testing.T) {
	t.Parallel()

	sparse := Listing{Source: "591", ListingID: "100"}
	rich := Listing{
		Source:        "591",
		ListingID:     "200",
		Title:         "大安區 三房",
		Address:       "和平東路二段18號",
		District:      "大安區",
		Price:         int64Ptr(1580),
		SizePing:      floatPtr(25.3),
		Room:          "3房2廳2衛",
		CommunityName: "仁愛風華",
	}
	counts := map[string]RelationCounts{
		"100": {Favorites: 1},
	}

	// One favorite outweighs any amount of field completeness.
	canonical, ok := ChooseCanonical([]Listing{rich, sparse}, counts)
	if !ok || canonical.ListingID != "100" {
		t.Fatalf("expected favorited listing to win, got %q ok=%v", canonical.ListingID, ok)
	}
}

func TestChooseCanonicalCompletenessTieBreak(t *testing.T) {
	t.Parallel()

	sparse := Listing{Source: "591", ListingID: "100", Title: "三房"}
	rich := Listing{
		Source:    "591",
		ListingID: "200",
		Title:     "大安區 三房",
		Address:   "和平東路二段18號",
		District:  "大安區",
		Price:     int64Ptr(1580),
	}

	canonical, ok := ChooseCanonical([]Listing{sparse, rich}, nil)
	if !ok || canonical.ListingID != "200" {
		t.Fatalf("expected more complete listing to win, got %q ok=%v", canonical.ListingID, ok)
	}
}

func TestChooseCanonicalTimestampTieBreak(t *testing.T) {
	t.Parallel()

	older := Listing{Source: "591", ListingID: "100", PublishedAt: "2026-08-01"}
	newer := Listing{Source: "591", ListingID: "200", PublishedAt: "2026-08-20"}

	canonical, ok := ChooseCanonical([]Listing{older, newer}, nil)
	if !ok || canonical.ListingID != "200" {
		t.Fatalf("expected most recent listing to win, got %q ok=%v", canonical.ListingID, ok)
	}

	// created_at fills in when published_at is unparsable.
	fallback := Listing{
		Source:    "591",
		ListingID: "300",
		CreatedAt: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
	}
	canonical, ok = ChooseCanonical([]Listing{older, fallback}, nil)
	if !ok || canonical.ListingID != "300" {
		t.Fatalf("expected created_at fallback to win, got %q ok=%v", canonical.ListingID, ok)
	}
}

func TestChooseCanonicalSmallestIDLast(t *testing.T) {
	t.Parallel()

	a := Listing{Source: "591", ListingID: "300"}
	b := Listing{Source: "591", ListingID: "100"}
	c := Listing{Source: "591", ListingID: "200"}

	canonical, ok := ChooseCanonical([]Listing{a, b, c}, nil)
	if !ok || canonical.ListingID != "100" {
		t.Fatalf("expected smallest listing id, got %q ok=%v", canonical.ListingID, ok)
	}
}

func TestChooseCanonicalEmpty(t *testing.T) {
	t.Parallel()

	if _, ok := ChooseCanonical(nil, nil); ok {
		t.Fatalf("expected no canonical for empty group")
	}
}
