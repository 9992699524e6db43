package dedup

import (
	"strings"
	"testing"
)

func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestScoreFeaturesSymmetric(t *testing.T) {
	t.Parallel()

	a := FeatureSet{
		District: "大安區",
		Address:  "和平東路二段18號",
		Price:    floatPtr(1580),
		SizePing: floatPtr(25.3),
		Rooms:    intPtr(3),
		Halls:    intPtr(2),
		Baths:    intPtr(2),
	}
	b := FeatureSet{
		District: "大安區",
		Address:  "和平東路三段120號",
		Price:    floatPtr(1625),
		SizePing: floatPtr(26.1),
		Rooms:    intPtr(3),
		Halls:    intPtr(1),
		Floor:    intPtr(7),
	}

	ab := ScoreFeatures(a, b, DefaultPriceTolerance, DefaultSizeTolerance)
	ba := ScoreFeatures(b, a, DefaultPriceTolerance, DefaultSizeTolerance)
	if ab != ba {
		t.Fatalf("score not symmetric: %+v != %+v", ab, ba)
	}
}

func TestScoreListingsDuplicatePair(t *testing.T) {
	t.Parallel()

	left := Listing{
		Source:        "591",
		ListingID:     "11111",
		Title:         "大安區 和平東路 美寓",
		Price:         int64Ptr(1580),
		Address:       "臺北市大安區和平東路二段18號",
		District:      "大安區",
		SizePing:      floatPtr(25.3),
		Room:          "3房2廳2衛",
		CommunityName: "仁愛風華",
	}
	right := left
	right.ListingID = "22222"
	right.Title = "和平東路二段 三房美寓"
	right.Price = int64Ptr(1600)
	right.Address = "台北市大安區和平東路二段１８號"

	score := ScoreListings(left, right, DefaultPriceTolerance, DefaultSizeTolerance)
	if !IsDuplicate(score.Score, DefaultThreshold) {
		t.Fatalf("expected duplicate verdict, got %+v", score)
	}
	if score.AddressSimilarity != 1 {
		t.Fatalf("expected width-folded addresses to be identical, got %v", score.AddressSimilarity)
	}
	for _, want := range []string{"district", "community", "address"} {
		if !strings.Contains(score.Reason, want) {
			t.Fatalf("expected reason to mention %q, got %q", want, score.Reason)
		}
	}
}

func TestScoreFeaturesGuardCap(t *testing.T) {
	t.Parallel()

	// Eleven shared leading runes out of twenty-five keeps address similarity
	// at 0.44, just under the guard floor, while every other signal is maxed.
	base := FeatureSet{
		District: "daan",
		Price:    floatPtr(1000),
		SizePing: floatPtr(25),
		Rooms:    intPtr(3),
		Halls:    intPtr(2),
		Baths:    intPtr(2),
		Floor:    intPtr(7),
	}
	a := base
	a.Address = "abcdefghijk" + strings.Repeat("q", 14)
	b := base
	b.Address = "abcdefghijk" + strings.Repeat("w", 14)

	capped := ScoreFeatures(a, b, DefaultPriceTolerance, DefaultSizeTolerance)
	if capped.Score != GuardCap {
		t.Fatalf("expected guard cap %v, got %v", GuardCap, capped.Score)
	}

	// Matching community names lift the cap without touching the inputs.
	a.Community = "community"
	b.Community = "community"
	lifted := ScoreFeatures(a, b, DefaultPriceTolerance, DefaultSizeTolerance)
	if lifted.Score <= GuardCap {
		t.Fatalf("expected community match to lift the cap, got %v", lifted.Score)
	}

	// One more shared rune pushes address similarity past the guard floor.
	a.Community = ""
	b.Community = ""
	a.Address = "abcdefghijkl" + strings.Repeat("q", 13)
	b.Address = "abcdefghijkl" + strings.Repeat("w", 13)
	uncapped := ScoreFeatures(a, b, DefaultPriceTolerance, DefaultSizeTolerance)
	if uncapped.Score <= GuardCap {
		t.Fatalf("expected score above guard cap past the floor, got %v", uncapped.Score)
	}
}

func TestRelativeSimilarity(t *testing.T) {
	t.Parallel()

	if got := relativeSimilarity(nil, floatPtr(100), 0.05); got != 0.5 {
		t.Fatalf("expected neutral 0.5 for unknown side, got %v", got)
	}
	if got := relativeSimilarity(floatPtr(0), floatPtr(0), 0.05); got != 1 {
		t.Fatalf("expected 1 for two zeros, got %v", got)
	}
	if got := relativeSimilarity(floatPtr(1000), floatPtr(1000), 0.05); got != 1 {
		t.Fatalf("expected 1 for equal values, got %v", got)
	}
	within := relativeSimilarity(floatPtr(1000), floatPtr(1030), 0.05)
	if within < 0.8 || within >= 1 {
		t.Fatalf("expected within-tolerance score in [0.8, 1), got %v", within)
	}
	decayed := relativeSimilarity(floatPtr(1000), floatPtr(1080), 0.05)
	if decayed <= 0 || decayed >= 0.6 {
		t.Fatalf("expected decayed score in (0, 0.6), got %v", decayed)
	}
	if got := relativeSimilarity(floatPtr(1000), floatPtr(1200), 0.05); got != 0 {
		t.Fatalf("expected 0 past twice the tolerance, got %v", got)
	}
}

func TestLayoutDimension(t *testing.T) {
	t.Parallel()

	if got := layoutDimension(nil, nil); got != 0.5 {
		t.Fatalf("unexpected both-unknown score: %v", got)
	}
	if got := layoutDimension(intPtr(3), nil); got != 0.3 {
		t.Fatalf("unexpected one-unknown score: %v", got)
	}
	if got := layoutDimension(intPtr(3), intPtr(3)); got != 1 {
		t.Fatalf("unexpected exact-match score: %v", got)
	}
	if got := layoutDimension(intPtr(3), intPtr(2)); got != 0.4 {
		t.Fatalf("unexpected off-by-one score: %v", got)
	}
	if got := layoutDimension(intPtr(3), intPtr(7)); got != 0 {
		t.Fatalf("unexpected distant score: %v", got)
	}
}
