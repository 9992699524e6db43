package cleanup

import (
	"reflect"
	"testing"

	"github.com/tsesc/tw-homedog/internal/dedup"
)

func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }

func testListing(id string, price int64, size float64) dedup.Listing {
	return dedup.Listing{
		Source:    "591",
		ListingID: id,
		Title:     "南港區 三房",
		Address:   "南港區研究院路一段18號",
		District:  "南港區",
		Price:     int64Ptr(price),
		SizePing:  floatPtr(size),
	}
}

func TestBuildPlansTransitiveGroup(t *testing.T) {
	t.Parallel()

	// A~B and B~C each clear the threshold, A~C on its own does not; all
	// three still land in one group through B.
	a := testListing("100", 1000, 30)
	b := testListing("200", 1040, 31)
	c := testListing("300", 1090, 32.5)

	opts := Options{Source: "591"}
	direct := dedup.ScoreListings(a, c, dedup.DefaultPriceTolerance, dedup.DefaultSizeTolerance)
	if dedup.IsDuplicate(direct.Score, dedup.DefaultThreshold) {
		t.Fatalf("fixture invalid: A~C scores %v directly", direct.Score)
	}

	plans := BuildPlans([]dedup.Listing{c, a, b}, nil, opts)
	if len(plans) != 1 {
		t.Fatalf("expected one plan, got %d: %+v", len(plans), plans)
	}
	plan := plans[0]
	if plan.CanonicalListingID != "100" {
		t.Fatalf("expected smallest id as canonical, got %q", plan.CanonicalListingID)
	}
	if !reflect.DeepEqual(plan.DuplicateListingIDs, []string{"200", "300"}) {
		t.Fatalf("unexpected duplicates: %v", plan.DuplicateListingIDs)
	}
	if !dedup.IsDuplicate(plan.Score, dedup.DefaultThreshold) {
		t.Fatalf("expected plan score above threshold, got %v", plan.Score)
	}
}

func TestBuildPlansRespectsLinkedState(t *testing.T) {
	t.Parallel()

	a := testListing("100", 1000, 30)
	b := testListing("200", 1000, 30)
	counts := map[string]dedup.RelationCounts{
		"200": {Favorites: 1},
	}

	plans := BuildPlans([]dedup.Listing{a, b}, counts, Options{Source: "591"})
	if len(plans) != 1 {
		t.Fatalf("expected one plan, got %d", len(plans))
	}
	if plans[0].CanonicalListingID != "200" {
		t.Fatalf("expected favorited listing as canonical, got %q", plans[0].CanonicalListingID)
	}
	if !reflect.DeepEqual(plans[0].DuplicateListingIDs, []string{"100"}) {
		t.Fatalf("unexpected duplicates: %v", plans[0].DuplicateListingIDs)
	}
}

func TestBuildPlansScoreIsCanonicalPairwiseMax(t *testing.T) {
	t.Parallel()

	// C is favorited and becomes canonical. The heaviest edge in the
	// component is A~B, which must not leak into the plan: the plan score
	// is the best of C~A and C~B.
	a := testListing("100", 1000, 30)
	b := testListing("200", 1040, 31)
	c := testListing("300", 1090, 32.5)
	counts := map[string]dedup.RelationCounts{
		"300": {Favorites: 1},
	}

	ab := dedup.ScoreListings(a, b, dedup.DefaultPriceTolerance, dedup.DefaultSizeTolerance)
	ca := dedup.ScoreListings(c, a, dedup.DefaultPriceTolerance, dedup.DefaultSizeTolerance)
	cb := dedup.ScoreListings(c, b, dedup.DefaultPriceTolerance, dedup.DefaultSizeTolerance)
	if ab.Score <= cb.Score || cb.Score <= ca.Score {
		t.Fatalf("fixture invalid: want A~B > C~B > C~A, got %v %v %v", ab.Score, cb.Score, ca.Score)
	}

	plans := BuildPlans([]dedup.Listing{a, b, c}, counts, Options{Source: "591"})
	if len(plans) != 1 {
		t.Fatalf("expected one plan, got %d: %+v", len(plans), plans)
	}
	plan := plans[0]
	if plan.CanonicalListingID != "300" {
		t.Fatalf("expected favorited listing as canonical, got %q", plan.CanonicalListingID)
	}
	if plan.Score != cb.Score {
		t.Fatalf("expected canonical pairwise max %v, got %v", cb.Score, plan.Score)
	}
	if plan.Reason != cb.Reason {
		t.Fatalf("expected reason %q, got %q", cb.Reason, plan.Reason)
	}
}

func TestBuildPlansSeparatesBuckets(t *testing.T) {
	t.Parallel()

	a := testListing("100", 1000, 30)
	b := testListing("200", 1000, 30)
	other := dedup.Listing{
		Source:    "591",
		ListingID: "900",
		Title:     "信義區 套房",
		Address:   "信義區松仁路100號",
		District:  "信義區",
		Price:     int64Ptr(900),
	}

	plans := BuildPlans([]dedup.Listing{a, b, other}, nil, Options{Source: "591"})
	if len(plans) != 1 {
		t.Fatalf("expected only one mergeable group, got %d: %+v", len(plans), plans)
	}
	for _, id := range append(plans[0].DuplicateListingIDs, plans[0].CanonicalListingID) {
		if id == "900" {
			t.Fatalf("unrelated listing leaked into plan: %+v", plans[0])
		}
	}
}

func TestBuildPlansDeterministic(t *testing.T) {
	t.Parallel()

	listings := []dedup.Listing{
		testListing("300", 1000, 30),
		testListing("100", 1005, 30.1),
		testListing("200", 1010, 30.2),
	}

	first := BuildPlans(listings, nil, Options{Source: "591"})
	for i := 0; i < 10; i++ {
		if again := BuildPlans(listings, nil, Options{Source: "591"}); !reflect.DeepEqual(first, again) {
			t.Fatalf("plans vary across runs: %+v vs %+v", first, again)
		}
	}
}
