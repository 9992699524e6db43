package db

import (
	"context"
	"testing"
)

func TestMergeDuplicateGroupNoOp(t *testing.T) {
	t.Parallel()

	// Empty and self-referential groups return 0 before touching the
	// database, so an uninitialized pool is enough.
	var pool Pool

	merged, err := pool.MergeDuplicateGroup(context.Background(), MergeGroup{
		Source:             "591",
		CanonicalListingID: "100",
	})
	if err != nil {
		t.Fatalf("empty group: %v", err)
	}
	if merged != 0 {
		t.Fatalf("empty group merged %d records", merged)
	}

	merged, err = pool.MergeDuplicateGroup(context.Background(), MergeGroup{
		Source:             "591",
		CanonicalListingID: "100",
		DuplicateIDs:       []string{"100", ""},
	})
	if err != nil {
		t.Fatalf("self-referential group: %v", err)
	}
	if merged != 0 {
		t.Fatalf("self-referential group merged %d records", merged)
	}
}
