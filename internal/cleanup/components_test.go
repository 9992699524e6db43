package cleanup

import "testing"

func TestUnionFindTransitiveClosure(t *testing.T) {
	t.Parallel()

	uf := newUnionFind(5)
	uf.union(0, 1)
	uf.union(1, 2)
	uf.union(3, 4)

	if uf.find(0) != uf.find(2) {
		t.Fatalf("expected 0 and 2 connected through 1")
	}
	if uf.find(0) == uf.find(3) {
		t.Fatalf("expected separate components for disjoint unions")
	}

	groups := uf.components()
	if len(groups) != 2 {
		t.Fatalf("expected 2 components, got %d", len(groups))
	}
	sizes := map[int]bool{}
	for _, members := range groups {
		sizes[len(members)] = true
	}
	if !sizes[3] || !sizes[2] {
		t.Fatalf("unexpected component sizes: %v", groups)
	}
}
