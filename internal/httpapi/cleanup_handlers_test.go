package httpapi

import (
	"testing"
)

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }

func TestCleanupOptionsUseConfiguredDefaults(t *testing.T) {
	t.Parallel()

	server := &Server{opts: Options{
		Source:           "591",
		DedupThreshold:   0.9,
		PriceTolerance:   0.03,
		SizeTolerance:    0.06,
		CleanupBatchSize: 50,
	}}

	opts := server.cleanupOptions(cleanupRequest{}, true)
	if opts.Threshold != 0.9 || opts.PriceTolerance != 0.03 || opts.SizeTolerance != 0.06 {
		t.Fatalf("configured tunables not applied: %+v", opts)
	}
	if opts.BatchSize != 50 {
		t.Fatalf("configured batch size not applied: %d", opts.BatchSize)
	}
	if !opts.DryRun || opts.Source != "591" {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestCleanupOptionsRequestOverrides(t *testing.T) {
	t.Parallel()

	server := &Server{opts: Options{
		Source:           "591",
		DedupThreshold:   0.9,
		CleanupBatchSize: 50,
	}}

	opts := server.cleanupOptions(cleanupRequest{
		Threshold: float64Ptr(0.85),
		BatchSize: intPtr(10),
	}, false)
	if opts.Threshold != 0.85 {
		t.Fatalf("request threshold not applied: %v", opts.Threshold)
	}
	if opts.BatchSize != 10 {
		t.Fatalf("request batch size not applied: %d", opts.BatchSize)
	}
	if opts.DryRun {
		t.Fatalf("expected apply run")
	}
}
