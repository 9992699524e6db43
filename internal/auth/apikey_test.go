package auth

import "testing"

func TestHashAndVerifyAPIKey(t *testing.T) {
	t.Parallel()

	hash, err := HashAPIKey("hd_live_2f8c1a")
	if err != nil {
		t.Fatalf("hash api key: %v", err)
	}
	if !VerifyAPIKey("hd_live_2f8c1a", hash) {
		t.Fatalf("expected key to verify against its own hash")
	}
	if VerifyAPIKey("hd_live_wrong", hash) {
		t.Fatalf("expected mismatched key to fail verification")
	}
}

func TestHashAPIKeyRejectsBlank(t *testing.T) {
	t.Parallel()

	if _, err := HashAPIKey("   "); err == nil {
		t.Fatalf("expected error for blank key")
	}
	if VerifyAPIKey("", "") {
		t.Fatalf("expected blank inputs to fail verification")
	}
}
