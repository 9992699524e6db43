package dedup

import "testing"

func TestFingerprintStableUnderDigitNoise(t *testing.T) {
	t.Parallel()

	a := Listing{
		ListingID: "11111",
		District:  "大安區",
		Address:   "和平東路二段18號",
	}
	b := Listing{
		ListingID: "22222",
		District:  "大安區",
		Address:   "和平東路二段122號",
	}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("expected house-number noise to share a bucket: %q != %q", Fingerprint(a), Fingerprint(b))
	}

	c := b
	c.District = "信義區"
	if Fingerprint(a) == Fingerprint(c) {
		t.Fatalf("expected district change to move the bucket")
	}
}

func TestFingerprintFallbacks(t *testing.T) {
	t.Parallel()

	titled := Listing{ListingID: "33333", District: "大安區", Title: "和平東路 三房美寓"}
	addressed := titled
	addressed.Address = "和平東路二段18號"
	if Fingerprint(titled) == Fingerprint(addressed) {
		t.Fatalf("expected title fallback to differ from address key")
	}

	bare := Listing{ListingID: "44444"}
	other := Listing{ListingID: "55555"}
	if Fingerprint(bare) == Fingerprint(other) {
		t.Fatalf("expected distinct listing ids to produce distinct fallback buckets")
	}
	if got := Fingerprint(bare); len(got) != 40 {
		t.Fatalf("expected 40-char hex digest, got %q", got)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	t.Parallel()

	l := Listing{ListingID: "66666", District: "中山區", Address: "民生東路二段100號5樓"}
	if Fingerprint(l) != Fingerprint(l) {
		t.Fatalf("expected fingerprint to be deterministic")
	}
}
