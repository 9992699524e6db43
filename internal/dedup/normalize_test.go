package dedup

import "testing"

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	if got := NormalizeText("  Ｄａａｎ　Ｒｄ．１２３  "); got != "daanrd123" {
		t.Fatalf("unexpected width-folded text: %q", got)
	}
	if got := NormalizeText("台北市 大安區"); got != "臺北市大安區" {
		t.Fatalf("expected 台 folded to 臺, got %q", got)
	}
	if got := NormalizeText("No.12-3, Sec. 2"); got != "no123sec2" {
		t.Fatalf("expected punctuation stripped, got %q", got)
	}
	if got := NormalizeText("   "); got != "" {
		t.Fatalf("expected blank input to normalize to empty string, got %q", got)
	}
}

func TestNormalizeTextIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"台北市大安區和平東路二段１８號",
		"  Ｘｉｎｙｉ  Ｒｄ  ",
		"忠孝東路四段45號7樓",
		"",
	}
	for _, input := range inputs {
		once := NormalizeText(input)
		if twice := NormalizeText(once); twice != once {
			t.Fatalf("normalize not idempotent for %q: %q != %q", input, twice, once)
		}
	}
}

func TestNormalizeAddressStripsFloorSuffix(t *testing.T) {
	t.Parallel()

	a := NormalizeAddress("忠孝東路四段45號7樓")
	b := NormalizeAddress("忠孝東路四段45號12樓")
	if a != b {
		t.Fatalf("expected floor suffix stripped: %q != %q", a, b)
	}
	if got := NormalizeAddress("忠孝東路四段45號"); got != a {
		t.Fatalf("expected bare address to match stripped form, got %q want %q", got, a)
	}
}

func TestMatchRatioSymmetric(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"和平東路二段", "和平東路三段"},
		{"abcdef", "abxdef"},
		{"大安路一段12號", ""},
	}
	for _, pair := range pairs {
		if lr, rl := matchRatio(pair[0], pair[1]), matchRatio(pair[1], pair[0]); lr != rl {
			t.Fatalf("matchRatio asymmetric for %q/%q: %v != %v", pair[0], pair[1], lr, rl)
		}
	}
	if got := matchRatio("abcd", "abcd"); got != 1 {
		t.Fatalf("expected identical strings to score 1, got %v", got)
	}
	if got := matchRatio("abcd", "wxyz"); got != 0 {
		t.Fatalf("expected disjoint strings to score 0, got %v", got)
	}
}

func TestParseLayout(t *testing.T) {
	t.Parallel()

	room, hall, bath := parseLayout("3房2廳2衛")
	if room == nil || *room != 3 {
		t.Fatalf("unexpected room count: %v", room)
	}
	if hall == nil || *hall != 2 {
		t.Fatalf("unexpected hall count: %v", hall)
	}
	if bath == nil || *bath != 2 {
		t.Fatalf("unexpected bath count: %v", bath)
	}

	room, hall, bath = parseLayout("開放式格局")
	if room != nil || hall != nil || bath != nil {
		t.Fatalf("expected no layout dimensions, got %v %v %v", room, hall, bath)
	}
}

func TestParseFloor(t *testing.T) {
	t.Parallel()

	if got := parseFloor("7樓"); got == nil || *got != 7 {
		t.Fatalf("unexpected floor: %v", got)
	}
	if got := parseFloor("12F"); got == nil || *got != 12 {
		t.Fatalf("unexpected floor: %v", got)
	}
	if got := parseFloor("5/14"); got == nil || *got != 5 {
		t.Fatalf("expected leading integer fallback, got %v", got)
	}
	if got := parseFloor("頂樓加蓋"); got != nil {
		t.Fatalf("expected nil floor, got %v", *got)
	}
}
