package dedup

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	floorSuffixPattern = regexp.MustCompile(`[0-9]+樓`)
	tokenPattern       = regexp.MustCompile(`[0-9a-z]+|[\x{4e00}-\x{9fff}]`)
	roomPattern        = regexp.MustCompile(`([0-9]+)\s*房`)
	hallPattern        = regexp.MustCompile(`([0-9]+)\s*廳`)
	bathPattern        = regexp.MustCompile(`([0-9]+)\s*[衛厕廁]`)
	floorPattern       = regexp.MustCompile(`(?i)([0-9]+)\s*(?:f|樓)`)
	leadingIntPattern  = regexp.MustCompile(`([0-9]+)`)
	digitPattern       = regexp.MustCompile(`[0-9]+`)
)

// NormalizeText folds a free-text field to stable comparable form: trimmed,
// width- and case-folded, the 台/臺 variant collapsed, whitespace removed, and
// everything except word characters and CJK ideographs stripped.
// Idempotent: NormalizeText(NormalizeText(x)) == NormalizeText(x).
func NormalizeText(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		r = foldWidth(r)
		r = unicode.ToLower(r)
		if r == '台' {
			r = '臺'
		}
		if unicode.IsSpace(r) {
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeAddress normalizes address-like text and strips "<N>樓" floor
// suffixes, which often differ between reposts of the same unit.
func NormalizeAddress(value string) string {
	return floorSuffixPattern.ReplaceAllString(NormalizeText(value), "")
}

func foldWidth(r rune) rune {
	switch {
	case r == 0x3000:
		return ' '
	case r >= 0xFF01 && r <= 0xFF5E:
		return r - 0xFEE0
	default:
		return r
	}
}

func bigramSet(text string) map[string]struct{} {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) == 1 {
		return map[string]struct{}{text: {}}
	}
	set := make(map[string]struct{}, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		set[string(runes[i:i+2])] = struct{}{}
	}
	return set
}

// tokenSet splits normalized text into alphanumeric runs plus individual CJK
// ideographs, so "大安路一段12號" and "大安路12號" still share most tokens.
func tokenSet(text string) map[string]struct{} {
	if text == "" {
		return nil
	}
	tokens := tokenPattern.FindAllString(text, -1)
	if len(tokens) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for item := range a {
		if _, ok := b[item]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union <= 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// matchRatio is a symmetric character-sequence similarity over runes:
// 2*LCS(a,b)/(len(a)+len(b)).
func matchRatio(a, b string) float64 {
	left := []rune(a)
	right := []rune(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	prev := make([]int, len(right)+1)
	curr := make([]int, len(right)+1)
	for i := 1; i <= len(left); i++ {
		for j := 1; j <= len(right); j++ {
			if left[i-1] == right[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(right)]
	return 2 * float64(lcs) / float64(len(left)+len(right))
}

func parseLayout(text string) (room, hall, bath *int) {
	return extractInt(text, roomPattern), extractInt(text, hallPattern), extractInt(text, bathPattern)
}

func parseFloor(text string) *int {
	if v := extractInt(text, floorPattern); v != nil {
		return v
	}
	return extractInt(text, leadingIntPattern)
}

func extractInt(text string, pattern *regexp.Regexp) *int {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	value, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &value
}
