package dedup

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

const coarseKeyLength = 24

// Fingerprint builds the stable entity bucket key for candidate lookup.
// It joins the normalized district with a coarse address key (digits stripped,
// truncated), falling back to the normalized title and finally the raw listing
// id. The key narrows candidate sets only: collisions across different
// entities are tolerated and resolved by the scorer.
func Fingerprint(l Listing) string {
	features := ExtractFeatures(l)
	addressKey := coarseAddressKey(features.Address)
	if addressKey == "" {
		addressKey = truncateRunes(NormalizeText(l.Title), coarseKeyLength)
	}

	var parts []string
	if features.District != "" {
		parts = append(parts, features.District)
	}
	if addressKey != "" {
		parts = append(parts, addressKey)
	}
	payload := strings.Join(parts, "|")
	if payload == "" {
		payload = l.ListingID
	}

	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// coarseAddressKey drops house numbers so partially masked addresses from
// different brokers still land in the same bucket.
func coarseAddressKey(address string) string {
	if address == "" {
		return ""
	}
	return truncateRunes(digitPattern.ReplaceAllString(address, ""), coarseKeyLength)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
