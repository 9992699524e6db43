package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// ContentHash derives the exact-duplicate hash from title, price and address.
// Matches the hash the scraper attaches to raw payloads, so reposts with
// byte-identical content short-circuit before any scoring.
func ContentHash(title string, price *int64, address string) string {
	priceText := ""
	if price != nil && *price != 0 {
		priceText = strconv.FormatInt(*price, 10)
	}
	sum := sha256.Sum256([]byte(title + "|" + priceText + "|" + address))
	return hex.EncodeToString(sum[:])
}
