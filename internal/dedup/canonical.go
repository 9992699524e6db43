package dedup

import (
	"strings"
	"time"
)

// RelationCounts summarizes the secondary records linked to one listing.
type RelationCounts struct {
	Favorites     int
	Notifications int
	Reads         int
}

// LinkedScore weights linked user state: favorites outrank notifications,
// which outrank read marks.
func (c RelationCounts) LinkedScore() int {
	return c.Favorites*4 + c.Notifications*3 + c.Reads*2
}

// ChooseCanonical picks the listing to keep from a duplicate group, by
// highest linked-state score, then field completeness, then most recent
// parseable timestamp, then lexicographically smallest listing id.
// Returns false when the slice is empty.
func ChooseCanonical(listings []Listing, counts map[string]RelationCounts) (Listing, bool) {
	if len(listings) == 0 {
		return Listing{}, false
	}

	best := listings[0]
	for _, candidate := range listings[1:] {
		if betterCanonical(candidate, best, counts) {
			best = candidate
		}
	}
	return best, true
}

func betterCanonical(candidate, best Listing, counts map[string]RelationCounts) bool {
	candidateLinked := counts[candidate.ListingID].LinkedScore()
	bestLinked := counts[best.ListingID].LinkedScore()
	if candidateLinked != bestLinked {
		return candidateLinked > bestLinked
	}

	candidateComplete := completenessScore(candidate)
	bestComplete := completenessScore(best)
	if candidateComplete != bestComplete {
		return candidateComplete > bestComplete
	}

	candidateTS := timestampScore(candidate)
	bestTS := timestampScore(best)
	if candidateTS != bestTS {
		return candidateTS > bestTS
	}

	return strings.Compare(candidate.ListingID, best.ListingID) < 0
}

func completenessScore(l Listing) int {
	score := 0
	for _, present := range []bool{
		l.Title != "",
		l.Address != "",
		l.District != "",
		l.Price != nil,
		l.SizePing != nil,
		l.Floor != "",
		l.Room != "",
		l.Houseage != "",
		l.CommunityName != "",
		l.MainArea != nil,
		l.Direction != "",
		l.UnitPrice != "",
		l.KindName != "",
	} {
		if present {
			score++
		}
	}
	return score
}

var publishedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// timestampScore ranks recency from published_at, falling back to created_at.
// Unparsable or missing timestamps rank earliest.
func timestampScore(l Listing) float64 {
	if ts, ok := parsePublishedAt(l.PublishedAt); ok {
		return float64(ts.Unix())
	}
	if !l.CreatedAt.IsZero() {
		return float64(l.CreatedAt.UTC().Unix())
	}
	return 0
}

func parsePublishedAt(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedAtLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
