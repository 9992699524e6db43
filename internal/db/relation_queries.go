package db

import (
	"context"
	"fmt"

	"github.com/tsesc/tw-homedog/internal/dedup"
	"github.com/tsesc/tw-homedog/internal/globaltime"
)

// RelationCountsFor tallies favorites, sent notifications and read marks for
// each named listing. Listings with no linked rows get a zero entry.
func (p *Pool) RelationCountsFor(ctx context.Context, source string, listingIDs []string) (map[string]dedup.RelationCounts, error) {
	counts := make(map[string]dedup.RelationCounts, len(listingIDs))
	for _, id := range listingIDs {
		counts[id] = dedup.RelationCounts{}
	}
	if len(listingIDs) == 0 {
		return counts, nil
	}

	placeholders, args := inArgs(2, listingIDs)
	queryArgs := append([]any{source}, args...)

	tables := []struct {
		table string
		apply func(c *dedup.RelationCounts, n int)
	}{
		{table: "favorites", apply: func(c *dedup.RelationCounts, n int) { c.Favorites = n }},
		{table: "notifications_sent", apply: func(c *dedup.RelationCounts, n int) { c.Notifications = n }},
		{table: "listings_read", apply: func(c *dedup.RelationCounts, n int) { c.Reads = n }},
	}

	for _, t := range tables {
		q := `
SELECT listing_id, COUNT(*)
FROM ` + t.table + `
WHERE source = $1 AND listing_id IN (` + placeholders + `)
GROUP BY listing_id
`
		rows, err := p.Query(ctx, q, queryArgs...)
		if err != nil {
			return nil, fmt.Errorf("count %s relations: %w", t.table, err)
		}
		for rows.Next() {
			var id string
			var n int
			if err := rows.Scan(&id, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s count row: %w", t.table, err)
			}
			c := counts[id]
			t.apply(&c, n)
			counts[id] = c
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate %s count rows: %w", t.table, err)
		}
		rows.Close()
	}

	return counts, nil
}

// MarkListingRead upserts a read mark, carrying the listing's content hash so
// identical reposts stay read.
func (p *Pool) MarkListingRead(ctx context.Context, source, listingID string) error {
	const q = `
INSERT INTO listings_read (source, listing_id, content_hash, read_at)
SELECT $1, $2, l.content_hash, $3
FROM listings l
WHERE l.source = $1 AND l.listing_id = $2
ON CONFLICT (source, listing_id) DO UPDATE SET read_at = EXCLUDED.read_at
`

	tag, err := p.Exec(ctx, q, source, listingID, globaltime.UTC())
	if err != nil {
		return fmt.Errorf("mark listing read %s/%s: %w", source, listingID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark listing read %s/%s: %w", source, listingID, ErrNoRows)
	}
	return nil
}

// IsListingRead checks the read mark by listing id or matching content hash.
func (p *Pool) IsListingRead(ctx context.Context, source, listingID string) (bool, error) {
	const q = `
SELECT EXISTS (
	SELECT 1
	FROM listings_read r
	WHERE r.source = $1
	  AND (r.listing_id = $2
	       OR r.content_hash IN (
	           SELECT l.content_hash FROM listings l
	           WHERE l.source = $1 AND l.listing_id = $2 AND l.content_hash IS NOT NULL
	       ))
)
`

	var read bool
	if err := p.QueryRow(ctx, q, source, listingID).Scan(&read); err != nil {
		return false, fmt.Errorf("check read state %s/%s: %w", source, listingID, err)
	}
	return read, nil
}

// AddFavorite marks a listing as favorited. Idempotent.
func (p *Pool) AddFavorite(ctx context.Context, source, listingID string) error {
	const q = `
INSERT INTO favorites (source, listing_id, added_at)
VALUES ($1, $2, $3)
ON CONFLICT (source, listing_id) DO NOTHING
`

	if _, err := p.Exec(ctx, q, source, listingID, globaltime.UTC()); err != nil {
		return fmt.Errorf("add favorite %s/%s: %w", source, listingID, err)
	}
	return nil
}

// RemoveFavorite drops a favorite mark. Returns false when none existed.
func (p *Pool) RemoveFavorite(ctx context.Context, source, listingID string) (bool, error) {
	tag, err := p.Exec(ctx, `DELETE FROM favorites WHERE source = $1 AND listing_id = $2`, source, listingID)
	if err != nil {
		return false, fmt.Errorf("remove favorite %s/%s: %w", source, listingID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// FavoriteListingIDs returns favorited listing ids for one source, most
// recently added first.
func (p *Pool) FavoriteListingIDs(ctx context.Context, source string) ([]string, error) {
	rows, err := p.Query(ctx, `
SELECT listing_id FROM favorites
WHERE source = $1
ORDER BY added_at DESC, listing_id ASC
`, source)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan favorite row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorite rows: %w", err)
	}
	return ids, nil
}

// RecordNotification registers a sent notification for a channel. Returns
// false when one was already recorded.
func (p *Pool) RecordNotification(ctx context.Context, source, listingID, channel string) (bool, error) {
	if channel == "" {
		channel = "telegram"
	}

	const q = `
INSERT INTO notifications_sent (source, listing_id, channel, notified_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (source, listing_id, channel) DO NOTHING
`

	tag, err := p.Exec(ctx, q, source, listingID, channel, globaltime.UTC())
	if err != nil {
		return false, fmt.Errorf("record notification %s/%s: %w", source, listingID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListingStats aggregates per-source counters for the stats surfaces.
type ListingStats struct {
	Listings      int64 `json:"listings"`
	Enriched      int64 `json:"enriched"`
	Fingerprinted int64 `json:"fingerprinted"`
	Favorites     int64 `json:"favorites"`
	Read          int64 `json:"read"`
	Notified      int64 `json:"notified"`
	AuditEvents   int64 `json:"audit_events"`
}

func (p *Pool) Stats(ctx context.Context, source string) (ListingStats, error) {
	const q = `
SELECT
	(SELECT COUNT(*) FROM listings WHERE source = $1),
	(SELECT COUNT(*) FROM listings WHERE source = $1 AND is_enriched),
	(SELECT COUNT(*) FROM listings WHERE source = $1 AND entity_fingerprint IS NOT NULL AND entity_fingerprint <> ''),
	(SELECT COUNT(*) FROM favorites WHERE source = $1),
	(SELECT COUNT(*) FROM listings_read WHERE source = $1),
	(SELECT COUNT(*) FROM notifications_sent WHERE source = $1),
	(SELECT COUNT(*) FROM dedup_audit WHERE source = $1)
`

	var stats ListingStats
	err := p.QueryRow(ctx, q, source).Scan(
		&stats.Listings,
		&stats.Enriched,
		&stats.Fingerprinted,
		&stats.Favorites,
		&stats.Read,
		&stats.Notified,
		&stats.AuditEvents,
	)
	if err != nil {
		return ListingStats{}, fmt.Errorf("query stats: %w", err)
	}
	return stats, nil
}

// ListingPage is one API page of listings with per-row user state.
type ListingPage struct {
	Total    int64
	Listings []ListingWithState
}

// ListingWithState decorates a listing row with read and favorite flags.
type ListingWithState struct {
	Listing
	IsRead     bool
	IsFavorite bool
}

// ListingPageOptions controls the paged listing query.
type ListingPageOptions struct {
	Source     string
	UnreadOnly bool
	Limit      int
	Offset     int
}

// ListListings returns a page of listings, newest first, decorated with read
// and favorite state.
func (p *Pool) ListListings(ctx context.Context, opts ListingPageOptions) (ListingPage, error) {
	if opts.Limit <= 0 {
		return ListingPage{}, fmt.Errorf("limit must be > 0")
	}
	if opts.Offset < 0 {
		return ListingPage{}, fmt.Errorf("offset must be >= 0")
	}

	q := `
SELECT` + listingColumns + `,
	EXISTS (
		SELECT 1 FROM listings_read r
		WHERE r.source = l.source
		  AND (r.listing_id = l.listing_id
		       OR (l.content_hash IS NOT NULL AND r.content_hash = l.content_hash))
	) AS is_read,
	EXISTS (
		SELECT 1 FROM favorites f
		WHERE f.source = l.source AND f.listing_id = l.listing_id
	) AS is_favorite
FROM listings l
WHERE l.source = $1
ORDER BY l.id DESC
LIMIT $2 OFFSET $3
`
	if opts.UnreadOnly {
		q = `
SELECT * FROM (` + q + `) page
WHERE NOT page.is_read
`
	}

	rows, err := p.Query(ctx, q, opts.Source, opts.Limit, opts.Offset)
	if err != nil {
		return ListingPage{}, fmt.Errorf("query listing page: %w", err)
	}
	defer rows.Close()

	page := ListingPage{}
	for rows.Next() {
		var item ListingWithState
		listing, scanErr := scanListingWithState(rows, &item.IsRead, &item.IsFavorite)
		if scanErr != nil {
			return ListingPage{}, fmt.Errorf("scan listing page row: %w", scanErr)
		}
		item.Listing = listing
		page.Listings = append(page.Listings, item)
	}
	if err := rows.Err(); err != nil {
		return ListingPage{}, fmt.Errorf("iterate listing page rows: %w", err)
	}

	if err := p.QueryRow(ctx, `SELECT COUNT(*) FROM listings WHERE source = $1`, opts.Source).Scan(&page.Total); err != nil {
		return ListingPage{}, fmt.Errorf("count listing page total: %w", err)
	}
	return page, nil
}

func scanListingWithState(s rowScanner, isRead, isFavorite *bool) (Listing, error) {
	var l Listing
	err := s.Scan(
		&l.ID,
		&l.Source,
		&l.ListingID,
		&l.Title,
		&l.Price,
		&l.Address,
		&l.District,
		&l.SizePing,
		&l.Floor,
		&l.URL,
		&l.PublishedAt,
		&l.ContentHash,
		&l.Houseage,
		&l.UnitPrice,
		&l.KindName,
		&l.Room,
		&l.Tags,
		&l.ParkingDesc,
		&l.PublicRatio,
		&l.ManagePriceDesc,
		&l.Fitment,
		&l.ShapeName,
		&l.CommunityName,
		&l.MainArea,
		&l.Direction,
		&l.EntityFingerprint,
		&l.IsEnriched,
		&l.CreatedAt,
		isRead,
		isFavorite,
	)
	return l, err
}
