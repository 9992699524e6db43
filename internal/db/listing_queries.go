package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/tsesc/tw-homedog/internal/dedup"
	"github.com/tsesc/tw-homedog/internal/globaltime"
)

const listingColumns = `
	l.id,
	l.source,
	l.listing_id,
	l.title,
	l.price,
	l.address,
	l.district,
	l.size_ping,
	l.floor,
	l.url,
	l.published_at,
	l.content_hash,
	l.houseage,
	l.unit_price,
	l.kind_name,
	l.room,
	l.tags,
	l.parking_desc,
	l.public_ratio,
	l.manage_price_desc,
	l.fitment,
	l.shape_name,
	l.community_name,
	l.main_area,
	l.direction,
	l.entity_fingerprint,
	l.is_enriched,
	l.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(s rowScanner) (Listing, error) {
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
	)
	return l, err
}

// LookupListing fetches one listing by its source-scoped id.
func (p *Pool) LookupListing(ctx context.Context, source, listingID string) (Listing, bool, error) {
	q := `
SELECT` + listingColumns + `
FROM listings l
WHERE l.source = $1 AND l.listing_id = $2
`

	listing, err := scanListing(p.QueryRow(ctx, q, source, listingID))
	if IsNoRows(err) {
		return Listing{}, false, nil
	}
	if err != nil {
		return Listing{}, false, fmt.Errorf("lookup listing %s/%s: %w", source, listingID, err)
	}
	return listing, true, nil
}

// LookupListingByContentHash finds the earliest stored listing carrying the
// exact content hash, if any. The match spans sources: an identical payload
// scraped through a second source is still the same listing.
func (p *Pool) LookupListingByContentHash(ctx context.Context, contentHash string) (Listing, bool, error) {
	if strings.TrimSpace(contentHash) == "" {
		return Listing{}, false, nil
	}

	q := `
SELECT` + listingColumns + `
FROM listings l
WHERE l.content_hash = $1
ORDER BY l.id ASC
LIMIT 1
`

	listing, err := scanListing(p.QueryRow(ctx, q, contentHash))
	if IsNoRows(err) {
		return Listing{}, false, nil
	}
	if err != nil {
		return Listing{}, false, fmt.Errorf("lookup listing by content hash: %w", err)
	}
	return listing, true, nil
}

// DedupCandidates returns listings sharing the entity fingerprint, newest
// first, excluding the incoming listing id.
func (p *Pool) DedupCandidates(ctx context.Context, source, fingerprint, excludeListingID string, limit int) ([]Listing, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	q := `
SELECT` + listingColumns + `
FROM listings l
WHERE l.source = $1
  AND l.entity_fingerprint = $2
  AND l.listing_id <> $3
ORDER BY l.id DESC
LIMIT $4
`

	rows, err := p.Query(ctx, q, source, fingerprint, excludeListingID, limit)
	if err != nil {
		return nil, fmt.Errorf("query dedup candidates: %w", err)
	}
	defer rows.Close()

	return collectListings(rows)
}

// ListingsBySource returns every listing for one source ordered by listing id.
func (p *Pool) ListingsBySource(ctx context.Context, source string) ([]Listing, error) {
	q := `
SELECT` + listingColumns + `
FROM listings l
WHERE l.source = $1
ORDER BY l.listing_id ASC
`

	rows, err := p.Query(ctx, q, source)
	if err != nil {
		return nil, fmt.Errorf("query listings for %s: %w", source, err)
	}
	defer rows.Close()

	return collectListings(rows)
}

// ListingsByIDs fetches the named listings for one source.
func (p *Pool) ListingsByIDs(ctx context.Context, source string, listingIDs []string) ([]Listing, error) {
	if len(listingIDs) == 0 {
		return nil, nil
	}

	placeholders, args := inArgs(2, listingIDs)
	q := `
SELECT` + listingColumns + `
FROM listings l
WHERE l.source = $1
  AND l.listing_id IN (` + placeholders + `)
ORDER BY l.listing_id ASC
`

	rows, err := p.Query(ctx, q, append([]any{source}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query listings by ids: %w", err)
	}
	defer rows.Close()

	return collectListings(rows)
}

func collectListings(rows *Rows) ([]Listing, error) {
	var listings []Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing rows: %w", err)
	}
	return listings, nil
}

// InsertListing stores a new listing. Returns false without error when the
// (source, listing_id) pair already exists; concurrent writers race here and
// exactly one wins.
func (p *Pool) InsertListing(ctx context.Context, l Listing) (bool, error) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = globaltime.UTC()
	}

	const q = `
INSERT INTO listings (
	source, listing_id, title, price, address, district, size_ping, floor,
	url, published_at, content_hash, houseage, unit_price, kind_name, room,
	tags, parking_desc, public_ratio, manage_price_desc, fitment, shape_name,
	community_name, main_area, direction, entity_fingerprint, is_enriched,
	created_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8,
	$9, $10, $11, $12, $13, $14, $15,
	$16, $17, $18, $19, $20, $21,
	$22, $23, $24, $25, $26,
	$27
)
ON CONFLICT (source, listing_id) DO NOTHING
`

	tag, err := p.Exec(ctx, q,
		l.Source, l.ListingID, l.Title, l.Price, l.Address, l.District, l.SizePing, l.Floor,
		l.URL, l.PublishedAt, l.ContentHash, l.Houseage, l.UnitPrice, l.KindName, l.Room,
		l.Tags, l.ParkingDesc, l.PublicRatio, l.ManagePriceDesc, l.Fitment, l.ShapeName,
		l.CommunityName, l.MainArea, l.Direction, l.EntityFingerprint, l.IsEnriched,
		l.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert listing %s/%s: %w", l.Source, l.ListingID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListingDetail carries the fields refreshed by a detail-page enrichment pass.
type ListingDetail struct {
	Houseage        string
	UnitPrice       string
	KindName        string
	Room            string
	ParkingDesc     string
	PublicRatio     string
	ManagePriceDesc string
	Fitment         string
	ShapeName       string
	CommunityName   string
	MainArea        *float64
	Direction       string
}

// UpdateListingDetail applies enrichment fields and marks the row enriched.
func (p *Pool) UpdateListingDetail(ctx context.Context, source, listingID string, detail ListingDetail) (bool, error) {
	const q = `
UPDATE listings SET
	houseage = $3,
	unit_price = $4,
	kind_name = $5,
	room = $6,
	parking_desc = $7,
	public_ratio = $8,
	manage_price_desc = $9,
	fitment = $10,
	shape_name = $11,
	community_name = $12,
	main_area = $13,
	direction = $14,
	is_enriched = TRUE
WHERE source = $1 AND listing_id = $2
`

	tag, err := p.Exec(ctx, q,
		source, listingID,
		detail.Houseage, detail.UnitPrice, detail.KindName, detail.Room,
		detail.ParkingDesc, detail.PublicRatio, detail.ManagePriceDesc,
		detail.Fitment, detail.ShapeName, detail.CommunityName,
		detail.MainArea, detail.Direction,
	)
	if err != nil {
		return false, fmt.Errorf("update listing detail %s/%s: %w", source, listingID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListingsMissingFingerprint returns rows whose entity_fingerprint is null or
// empty, for the backfill command. recomputeAll widens it to every row.
// afterID is a keyset cursor: only rows with a larger id are returned, so
// callers can page through the full table batch by batch.
func (p *Pool) ListingsMissingFingerprint(ctx context.Context, source string, recomputeAll bool, afterID int64, limit int) ([]Listing, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	q := `
SELECT` + listingColumns + `
FROM listings l
WHERE l.source = $1
  AND l.id > $2
  AND ($3 OR l.entity_fingerprint IS NULL OR l.entity_fingerprint = '')
ORDER BY l.id ASC
LIMIT $4
`

	rows, err := p.Query(ctx, q, source, afterID, recomputeAll, limit)
	if err != nil {
		return nil, fmt.Errorf("query listings missing fingerprint: %w", err)
	}
	defer rows.Close()

	return collectListings(rows)
}

// SetListingFingerprint writes a recomputed fingerprint and content hash.
func (p *Pool) SetListingFingerprint(ctx context.Context, source, listingID, fingerprint, contentHash string) error {
	const q = `
UPDATE listings SET
	entity_fingerprint = $3,
	content_hash = COALESCE(NULLIF($4, ''), content_hash)
WHERE source = $1 AND listing_id = $2
`

	if _, err := p.Exec(ctx, q, source, listingID, fingerprint, contentHash); err != nil {
		return fmt.Errorf("set fingerprint %s/%s: %w", source, listingID, err)
	}
	return nil
}

// ListingCount reports the total number of stored listings for one source.
func (p *Pool) ListingCount(ctx context.Context, source string) (int64, error) {
	var count int64
	err := p.QueryRow(ctx, `SELECT COUNT(*) FROM listings WHERE source = $1`, source).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return count, nil
}

// DedupListings converts rows into scorer inputs, preserving order.
func DedupListings(rows []Listing) []dedup.Listing {
	out := make([]dedup.Listing, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.DedupListing())
	}
	return out
}

// inArgs builds a $n placeholder list starting at the given index.
func inArgs(start int, values []string) (string, []any) {
	placeholders := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for i, value := range values {
		placeholders = append(placeholders, fmt.Sprintf("$%d", start+i))
		args = append(args, value)
	}
	return strings.Join(placeholders, ", "), args
}
