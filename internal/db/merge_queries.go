package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tsesc/tw-homedog/internal/globaltime"
)

// AuditEvent is one dedup decision to record.
type AuditEvent struct {
	EventType          string
	Source             string
	ListingID          string
	CanonicalListingID string
	CandidateIDs       []string
	Score              *float64
	Reason             string
	EntityFingerprint  string
	Metadata           map[string]any
}

// AppendDedupAudit records a skip or merge decision.
func (p *Pool) AppendDedupAudit(ctx context.Context, event AuditEvent) error {
	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := appendDedupAuditTx(ctx, tx, event); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit audit tx: %w", err)
	}
	return nil
}

func appendDedupAuditTx(ctx context.Context, tx Tx, event AuditEvent) error {
	candidateJSON, err := json.Marshal(event.CandidateIDs)
	if err != nil {
		return fmt.Errorf("marshal candidate ids: %w", err)
	}
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	const q = `
INSERT INTO dedup_audit (
	event_type, source, listing_id, canonical_listing_id, candidate_ids,
	score, reason, entity_fingerprint, metadata, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

	_, err = tx.Exec(ctx, q,
		event.EventType,
		event.Source,
		stringPtr(event.ListingID),
		stringPtr(event.CanonicalListingID),
		json.RawMessage(candidateJSON),
		event.Score,
		stringPtr(event.Reason),
		stringPtr(event.EntityFingerprint),
		json.RawMessage(metadataJSON),
		globaltime.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// RecentDedupAudit returns the newest audit events for one source.
func (p *Pool) RecentDedupAudit(ctx context.Context, source string, limit int) ([]DedupAuditEvent, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	a.id, a.event_type, a.source, a.listing_id, a.canonical_listing_id,
	a.candidate_ids, a.score, a.reason, a.entity_fingerprint, a.metadata,
	a.created_at
FROM dedup_audit a
WHERE a.source = $1
ORDER BY a.created_at DESC, a.id DESC
LIMIT $2
`

	rows, err := p.Query(ctx, q, source, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []DedupAuditEvent
	for rows.Next() {
		var e DedupAuditEvent
		if err := rows.Scan(
			&e.ID, &e.EventType, &e.Source, &e.ListingID, &e.CanonicalListingID,
			&e.CandidateIDs, &e.Score, &e.Reason, &e.EntityFingerprint, &e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return events, nil
}

// MergeGroup names one duplicate group to collapse onto a canonical listing.
type MergeGroup struct {
	Source             string
	CanonicalListingID string
	DuplicateIDs       []string
	Score              *float64
	Reason             string
	EntityFingerprint  string
}

// MergeDuplicateGroup collapses duplicates onto the canonical listing in one
// transaction: linked rows are copied onto the canonical where absent, read
// marks re-keyed to the canonical content hash, then the duplicate listings
// and their remaining relations are deleted. One audit row is written per
// removed duplicate. Returns the number of listings deleted.
func (p *Pool) MergeDuplicateGroup(ctx context.Context, group MergeGroup) (int, error) {
	duplicates := make([]string, 0, len(group.DuplicateIDs))
	for _, id := range group.DuplicateIDs {
		if id != "" && id != group.CanonicalListingID {
			duplicates = append(duplicates, id)
		}
	}
	if len(duplicates) == 0 {
		return 0, nil
	}

	canonical, found, err := p.LookupListing(ctx, group.Source, group.CanonicalListingID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("merge group: canonical listing %s/%s not found", group.Source, group.CanonicalListingID)
	}

	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin merge tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	merged := 0
	for _, dup := range duplicates {
		deleted, err := mergeOneListingTx(ctx, tx, group, canonical, dup)
		if err != nil {
			return 0, err
		}
		if deleted {
			merged++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit merge tx: %w", err)
	}
	return merged, nil
}

func mergeOneListingTx(ctx context.Context, tx Tx, group MergeGroup, canonical Listing, dup string) (bool, error) {
	steps := []struct {
		label string
		query string
		args  []any
	}{
		{
			label: "copy notifications",
			query: `
INSERT INTO notifications_sent (source, listing_id, channel, notified_at)
SELECT source, $1, channel, notified_at
FROM notifications_sent
WHERE source = $2 AND listing_id = $3
ON CONFLICT (source, listing_id, channel) DO NOTHING
`,
			args: []any{group.CanonicalListingID, group.Source, dup},
		},
		{
			label: "copy read marks",
			query: `
INSERT INTO listings_read (source, listing_id, content_hash, read_at)
SELECT source, $1, $2, read_at
FROM listings_read
WHERE source = $3 AND listing_id = $4
ON CONFLICT (source, listing_id) DO NOTHING
`,
			args: []any{group.CanonicalListingID, canonical.ContentHash, group.Source, dup},
		},
		{
			label: "copy favorites",
			query: `
INSERT INTO favorites (source, listing_id, added_at)
SELECT source, $1, added_at
FROM favorites
WHERE source = $2 AND listing_id = $3
ON CONFLICT (source, listing_id) DO NOTHING
`,
			args: []any{group.CanonicalListingID, group.Source, dup},
		},
		{
			label: "delete duplicate notifications",
			query: `DELETE FROM notifications_sent WHERE source = $1 AND listing_id = $2`,
			args:  []any{group.Source, dup},
		},
		{
			label: "delete duplicate read marks",
			query: `DELETE FROM listings_read WHERE source = $1 AND listing_id = $2`,
			args:  []any{group.Source, dup},
		},
		{
			label: "delete duplicate favorites",
			query: `DELETE FROM favorites WHERE source = $1 AND listing_id = $2`,
			args:  []any{group.Source, dup},
		},
	}

	for _, step := range steps {
		if _, err := tx.Exec(ctx, step.query, step.args...); err != nil {
			return false, fmt.Errorf("merge %s for %s/%s: %w", step.label, group.Source, dup, err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM listings WHERE source = $1 AND listing_id = $2`, group.Source, dup)
	if err != nil {
		return false, fmt.Errorf("delete duplicate listing %s/%s: %w", group.Source, dup, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	err = appendDedupAuditTx(ctx, tx, AuditEvent{
		EventType:          "merge",
		Source:             group.Source,
		ListingID:          dup,
		CanonicalListingID: group.CanonicalListingID,
		CandidateIDs:       []string{dup},
		Score:              group.Score,
		Reason:             group.Reason,
		EntityFingerprint:  group.EntityFingerprint,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ValidateRelationIntegrity counts relation rows whose listing no longer
// exists. All-zero counts mean the merge left no orphans.
func (p *Pool) ValidateRelationIntegrity(ctx context.Context) (map[string]int64, error) {
	const q = `
SELECT
	(SELECT COUNT(*) FROM notifications_sent n
	 LEFT JOIN listings l ON l.source = n.source AND l.listing_id = n.listing_id
	 WHERE l.id IS NULL),
	(SELECT COUNT(*) FROM listings_read r
	 LEFT JOIN listings l ON l.source = r.source AND l.listing_id = r.listing_id
	 WHERE l.id IS NULL),
	(SELECT COUNT(*) FROM favorites f
	 LEFT JOIN listings l ON l.source = f.source AND l.listing_id = f.listing_id
	 WHERE l.id IS NULL)
`

	var orphanNotifications, orphanReads, orphanFavorites int64
	if err := p.QueryRow(ctx, q).Scan(&orphanNotifications, &orphanReads, &orphanFavorites); err != nil {
		return nil, fmt.Errorf("validate relation integrity: %w", err)
	}

	return map[string]int64{
		"orphan_notifications": orphanNotifications,
		"orphan_reads":         orphanReads,
		"orphan_favorites":     orphanFavorites,
	}, nil
}
