package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tsesc/tw-homedog/internal/db"
	"github.com/tsesc/tw-homedog/internal/dedup"
)

// Decision reasons returned by DecideAndInsert.
const (
	ReasonInserted           = "inserted"
	ReasonDuplicateListingID = "duplicate_listing_id"
	ReasonDuplicateRawHash   = "duplicate_raw_hash"
	ReasonDuplicateEntity    = "duplicate_entity"
	ReasonDuplicateIntegrity = "duplicate_integrity"
)

// Audit rows use coarse event types; the decision detail goes in the reason
// column.
const skipEventType = "skip"

// Options tunes the insert gate.
type Options struct {
	Source         string
	DedupEnabled   bool
	Threshold      float64
	PriceTolerance float64
	SizeTolerance  float64
	CandidateLimit int
}

// Decision is the outcome of one gated insert.
type Decision struct {
	Inserted           bool     `json:"inserted"`
	Reason             string   `json:"reason"`
	Score              *float64 `json:"score,omitempty"`
	CanonicalListingID string   `json:"canonical_listing_id,omitempty"`
	EntityFingerprint  string   `json:"entity_fingerprint,omitempty"`
}

// Service runs the insert-or-skip gate for scraped listings.
type Service struct {
	pool   *db.Pool
	logger zerolog.Logger
	opts   Options
	cache  *batchCache
}

func NewService(pool *db.Pool, logger zerolog.Logger, opts Options) *Service {
	if opts.Threshold <= 0 {
		opts.Threshold = dedup.DefaultThreshold
	}
	if opts.PriceTolerance <= 0 {
		opts.PriceTolerance = dedup.DefaultPriceTolerance
	}
	if opts.SizeTolerance <= 0 {
		opts.SizeTolerance = dedup.DefaultSizeTolerance
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = 200
	}
	return &Service{
		pool:   pool,
		logger: logger.With().Str("component", "ingest").Logger(),
		opts:   opts,
		cache:  newBatchCache(),
	}
}

// ResetBatch clears the in-batch candidate cache. Call it between scrape runs
// so one run's insertions do not shadow the next run's scoring.
func (s *Service) ResetBatch() {
	s.cache = newBatchCache()
}

// Prepare derives the content hash and entity fingerprint for an incoming row.
func Prepare(row db.Listing) db.Listing {
	view := row.DedupListing()
	if view.ContentHash == "" {
		hash := dedup.ContentHash(view.Title, view.Price, view.Address)
		row.ContentHash = &hash
	}
	fingerprint := dedup.Fingerprint(view)
	row.EntityFingerprint = &fingerprint
	return row
}

// DecideAndInsert runs the gate cascade for one listing: exact id match,
// exact content hash match, fuzzy entity match against stored and in-batch
// candidates, then the actual insert. Skips are audited; a lost insert race
// surfaces as duplicate_integrity rather than an error.
func (s *Service) DecideAndInsert(ctx context.Context, row db.Listing) (Decision, error) {
	if row.Source == "" {
		row.Source = s.opts.Source
	}
	if row.ListingID == "" {
		return Decision{}, fmt.Errorf("listing id is required")
	}

	row = Prepare(row)
	incoming := row.DedupListing()

	if _, found, err := s.pool.LookupListing(ctx, row.Source, row.ListingID); err != nil {
		return Decision{}, err
	} else if found {
		exact := 1.0
		return s.skip(ctx, incoming, Decision{
			Reason:             ReasonDuplicateListingID,
			CanonicalListingID: row.ListingID,
			EntityFingerprint:  incoming.Fingerprint,
		}, ReasonDuplicateListingID, &exact)
	}

	if existing, found, err := s.pool.LookupListingByContentHash(ctx, incoming.ContentHash); err != nil {
		return Decision{}, err
	} else if found {
		exact := 1.0
		return s.skip(ctx, incoming, Decision{
			Reason:             ReasonDuplicateRawHash,
			CanonicalListingID: existing.ListingID,
			EntityFingerprint:  incoming.Fingerprint,
		}, ReasonDuplicateRawHash, &exact)
	}

	if s.opts.DedupEnabled && incoming.Fingerprint != "" {
		decision, auditReason, matched, err := s.entityMatch(ctx, incoming)
		if err != nil {
			return Decision{}, err
		}
		if matched {
			return s.skip(ctx, incoming, decision, auditReason, decision.Score)
		}
	}

	inserted, err := s.pool.InsertListing(ctx, row)
	if err != nil {
		return Decision{}, err
	}
	if !inserted {
		// Lost the unique-constraint race against a concurrent writer.
		return s.skip(ctx, incoming, Decision{
			Reason:            ReasonDuplicateIntegrity,
			EntityFingerprint: incoming.Fingerprint,
		}, ReasonDuplicateIntegrity, nil)
	}

	s.cache.add(incoming)
	s.logger.Debug().
		Str("source", row.Source).
		Str("listing_id", row.ListingID).
		Msg("listing inserted")

	return Decision{
		Inserted:          true,
		Reason:            ReasonInserted,
		EntityFingerprint: incoming.Fingerprint,
	}, nil
}

// entityMatch scores stored candidates sharing the fingerprint, then the
// current batch's insertions. The second return value is the scorer's reason
// for the audit row; batch hits carry a "batch:" prefix so audit rows
// distinguish them from stored matches.
func (s *Service) entityMatch(ctx context.Context, incoming dedup.Listing) (Decision, string, bool, error) {
	stored, err := s.pool.DedupCandidates(ctx, incoming.Source, incoming.Fingerprint, incoming.ListingID, s.opts.CandidateLimit)
	if err != nil {
		return Decision{}, "", false, err
	}

	if id, score, ok := bestMatch(incoming, db.DedupListings(stored), s.opts); ok {
		return Decision{
			Reason:             ReasonDuplicateEntity,
			Score:              &score.Score,
			CanonicalListingID: id,
			EntityFingerprint:  incoming.Fingerprint,
		}, score.Reason, true, nil
	}

	if id, score, ok := bestMatch(incoming, s.cache.candidates(incoming.Fingerprint), s.opts); ok {
		return Decision{
			Reason:             ReasonDuplicateEntity,
			Score:              &score.Score,
			CanonicalListingID: id,
			EntityFingerprint:  incoming.Fingerprint,
		}, "batch:" + score.Reason, true, nil
	}

	return Decision{}, "", false, nil
}

func (s *Service) skip(ctx context.Context, incoming dedup.Listing, decision Decision, auditReason string, auditScore *float64) (Decision, error) {
	if err := s.pool.AppendDedupAudit(ctx, skipEvent(incoming, decision, auditReason, auditScore)); err != nil {
		return Decision{}, fmt.Errorf("audit skip: %w", err)
	}

	s.logger.Info().
		Str("source", incoming.Source).
		Str("listing_id", incoming.ListingID).
		Str("reason", decision.Reason).
		Str("canonical_listing_id", decision.CanonicalListingID).
		Msg("listing skipped")

	return decision, nil
}

// skipEvent shapes the audit row for a skipped listing.
func skipEvent(incoming dedup.Listing, decision Decision, auditReason string, auditScore *float64) db.AuditEvent {
	event := db.AuditEvent{
		EventType:          skipEventType,
		Source:             incoming.Source,
		ListingID:          incoming.ListingID,
		CanonicalListingID: decision.CanonicalListingID,
		Score:              auditScore,
		Reason:             auditReason,
		EntityFingerprint:  decision.EntityFingerprint,
	}
	if decision.CanonicalListingID != "" {
		event.CandidateIDs = []string{decision.CanonicalListingID}
	}
	return event
}

// bestMatch returns the highest-scoring candidate at or above the threshold.
func bestMatch(incoming dedup.Listing, candidates []dedup.Listing, opts Options) (string, dedup.Score, bool) {
	var (
		bestID    string
		bestScore dedup.Score
		found     bool
	)
	for _, candidate := range candidates {
		if candidate.ListingID == incoming.ListingID {
			continue
		}
		score := dedup.ScoreListings(incoming, candidate, opts.PriceTolerance, opts.SizeTolerance)
		if !dedup.IsDuplicate(score.Score, opts.Threshold) {
			continue
		}
		if !found || score.Score > bestScore.Score {
			bestID = candidate.ListingID
			bestScore = score
			found = true
		}
	}
	return bestID, bestScore, found
}
