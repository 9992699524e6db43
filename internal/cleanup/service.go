package cleanup

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tsesc/tw-homedog/internal/db"
	"github.com/tsesc/tw-homedog/internal/dedup"
)

// Options tunes one cleanup pass.
type Options struct {
	Source         string
	Threshold      float64
	PriceTolerance float64
	SizeTolerance  float64
	BatchSize      int
	DryRun         bool
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = dedup.DefaultThreshold
	}
	if o.PriceTolerance <= 0 {
		o.PriceTolerance = dedup.DefaultPriceTolerance
	}
	if o.SizeTolerance <= 0 {
		o.SizeTolerance = dedup.DefaultSizeTolerance
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 200
	}
	return o
}

// Plan is one duplicate group scheduled for merging.
type Plan struct {
	EntityFingerprint   string   `json:"entity_fingerprint"`
	CanonicalListingID  string   `json:"canonical_listing_id"`
	DuplicateListingIDs []string `json:"duplicate_listing_ids"`
	Score               float64  `json:"score"`
	Reason              string   `json:"reason"`
}

// Report summarizes one cleanup pass for the CLI and the HTTP surface.
type Report struct {
	DryRun                bool             `json:"dry_run"`
	Source                string           `json:"source"`
	Threshold             float64          `json:"threshold"`
	PriceTolerance        float64          `json:"price_tolerance"`
	SizeTolerance         float64          `json:"size_tolerance"`
	BatchSize             int              `json:"batch_size"`
	Groups                int              `json:"groups"`
	ProjectedMergeRecords int              `json:"projected_merge_records"`
	MergedGroups          int              `json:"merged_groups"`
	MergedRecords         int              `json:"merged_records"`
	CleanupFailed         int              `json:"cleanup_failed"`
	Plans                 []Plan           `json:"plans"`
	Validation            map[string]int64 `json:"validation,omitempty"`
	Guidance              string           `json:"guidance"`
}

// Service plans and applies offline duplicate merges.
type Service struct {
	pool   *db.Pool
	logger zerolog.Logger
}

func NewService(pool *db.Pool, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		logger: logger.With().Str("component", "cleanup").Logger(),
	}
}

// Run executes one cleanup pass. Dry runs report projections and mutate
// nothing. Apply runs merge each plan independently, count failures instead
// of aborting, and finish with the relation integrity validator.
func (s *Service) Run(ctx context.Context, opts Options) (Report, error) {
	opts = opts.withDefaults()

	listings, err := s.pool.ListingsBySource(ctx, opts.Source)
	if err != nil {
		return Report{}, err
	}

	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ListingID)
	}
	counts, err := s.pool.RelationCountsFor(ctx, opts.Source, ids)
	if err != nil {
		return Report{}, err
	}

	plans := BuildPlans(db.DedupListings(listings), counts, opts)
	if len(plans) > opts.BatchSize {
		plans = plans[:opts.BatchSize]
	}

	report := Report{
		DryRun:         opts.DryRun,
		Source:         opts.Source,
		Threshold:      opts.Threshold,
		PriceTolerance: opts.PriceTolerance,
		SizeTolerance:  opts.SizeTolerance,
		BatchSize:      opts.BatchSize,
		Groups:         len(plans),
		Plans:          plans,
	}
	for _, plan := range plans {
		report.ProjectedMergeRecords += len(plan.DuplicateListingIDs)
	}

	if opts.DryRun {
		report.Guidance = fmt.Sprintf("dry run only: %d group(s) with %d duplicate record(s) would be merged", report.Groups, report.ProjectedMergeRecords)
		return report, nil
	}

	for _, plan := range plans {
		score := plan.Score
		merged, err := s.pool.MergeDuplicateGroup(ctx, db.MergeGroup{
			Source:             opts.Source,
			CanonicalListingID: plan.CanonicalListingID,
			DuplicateIDs:       plan.DuplicateListingIDs,
			Score:              &score,
			Reason:             "cleanup:" + plan.Reason,
			EntityFingerprint:  plan.EntityFingerprint,
		})
		if err != nil {
			report.CleanupFailed++
			s.logger.Error().Err(err).
				Str("canonical_listing_id", plan.CanonicalListingID).
				Msg("merge failed")
			continue
		}
		if merged > 0 {
			report.MergedGroups++
			report.MergedRecords += merged
		}
	}

	validation, err := s.pool.ValidateRelationIntegrity(ctx)
	if err != nil {
		return Report{}, err
	}
	report.Validation = validation

	orphans := int64(0)
	for _, n := range validation {
		orphans += n
	}
	switch {
	case report.CleanupFailed > 0:
		report.Guidance = fmt.Sprintf("%d group(s) failed to merge; inspect dedup_audit and re-run", report.CleanupFailed)
	case orphans > 0:
		report.Guidance = fmt.Sprintf("integrity validator found %d orphan relation row(s)", orphans)
	default:
		report.Guidance = fmt.Sprintf("merged %d record(s) across %d group(s); integrity clean", report.MergedRecords, report.MergedGroups)
	}

	s.logger.Info().
		Bool("dry_run", report.DryRun).
		Int("groups", report.Groups).
		Int("merged_records", report.MergedRecords).
		Int("cleanup_failed", report.CleanupFailed).
		Msg("cleanup pass finished")

	return report, nil
}

// BuildPlans buckets listings by entity fingerprint, scores every pair inside
// a bucket and folds qualifying pairs into transitive duplicate groups. Pure:
// same inputs always yield the same plans, ordered by fingerprint.
func BuildPlans(listings []dedup.Listing, counts map[string]dedup.RelationCounts, opts Options) []Plan {
	opts = opts.withDefaults()

	buckets := make(map[string][]dedup.Listing)
	for _, l := range listings {
		fingerprint := l.Fingerprint
		if fingerprint == "" {
			fingerprint = dedup.Fingerprint(l)
		}
		buckets[fingerprint] = append(buckets[fingerprint], l)
	}

	fingerprints := make([]string, 0, len(buckets))
	for fingerprint, bucket := range buckets {
		if len(bucket) > 1 {
			fingerprints = append(fingerprints, fingerprint)
		}
	}
	sort.Strings(fingerprints)

	var plans []Plan
	for _, fingerprint := range fingerprints {
		plans = append(plans, bucketPlans(fingerprint, buckets[fingerprint], counts, opts)...)
	}
	return plans
}

func bucketPlans(fingerprint string, bucket []dedup.Listing, counts map[string]dedup.RelationCounts, opts Options) []Plan {
	uf := newUnionFind(len(bucket))
	for i := 0; i < len(bucket); i++ {
		for j := i + 1; j < len(bucket); j++ {
			score := dedup.ScoreListings(bucket[i], bucket[j], opts.PriceTolerance, opts.SizeTolerance)
			if dedup.IsDuplicate(score.Score, opts.Threshold) {
				uf.union(i, j)
			}
		}
	}

	var plans []Plan
	for _, members := range uf.components() {
		if len(members) < 2 {
			continue
		}

		group := make([]dedup.Listing, 0, len(members))
		for _, idx := range members {
			group = append(group, bucket[idx])
		}

		canonical, ok := dedup.ChooseCanonical(group, counts)
		if !ok {
			continue
		}

		// The plan carries the strongest canonical-to-duplicate pairing,
		// not the strongest edge anywhere in the component: a transitive
		// duplicate may sit below the threshold against the canonical.
		best := dedup.Score{Reason: "cleanup"}
		duplicates := make([]string, 0, len(group)-1)
		for _, l := range group {
			if l.ListingID == canonical.ListingID {
				continue
			}
			duplicates = append(duplicates, l.ListingID)
			if score := dedup.ScoreListings(canonical, l, opts.PriceTolerance, opts.SizeTolerance); score.Score >= best.Score {
				best = score
			}
		}
		sort.Strings(duplicates)

		plans = append(plans, Plan{
			EntityFingerprint:   fingerprint,
			CanonicalListingID:  canonical.ListingID,
			DuplicateListingIDs: duplicates,
			Score:               best.Score,
			Reason:              best.Reason,
		})
	}

	sort.Slice(plans, func(i, j int) bool {
		return plans[i].CanonicalListingID < plans[j].CanonicalListingID
	})
	return plans
}
