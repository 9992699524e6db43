package dedup

import (
	"math"
	"strings"
)

const (
	DefaultThreshold      = 0.82
	DefaultPriceTolerance = 0.05
	DefaultSizeTolerance  = 0.08

	addressWeight  = 0.55
	districtWeight = 0.10
	priceWeight    = 0.15
	sizeWeight     = 0.10
	layoutWeight   = 0.10

	// Pairs with no community corroboration and weak address similarity are
	// capped at GuardCap, below the default threshold, so coincidental
	// price/size matches can never qualify on their own.
	guardAddressFloor = 0.45
	GuardCap          = 0.69

	addressReasonBar = 0.7
	priceReasonBar   = 0.8
	sizeReasonBar    = 0.8
	layoutReasonBar  = 0.7
)

// Score is the duplicate-confidence verdict for one listing pair.
type Score struct {
	Score             float64
	AddressSimilarity float64
	PriceSimilarity   float64
	SizeSimilarity    float64
	LayoutSimilarity  float64
	DistrictMatch     bool
	Reason            string
}

// ScoreListings extracts features from both listings and scores them.
func ScoreListings(left, right Listing, priceTolerance, sizeTolerance float64) Score {
	return ScoreFeatures(ExtractFeatures(left), ExtractFeatures(right), priceTolerance, sizeTolerance)
}

// ScoreFeatures computes the weighted duplicate score for two feature sets.
// Pure, deterministic and symmetric: ScoreFeatures(a, b, ...) == ScoreFeatures(b, a, ...).
func ScoreFeatures(a, b FeatureSet, priceTolerance, sizeTolerance float64) Score {
	districtMatch := a.District != "" && a.District == b.District
	addressSim := addressSimilarity(a.Address, b.Address)
	priceSim := relativeSimilarity(a.Price, b.Price, priceTolerance)
	sizeSim := relativeSimilarity(a.SizePing, b.SizePing, sizeTolerance)
	layoutSim := layoutSimilarity(a, b)

	communityMatch := a.Community != "" && a.Community == b.Community

	districtScore := 0.0
	if districtMatch {
		districtScore = 1.0
	}
	score := addressWeight*addressSim +
		districtWeight*districtScore +
		priceWeight*priceSim +
		sizeWeight*sizeSim +
		layoutWeight*layoutSim
	if !communityMatch && addressSim < guardAddressFloor {
		score = math.Min(score, GuardCap)
	}

	var reasons []string
	if districtMatch {
		reasons = append(reasons, "district")
	}
	if communityMatch {
		reasons = append(reasons, "community")
	}
	if addressSim >= addressReasonBar {
		reasons = append(reasons, "address")
	}
	if priceSim >= priceReasonBar {
		reasons = append(reasons, "price")
	}
	if sizeSim >= sizeReasonBar {
		reasons = append(reasons, "size")
	}
	if layoutSim >= layoutReasonBar {
		reasons = append(reasons, "layout")
	}
	reason := "low_signal"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, ",")
	}

	return Score{
		Score:             round4(score),
		AddressSimilarity: round4(addressSim),
		PriceSimilarity:   round4(priceSim),
		SizeSimilarity:    round4(sizeSim),
		LayoutSimilarity:  round4(layoutSim),
		DistrictMatch:     districtMatch,
		Reason:            reason,
	}
}

// IsDuplicate reports whether a score qualifies as a duplicate at the threshold.
func IsDuplicate(score, threshold float64) bool {
	return score >= threshold
}

func addressSimilarity(left, right string) float64 {
	if left == "" || right == "" {
		return 0
	}
	if left == right {
		return 1
	}
	seq := matchRatio(left, right)
	gram := jaccard(bigramSet(left), bigramSet(right))
	tok := jaccard(tokenSet(left), tokenSet(right))
	return math.Max(seq, (gram+tok)/2)
}

// relativeSimilarity compares two magnitudes with a relative tolerance:
// unknown on either side is neutral 0.5, within tolerance maps linearly onto
// [0.8, 1.0], within twice the tolerance decays to 0, beyond that 0.
func relativeSimilarity(a, b *float64, tolerance float64) float64 {
	if a == nil || b == nil {
		return 0.5
	}
	if *a == 0 && *b == 0 {
		return 1
	}
	baseline := math.Max(math.Max(math.Abs(*a), math.Abs(*b)), 1.0)
	diff := math.Abs(*a-*b) / baseline
	safeTolerance := math.Max(tolerance, 1e-6)
	switch {
	case diff <= tolerance:
		return 1.0 - (diff/safeTolerance)*0.2
	case diff <= tolerance*2:
		return 0.6 * (1.0 - (diff-tolerance)/safeTolerance)
	default:
		return 0
	}
}

func layoutSimilarity(a, b FeatureSet) float64 {
	return (layoutDimension(a.Rooms, b.Rooms) +
		layoutDimension(a.Halls, b.Halls) +
		layoutDimension(a.Baths, b.Baths) +
		layoutDimension(a.Floor, b.Floor)) / 4.0
}

func layoutDimension(x, y *int) float64 {
	switch {
	case x == nil && y == nil:
		return 0.5
	case x == nil || y == nil:
		return 0.3
	case *x == *y:
		return 1.0
	case *x-*y == 1 || *y-*x == 1:
		return 0.4
	default:
		return 0
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
