package dedup

import "time"

// Listing is the normalized view of one scraped posting that the dedup core
// operates on. Missing text fields are empty strings, missing numerics nil;
// extraction and scoring degrade to neutral values rather than failing.
type Listing struct {
	Source        string
	ListingID     string
	Title         string
	Price         *int64
	Address       string
	District      string
	SizePing      *float64
	Floor         string
	Room          string
	Houseage      string
	UnitPrice     string
	KindName      string
	CommunityName string
	MainArea      *float64
	Direction     string
	PublishedAt   string
	ContentHash   string
	Fingerprint   string
	CreatedAt     time.Time
}

// FeatureSet is the comparable projection of a Listing.
type FeatureSet struct {
	District  string
	Address   string
	Community string
	Price     *float64
	SizePing  *float64
	Rooms     *int
	Halls     *int
	Baths     *int
	Floor     *int
}

// ExtractFeatures derives the comparable feature set from a listing.
// Deterministic and total: anything unparsable becomes a neutral value.
func ExtractFeatures(l Listing) FeatureSet {
	room, hall, bath := parseLayout(l.Room)
	return FeatureSet{
		District:  NormalizeText(l.District),
		Address:   NormalizeAddress(l.Address),
		Community: NormalizeText(l.CommunityName),
		Price:     intToFloat(l.Price),
		SizePing:  l.SizePing,
		Rooms:     room,
		Halls:     hall,
		Baths:     bath,
		Floor:     parseFloor(l.Floor),
	}
}

func intToFloat(v *int64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
