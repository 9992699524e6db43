package db

import (
	"encoding/json"
	"time"

	"github.com/tsesc/tw-homedog/internal/dedup"
)

// Listing maps listings. One row per (source, listing_id); the unique pair is
// the ON CONFLICT target for the insert gate.
type Listing struct {
	ID                int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Source            string          `gorm:"column:source;type:text;not null;uniqueIndex:ux_listings_source_listing_id"`
	ListingID         string          `gorm:"column:listing_id;type:text;not null;uniqueIndex:ux_listings_source_listing_id"`
	Title             string          `gorm:"column:title;type:text;not null;default:''"`
	Price             *int64          `gorm:"column:price;type:bigint"`
	Address           string          `gorm:"column:address;type:text;not null;default:''"`
	District          string          `gorm:"column:district;type:text;not null;default:''"`
	SizePing          *float64        `gorm:"column:size_ping;type:double precision"`
	Floor             string          `gorm:"column:floor;type:text;not null;default:''"`
	URL               string          `gorm:"column:url;type:text;not null;default:''"`
	PublishedAt       string          `gorm:"column:published_at;type:text;not null;default:''"`
	ContentHash       *string         `gorm:"column:content_hash;type:text"`
	Houseage          string          `gorm:"column:houseage;type:text;not null;default:''"`
	UnitPrice         string          `gorm:"column:unit_price;type:text;not null;default:''"`
	KindName          string          `gorm:"column:kind_name;type:text;not null;default:''"`
	Room              string          `gorm:"column:room;type:text;not null;default:''"`
	Tags              json.RawMessage `gorm:"column:tags;type:jsonb"`
	ParkingDesc       string          `gorm:"column:parking_desc;type:text;not null;default:''"`
	PublicRatio       string          `gorm:"column:public_ratio;type:text;not null;default:''"`
	ManagePriceDesc   string          `gorm:"column:manage_price_desc;type:text;not null;default:''"`
	Fitment           string          `gorm:"column:fitment;type:text;not null;default:''"`
	ShapeName         string          `gorm:"column:shape_name;type:text;not null;default:''"`
	CommunityName     string          `gorm:"column:community_name;type:text;not null;default:''"`
	MainArea          *float64        `gorm:"column:main_area;type:double precision"`
	Direction         string          `gorm:"column:direction;type:text;not null;default:''"`
	EntityFingerprint *string         `gorm:"column:entity_fingerprint;type:text"`
	IsEnriched        bool            `gorm:"column:is_enriched;type:boolean;not null;default:false"`
	CreatedAt         time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Listing) TableName() string { return "listings" }

// DedupListing projects the row into the comparable form the scorer consumes.
func (l Listing) DedupListing() dedup.Listing {
	return dedup.Listing{
		Source:        l.Source,
		ListingID:     l.ListingID,
		Title:         l.Title,
		Price:         l.Price,
		Address:       l.Address,
		District:      l.District,
		SizePing:      l.SizePing,
		Floor:         l.Floor,
		Room:          l.Room,
		Houseage:      l.Houseage,
		UnitPrice:     l.UnitPrice,
		KindName:      l.KindName,
		CommunityName: l.CommunityName,
		MainArea:      l.MainArea,
		Direction:     l.Direction,
		PublishedAt:   l.PublishedAt,
		ContentHash:   derefString(l.ContentHash),
		Fingerprint:   derefString(l.EntityFingerprint),
		CreatedAt:     l.CreatedAt,
	}
}

// NotificationSent maps notifications_sent.
type NotificationSent struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Source     string    `gorm:"column:source;type:text;not null;uniqueIndex:ux_notifications_source_listing_channel"`
	ListingID  string    `gorm:"column:listing_id;type:text;not null;uniqueIndex:ux_notifications_source_listing_channel"`
	Channel    string    `gorm:"column:channel;type:text;not null;default:telegram;uniqueIndex:ux_notifications_source_listing_channel"`
	NotifiedAt time.Time `gorm:"column:notified_at;type:timestamptz;not null;default:now()"`
}

func (NotificationSent) TableName() string { return "notifications_sent" }

// ListingRead maps listings_read. content_hash is carried alongside the key so
// a repost with identical content stays read after the listing id changes.
type ListingRead struct {
	Source      string    `gorm:"column:source;type:text;primaryKey"`
	ListingID   string    `gorm:"column:listing_id;type:text;primaryKey"`
	ContentHash *string   `gorm:"column:content_hash;type:text;index:ix_listings_read_content_hash"`
	ReadAt      time.Time `gorm:"column:read_at;type:timestamptz;not null;default:now()"`
}

func (ListingRead) TableName() string { return "listings_read" }

// Favorite maps favorites.
type Favorite struct {
	Source    string    `gorm:"column:source;type:text;primaryKey"`
	ListingID string    `gorm:"column:listing_id;type:text;primaryKey"`
	AddedAt   time.Time `gorm:"column:added_at;type:timestamptz;not null;default:now()"`
}

func (Favorite) TableName() string { return "favorites" }

// DedupAuditEvent maps dedup_audit. Inserts are audited only when skipped or
// merged; plain accepted inserts leave no audit row.
type DedupAuditEvent struct {
	ID                 int64           `gorm:"column:id;primaryKey;autoIncrement"`
	EventType          string          `gorm:"column:event_type;type:text;not null"`
	Source             string          `gorm:"column:source;type:text;not null"`
	ListingID          *string         `gorm:"column:listing_id;type:text"`
	CanonicalListingID *string         `gorm:"column:canonical_listing_id;type:text"`
	CandidateIDs       json.RawMessage `gorm:"column:candidate_ids;type:jsonb"`
	Score              *float64        `gorm:"column:score;type:double precision"`
	Reason             *string         `gorm:"column:reason;type:text"`
	EntityFingerprint  *string         `gorm:"column:entity_fingerprint;type:text"`
	Metadata           json.RawMessage `gorm:"column:metadata;type:jsonb"`
	CreatedAt          time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (DedupAuditEvent) TableName() string { return "dedup_audit" }

func autoMigrateModels() []any {
	return []any{
		&Listing{},
		&NotificationSent{},
		&ListingRead{},
		&Favorite{},
		&DedupAuditEvent{},
	}
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
