package listingschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tsesc/tw-homedog/internal/db"
)

//go:embed listing.schema.json
var listingSchemaJSON string

// ListingPayload is one scraped listing as delivered by a scraper job.
type ListingPayload struct {
	Source          string   `json:"source,omitempty"`
	ListingID       string   `json:"listing_id"`
	Title           string   `json:"title"`
	Price           *int64   `json:"price,omitempty"`
	Address         string   `json:"address,omitempty"`
	District        string   `json:"district,omitempty"`
	SizePing        *float64 `json:"size_ping,omitempty"`
	Floor           string   `json:"floor,omitempty"`
	URL             *string  `json:"url,omitempty"`
	PublishedAt     string   `json:"published_at,omitempty"`
	Room            string   `json:"room,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Houseage        string   `json:"houseage,omitempty"`
	UnitPrice       string   `json:"unit_price,omitempty"`
	KindName        string   `json:"kind_name,omitempty"`
	ParkingDesc     string   `json:"parking_desc,omitempty"`
	PublicRatio     string   `json:"public_ratio,omitempty"`
	ManagePriceDesc string   `json:"manage_price_desc,omitempty"`
	Fitment         string   `json:"fitment,omitempty"`
	ShapeName       string   `json:"shape_name,omitempty"`
	CommunityName   string   `json:"community_name,omitempty"`
	MainArea        *float64 `json:"main_area,omitempty"`
	Direction       string   `json:"direction,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateListingPayload parses and validates one scraped listing payload.
func ValidateListingPayload(payload json.RawMessage) (*ListingPayload, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var item ListingPayload
	if err := json.Unmarshal(normalized, &item); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&item); err != nil {
		return nil, err
	}

	return &item, nil
}

// ToRow converts a validated payload into a storable listing row.
func (p *ListingPayload) ToRow(defaultSource string) db.Listing {
	row := db.Listing{
		Source:          strings.TrimSpace(p.Source),
		ListingID:       strings.TrimSpace(p.ListingID),
		Title:           strings.TrimSpace(p.Title),
		Price:           p.Price,
		Address:         strings.TrimSpace(p.Address),
		District:        strings.TrimSpace(p.District),
		SizePing:        p.SizePing,
		Floor:           strings.TrimSpace(p.Floor),
		PublishedAt:     strings.TrimSpace(p.PublishedAt),
		Room:            strings.TrimSpace(p.Room),
		Houseage:        strings.TrimSpace(p.Houseage),
		UnitPrice:       strings.TrimSpace(p.UnitPrice),
		KindName:        strings.TrimSpace(p.KindName),
		ParkingDesc:     strings.TrimSpace(p.ParkingDesc),
		PublicRatio:     strings.TrimSpace(p.PublicRatio),
		ManagePriceDesc: strings.TrimSpace(p.ManagePriceDesc),
		Fitment:         strings.TrimSpace(p.Fitment),
		ShapeName:       strings.TrimSpace(p.ShapeName),
		CommunityName:   strings.TrimSpace(p.CommunityName),
		MainArea:        p.MainArea,
		Direction:       strings.TrimSpace(p.Direction),
	}
	if row.Source == "" {
		row.Source = defaultSource
	}
	if p.URL != nil {
		row.URL = strings.TrimSpace(*p.URL)
	}
	if len(p.Tags) > 0 {
		if tags, err := json.Marshal(p.Tags); err == nil {
			row.Tags = tags
		}
	}
	return row
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("listing.schema.json", strings.NewReader(listingSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("listing.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(item *ListingPayload) error {
	if item == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(item.ListingID) == "" {
		return fmt.Errorf("listing_id must not be empty")
	}
	if strings.TrimSpace(item.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}

	if item.URL != nil {
		if err := validateURI("url", *item.URL); err != nil {
			return err
		}
	}
	for i, tag := range item.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("tags[%d] must not be empty", i)
		}
	}

	return nil
}

func validateURI(fieldName, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s must not be empty", fieldName)
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return fmt.Errorf("%s is not a valid URI: %w", fieldName, err)
	}
	return nil
}
