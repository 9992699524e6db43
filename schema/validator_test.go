package listingschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateListingPayload_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"source":"591",
		"listing_id":"17936951",
		"title":"南港區 三房美寓",
		"price":29800,
		"address":"南港區研究院路一段18號",
		"district":"南港區",
		"size_ping":36.5,
		"room":"3房2廳2衛",
		"url":"https://rent.591.com.tw/17936951",
		"tags":["新上架","有陽台"],
		"community_name":"研究院官邸"
	}`)

	item, err := ValidateListingPayload(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}

	if item.ListingID != "17936951" {
		t.Fatalf("expected listing_id=17936951, got %q", item.ListingID)
	}
	if item.Price == nil || *item.Price != 29800 {
		t.Fatalf("unexpected price: %v", item.Price)
	}

	row := item.ToRow("default-source")
	if row.Source != "591" {
		t.Fatalf("expected explicit source to win, got %q", row.Source)
	}
	if len(row.Tags) == 0 {
		t.Fatalf("expected tags to carry through")
	}
}

func TestValidateListingPayload_DefaultSource(t *testing.T) {
	payload := json.RawMessage(`{
		"listing_id":"42",
		"title":"套房出租"
	}`)

	item, err := ValidateListingPayload(payload)
	if err != nil {
		t.Fatalf("expected minimal payload to be valid, got error: %v", err)
	}
	if row := item.ToRow("591"); row.Source != "591" {
		t.Fatalf("expected default source, got %q", row.Source)
	}
}

func TestValidateListingPayload_MissingRequired(t *testing.T) {
	payload := json.RawMessage(`{
		"source":"591",
		"title":"Missing listing id"
	}`)

	if _, err := ValidateListingPayload(payload); err == nil {
		t.Fatalf("expected validation to fail for missing listing_id")
	}
}

func TestValidateListingPayload_WhitespaceTitle(t *testing.T) {
	payload := json.RawMessage(`{
		"listing_id":"42",
		"title":"   "
	}`)

	_, err := ValidateListingPayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for whitespace-only title")
	}
	if !strings.Contains(err.Error(), "title must not be empty") {
		t.Fatalf("expected title semantic error, got: %v", err)
	}
}

func TestValidateListingPayload_NegativePrice(t *testing.T) {
	payload := json.RawMessage(`{
		"listing_id":"42",
		"title":"套房出租",
		"price":-100
	}`)

	if _, err := ValidateListingPayload(payload); err == nil {
		t.Fatalf("expected validation to fail for negative price")
	}
}

func TestValidateListingPayload_UnknownField(t *testing.T) {
	payload := json.RawMessage(`{
		"listing_id":"42",
		"title":"套房出租",
		"bogus":true
	}`)

	if _, err := ValidateListingPayload(payload); err == nil {
		t.Fatalf("expected validation to fail for unknown field")
	}
}
