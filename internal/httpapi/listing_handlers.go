package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tsesc/tw-homedog/internal/db"
	"github.com/tsesc/tw-homedog/internal/ingest"
	listingschema "github.com/tsesc/tw-homedog/schema"
)

type listingResponse struct {
	Source            string    `json:"source"`
	ListingID         string    `json:"listing_id"`
	Title             string    `json:"title"`
	Price             *int64    `json:"price,omitempty"`
	Address           string    `json:"address,omitempty"`
	District          string    `json:"district,omitempty"`
	SizePing          *float64  `json:"size_ping,omitempty"`
	Floor             string    `json:"floor,omitempty"`
	URL               string    `json:"url,omitempty"`
	PublishedAt       string    `json:"published_at,omitempty"`
	Room              string    `json:"room,omitempty"`
	CommunityName     string    `json:"community_name,omitempty"`
	EntityFingerprint string    `json:"entity_fingerprint,omitempty"`
	IsEnriched        bool      `json:"is_enriched"`
	IsRead            bool      `json:"is_read"`
	IsFavorite        bool      `json:"is_favorite"`
	CreatedAt         time.Time `json:"created_at"`
}

func buildListingResponse(row db.Listing, isRead, isFavorite bool) listingResponse {
	fingerprint := ""
	if row.EntityFingerprint != nil {
		fingerprint = *row.EntityFingerprint
	}
	return listingResponse{
		Source:            row.Source,
		ListingID:         row.ListingID,
		Title:             row.Title,
		Price:             row.Price,
		Address:           row.Address,
		District:          row.District,
		SizePing:          row.SizePing,
		Floor:             row.Floor,
		URL:               row.URL,
		PublishedAt:       row.PublishedAt,
		Room:              row.Room,
		CommunityName:     row.CommunityName,
		EntityFingerprint: fingerprint,
		IsEnriched:        row.IsEnriched,
		IsRead:            isRead,
		IsFavorite:        isFavorite,
		CreatedAt:         row.CreatedAt.UTC(),
	}
}

func (s *Server) handleListings(c echo.Context) error {
	page, err := parsePositiveInt(c.QueryParam("page"), 1, 1, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"page": err.Error()})
	}
	pageSize, err := parsePositiveInt(c.QueryParam("page_size"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"page_size": err.Error()})
	}
	unreadOnly, err := parseBoolParam(c.QueryParam("unread"))
	if err != nil {
		return failValidation(c, map[string]string{"unread": err.Error()})
	}

	result, err := s.pool.ListListings(c.Request().Context(), db.ListingPageOptions{
		Source:     s.opts.Source,
		UnreadOnly: unreadOnly,
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("query listings failed")
		return internalError(c, "Failed to load listings")
	}

	items := make([]listingResponse, 0, len(result.Listings))
	for _, row := range result.Listings {
		items = append(items, buildListingResponse(row.Listing, row.IsRead, row.IsFavorite))
	}

	totalPages := 0
	if result.Total > 0 {
		totalPages = int((result.Total + int64(pageSize) - 1) / int64(pageSize))
	}

	return success(c, map[string]any{
		"items": items,
		"pagination": map[string]any{
			"page":        page,
			"page_size":   pageSize,
			"total_items": result.Total,
			"total_pages": totalPages,
		},
	})
}

func (s *Server) handleListingDetail(c echo.Context) error {
	listingID := strings.TrimSpace(c.Param("listing_id"))
	if listingID == "" {
		return failValidation(c, map[string]string{"listing_id": "is required"})
	}

	row, found, err := s.pool.LookupListing(c.Request().Context(), s.opts.Source, listingID)
	if err != nil {
		s.logger.Error().Err(err).Str("listing_id", listingID).Msg("lookup listing failed")
		return internalError(c, "Failed to load listing")
	}
	if !found {
		return failNotFound(c, "Listing not found")
	}

	isRead, err := s.pool.IsListingRead(c.Request().Context(), s.opts.Source, listingID)
	if err != nil {
		s.logger.Error().Err(err).Str("listing_id", listingID).Msg("read-state lookup failed")
		return internalError(c, "Failed to load listing")
	}
	counts, err := s.pool.RelationCountsFor(c.Request().Context(), s.opts.Source, []string{listingID})
	if err != nil {
		s.logger.Error().Err(err).Str("listing_id", listingID).Msg("relation count lookup failed")
		return internalError(c, "Failed to load listing")
	}
	relations := counts[listingID]

	return success(c, map[string]any{
		"listing": buildListingResponse(row, isRead, relations.Favorites > 0),
		"relations": map[string]int{
			"favorites":     relations.Favorites,
			"notifications": relations.Notifications,
			"reads":         relations.Reads,
		},
	})
}

func (s *Server) handleMarkRead(c echo.Context) error {
	listingID := strings.TrimSpace(c.Param("listing_id"))
	if listingID == "" {
		return failValidation(c, map[string]string{"listing_id": "is required"})
	}

	if err := s.pool.MarkListingRead(c.Request().Context(), s.opts.Source, listingID); err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Listing not found")
		}
		s.logger.Error().Err(err).Str("listing_id", listingID).Msg("mark read failed")
		return internalError(c, "Failed to mark listing read")
	}
	return success(c, map[string]any{"listing_id": listingID, "read": true})
}

func (s *Server) handleAddFavorite(c echo.Context) error {
	listingID := strings.TrimSpace(c.Param("listing_id"))
	if listingID == "" {
		return failValidation(c, map[string]string{"listing_id": "is required"})
	}

	if _, found, err := s.pool.LookupListing(c.Request().Context(), s.opts.Source, listingID); err != nil {
		s.logger.Error().Err(err).Str("listing_id", listingID).Msg("lookup listing failed")
		return internalError(c, "Failed to add favorite")
	} else if !found {
		return failNotFound(c, "Listing not found")
	}

	if err := s.pool.AddFavorite(c.Request().Context(), s.opts.Source, listingID); err != nil {
		s.logger.Error().Err(err).Str("listing_id", listingID).Msg("add favorite failed")
		return internalError(c, "Failed to add favorite")
	}
	return success(c, map[string]any{"listing_id": listingID, "favorite": true})
}

func (s *Server) handleRemoveFavorite(c echo.Context) error {
	listingID := strings.TrimSpace(c.Param("listing_id"))
	if listingID == "" {
		return failValidation(c, map[string]string{"listing_id": "is required"})
	}

	removed, err := s.pool.RemoveFavorite(c.Request().Context(), s.opts.Source, listingID)
	if err != nil {
		s.logger.Error().Err(err).Str("listing_id", listingID).Msg("remove favorite failed")
		return internalError(c, "Failed to remove favorite")
	}
	if !removed {
		return failNotFound(c, "Favorite not found")
	}
	return success(c, map[string]any{"listing_id": listingID, "favorite": false})
}

func (s *Server) handleFavorites(c echo.Context) error {
	ids, err := s.pool.FavoriteListingIDs(c.Request().Context(), s.opts.Source)
	if err != nil {
		s.logger.Error().Err(err).Msg("query favorites failed")
		return internalError(c, "Failed to load favorites")
	}

	rows, err := s.pool.ListingsByIDs(c.Request().Context(), s.opts.Source, ids)
	if err != nil {
		s.logger.Error().Err(err).Msg("query favorite listings failed")
		return internalError(c, "Failed to load favorites")
	}

	items := make([]listingResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, buildListingResponse(row, false, true))
	}
	return success(c, map[string]any{"items": items})
}

type auditEventResponse struct {
	ID                 int64     `json:"id"`
	EventType          string    `json:"event_type"`
	Source             string    `json:"source"`
	ListingID          *string   `json:"listing_id,omitempty"`
	CanonicalListingID *string   `json:"canonical_listing_id,omitempty"`
	CandidateIDs       []string  `json:"candidate_ids,omitempty"`
	Score              *float64  `json:"score,omitempty"`
	Reason             *string   `json:"reason,omitempty"`
	EntityFingerprint  *string   `json:"entity_fingerprint,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

func (s *Server) handleAudit(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), 50, 1, 500)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	events, err := s.pool.RecentDedupAudit(c.Request().Context(), s.opts.Source, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("query audit events failed")
		return internalError(c, "Failed to load audit events")
	}

	items := make([]auditEventResponse, 0, len(events))
	for _, event := range events {
		item := auditEventResponse{
			ID:                 event.ID,
			EventType:          event.EventType,
			Source:             event.Source,
			ListingID:          event.ListingID,
			CanonicalListingID: event.CanonicalListingID,
			Score:              event.Score,
			Reason:             event.Reason,
			EntityFingerprint:  event.EntityFingerprint,
			CreatedAt:          event.CreatedAt.UTC(),
		}
		if len(event.CandidateIDs) > 0 {
			_ = json.Unmarshal(event.CandidateIDs, &item.CandidateIDs)
		}
		items = append(items, item)
	}
	return success(c, map[string]any{"items": items, "limit": limit})
}

func (s *Server) handleIngest(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	payload, err := listingschema.ValidateListingPayload(body)
	if err != nil {
		return failValidation(c, map[string]string{"payload": err.Error()})
	}

	decision, err := s.gate.DecideAndInsert(c.Request().Context(), payload.ToRow(s.opts.Source))
	if err != nil {
		s.logger.Error().Err(err).Str("listing_id", payload.ListingID).Msg("ingest decision failed")
		return internalError(c, "Failed to ingest listing")
	}
	return success(c, decision)
}

type batchItemResult struct {
	ListingID string `json:"listing_id"`
	Error     string `json:"error,omitempty"`
	ingest.Decision
}

func (s *Server) handleIngestBatch(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	var payloads []json.RawMessage
	if err := json.Unmarshal(body, &payloads); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON array of listing payloads"})
	}
	if len(payloads) == 0 {
		return failValidation(c, map[string]string{"body": "array is empty"})
	}

	// One scrape batch per request.
	s.gate.ResetBatch()

	results := make([]batchItemResult, 0, len(payloads))
	inserted := 0
	for _, raw := range payloads {
		payload, err := listingschema.ValidateListingPayload(raw)
		if err != nil {
			results = append(results, batchItemResult{Error: err.Error()})
			continue
		}

		decision, err := s.gate.DecideAndInsert(c.Request().Context(), payload.ToRow(s.opts.Source))
		if err != nil {
			s.logger.Error().Err(err).Str("listing_id", payload.ListingID).Msg("batch ingest decision failed")
			return internalError(c, "Failed to ingest batch")
		}
		if decision.Inserted {
			inserted++
		}
		results = append(results, batchItemResult{ListingID: payload.ListingID, Decision: decision})
	}

	return success(c, map[string]any{
		"items":    results,
		"total":    len(payloads),
		"inserted": inserted,
	})
}

type listingDetailRequest struct {
	Houseage        string   `json:"houseage"`
	UnitPrice       string   `json:"unit_price"`
	KindName        string   `json:"kind_name"`
	Room            string   `json:"room"`
	ParkingDesc     string   `json:"parking_desc"`
	PublicRatio     string   `json:"public_ratio"`
	ManagePriceDesc string   `json:"manage_price_desc"`
	Fitment         string   `json:"fitment"`
	ShapeName       string   `json:"shape_name"`
	CommunityName   string   `json:"community_name"`
	MainArea        *float64 `json:"main_area"`
	Direction       string   `json:"direction"`
}

func (s *Server) handleUpdateDetail(c echo.Context) error {
	listingID := strings.TrimSpace(c.Param("listing_id"))
	if listingID == "" {
		return failValidation(c, map[string]string{"listing_id": "is required"})
	}

	body, err := readBody(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	var req listingDetailRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}
	if req.MainArea != nil && *req.MainArea <= 0 {
		return failValidation(c, map[string]string{"main_area": "must be > 0"})
	}

	updated, err := s.pool.UpdateListingDetail(c.Request().Context(), s.opts.Source, listingID, db.ListingDetail{
		Houseage:        strings.TrimSpace(req.Houseage),
		UnitPrice:       strings.TrimSpace(req.UnitPrice),
		KindName:        strings.TrimSpace(req.KindName),
		Room:            strings.TrimSpace(req.Room),
		ParkingDesc:     strings.TrimSpace(req.ParkingDesc),
		PublicRatio:     strings.TrimSpace(req.PublicRatio),
		ManagePriceDesc: strings.TrimSpace(req.ManagePriceDesc),
		Fitment:         strings.TrimSpace(req.Fitment),
		ShapeName:       strings.TrimSpace(req.ShapeName),
		CommunityName:   strings.TrimSpace(req.CommunityName),
		MainArea:        req.MainArea,
		Direction:       strings.TrimSpace(req.Direction),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("listing_id", listingID).Msg("update detail failed")
		return internalError(c, "Failed to update listing detail")
	}
	if !updated {
		return failNotFound(c, "Listing not found")
	}
	return success(c, map[string]any{"listing_id": listingID, "enriched": true})
}

func (s *Server) handleMarkNotified(c echo.Context) error {
	listingID := strings.TrimSpace(c.Param("listing_id"))
	if listingID == "" {
		return failValidation(c, map[string]string{"listing_id": "is required"})
	}
	channel := strings.TrimSpace(c.QueryParam("channel"))

	if _, found, err := s.pool.LookupListing(c.Request().Context(), s.opts.Source, listingID); err != nil {
		s.logger.Error().Err(err).Str("listing_id", listingID).Msg("lookup listing failed")
		return internalError(c, "Failed to record notification")
	} else if !found {
		return failNotFound(c, "Listing not found")
	}

	recorded, err := s.pool.RecordNotification(c.Request().Context(), s.opts.Source, listingID, channel)
	if err != nil {
		s.logger.Error().Err(err).Str("listing_id", listingID).Msg("record notification failed")
		return internalError(c, "Failed to record notification")
	}
	return success(c, map[string]any{"listing_id": listingID, "recorded": recorded})
}

func readBody(c echo.Context) (json.RawMessage, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, c.Request().Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("request body is empty")
	}
	return body, nil
}
