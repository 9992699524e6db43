package httpapi

import (
	"encoding/json"

	"github.com/labstack/echo/v4"

	"github.com/tsesc/tw-homedog/internal/cleanup"
)

type cleanupRequest struct {
	Threshold      *float64 `json:"threshold,omitempty"`
	PriceTolerance *float64 `json:"price_tolerance,omitempty"`
	SizeTolerance  *float64 `json:"size_tolerance,omitempty"`
	BatchSize      *int     `json:"batch_size,omitempty"`
}

// cleanupOptions starts from the configured dedup settings; request fields
// override them per call.
func (s *Server) cleanupOptions(req cleanupRequest, dryRun bool) cleanup.Options {
	opts := cleanup.Options{
		Source:         s.opts.Source,
		Threshold:      s.opts.DedupThreshold,
		PriceTolerance: s.opts.PriceTolerance,
		SizeTolerance:  s.opts.SizeTolerance,
		BatchSize:      s.opts.CleanupBatchSize,
		DryRun:         dryRun,
	}
	if req.Threshold != nil {
		opts.Threshold = *req.Threshold
	}
	if req.PriceTolerance != nil {
		opts.PriceTolerance = *req.PriceTolerance
	}
	if req.SizeTolerance != nil {
		opts.SizeTolerance = *req.SizeTolerance
	}
	if req.BatchSize != nil {
		opts.BatchSize = *req.BatchSize
	}
	return opts
}

func (s *Server) handleCleanupPreview(c echo.Context) error {
	return s.runCleanup(c, true)
}

func (s *Server) handleCleanupRun(c echo.Context) error {
	return s.runCleanup(c, false)
}

func (s *Server) runCleanup(c echo.Context, dryRun bool) error {
	var req cleanupRequest
	if c.Request().ContentLength > 0 {
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
			return failValidation(c, map[string]string{"body": "must be a JSON object"})
		}
	}
	if req.Threshold != nil && (*req.Threshold <= 0 || *req.Threshold > 1) {
		return failValidation(c, map[string]string{"threshold": "must be in (0, 1]"})
	}
	if req.BatchSize != nil && *req.BatchSize < 1 {
		return failValidation(c, map[string]string{"batch_size": "must be >= 1"})
	}

	report, err := s.cleanup.Run(c.Request().Context(), s.cleanupOptions(req, dryRun))
	if err != nil {
		s.logger.Error().Err(err).Bool("dry_run", dryRun).Msg("cleanup run failed")
		return internalError(c, "Failed to run cleanup")
	}
	return success(c, report)
}
