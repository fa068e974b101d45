package api

import (
	"github.com/starford/triage/internal/diagservice"
	"github.com/starford/triage/internal/index"
	"github.com/starford/triage/internal/models"
)

// DiagnosticsResponse wraps a filtered diagnostic listing.
type DiagnosticsResponse struct {
	Total       int             `json:"total" example:"3" validate:"required"`
	Omitted     int             `json:"omitted" example:"0"`
	Records     []models.Record `json:"records" validate:"required"`
	Suggestions []string        `json:"suggestions,omitempty" example:"src/lib.rs"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// ParseResponse is returned after a re-parse (aliased from the domain layer).
type ParseResponse = diagservice.ParseResult
