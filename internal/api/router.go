package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/triage/internal/diagservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// onParse, if non-nil, is called after every successful POST /parse.
func NewRouter(svc *diagservice.Service, authEnabled bool, token string, sseHandler http.Handler, onParse diagservice.ParseCallback) chi.Router {
	h := NewHandler(svc, onParse)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Snapshot views.
	r.Get("/summary", h.Summary)
	r.Get("/files", h.TopFiles)
	r.Get("/codes", h.TopCodes)
	r.Get("/diagnostics", h.Diagnostics)
	r.Get("/diagnostics/{index}", h.Diagnostic)
	r.Get("/next", h.Next)
	r.Get("/fix-plan", h.FixPlan)

	// Search.
	r.Get("/search", h.Search)

	// Re-parse.
	r.Post("/parse", h.Parse)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
