package api

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/triage/internal/diagservice"
	"github.com/starford/triage/internal/query"
	"github.com/starford/triage/internal/report"
)

// maxCaptureBytes bounds a capture uploaded through POST /parse.
const maxCaptureBytes = 32 << 20

// Handler holds API route handlers.
type Handler struct {
	svc     *diagservice.Service
	onParse diagservice.ParseCallback
}

// NewHandler creates a new Handler.
func NewHandler(svc *diagservice.Service, onParse diagservice.ParseCallback) *Handler {
	return &Handler{svc: svc, onParse: onParse}
}

func intParam(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

func boolParam(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// engine loads the snapshot or writes the error response and returns nil.
func (h *Handler) engine(w http.ResponseWriter) *query.Engine {
	eng, err := h.svc.Engine()
	if err != nil {
		writeError(w, "load snapshot", err)
		return nil
	}
	return eng
}

// Summary handles GET /api/summary.
//
//	@Summary		Totals with the top files and codes
//	@Tags			diagnostics
//	@Produce		json
//	@Success		200	{object}	query.Overview
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/summary [get]
func (h *Handler) Summary(w http.ResponseWriter, _ *http.Request) {
	eng := h.engine(w)
	if eng == nil {
		return
	}
	writeJSON(w, http.StatusOK, eng.Summary())
}

// TopFiles handles GET /api/files.
//
//	@Summary		Files ranked by diagnostic count
//	@Tags			diagnostics
//	@Produce		json
//	@Param			n			query	int		false	"Number of files"	default(10)
//	@Param			only_errors	query	bool	false	"Rank by error count"
//	@Success		200	{array}		models.FileCount
//	@Security		BearerAuth
//	@Router			/files [get]
func (h *Handler) TopFiles(w http.ResponseWriter, r *http.Request) {
	eng := h.engine(w)
	if eng == nil {
		return
	}
	writeJSON(w, http.StatusOK, eng.TopFiles(intParam(r, "n"), boolParam(r, "only_errors")))
}

// TopCodes handles GET /api/codes.
//
//	@Summary		Code keys ranked by occurrence count
//	@Tags			diagnostics
//	@Produce		json
//	@Param			n			query	int		false	"Number of codes"	default(10)
//	@Param			only_errors	query	bool	false	"Keep error codes only"
//	@Success		200	{array}		models.CodeCount
//	@Security		BearerAuth
//	@Router			/codes [get]
func (h *Handler) TopCodes(w http.ResponseWriter, r *http.Request) {
	eng := h.engine(w)
	if eng == nil {
		return
	}
	writeJSON(w, http.StatusOK, eng.TopCodes(intParam(r, "n"), boolParam(r, "only_errors")))
}

// Diagnostics handles GET /api/diagnostics.
//
// With file, records whose file contains the substring are returned; with
// code, records matching the normalized code; with neither, every record.
//
//	@Summary		Filter diagnostics by file or code
//	@Tags			diagnostics
//	@Produce		json
//	@Param			file		query	string	false	"File path substring"
//	@Param			code		query	string	false	"Code, e.g. E0308 or error[E0308]"
//	@Param			only_errors	query	bool	false	"Drop warnings (file filter only)"
//	@Param			limit		query	int		false	"Maximum records (code filter only)"	default(20)
//	@Success		200	{object}	DiagnosticsResponse
//	@Security		BearerAuth
//	@Router			/diagnostics [get]
func (h *Handler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	eng := h.engine(w)
	if eng == nil {
		return
	}
	q := r.URL.Query()
	switch {
	case q.Get("file") != "":
		file := q.Get("file")
		records := eng.ByFile(file, boolParam(r, "only_errors"))
		resp := DiagnosticsResponse{Total: len(records), Records: records}
		if len(records) == 0 {
			resp.Suggestions = eng.SuggestFiles(file, 5)
		}
		writeJSON(w, http.StatusOK, resp)
	case q.Get("code") != "":
		m := eng.ByCode(q.Get("code"), intParam(r, "limit"))
		writeJSON(w, http.StatusOK, DiagnosticsResponse{Total: m.Total, Omitted: m.Omitted, Records: m.Records})
	default:
		records := eng.All()
		writeJSON(w, http.StatusOK, DiagnosticsResponse{Total: len(records), Records: records})
	}
}

// Diagnostic handles GET /api/diagnostics/{index}.
//
//	@Summary		Get one diagnostic by index
//	@Tags			diagnostics
//	@Produce		json
//	@Param			index	path		int	true	"Record index"
//	@Success		200		{object}	models.Record
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/diagnostics/{index} [get]
func (h *Handler) Diagnostic(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("index must be an integer"))
		return
	}
	eng := h.engine(w)
	if eng == nil {
		return
	}
	rec, err := eng.ByIndex(i)
	if err != nil {
		writeError(w, "get diagnostic", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Next handles GET /api/next.
//
//	@Summary		The diagnostic to fix next
//	@Tags			diagnostics
//	@Produce		json
//	@Success		200	{object}	query.NextStep
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/next [get]
func (h *Handler) Next(w http.ResponseWriter, _ *http.Request) {
	eng := h.engine(w)
	if eng == nil {
		return
	}
	step, err := eng.Next()
	if err != nil {
		writeError(w, "next", err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

// FixPlan handles GET /api/fix-plan.
//
//	@Summary		Prioritized fix plan
//	@Tags			diagnostics
//	@Produce		json,text/markdown
//	@Param			format	query	string	false	"Response format"	Enums(json, markdown)
//	@Success		200	{object}	query.Plan
//	@Security		BearerAuth
//	@Router			/fix-plan [get]
func (h *Handler) FixPlan(w http.ResponseWriter, r *http.Request) {
	eng := h.engine(w)
	if eng == nil {
		return
	}
	plan := eng.FixPlan()
	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, report.Markdown(plan)+"\n")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search over diagnostics
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	results, err := h.svc.Search(q, intParam(r, "limit"))
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Parse handles POST /api/parse.
//
// A non-empty body replaces the capture before parsing; an empty body
// re-parses the saved capture.
//
//	@Summary		Re-parse captured build output
//	@Tags			parse
//	@Accept			plain
//	@Produce		json
//	@Success		200	{object}	ParseResponse
//	@Failure		404	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/parse [post]
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("capture too large"))
		return
	}

	var res *diagservice.ParseResult
	if len(bytes.TrimSpace(body)) > 0 {
		res, err = h.svc.Ingest(r.Context(), body)
	} else {
		res, err = h.svc.Parse(r.Context())
	}
	if err != nil {
		writeError(w, "parse", err)
		return
	}
	if h.onParse != nil {
		h.onParse(res)
	}
	writeJSON(w, http.StatusOK, res)
}
