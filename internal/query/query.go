// Package query answers read-only questions against a parsed snapshot.
package query

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/starford/triage/internal/apperr"
	"github.com/starford/triage/internal/models"
)

const (
	// SummaryTop is how many files and codes the summary shows.
	SummaryTop = 5
	// DefaultTop is the n used by TopFiles and TopCodes when n <= 0.
	DefaultTop = 10
	// DefaultCodeLimit is the limit used by ByCode when limit <= 0.
	DefaultCodeLimit = 20
)

// Engine runs queries over one immutable snapshot.
type Engine struct {
	snap *models.Snapshot
}

// New returns an Engine over snap. The snapshot must not be modified afterwards.
func New(snap *models.Snapshot) *Engine {
	return &Engine{snap: snap}
}

// Len returns the number of records in the snapshot.
func (e *Engine) Len() int {
	return len(e.snap.Records)
}

// All returns every record in index order.
func (e *Engine) All() []models.Record {
	return head(e.snap.Records, len(e.snap.Records))
}

// Overview is the summary answer: totals plus the head of each view.
type Overview struct {
	TotalEntries  int                `json:"total_entries"`
	TotalErrors   int                `json:"total_errors"`
	TotalWarnings int                `json:"total_warnings"`
	TopFiles      []models.FileCount `json:"top_files"`
	TopCodes      []models.CodeCount `json:"top_codes"`
}

// Summary returns totals and the top SummaryTop files and codes.
func (e *Engine) Summary() Overview {
	s := &e.snap.Summary
	return Overview{
		TotalEntries:  s.TotalEntries,
		TotalErrors:   s.TotalErrors,
		TotalWarnings: s.TotalWarnings,
		TopFiles:      head(s.FilesByCount, SummaryTop),
		TopCodes:      head(s.CodesByCount, SummaryTop),
	}
}

// TopFiles returns the first n files by total count. With onlyErrors, files
// without errors are dropped and the rest are ranked by error count instead.
func (e *Engine) TopFiles(n int, onlyErrors bool) []models.FileCount {
	if n <= 0 {
		n = DefaultTop
	}
	files := e.snap.Summary.FilesByCount
	if onlyErrors {
		filtered := make([]models.FileCount, 0, len(files))
		for _, f := range files {
			if f.Errors > 0 {
				filtered = append(filtered, f)
			}
		}
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Errors > filtered[j].Errors
		})
		files = filtered
	}
	return head(files, n)
}

// TopCodes returns the first n code keys by count. With onlyErrors, only keys
// containing "error" are kept; the count order is left as is.
func (e *Engine) TopCodes(n int, onlyErrors bool) []models.CodeCount {
	if n <= 0 {
		n = DefaultTop
	}
	codes := e.snap.Summary.CodesByCount
	if onlyErrors {
		filtered := make([]models.CodeCount, 0, len(codes))
		for _, c := range codes {
			if strings.Contains(c.Code, string(models.KindError)) {
				filtered = append(filtered, c)
			}
		}
		codes = filtered
	}
	return head(codes, n)
}

// ByFile returns every record whose location file contains substr. An empty
// result means no match and is not an error.
func (e *Engine) ByFile(substr string, onlyErrors bool) []models.Record {
	out := []models.Record{}
	for _, r := range e.snap.Records {
		if r.Location == nil || !strings.Contains(r.Location.File, substr) {
			continue
		}
		if onlyErrors && r.Kind != models.KindError {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SuggestFiles ranks known files by fuzzy closeness to substr, best first.
func (e *Engine) SuggestFiles(substr string, limit int) []string {
	files := make([]string, len(e.snap.Summary.FilesByCount))
	for i, f := range e.snap.Summary.FilesByCount {
		files[i] = f.File
	}
	ranks := fuzzy.RankFindFold(substr, files)
	sort.Stable(ranks)

	out := []string{}
	for _, r := range ranks {
		if len(out) == limit {
			break
		}
		out = append(out, r.Target)
	}
	return out
}

// CodeMatch is the answer to a code lookup.
type CodeMatch struct {
	Query      string          `json:"query"`
	Normalized string          `json:"normalized"`
	Total      int             `json:"total"`
	Omitted    int             `json:"omitted"`
	Records    []models.Record `json:"records"`
}

var codeDecoration = strings.NewReplacer("ERROR[", "", "WARNING[", "", "]", "")

// NormalizeCode upper-cases code and strips "error[...]" / "warning[...]"
// decoration, so "E0283", "error[E0283]" and "ERROR[E0283]" are equivalent.
func NormalizeCode(code string) string {
	return codeDecoration.Replace(strings.ToUpper(strings.TrimSpace(code)))
}

// ByCode returns records whose code contains the normalized query, at most limit of them.
func (e *Engine) ByCode(code string, limit int) CodeMatch {
	if limit <= 0 {
		limit = DefaultCodeLimit
	}
	norm := NormalizeCode(code)
	m := CodeMatch{Query: code, Normalized: norm, Records: []models.Record{}}
	for _, r := range e.snap.Records {
		if !strings.Contains(strings.ToUpper(r.Code), norm) {
			continue
		}
		m.Total++
		if len(m.Records) < limit {
			m.Records = append(m.Records, r)
		}
	}
	m.Omitted = m.Total - len(m.Records)
	return m
}

// ByIndex returns the record at position i, or an *apperr.OutOfRangeError.
func (e *Engine) ByIndex(i int) (*models.Record, error) {
	if i < 0 || i >= len(e.snap.Records) {
		return nil, &apperr.OutOfRangeError{Index: i, Len: len(e.snap.Records)}
	}
	r := e.snap.Records[i]
	return &r, nil
}

// NextStep names the record to fix next and the file it was picked from.
type NextStep struct {
	File   string        `json:"file"`
	Record models.Record `json:"record"`
}

// Next picks the first error in the file with the most diagnostics, falling
// back to that file's first diagnostic of any kind.
func (e *Engine) Next() (*NextStep, error) {
	files := e.snap.Summary.FilesByCount
	if len(files) == 0 {
		return nil, apperr.ErrNoActionable
	}
	top := files[0].File

	var fallback *models.Record
	for i := range e.snap.Records {
		r := &e.snap.Records[i]
		if r.File() != top {
			continue
		}
		if r.Kind == models.KindError {
			return &NextStep{File: top, Record: *r}, nil
		}
		if fallback == nil {
			fallback = r
		}
	}
	if fallback == nil {
		return nil, apperr.ErrNoActionable
	}
	return &NextStep{File: top, Record: *fallback}, nil
}

// PlanCode is one code entry of a fix plan.
type PlanCode struct {
	models.CodeCount
	Example *models.Record `json:"example,omitempty"`
}

// Plan is the prioritized remediation plan.
type Plan struct {
	TotalErrors   int                `json:"total_errors"`
	TotalWarnings int                `json:"total_warnings"`
	Codes         []PlanCode         `json:"codes"`
	Files         []models.FileCount `json:"files"`
}

// Empty reports whether there is nothing to plan.
func (p *Plan) Empty() bool {
	return len(p.Codes) == 0 && len(p.Files) == 0
}

// FixPlan takes the top SummaryTop code keys, keeps the error-kind ones with an
// example record each, and appends the top SummaryTop files.
func (e *Engine) FixPlan() Plan {
	s := &e.snap.Summary
	p := Plan{
		TotalErrors:   s.TotalErrors,
		TotalWarnings: s.TotalWarnings,
		Codes:         []PlanCode{},
		Files:         head(s.FilesByCount, SummaryTop),
	}
	for _, c := range head(s.CodesByCount, SummaryTop) {
		if !strings.HasPrefix(c.Code, string(models.KindError)) {
			continue
		}
		p.Codes = append(p.Codes, PlanCode{CodeCount: c, Example: e.example(c.Code)})
	}
	return p
}

func (e *Engine) example(codeKey string) *models.Record {
	for i := range e.snap.Records {
		if e.snap.Records[i].CodeKey() == codeKey {
			r := e.snap.Records[i]
			return &r
		}
	}
	return nil
}

func head[T any](s []T, n int) []T {
	if n > len(s) {
		n = len(s)
	}
	out := make([]T, n)
	copy(out, s[:n])
	return out
}
