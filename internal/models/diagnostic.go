// Package models defines the domain types for triage.
package models

// Kind is the severity class a build tool assigned to a diagnostic.
type Kind string

// Diagnostic kinds.
const (
	KindError   Kind = "error"
	KindWarning Kind = "warning"
)

// Location pinpoints a diagnostic in source. File is kept exactly as the tool printed it.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Record is one parsed diagnostic occurrence. It always carries the heavy
// fields; Simple returns the lightweight projection.
type Record struct {
	Index       int       `json:"index"`
	Kind        Kind      `json:"type"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Location    *Location `json:"location,omitempty"`
	Notes       []string  `json:"notes"`
	Helps       []string  `json:"helps"`
	CodeContext []string  `json:"code_context"`
	RawBlock    string    `json:"raw_block"`
}

// SimpleRecord is the metadata-only view of a Record.
type SimpleRecord struct {
	Index       int       `json:"index"`
	Kind        Kind      `json:"type"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Location    *Location `json:"location,omitempty"`
}

// Simple projects r onto its metadata fields.
func (r *Record) Simple() SimpleRecord {
	s := SimpleRecord{
		Index:       r.Index,
		Kind:        r.Kind,
		Code:        r.Code,
		Description: r.Description,
	}
	if r.Location != nil {
		loc := *r.Location
		s.Location = &loc
	}
	return s
}

// File returns the location file or "" when the record has no location.
func (r *Record) File() string {
	if r.Location == nil {
		return ""
	}
	return r.Location.File
}

// CodeKey returns "<kind>[<code>]", or just "<kind>" for uncoded diagnostics.
func (r *Record) CodeKey() string {
	if r.Code == "" {
		return string(r.Kind)
	}
	return string(r.Kind) + "[" + r.Code + "]"
}

// FileCount aggregates diagnostics for one file.
type FileCount struct {
	File     string `json:"file"`
	Total    int    `json:"total"`
	Errors   int    `json:"errors"`
	Warnings int    `json:"warnings"`
}

// CodeCount aggregates diagnostics sharing one code key.
type CodeCount struct {
	Code          string   `json:"code"`
	Count         int      `json:"count"`
	AffectedFiles []string `json:"affected_files"`
}

// Summary is the derived view over one parse.
type Summary struct {
	TotalEntries  int         `json:"total_entries"`
	TotalErrors   int         `json:"total_errors"`
	TotalWarnings int         `json:"total_warnings"`
	FilesByCount  []FileCount `json:"files_by_count"`
	CodesByCount  []CodeCount `json:"codes_by_count"`
}

// Snapshot is the complete result of one parse. It is replaced wholesale, never patched.
type Snapshot struct {
	Records []Record
	Summary Summary
}

// SimpleRecords returns the simple projection of every record, index-aligned.
func (s *Snapshot) SimpleRecords() []SimpleRecord {
	out := make([]SimpleRecord, len(s.Records))
	for i := range s.Records {
		out[i] = s.Records[i].Simple()
	}
	return out
}
