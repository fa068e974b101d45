// Package parser turns raw compiler output into diagnostic records.
package parser

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/triage/internal/apperr"
	"github.com/starford/triage/internal/models"
)

var (
	blockStartRe = regexp.MustCompile(`(?m)^[ \t]*(?:warning|error)(?:\[[^\]\n]+\])?:`)
	headerRe     = regexp.MustCompile(`^(warning|error)(?:\[([^\]\n]+)\])?:[ \t]*([^\n]*)`)
	locationRe   = regexp.MustCompile(`(?m)-->[ \t]*(.+):([^:\s]+):([^:\s]+)[ \t]*$`)
	noteRe       = regexp.MustCompile(`(?m)=[ \t]*note:[ \t]*(.+)$`)
	helpRe       = regexp.MustCompile(`(?m)=[ \t]*help:[ \t]*(.+)$`)
	numberedRe   = regexp.MustCompile(`^\s*\d+\s*\|\s*(.+)$`)
	continueRe   = regexp.MustCompile(`^\s*\|\s*\S`)
)

// ErrNotDiagnostic is returned by ParseBlock when the block has no diagnostic header.
var ErrNotDiagnostic = errors.New("parser: block has no diagnostic header")

// Result holds the output of parsing one capture.
type Result struct {
	Records []models.Record
	// Skipped counts non-empty blocks discarded for lacking a header.
	Skipped int
}

// Parse splits raw and extracts a record from every block. Blocks without a
// header are skipped; a malformed location aborts the whole parse.
func Parse(raw string) (*Result, error) {
	res := &Result{Records: []models.Record{}}
	for _, blk := range Split(raw) {
		rec, err := ParseBlock(blk, len(res.Records))
		if errors.Is(err, ErrNotDiagnostic) {
			res.Skipped++
			continue
		}
		if err != nil {
			return nil, err
		}
		res.Records = append(res.Records, *rec)
	}
	return res, nil
}

// Split partitions raw into trimmed, non-empty blocks, one per diagnostic header,
// in input order. Text before the first header forms its own block.
func Split(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	starts := blockStartRe.FindAllStringIndex(raw, -1)
	cuts := make([]int, 0, len(starts)+2)
	cuts = append(cuts, 0)
	for _, s := range starts {
		if s[0] != 0 {
			cuts = append(cuts, s[0])
		}
	}
	cuts = append(cuts, len(raw))

	var out []string
	for i := 0; i+1 < len(cuts); i++ {
		blk := strings.TrimSpace(raw[cuts[i]:cuts[i+1]])
		if blk != "" {
			out = append(out, blk)
		}
	}
	return out
}

// block is the parsing state shared by the extraction rules.
type block struct {
	text  string
	lines []string
	index int
}

// rule fills one group of record fields from a block.
type rule func(b *block, r *models.Record) error

// rules run in order after the header matched; each touches only its own fields.
var rules = []rule{
	extractLocation,
	extractNotes,
	extractHelps,
	extractCodeContext,
}

// ParseBlock extracts a record from one trimmed block. It returns
// ErrNotDiagnostic when the header does not match.
func ParseBlock(text string, index int) (*models.Record, error) {
	m := headerRe.FindStringSubmatch(text)
	if m == nil {
		return nil, ErrNotDiagnostic
	}

	rec := &models.Record{
		Index:       index,
		Kind:        models.Kind(m[1]),
		Code:        m[2],
		Description: strings.TrimSpace(m[3]),
		RawBlock:    text,
	}

	b := &block{text: text, lines: strings.Split(text, "\n"), index: index}
	for _, apply := range rules {
		if err := apply(b, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// extractLocation reads the first "--> file:line:column" reference. Line and
// column are the last two fields, so the file may itself contain colons.
func extractLocation(b *block, r *models.Record) error {
	m := locationRe.FindStringSubmatch(b.text)
	if m == nil {
		return nil
	}
	line, err := position(b.index, "line", m[2])
	if err != nil {
		return err
	}
	col, err := position(b.index, "column", m[3])
	if err != nil {
		return err
	}
	r.Location = &models.Location{
		File:   strings.TrimSpace(m[1]),
		Line:   line,
		Column: col,
	}
	return nil
}

func position(blockIndex int, field, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &apperr.MalformedError{Block: blockIndex, Field: field, Value: value, Reason: "not a base-10 integer"}
	}
	if n < 1 {
		return 0, &apperr.MalformedError{Block: blockIndex, Field: field, Value: value, Reason: "must be at least 1"}
	}
	return n, nil
}

func extractNotes(b *block, r *models.Record) error {
	r.Notes = annotations(noteRe, b.text)
	return nil
}

func extractHelps(b *block, r *models.Record) error {
	r.Helps = annotations(helpRe, b.text)
	return nil
}

func annotations(re *regexp.Regexp, text string) []string {
	out := []string{}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// extractCodeContext collects source fragments from "N | text" lines and
// non-empty "| text" continuation lines.
func extractCodeContext(b *block, r *models.Record) error {
	out := []string{}
	for _, line := range b.lines {
		if m := numberedRe.FindStringSubmatch(line); m != nil {
			out = append(out, m[1])
			continue
		}
		if continueRe.MatchString(line) {
			out = append(out, strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "|")))
		}
	}
	r.CodeContext = out
	return nil
}
