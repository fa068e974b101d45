package report

import (
	"strings"
	"time"

	"github.com/starford/triage/internal/diagservice"
	"github.com/starford/triage/internal/index"
	"github.com/starford/triage/internal/models"
	"github.com/starford/triage/internal/query"
)

// Parsed reports a finished parse and the artifacts it wrote.
func (p *Printer) Parsed(res *diagservice.ParseResult, artifacts []string) error {
	if p.json {
		return p.encode(res)
	}
	p.printf("\nParsed %d entries:\n", res.Entries)
	p.printf("  - %d errors\n", res.Errors)
	p.printf("  - %d warnings\n", res.Warnings)
	if res.Skipped > 0 {
		p.printf("  - %d blocks skipped\n", res.Skipped)
	}
	if res.IndexStale {
		p.println("  - search index not updated, see the log")
	}
	p.printf("\nFiles updated: %s\n", strings.Join(artifacts, ", "))
	return nil
}

// Built reports a build run followed by its parse.
func (p *Printer) Built(res *diagservice.BuildResult, capture string, artifacts []string) error {
	if p.json {
		return p.encode(res)
	}
	p.printf("Build finished in %s (exit code %d)\n", res.Duration.Round(time.Millisecond), res.ExitCode)
	p.printf("Build output saved to %s\n", capture)
	return p.Parsed(res.Parse, artifacts)
}

// Summary prints totals and the head of both views.
func (p *Printer) Summary(o query.Overview) error {
	if p.json {
		return p.encode(o)
	}
	p.printf("Total: %d (%d errors, %d warnings)\n", o.TotalEntries, o.TotalErrors, o.TotalWarnings)
	p.printf("\n%s\n", headingColor.Sprintf("Top %d files:", query.SummaryTop))
	for _, f := range o.TopFiles {
		p.printf("  %3d | %s\n", f.Total, fileColor.Sprint(f.File))
	}
	p.printf("\n%s\n", headingColor.Sprint("Error codes:"))
	for _, c := range o.TopCodes {
		p.printf("  %3d | %s\n", c.Count, c.Code)
	}
	return nil
}

// TopFiles prints the file table.
func (p *Printer) TopFiles(n int, files []models.FileCount) error {
	if p.json {
		return p.encode(files)
	}
	p.printf("Top %d files by error count:\n\n", n)
	p.printf("%5s %4s %4s  File\n", "Total", "Err", "Warn")
	p.println(strings.Repeat("-", 60))
	for _, f := range files {
		p.printf("%5d %4d %4d  %s\n", f.Total, f.Errors, f.Warnings, fileColor.Sprint(f.File))
	}
	return nil
}

// TopCodes prints the code table.
func (p *Printer) TopCodes(n int, codes []models.CodeCount) error {
	if p.json {
		return p.encode(codes)
	}
	p.printf("Top %d error codes:\n\n", n)
	p.printf("%5s %5s  Code\n", "Count", "Files")
	p.println(strings.Repeat("-", 40))
	for _, c := range codes {
		p.printf("%5d %5d  %s\n", c.Count, len(c.AffectedFiles), c.Code)
	}
	return nil
}

// FileMatches prints the records found for a file substring. When nothing
// matched, suggestions lists close file names, if any.
func (p *Printer) FileMatches(substr string, records []models.Record, detailed bool, suggestions []string) error {
	if p.json {
		return p.encode(records)
	}
	if len(records) == 0 {
		p.printf("No errors found in files matching '%s'\n", substr)
		if len(suggestions) > 0 {
			p.println("\nDid you mean:")
			for _, s := range suggestions {
				p.printf("  %s\n", fileColor.Sprint(s))
			}
		}
		return nil
	}
	p.printf("Found %d errors in files matching '%s':\n\n", len(records), substr)
	p.records(records, detailed)
	return nil
}

// CodeMatches prints the records found for a code, with the omitted count.
func (p *Printer) CodeMatches(m query.CodeMatch, detailed bool) error {
	if p.json {
		return p.encode(m)
	}
	if m.Total == 0 {
		p.printf("No errors found with code '%s'\n", m.Query)
		return nil
	}
	p.printf("Found %d errors with code '%s':\n\n", m.Total, m.Normalized)
	p.records(m.Records, detailed)
	if m.Omitted > 0 {
		p.printf("\n... and %d more. Use --limit to see more.\n", m.Omitted)
	}
	return nil
}

func (p *Printer) records(records []models.Record, detailed bool) {
	for i := range records {
		if detailed {
			p.println(DetailBlock(&records[i]))
			p.println()
			continue
		}
		p.println(SimpleLine(&records[i]))
	}
}

// Detail prints one record in full.
func (p *Printer) Detail(r *models.Record) error {
	if p.json {
		return p.encode(r)
	}
	p.println(DetailBlock(r))
	return nil
}

// Next prints the suggested record to fix, or a notice when there is none.
func (p *Printer) Next(step *query.NextStep) error {
	if p.json {
		return p.encode(step)
	}
	if step == nil {
		p.println("No actionable errors found.")
		return nil
	}
	p.printf("Next error to fix (from top file: %s):\n\n", fileColor.Sprint(step.File))
	p.println(DetailBlock(&step.Record))
	return nil
}

// FixPlan prints the plan as Markdown.
func (p *Printer) FixPlan(plan query.Plan) error {
	if p.json {
		return p.encode(plan)
	}
	p.println(Markdown(plan))
	return nil
}

// Markdown renders plan as a Markdown document.
func Markdown(plan query.Plan) string {
	var b strings.Builder
	if plan.Empty() {
		b.WriteString("No errors to fix!")
		return b.String()
	}
	b.WriteString("# Error Fix Plan\n\n")
	writef(&b, "Total: %d errors, %d warnings\n\n", plan.TotalErrors, plan.TotalWarnings)

	b.WriteString("## Priority by Error Code (fix one type across all files):\n\n")
	for i, c := range plan.Codes {
		writef(&b, "%d. **%s** - %d occurrences in %d files\n", i+1, c.Code, c.Count, len(c.AffectedFiles))
		if c.Example != nil {
			writef(&b, "   Example: %s...\n", truncate(c.Example.Description, 70))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Priority by File (fix all errors in one file):\n\n")
	for i, f := range plan.Files {
		writef(&b, "%d. **%s** - %d errors, %d warnings\n", i+1, f.File, f.Errors, f.Warnings)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Search prints full-text search hits.
func (p *Printer) Search(text string, results []index.SearchResult) error {
	if p.json {
		return p.encode(results)
	}
	if len(results) == 0 {
		p.printf("No diagnostics match '%s'\n", text)
		return nil
	}
	p.printf("Found %d diagnostics matching '%s':\n\n", len(results), text)
	for _, r := range results {
		code := ""
		if r.Code != "" {
			code = "[" + r.Code + "]"
		}
		p.printf("#%3d %s%s: %s:%d - %s\n",
			r.Index, paint(r.Kind, string(r.Kind)), code, fileColor.Sprint(r.File), r.Line, truncate(r.Description, 80))
		if r.Snippet != "" {
			p.printf("      %s\n", r.Snippet)
		}
	}
	return nil
}
