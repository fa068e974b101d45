// Package report renders query answers as terminal text or indented JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/starford/triage/internal/models"
)

const rule = "============================================================"

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	fileColor    = color.New(color.FgCyan)
	headingColor = color.New(color.Bold)
)

// Printer writes one answer per call, as text or, with JSON set, as indented JSON.
type Printer struct {
	w    io.Writer
	json bool
}

// New returns a Printer writing to w.
func New(w io.Writer, asJSON bool) *Printer {
	return &Printer{w: w, json: asJSON}
}

// SetColor forces colour on or off for every Printer.
func SetColor(enabled bool) {
	color.NoColor = !enabled
}

func (p *Printer) encode(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	_, err = fmt.Fprintf(p.w, "%s\n", data)
	return err
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) println(args ...any) {
	fmt.Fprintln(p.w, args...)
}

// paint colours text by the severity of k.
func paint(k models.Kind, text string) string {
	if k == models.KindError {
		return errorColor.Sprint(text)
	}
	return warningColor.Sprint(text)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func position(r *models.Record) (file string, line, col int) {
	if r.Location == nil {
		return "", 0, 0
	}
	return r.Location.File, r.Location.Line, r.Location.Column
}

// SimpleLine renders r on one line: "#  3 error[E0308]: src/lib.rs:10 - mismatched types".
func SimpleLine(r *models.Record) string {
	code := ""
	if r.Code != "" {
		code = "[" + r.Code + "]"
	}
	file, line, _ := position(r)
	return fmt.Sprintf("#%3d %s%s: %s:%d - %s",
		r.Index, paint(r.Kind, string(r.Kind)), code, fileColor.Sprint(file), line, truncate(r.Description, 80))
}

// DetailBlock renders every field of r between two rules.
func DetailBlock(r *models.Record) string {
	var b strings.Builder
	file, line, col := position(r)
	code := r.Code
	if code == "" {
		code = "N/A"
	}

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Index: %d\n", r.Index)
	fmt.Fprintf(&b, "Type: %s\n", paint(r.Kind, strings.ToUpper(string(r.Kind))))
	fmt.Fprintf(&b, "Code: %s\n", code)
	fmt.Fprintf(&b, "File: %s\n", fileColor.Sprint(file))
	fmt.Fprintf(&b, "Line: %d, Column: %d\n", line, col)
	fmt.Fprintf(&b, "\nDescription:\n  %s\n", r.Description)

	section := func(title, bullet string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s:\n", title)
		for _, it := range items {
			fmt.Fprintf(&b, "  %s%s\n", bullet, it)
		}
	}
	section("Code context", "", r.CodeContext)
	section("Notes", "- ", r.Notes)
	section("Help", "- ", r.Helps)

	b.WriteString(rule)
	return b.String()
}

func writef(b *strings.Builder, format string, args ...any) {
	fmt.Fprintf(b, format, args...)
}

// JSON reports whether the printer emits JSON.
func (p *Printer) JSON() bool {
	return p.json
}
