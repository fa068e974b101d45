package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/starford/triage/internal/diagservice"
	"github.com/starford/triage/internal/models"
	"github.com/starford/triage/internal/query"
	"github.com/starford/triage/internal/testutil"
)

func init() {
	color.NoColor = true
}

func engine(t *testing.T) *query.Engine {
	t.Helper()
	return query.New(testutil.Snapshot(t, testutil.CargoOutput))
}

func TestSimpleLine(t *testing.T) {
	r := &models.Record{
		Index:       3,
		Kind:        models.KindError,
		Code:        "E0308",
		Description: "mismatched types",
		Location:    &models.Location{File: "src/lib.rs", Line: 10, Column: 5},
	}
	got := SimpleLine(r)
	want := "#  3 error[E0308]: src/lib.rs:10 - mismatched types"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSimpleLine_NoLocationNoCode(t *testing.T) {
	r := &models.Record{Index: 12, Kind: models.KindWarning, Description: strings.Repeat("x", 100)}
	got := SimpleLine(r)
	want := "# 12 warning: :0 - " + strings.Repeat("x", 80)
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDetailBlock(t *testing.T) {
	r := &models.Record{
		Index:       2,
		Kind:        models.KindError,
		Code:        "E0425",
		Description: "cannot find value",
		Location:    &models.Location{File: "src/lib.rs", Line: 14, Column: 9},
		Notes:       []string{},
		Helps:       []string{"a local variable with a similar name exists"},
		CodeContext: []string{"height"},
	}
	got := DetailBlock(r)
	for _, want := range []string{
		"Index: 2\n",
		"Type: ERROR\n",
		"Code: E0425\n",
		"File: src/lib.rs\n",
		"Line: 14, Column: 9\n",
		"Description:\n  cannot find value\n",
		"Code context:\n  height\n",
		"Help:\n  - a local variable with a similar name exists\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Notes:") {
		t.Error("empty notes section should be omitted")
	}
	if !strings.HasPrefix(got, rule+"\n") || !strings.HasSuffix(got, "\n"+rule) {
		t.Error("block should be framed by rules")
	}
	if len(rule) != 60 {
		t.Errorf("rule width = %d, want 60", len(rule))
	}
}

func TestDetailBlock_Uncoded(t *testing.T) {
	got := DetailBlock(&models.Record{Kind: models.KindWarning, Description: "x"})
	if !strings.Contains(got, "Code: N/A\n") || !strings.Contains(got, "Type: WARNING\n") {
		t.Errorf("got:\n%s", got)
	}
}

func TestSummaryText(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, false).Summary(engine(t).Summary()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "Total: 7 (4 errors, 3 warnings)\n") {
		t.Errorf("header = %q", out)
	}
	if !strings.Contains(out, "    3 | src/lib.rs\n") {
		t.Errorf("missing top file line:\n%s", out)
	}
	if !strings.Contains(out, "    3 | error[E0308]\n") {
		t.Errorf("missing code line:\n%s", out)
	}
}

func TestTopFilesTable(t *testing.T) {
	var buf bytes.Buffer
	_ = New(&buf, false).TopFiles(10, engine(t).TopFiles(10, false))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if lines[0] != "Top 10 files by error count:" {
		t.Errorf("title = %q", lines[0])
	}
	if lines[2] != "Total  Err Warn  File" {
		t.Errorf("columns = %q", lines[2])
	}
	if lines[4] != "    3    3    0  src/lib.rs" {
		t.Errorf("first row = %q", lines[4])
	}
}

func TestCodeMatches_Omitted(t *testing.T) {
	var buf bytes.Buffer
	m := engine(t).ByCode("error[e0308]", 2)
	_ = New(&buf, false).CodeMatches(m, false)
	out := buf.String()
	if !strings.HasPrefix(out, "Found 3 errors with code 'E0308':\n\n") {
		t.Errorf("header = %q", out)
	}
	if !strings.HasSuffix(out, "\n... and 1 more. Use --limit to see more.\n") {
		t.Errorf("footer missing:\n%s", out)
	}
}

func TestCodeMatches_None(t *testing.T) {
	var buf bytes.Buffer
	_ = New(&buf, false).CodeMatches(engine(t).ByCode("E9999", 0), false)
	if buf.String() != "No errors found with code 'E9999'\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestFileMatches_Suggestions(t *testing.T) {
	var buf bytes.Buffer
	_ = New(&buf, false).FileMatches("lb.rs", nil, false, []string{"src/lib.rs"})
	out := buf.String()
	if !strings.Contains(out, "No errors found in files matching 'lb.rs'") || !strings.Contains(out, "  src/lib.rs\n") {
		t.Errorf("got:\n%s", out)
	}
}

func TestNext(t *testing.T) {
	step, err := engine(t).Next()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	_ = New(&buf, false).Next(step)
	if !strings.HasPrefix(buf.String(), "Next error to fix (from top file: src/lib.rs):\n\n") {
		t.Errorf("got:\n%s", buf.String())
	}

	buf.Reset()
	_ = New(&buf, false).Next(nil)
	if buf.String() != "No actionable errors found.\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(engine(t).FixPlan())
	for _, want := range []string{
		"# Error Fix Plan\n\nTotal: 4 errors, 3 warnings\n",
		"1. **error[E0308]** - 3 occurrences in 2 files\n   Example: mismatched types...\n",
		"2. **error[E0425]** - 1 occurrences in 1 files\n",
		"## Priority by File (fix all errors in one file):\n\n1. **src/lib.rs** - 3 errors, 0 warnings",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q in:\n%s", want, md)
		}
	}
	if strings.Contains(md, "**warning**") {
		t.Error("warning codes must not be planned")
	}
}

func TestMarkdown_Empty(t *testing.T) {
	if got := Markdown(query.Plan{}); got != "No errors to fix!" {
		t.Errorf("got %q", got)
	}
}

func TestJSONMode(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, true)
	if err := p.Parsed(&diagservice.ParseResult{Entries: 7, Errors: 4, Warnings: 3}, nil); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if got["total_entries"] != float64(7) {
		t.Errorf("got %v", got)
	}

	buf.Reset()
	_ = p.FileMatches("nothing", []models.Record{}, false, nil)
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty match should encode as [], got %q", buf.String())
	}
}

func TestParsed_StaleIndex(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, false)
	res := &diagservice.ParseResult{Entries: 1, Errors: 1, IndexStale: true}
	if err := p.Parsed(res, []string{"errors_simple.json"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "  - search index not updated, see the log\n") {
		t.Errorf("output = %q", buf.String())
	}
}
