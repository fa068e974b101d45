package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/triage/internal/diagservice"
	"github.com/starford/triage/internal/storage"
	"github.com/starford/triage/internal/testutil"
)

func testServer(t *testing.T, parsed bool) *Server {
	t.Helper()
	_, store := testutil.TestStore(t, storage.FormatJSON)
	svc := diagservice.New(store, diagservice.WithIndex(testutil.TestDB(t)))
	if parsed {
		if _, err := svc.Ingest(context.Background(), []byte(testutil.CargoOutput)); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	return New(svc, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are called directly.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"summary":             srv.summary,
		"top_files":           srv.topFiles,
		"top_codes":           srv.topCodes,
		"diagnostics_by_file": srv.byFile,
		"diagnostics_by_code": srv.byCode,
		"diagnostic_detail":   srv.detail,
		"next_diagnostic":     srv.next,
		"fix_plan":            srv.fixPlan,
		"search_diagnostics":  srv.search,
		"reparse":             srv.reparse,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSummary_NoSnapshot(t *testing.T) {
	srv := testServer(t, false)
	r := callTool(t, srv, "summary", nil)
	if !r.IsError {
		t.Fatal("expected tool error before the first parse")
	}
	if !strings.Contains(resultText(r), "run 'build' or 'parse' first") {
		t.Errorf("text = %q", resultText(r))
	}
}

func TestSummary(t *testing.T) {
	r := callTool(t, testServer(t, true), "summary", nil)
	var o map[string]any
	if err := json.Unmarshal([]byte(resultText(r)), &o); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if o["total_entries"] != float64(7) || o["total_errors"] != float64(4) {
		t.Errorf("summary = %v", o)
	}
}

func TestTopFiles_Args(t *testing.T) {
	r := callTool(t, testServer(t, true), "top_files", map[string]any{"n": float64(1), "only_errors": true})
	var files []map[string]any
	_ = json.Unmarshal([]byte(resultText(r)), &files)
	if len(files) != 1 || files[0]["file"] != "src/lib.rs" {
		t.Errorf("files = %v", files)
	}
}

func TestTopCodes_OnlyErrors(t *testing.T) {
	r := callTool(t, testServer(t, true), "top_codes", map[string]any{"only_errors": true})
	var codes []map[string]any
	_ = json.Unmarshal([]byte(resultText(r)), &codes)
	if len(codes) != 2 || codes[0]["code"] != "error[E0308]" {
		t.Errorf("codes = %v", codes)
	}
}

func TestByFile_Suggests(t *testing.T) {
	srv := testServer(t, true)
	r := callTool(t, srv, "diagnostics_by_file", map[string]any{"file": "lb.rs"})
	if r.IsError || !strings.Contains(resultText(r), "src/lib.rs") {
		t.Errorf("text = %q", resultText(r))
	}

	r = callTool(t, srv, "diagnostics_by_file", map[string]any{})
	if !r.IsError {
		t.Error("missing file argument should be a tool error")
	}
}

func TestByCode(t *testing.T) {
	r := callTool(t, testServer(t, true), "diagnostics_by_code", map[string]any{"code": "ERROR[e0308]", "limit": float64(2)})
	var m map[string]any
	_ = json.Unmarshal([]byte(resultText(r)), &m)
	if m["total"] != float64(3) || m["omitted"] != float64(1) {
		t.Errorf("match = %v", m)
	}
}

func TestDetail(t *testing.T) {
	srv := testServer(t, true)
	r := callTool(t, srv, "diagnostic_detail", map[string]any{"index": float64(2)})
	if !strings.Contains(resultText(r), `"code": "E0425"`) {
		t.Errorf("text = %q", resultText(r))
	}

	r = callTool(t, srv, "diagnostic_detail", map[string]any{"index": float64(42)})
	if !r.IsError || !strings.Contains(resultText(r), "valid range: 0..6") {
		t.Errorf("out of range: %q", resultText(r))
	}
}

func TestNextAndFixPlan(t *testing.T) {
	srv := testServer(t, true)
	r := callTool(t, srv, "next_diagnostic", nil)
	if !strings.Contains(resultText(r), `"file": "src/lib.rs"`) {
		t.Errorf("next = %q", resultText(r))
	}
	r = callTool(t, srv, "fix_plan", nil)
	if !strings.HasPrefix(resultText(r), "# Error Fix Plan") {
		t.Errorf("plan = %q", resultText(r))
	}
}

func TestSearch(t *testing.T) {
	r := callTool(t, testServer(t, true), "search_diagnostics", map[string]any{"query": "height"})
	var results []map[string]any
	if err := json.Unmarshal([]byte(resultText(r)), &results); err != nil {
		t.Fatalf("invalid JSON %q: %v", resultText(r), err)
	}
	if len(results) != 1 || results[0]["index"] != float64(2) {
		t.Errorf("results = %v", results)
	}
}

func TestReparse(t *testing.T) {
	srv := testServer(t, false)
	r := callTool(t, srv, "reparse", nil)
	if !r.IsError {
		t.Error("reparse without a capture should fail")
	}
	r = callTool(t, srv, "reparse", map[string]any{"output": "warning: unused\n --> a.rs:1:1\n"})
	if r.IsError || !strings.Contains(resultText(r), `"total_entries": 1`) {
		t.Errorf("reparse = %q", resultText(r))
	}
}

func TestWorkflowResource(t *testing.T) {
	srv := testServer(t, false)
	contents, err := srv.readWorkflowResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != WorkflowURI || !strings.Contains(tc.Text, "fix_plan") {
		t.Errorf("resource = %+v", contents[0])
	}
}
