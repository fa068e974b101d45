// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes triage queries as tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/triage/internal/apperr"
	"github.com/starford/triage/internal/diagservice"
	"github.com/starford/triage/internal/query"
	"github.com/starford/triage/internal/report"
)

// Server wraps the MCP server with triage tools.
type Server struct {
	mcp *server.MCPServer
	svc *diagservice.Service
}

// New creates a new MCP server with all triage tools registered.
func New(svc *diagservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"triage",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("summary",
		mcp.WithDescription("Totals of the last parse with the top 5 files and diagnostic codes. Start here."),
	), s.summary)

	s.mcp.AddTool(mcp.NewTool("top_files",
		mcp.WithDescription("Files ranked by diagnostic count."),
		mcp.WithNumber("n", mcp.Description("Number of files (default 10)")),
		mcp.WithBoolean("only_errors", mcp.Description("Drop files without errors and rank by error count")),
	), s.topFiles)

	s.mcp.AddTool(mcp.NewTool("top_codes",
		mcp.WithDescription("Diagnostic code keys such as error[E0308] ranked by occurrence count."),
		mcp.WithNumber("n", mcp.Description("Number of codes (default 10)")),
		mcp.WithBoolean("only_errors", mcp.Description("Keep error codes only")),
	), s.topCodes)

	s.mcp.AddTool(mcp.NewTool("diagnostics_by_file",
		mcp.WithDescription("All diagnostics whose file path contains the given substring, in output order."),
		mcp.WithString("file", mcp.Required(), mcp.Description("File path substring, e.g. src/lib.rs")),
		mcp.WithBoolean("only_errors", mcp.Description("Drop warnings")),
	), s.byFile)

	s.mcp.AddTool(mcp.NewTool("diagnostics_by_code",
		mcp.WithDescription("Diagnostics with the given code. E0308, error[E0308] and ERROR[e0308] are equivalent."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Diagnostic code")),
		mcp.WithNumber("limit", mcp.Description("Maximum records returned (default 20)")),
	), s.byCode)

	s.mcp.AddTool(mcp.NewTool("diagnostic_detail",
		mcp.WithDescription("Full detail of one diagnostic: notes, help, code context, and the raw block."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Diagnostic index as shown by the other tools")),
	), s.detail)

	s.mcp.AddTool(mcp.NewTool("next_diagnostic",
		mcp.WithDescription("The diagnostic to fix next: the first error in the file with the most diagnostics."),
	), s.next)

	s.mcp.AddTool(mcp.NewTool("fix_plan",
		mcp.WithDescription("A Markdown fix plan prioritized by error code, then by file."),
	), s.fixPlan)

	s.mcp.AddTool(mcp.NewTool("search_diagnostics",
		mcp.WithDescription("Full-text search over descriptions, notes, help, and code context."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.search)

	s.mcp.AddTool(mcp.NewTool("reparse",
		mcp.WithDescription("Re-parse the captured build output. Pass output to replace the capture first."),
		mcp.WithString("output", mcp.Description("Raw build output; omit to re-parse the saved capture")),
	), s.reparse)

	s.mcp.AddResource(
		mcp.NewResource(WorkflowURI, "Fix Workflow",
			mcp.WithResourceDescription("How to work through compiler diagnostics with these tools."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readWorkflowResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError turns expected domain errors into tool errors the model can act on.
func toolError(err error) (*mcp.CallToolResult, error) {
	var rangeErr *apperr.OutOfRangeError
	switch {
	case errors.As(err, &rangeErr),
		errors.Is(err, apperr.ErrNoSnapshot),
		errors.Is(err, apperr.ErrNoCapture),
		errors.Is(err, apperr.ErrMalformedInput),
		errors.Is(err, apperr.ErrIndexDisabled):
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultError(fmt.Sprintf("internal error: %v", err)), nil
}

func (s *Server) engine() (*query.Engine, *mcp.CallToolResult) {
	eng, err := s.svc.Engine()
	if err != nil {
		res, _ := toolError(err)
		return nil, res
	}
	return eng, nil
}

func (s *Server) summary(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, failed := s.engine()
	if failed != nil {
		return failed, nil
	}
	return jsonResult(eng.Summary())
}

func (s *Server) topFiles(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, failed := s.engine()
	if failed != nil {
		return failed, nil
	}
	return jsonResult(eng.TopFiles(req.GetInt("n", 0), req.GetBool("only_errors", false)))
}

func (s *Server) topCodes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, failed := s.engine()
	if failed != nil {
		return failed, nil
	}
	return jsonResult(eng.TopCodes(req.GetInt("n", 0), req.GetBool("only_errors", false)))
}

func (s *Server) byFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	eng, failed := s.engine()
	if failed != nil {
		return failed, nil
	}
	records := eng.ByFile(file, req.GetBool("only_errors", false))
	if len(records) == 0 {
		msg := fmt.Sprintf("no diagnostics in files matching %q", file)
		if hints := eng.SuggestFiles(file, 5); len(hints) > 0 {
			msg += fmt.Sprintf("; did you mean one of %q?", hints)
		}
		return mcp.NewToolResultText(msg), nil
	}
	return jsonResult(records)
}

func (s *Server) byCode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	eng, failed := s.engine()
	if failed != nil {
		return failed, nil
	}
	return jsonResult(eng.ByCode(code, req.GetInt("limit", 0)))
}

func (s *Server) detail(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	i, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	eng, failed := s.engine()
	if failed != nil {
		return failed, nil
	}
	rec, err := eng.ByIndex(i)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(rec)
}

func (s *Server) next(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, failed := s.engine()
	if failed != nil {
		return failed, nil
	}
	step, err := eng.Next()
	if errors.Is(err, apperr.ErrNoActionable) {
		return mcp.NewToolResultText("No actionable errors found."), nil
	}
	if err != nil {
		return toolError(err)
	}
	return jsonResult(step)
}

func (s *Server) fixPlan(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, failed := s.engine()
	if failed != nil {
		return failed, nil
	}
	return mcp.NewToolResultText(report.Markdown(eng.FixPlan())), nil
}

func (s *Server) search(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(q, req.GetInt("limit", 0))
	if err != nil {
		return toolError(err)
	}
	return jsonResult(results)
}

func (s *Server) reparse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		res *diagservice.ParseResult
		err error
	)
	if output := req.GetString("output", ""); output != "" {
		res, err = s.svc.Ingest(ctx, []byte(output))
	} else {
		res, err = s.svc.Parse(ctx)
	}
	if err != nil {
		return toolError(err)
	}
	return jsonResult(res)
}

func (s *Server) readWorkflowResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      WorkflowURI,
			MIMEType: "text/markdown",
			Text:     Workflow,
		},
	}, nil
}
