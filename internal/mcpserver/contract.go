package mcpserver

// WorkflowURI identifies the fix workflow resource.
const WorkflowURI = "triage://workflow"

// Workflow describes how an LLM consumer should work through a build's
// diagnostics with the triage tools.
const Workflow = `# Triage Fix Workflow

The tools answer questions about the last parsed build output. Indexes are
positions in that output and stay valid until the next ` + "`reparse`" + `.

## Loop

1. Call ` + "`summary`" + ` to see totals and where the diagnostics concentrate.
2. Call ` + "`fix_plan`" + ` for the prioritized plan. Fix one error code across all
   files when a single code dominates; otherwise fix one file at a time.
3. Call ` + "`next_diagnostic`" + ` for the concrete record to fix now, or
   ` + "`diagnostics_by_code`" + ` / ` + "`diagnostics_by_file`" + ` to batch similar fixes.
4. Call ` + "`diagnostic_detail`" + ` with an index when notes, help, or the code
   context are needed.
5. Rebuild, then call ` + "`reparse`" + ` (optionally passing the new output) and
   start again from step 1.

## Conventions

- Code keys look like ` + "`error[E0308]`" + `; uncoded diagnostics use the bare kind,
  ` + "`warning`" + ` or ` + "`error`" + `.
- ` + "`diagnostics_by_code`" + ` accepts ` + "`E0308`" + `, ` + "`error[E0308]`" + ` or ` + "`ERROR[e0308]`" + `.
- File filters are substring matches on the path exactly as the compiler printed it.
- Warnings rank below errors in ` + "`next_diagnostic`" + ` and never enter the code
  section of ` + "`fix_plan`" + `.
- A tool error saying no parsed data exists means the build has not been captured
  yet; ask the user to run ` + "`triage build`" + `.
`
