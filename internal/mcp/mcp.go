// Package mcp provides the certify MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"time"

	"github.com/epgkit/certify"
	"github.com/epgkit/certify/internal/config"
	"github.com/epgkit/certify/internal/report"
	"github.com/epgkit/certify/internal/validate"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	engine  *validate.Engine
	store   report.Store
	workdir string // artifact files are written under here
}

// NewServer creates an MCP server with all certify tools registered.
func NewServer(eng *validate.Engine, store report.Store, workdir string) *mcp.Server {
	h := &handler{
		engine:  eng,
		store:   store,
		workdir: workdir,
	}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkdirFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "certify", Version: certify.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cert_validate",
		Description: `Run the full validation pipeline against a grabber and return its error codes.

Probes the self-description commands, checks the configuration file, grabs a combined
and two split date ranges, validates the output, and verifies the additive-output
invariant. Fatal failures abort the remaining checks. Results are stored for
drill-down via cert_inspect.`,
	}, h.validateHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cert_probe",
		Description: `Probe a grabber's self-description commands only (no data is grabbed).

Runs the negative control, --version, --description, and --capabilities checks and
reports missing required capabilities. Use this for a quick contract check before a
full cert_validate run.`,
	}, h.probeHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cert_tools",
		Description: `Report availability of the external listings tools certify depends on
(file validator, concatenator, sorter) as configured in .certify.`,
	}, h.toolsHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cert_inspect",
		Description: `Drill into a stored cert_validate or cert_probe run.

Use the run_id from the tool output. Optionally filter by a single error code
(e.g. "graberror") to see its diagnostics.`,
	}, h.inspectHandler)

	return s
}

// updateWorkdirFromRoots queries the client for MCP roots and moves the
// artifact directory there if a valid root is returned. This is called
// during session initialization, before any tool calls.
func (h *handler) updateWorkdirFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workdir := u.Path

	cfg, err := config.Load(workdir)
	if err != nil {
		return
	}

	h.workdir = workdir
	h.engine.Config = cfg
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
