package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID string `json:"run_id,omitempty" jsonschema:"the run ID from a cert_validate or cert_probe result"`
	Code  string `json:"code,omitempty" jsonschema:"filter findings to a single error code, e.g. graberror"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	rep, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	findings := rep.Findings
	if params.Code != "" {
		findings = rep.ByCode(params.Code)
		if len(findings) == 0 {
			return textResult(fmt.Sprintf("No %s findings in run %s (%s).", params.Code, params.RunID, rep.Kind))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s (%s)\n", rep.ID, rep.Kind)
	fmt.Fprintf(&b, "Grabber: %s\n", rep.Grabber)
	fmt.Fprintf(&b, "Command log: %s\n", rep.LogPath)
	fmt.Fprintf(&b, "Duration: %s\n", rep.Duration)
	fmt.Fprintln(&b)

	if len(findings) == 0 {
		fmt.Fprintln(&b, "No findings recorded; the run passed.")
		return textResult(b.String())
	}

	fmt.Fprintf(&b, "Findings (%d):\n", len(findings))
	for _, f := range findings {
		if f.Diagnostic != "" {
			fmt.Fprintf(&b, "  %s - %s\n", f.Code, f.Diagnostic)
		} else {
			fmt.Fprintf(&b, "  %s\n", f.Code)
		}
	}

	return textResult(b.String())
}
