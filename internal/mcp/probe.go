package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/epgkit/certify/internal/grabber"
	"github.com/epgkit/certify/internal/validate"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// probeParams omit the config file: probing never grabs, so no grabber
// configuration is needed.
type probeParams struct {
	Name    string `json:"name,omitempty" jsonschema:"display name of the grabber, e.g. tv_grab_example"`
	Command string `json:"command,omitempty" jsonschema:"command line that invokes the grabber"`
}

func (h *handler) probeHandler(ctx context.Context, req *mcp.CallToolRequest, params probeParams) (*mcp.CallToolResult, any, error) {
	if params.Name == "" {
		return errorResult("name is required")
	}
	if params.Command == "" {
		return errorResult("command is required")
	}
	g := grabber.Config{Name: params.Name, Command: params.Command}

	rep, err := h.engine.Probe(ctx, g, h.artifactPrefix(g.Name))
	if err != nil {
		var interrupted validate.ErrInterrupted
		if errors.As(err, &interrupted) {
			return errorResult("probe abandoned: " + interrupted.Error())
		}
		return errorResult(fmt.Sprintf("probe failed: %v", err))
	}

	_ = h.store.Save(rep)

	return textResult(formatReport(rep))
}
