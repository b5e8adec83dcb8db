package mcp

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type toolsParams struct{}

// toolsHandler summarises availability of the external listings tools the
// pipeline calls out to, as configured in .certify.
func (h *handler) toolsHandler(ctx context.Context, req *sdkmcp.CallToolRequest, _ toolsParams) (*sdkmcp.CallToolResult, any, error) {
	cfg := h.engine.Config

	var b strings.Builder
	fmt.Fprintf(&b, "Timeout: %s\n", cfg.Timeout())
	fmt.Fprintf(&b, "Artifact directory: %s\n", h.workdir)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "External tools:")
	writeToolLine(&b, "validator", cfg.ValidateFileCommand())
	writeToolLine(&b, "concatenator", cfg.CatCommand())
	writeToolLine(&b, "sorter", cfg.SortCommand())

	return textResult(b.String())
}

func writeToolLine(b *strings.Builder, role, command string) {
	// Commands may carry flags; only the binary is resolved.
	binary := strings.Fields(command)[0]
	if path, err := exec.LookPath(binary); err == nil {
		fmt.Fprintf(b, "  %-13s %s (%s)\n", role, command, path)
	} else {
		fmt.Fprintf(b, "  %-13s %s (not found in PATH)\n", role, command)
	}
}
