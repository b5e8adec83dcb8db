package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/epgkit/certify/internal/grabber"
	"github.com/epgkit/certify/internal/report"
	"github.com/epgkit/certify/internal/validate"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type validateParams struct {
	Name       string `json:"name,omitempty" jsonschema:"display name of the grabber, e.g. tv_grab_example"`
	Command    string `json:"command,omitempty" jsonschema:"command line that invokes the grabber"`
	ConfigFile string `json:"config_file,omitempty" jsonschema:"path to the grabber's configuration file"`
	ShareDir   string `json:"share_dir,omitempty" jsonschema:"shared-metadata directory, passed via --share when the grabber advertises the share capability"`
	Cache      bool   `json:"cache,omitempty" jsonschema:"pass a cache directory via --cache when the grabber advertises the cache capability"`
}

func (h *handler) validateHandler(ctx context.Context, req *mcp.CallToolRequest, params validateParams) (*mcp.CallToolResult, any, error) {
	g, err := grabberFromParams(params)
	if err != nil {
		return errorResult(err.Error())
	}

	rep, err := h.engine.Validate(ctx, g, h.artifactPrefix(g.Name))
	if err != nil {
		var interrupted validate.ErrInterrupted
		if errors.As(err, &interrupted) {
			return errorResult("validation abandoned: " + interrupted.Error())
		}
		return errorResult(fmt.Sprintf("validation failed: %v", err))
	}

	_ = h.store.Save(rep)

	return textResult(formatReport(rep))
}

func grabberFromParams(params validateParams) (grabber.Config, error) {
	if params.Name == "" {
		return grabber.Config{}, errors.New("name is required")
	}
	if params.Command == "" {
		return grabber.Config{}, errors.New("command is required")
	}
	if params.ConfigFile == "" {
		return grabber.Config{}, errors.New("config_file is required")
	}
	return grabber.Config{
		Name:       params.Name,
		Command:    params.Command,
		ConfigFile: params.ConfigFile,
		ShareDir:   params.ShareDir,
		UseCache:   params.Cache,
	}, nil
}

func (h *handler) artifactPrefix(name string) string {
	return filepath.Join(h.workdir, name)
}

func formatReport(rep *report.Report) string {
	var b strings.Builder

	if rep.Pass() {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	fmt.Fprintf(&b, "Run: %s\n", rep.ID)
	fmt.Fprintf(&b, "Grabber: %s\n", rep.Grabber)
	fmt.Fprintf(&b, "Command log: %s\n", rep.LogPath)
	fmt.Fprintln(&b)

	if rep.Pass() {
		fmt.Fprintln(&b, "All checks passed.")
		return b.String()
	}

	fmt.Fprintln(&b, "Errors:")
	for _, f := range rep.Findings {
		if f.Diagnostic != "" {
			fmt.Fprintf(&b, "  %s - %s\n", f.Code, f.Diagnostic)
		} else {
			fmt.Fprintf(&b, "  %s\n", f.Code)
		}
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Inspect with cert_inspect(run_id=%q).\n", rep.ID)

	return b.String()
}
