package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/apptest/internal/caseerr"
	"github.com/deixis/apptest/internal/report"
)

type runParams struct {
	SourceRoot string   `json:"source_root" jsonschema:"source tree holding the fixture directory"`
	BinaryRoot string   `json:"binary_root" jsonschema:"build tree holding the programs under test"`
	Suite      string   `json:"suite,omitempty" jsonschema:"suite file. Defaults to apptest.yaml in tests_dir"`
	TestsDir   string   `json:"tests_dir,omitempty" jsonschema:"fixture directory relative to source_root, used to find the default suite"`
	Cases      []string `json:"cases,omitempty" jsonschema:"case name patterns (e.g. fiona_illumina.*). Defaults to every case"`
	Verbose    bool     `json:"verbose,omitempty" jsonschema:"also list passing checks"`
}

func (p runParams) suite() suiteParams {
	return suiteParams{SourceRoot: p.SourceRoot, BinaryRoot: p.BinaryRoot, Suite: p.Suite, TestsDir: p.TestsDir, Cases: p.Cases}
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	eng, workspace := h.engine()
	rep, err := eng.Run(ctx, params.suite().request(workspace), nil)
	if err != nil {
		return errorResult(fmt.Sprintf("run failed (%s): %s", caseerr.KindOf(err), caseerr.Message(err)))
	}

	// Save results for apptest_inspect.
	if err := h.store.Save(rep); err != nil {
		h.logger.Warn("saving run", "run", rep.ID, "err", err)
	}

	return textResult(formatRun(rep, params.Verbose))
}

func formatRun(rep *report.RunReport, verbose bool) string {
	var b strings.Builder

	if rep.ExitCode() == 0 {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	b.WriteString(report.Format(rep, verbose))

	if rep.Failed() > 0 {
		fmt.Fprintln(&b)
		var names []string
		for _, c := range rep.Cases {
			if c.Status == report.Failed {
				names = append(names, c.Name)
			}
		}
		fmt.Fprintf(&b, "Failed cases: %s\n", strings.Join(names, ", "))
		fmt.Fprintf(&b, "Inspect with apptest_inspect(run_id=%q, case=\"<case name>\").\n", rep.ID)
	}
	return b.String()
}

func (h *handler) listHandler(ctx context.Context, req *mcp.CallToolRequest, params suiteParams) (*mcp.CallToolResult, any, error) {
	eng, workspace := h.engine()
	listing, err := eng.List(params.request(workspace))
	if err != nil {
		return errorResult(fmt.Sprintf("list failed (%s): %s", caseerr.KindOf(err), caseerr.Message(err)))
	}
	if len(listing) == 0 {
		return textResult("The suite has no cases.")
	}

	var b strings.Builder
	for _, l := range listing {
		fmt.Fprintf(&b, "%s: %s\n", l.Name, l)
	}
	return textResult(b.String())
}
