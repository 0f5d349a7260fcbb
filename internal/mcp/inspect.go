package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/apptest/internal/report"
)

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from an apptest_run result"`
	Case  string `json:"case,omitempty" jsonschema:"case name as printed by apptest_run. Omit to list the failed cases"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	rep, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	if params.Case == "" {
		return textResult(formatFailedCases(rep))
	}
	c, ok := rep.Case(params.Case)
	if !ok {
		return errorResult(fmt.Sprintf("No case %q in run %s (suite %s).", params.Case, rep.ID, rep.Suite))
	}
	return textResult(formatInspectOutput(rep, c))
}

func formatFailedCases(rep *report.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s (%s)\n", rep.ID, rep.Suite)
	if rep.Failed() == 0 {
		fmt.Fprintf(&b, "All %d cases passed.\n", rep.Total())
		return b.String()
	}
	fmt.Fprintf(&b, "%d of %d cases failed:\n", rep.Failed(), rep.Total())
	for _, c := range rep.Cases {
		if c.Status != report.Failed {
			continue
		}
		var kinds []string
		for _, r := range c.Failures() {
			kinds = append(kinds, string(r.Kind))
		}
		fmt.Fprintf(&b, "  %s [%s]\n", c.Name, strings.Join(kinds, ", "))
	}
	return b.String()
}

func formatInspectOutput(rep *report.RunReport, c *report.CaseReport) string {
	var b strings.Builder

	// Run header.
	fmt.Fprintf(&b, "Run: %s (%s)\n", rep.ID, rep.Suite)

	// Case header.
	status := "PASS"
	if c.Status != report.Passed {
		status = "FAIL"
	}
	if c.Fault {
		status += " (harness fault)"
	}
	fmt.Fprintf(&b, "%s: %s in %s\n", c.Name, status, c.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Command: %s\n", c.CommandLine)
	fmt.Fprintln(&b)

	for _, r := range c.Results {
		if r.Passed {
			fmt.Fprintf(&b, "[ok] %s", r.Check)
			if r.Message != "" {
				fmt.Fprintf(&b, ": %s", r.Message)
			}
			fmt.Fprintln(&b)
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", r.Kind, r.Check)
		if r.Message != "" {
			for _, line := range strings.Split(strings.TrimRight(r.Message, "\n"), "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}
	return b.String()
}
