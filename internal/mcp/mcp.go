// Package mcp provides the apptest MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"io"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/apptest"
	"github.com/deixis/apptest/internal/config"
	"github.com/deixis/apptest/internal/report"
	"github.com/deixis/apptest/internal/runner"
	"github.com/deixis/apptest/internal/workflow"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	store  report.Store
	logger *log.Logger

	mu        sync.Mutex
	runner    runner.Runner // template copied into each engine
	workspace string        // base for relative paths
}

// NewServer creates an MCP server with all apptest tools registered.
// Relative paths in tool arguments are resolved against workspace until
// the client announces a root.
func NewServer(cfg *config.Config, store report.Store, workspace string, logger *log.Logger) *mcp.Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	h := &handler{
		store:     store,
		logger:    logger,
		workspace: workspace,
	}
	h.configure(cfg)

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "apptest", Version: apptest.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "apptest_list",
		Description: `Expand a suite and list the command line of every case without running anything.

Cases whose binary cannot be located are listed with the lookup error.`,
	}, h.listHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "apptest_run",
		Description: `Run an acceptance suite against built programs and report every case verdict.

Cases run sequentially. A failing case never stops the run. The result carries a run id
for drill-down via apptest_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "apptest_inspect",
		Description: `Drill into one case of a recent apptest_run result.

Shows every check of the case with its full diagnostic. Without a case name, lists the failed cases.`,
	}, h.inspectHandler)

	return s
}

func (h *handler) configure(cfg *config.Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runner = runner.Runner{
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
		Logger:    h.logger,
	}
}

// engine returns an engine for one tool call and the workspace its
// relative paths are resolved against.
func (h *handler) engine() (*workflow.Engine, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.runner
	return &workflow.Engine{Runner: &r, Logger: h.logger}, h.workspace
}

// updateWorkspaceFromRoots queries the client for MCP roots and switches
// the workspace and config to the first file root, if any.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		h.logger.Warn("ignoring client root", "root", workspace, "err", err)
		return
	}
	h.configure(loaded.Config)

	h.mu.Lock()
	h.workspace = workspace
	h.mu.Unlock()
}

// suiteParams are the arguments shared by apptest_list and apptest_run.
type suiteParams struct {
	SourceRoot string   `json:"source_root" jsonschema:"source tree holding the fixture directory"`
	BinaryRoot string   `json:"binary_root" jsonschema:"build tree holding the programs under test"`
	Suite      string   `json:"suite,omitempty" jsonschema:"suite file. Defaults to apptest.yaml in tests_dir"`
	TestsDir   string   `json:"tests_dir,omitempty" jsonschema:"fixture directory relative to source_root, used to find the default suite"`
	Cases      []string `json:"cases,omitempty" jsonschema:"case name patterns (e.g. fiona_illumina.*). Defaults to every case"`
}

func (p suiteParams) request(workspace string) workflow.Request {
	abs := func(path string) string {
		if path == "" || filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(workspace, path)
	}
	return workflow.Request{
		SourceRoot: abs(p.SourceRoot),
		BinaryRoot: abs(p.BinaryRoot),
		Suite:      abs(p.Suite),
		TestsDir:   p.TestsDir,
		Cases:      p.Cases,
	}
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
