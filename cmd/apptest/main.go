// Command apptest runs golden-output acceptance suites against built
// command-line programs.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/deixis/apptest"
	"github.com/deixis/apptest/internal/caseerr"
	"github.com/deixis/apptest/internal/config"
	appmcp "github.com/deixis/apptest/internal/mcp"
	"github.com/deixis/apptest/internal/report"
	"github.com/deixis/apptest/internal/runner"
	"github.com/deixis/apptest/internal/workflow"
)

// exitCode ends the process with a status but no message.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}

	var code exitCode
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	fmt.Fprintf(os.Stderr, "apptest: %v\n", err)
	if caseerr.KindOf(err) == caseerr.HarnessFault {
		os.Exit(caseerr.HarnessFault.ExitCode())
	}
	// Usage, configuration and environment errors.
	os.Exit(2)
}

// app holds state shared by all subcommands.
type app struct {
	verbose bool
	cfg     *config.Config
	logger  *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "apptest",
		Short:         "Golden-output acceptance tests for command-line programs",
		Version:       apptest.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output and debug logging")

	root.AddCommand(a.runCmd(), a.listCmd(), a.mcpCmd(), versionCmd())
	return root
}

// setup loads the .apptest file nearest to the working directory and
// builds the diagnostic logger.
func (a *app) setup() error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining working directory: %w", err)
	}
	loaded, err := config.Load(wd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = loaded.Config

	level := a.cfg.LogLevel()
	if a.verbose {
		level = log.DebugLevel
	}
	a.logger = log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		Prefix:          "apptest",
		ReportTimestamp: a.verbose,
	})
	if loaded.Path != "" {
		a.logger.Debug("loaded config", "path", loaded.Path)
	}
	return nil
}

func (a *app) engine(timeout time.Duration) *workflow.Engine {
	if timeout <= 0 {
		timeout = a.cfg.Timeout()
	}
	return &workflow.Engine{
		Runner: &runner.Runner{
			Timeout:   timeout,
			MaxOutput: a.cfg.MaxOutputBytes(),
			Logger:    a.logger,
		},
		Logger: a.logger,
	}
}

// suiteFlags are shared by run and list.
type suiteFlags struct {
	suite    string
	testsDir string
	cases    []string
}

func (f *suiteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.suite, "suite", "", "suite file (default: apptest.yaml in --tests-dir)")
	cmd.Flags().StringVar(&f.testsDir, "tests-dir", "", "fixture directory relative to SOURCE_ROOT holding the default suite")
	cmd.Flags().StringArrayVar(&f.cases, "run", nil, "only run cases matching this name pattern (repeatable)")
}

func (f *suiteFlags) request(args []string) workflow.Request {
	return workflow.Request{
		SourceRoot: args[0],
		BinaryRoot: args[1],
		Suite:      f.suite,
		TestsDir:   f.testsDir,
		Cases:      f.cases,
	}
}

// --- run ---

func (a *app) runCmd() *cobra.Command {
	var (
		sf      suiteFlags
		timeout time.Duration
		noColor bool
	)
	cmd := &cobra.Command{
		Use:   "run SOURCE_ROOT BINARY_ROOT",
		Short: "Run a suite and print every case verdict",
		Long: `Run every case of a suite against the programs built under BINARY_ROOT.

Exit status is 0 when every case passed, 1 when a case failed, 10 when the
harness itself failed and 2 on usage or configuration errors.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			colored := a.cfg.Colored(!color.NoColor) && !noColor
			p := report.NewPrinter(cmd.OutOrStdout(), colored, a.verbose)

			rep, err := a.engine(timeout).Run(ctx, sf.request(args), p)
			if err != nil {
				return err
			}
			if code := rep.ExitCode(); code != 0 {
				return exitCode(code)
			}
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "default per-case timeout (overrides the configured timeout)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

// --- list ---

func (a *app) listCmd() *cobra.Command {
	var sf suiteFlags
	cmd := &cobra.Command{
		Use:   "list SOURCE_ROOT BINARY_ROOT",
		Short: "Print the command line of every case without running it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			listing, err := a.engine(0).List(sf.request(args))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, l := range listing {
				fmt.Fprintf(w, "%s\n    %s\n", l.Name, l)
			}
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

// --- mcp ---

func (a *app) mcpCmd() *cobra.Command {
	var (
		httpAddr     string
		instructions bool
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server (stdio by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if instructions {
				fmt.Fprint(cmd.OutOrStdout(), appmcp.Instructions)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.serve(ctx, httpAddr)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "start HTTP server on address (e.g. :9090)")
	cmd.Flags().BoolVar(&instructions, "instructions", false, "print model instructions and exit")
	return cmd
}

func (a *app) serve(ctx context.Context, httpAddr string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}

	store := report.NewLRUStore(5)
	server := appmcp.NewServer(a.cfg, store, workspace, a.logger)

	if httpAddr != "" {
		return a.serveHTTP(ctx, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func (a *app) serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	a.logger.Info("listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- version ---

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), apptest.Version)
		},
	}
}
