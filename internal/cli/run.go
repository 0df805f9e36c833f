package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ms05probe/internal/config"
	"github.com/roach88/ms05probe/internal/harness"
	"github.com/roach88/ms05probe/internal/ncp"
	"github.com/roach88/ms05probe/internal/schema"
	"github.com/roach88/ms05probe/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	URL           string
	SpecPaths     []string
	SpecBranch    string
	Database      string
	Timeout       time.Duration
	Interactive   bool
	ExcludedRoles []string
	Seed          int64

	// Client overrides the device connection (for testing).
	// If nil, a WebSocket client is used.
	Client ncp.Client

	// IDGenerator overrides run ids (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	IDGenerator store.IDGenerator

	// In is where interactive answers are read from. Defaults to stdin.
	In io.Reader
}

// RunReport is the output of one run.
type RunReport struct {
	RunID      string           `json:"run_id"`
	URL        string           `json:"url"`
	Results    []harness.Result `json:"results"`
	Summary    harness.Summary  `json:"summary"`
	ReportHash string           `json:"report_hash"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the device model checks against a device",
		Long: `Run the MS-05 device model checks against a device.

Settings come from the dotenv file, the environment (MS05_*), the
--profile file and finally the flags below. The run, its results and every
exchange with the device are recorded in the SQLite database.

The constraint check writes to the device. Use --exclude-role or
--interactive to keep it away from properties that must not change.

Exit codes:
  0 - No check failed
  1 - One or more checks failed
  2 - Command error (bad configuration, unreadable specs, etc.)

Examples:
  ms05probe run --url ws://192.168.1.20/x-nmos/ncp/v1.0 --spec ./ms-05-02
  ms05probe run --profile lab.yaml --interactive
  ms05probe run --profile lab.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "device IS-12 control endpoint (ws:// or wss://)")
	cmd.Flags().StringSliceVar(&opts.SpecPaths, "spec", nil, "MS-05 spec checkout holding models/ (repeatable)")
	cmd.Flags().StringVar(&opts.SpecBranch, "spec-branch", "", "MS-05-02 documentation branch for result links")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "wait for each device response")
	cmd.Flags().BoolVar(&opts.Interactive, "interactive", false, "prompt before writing to the device")
	cmd.Flags().StringSliceVar(&opts.ExcludedRoles, "exclude-role", nil, "object role the constraint check must not write (repeatable)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "seed for pattern string generation")

	return cmd
}

// applyFlags overrides cfg with every flag set on the command line.
func (opts *RunOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.URL = opts.URL
	}
	if flags.Changed("spec") {
		cfg.SpecPaths = opts.SpecPaths
	}
	if flags.Changed("spec-branch") {
		cfg.SpecBranch = opts.SpecBranch
	}
	if flags.Changed("db") {
		cfg.Database = opts.Database
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.Timeout
	}
	if flags.Changed("interactive") {
		cfg.Interactive = opts.Interactive
	}
	if flags.Changed("exclude-role") {
		cfg.ExcludedRoles = opts.ExcludedRoles
	}
	if flags.Changed("seed") {
		cfg.Seed = opts.Seed
	}
}

func runSuite(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	opts.applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	var reference *schema.Reference
	if len(cfg.SpecPaths) > 0 {
		reference, err = schema.LoadReference(cfg.SpecPaths)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load reference models", err)
		}
		logger.Info("reference models loaded",
			"classes", len(reference.Classes),
			"datatypes", len(reference.Datatypes),
		)
	} else {
		logger.Warn("no spec paths configured, definition checks will be inconclusive")
	}

	var storeOpts []store.Option
	if opts.IDGenerator != nil {
		storeOpts = append(storeOpts, store.WithIDGenerator(opts.IDGenerator))
	}
	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database, storeOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	runID, err := st.BeginRun(ctx, cfg.URL, cfg.SpecBranch, time.Now())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to record run", err)
	}
	logger.Info("run started", "run", runID, "url", cfg.URL)

	client, err := deviceClient(opts, cfg, st.Recorder(runID), logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create device client", err)
	}

	suiteOpts := []harness.Option{harness.WithLogger(logger)}
	if cfg.Interactive {
		suiteOpts = append(suiteOpts, harness.WithQuestion(newQuestion(opts, cmd, cfg)))
	}
	results := harness.New(client, harness.Config{
		URL:           cfg.URL,
		SpecBranch:    cfg.SpecBranch,
		Reference:     reference,
		Interactive:   cfg.Interactive,
		ExcludedRoles: cfg.ExcludedRoles,
		Seed:          cfg.Seed,
	}, suiteOpts...).Run(ctx)

	hash, err := harness.ReportHash(results)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash report", err)
	}
	// Persist even when the run was interrupted.
	if err := st.FinishRun(context.WithoutCancel(ctx), runID, time.Now(), storeResults(results), hash); err != nil {
		return WrapExitError(ExitCommandError, "failed to record results", err)
	}

	report := RunReport{
		RunID:      runID,
		URL:        cfg.URL,
		Results:    results,
		Summary:    harness.Summarize(results),
		ReportHash: hash,
	}
	logger.Info("run finished",
		"run", runID,
		"passed", report.Summary.Passed,
		"failed", report.Summary.Failed,
		"unclear", report.Summary.Unclear,
	)

	if opts.Format == "json" {
		return outputRunJSON(cmd, report)
	}
	return outputRunText(cmd, report, opts.Verbose)
}

// deviceClient layers recording and class caching over the transport.
// Cache hits never reach the device and are not recorded.
func deviceClient(opts *RunOptions, cfg *config.Config, rec ncp.Recorder, logger *slog.Logger) (ncp.Client, error) {
	transport := opts.Client
	if transport == nil {
		transport = ncp.NewWSClient(cfg.Timeout, logger)
	}
	recording := ncp.NewRecordingClient(transport, rec, ncp.NewClock(), logger)
	return ncp.NewCachedClient(recording, ncp.DefaultClassCacheSize)
}

// newQuestion prompts on stdout, or stderr when stdout carries JSON.
func newQuestion(opts *RunOptions, cmd *cobra.Command, cfg *config.Config) harness.Question {
	in := opts.In
	if in == nil {
		in = cmd.InOrStdin()
	}
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		out = cmd.ErrOrStderr()
	}
	return harness.NewConsoleQuestion(in, out, cfg.PromptTimeout)
}

func storeResults(results []harness.Result) []store.Result {
	out := make([]store.Result, len(results))
	for i, r := range results {
		out[i] = store.Result{
			Name:        r.Name,
			Description: r.Description,
			State:       string(r.State),
			Message:     r.Message,
			Link:        r.Link,
		}
	}
	return out
}

// outputRunJSON outputs the run report as JSON.
func outputRunJSON(cmd *cobra.Command, report RunReport) error {
	response := CLIResponse{
		Status: "ok",
		Data:   report,
		RunID:  report.RunID,
	}
	if !report.Summary.OK() {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_CHECK_FAILED",
			Message: fmt.Sprintf("%d check(s) failed", report.Summary.Failed),
		}
	}

	f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
	if err := f.encode(response); err != nil {
		return err
	}

	if !report.Summary.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d check(s) failed", report.Summary.Failed))
	}
	return nil
}

// outputRunText outputs the run report as text.
func outputRunText(cmd *cobra.Command, report RunReport, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Run %s against %s\n", report.RunID, report.URL)
	fmt.Fprintln(w)
	for _, r := range report.Results {
		if r.State == harness.StatePass && !verbose {
			continue
		}
		fmt.Fprintf(w, "%s %s - %s\n", stateMark(r.State), r.Name, r.Description)
		if r.Message != "" {
			fmt.Fprintf(w, "  %s\n", r.Message)
		}
		if r.Link != "" {
			fmt.Fprintf(w, "  See %s\n", r.Link)
		}
	}

	s := report.Summary
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d unclear, %d total\n", s.Passed, s.Failed, s.Unclear, len(report.Results))

	if !s.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d check(s) failed", s.Failed))
	}
	fmt.Fprintln(w, "✓ No check failed")
	return nil
}

func stateMark(s harness.State) string {
	switch s {
	case harness.StatePass:
		return "✓"
	case harness.StateFail:
		return "✗"
	default:
		return "?"
	}
}
