package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ms05probe/internal/ncp"
	"github.com/roach88/ms05probe/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	OID      int  // optional - filter to one object
	Errors   bool // only exchanges the device rejected or never answered
	Hash     string
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run       store.Run        `json:"run"`
	Results   []store.Result   `json:"results"`
	Exchanges []store.Exchange `json:"exchanges"`
	Stats     TraceStats       `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Exchanges int `json:"exchanges"`
	Gets      int `json:"gets"`
	Sets      int `json:"sets"`
	Rejected  int `json:"rejected"`
	NoReply   int `json:"no_reply"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Show the device exchanges of a run",
		Long: `Show what a run did on the wire.

Prints the run's results followed by every recorded exchange with the
device in order. A unique prefix of the run id is enough.

With --hash, lists every recorded exchange with that content hash across
all runs instead, to find where the same request got the same answer.

Examples:
  ms05probe trace 0192f3a1
  ms05probe trace 0192f3a1 --oid 11 --errors -v
  ms05probe trace --hash 5d41402abc4b2a76b9719d911017c592...
  ms05probe trace 0192f3a1 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Hash == "" && len(args) == 0 {
				return NewExitError(ExitCommandError, "a run id or --hash is required")
			}
			if opts.Hash != "" {
				return runTraceHash(opts, cmd)
			}
			return runTrace(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().IntVar(&opts.OID, "oid", 0, "only exchanges with this object")
	cmd.Flags().BoolVar(&opts.Errors, "errors", false, "only exchanges that did not succeed")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "find exchanges by content hash")

	return cmd
}

// openStore resolves the database path from --db or the configuration.
func openStore(opts *RootOptions, cmd *cobra.Command, flagValue string) (*store.Store, error) {
	path := flagValue
	if !cmd.Flags().Changed("db") {
		cfg, err := loadConfig(opts)
		if err != nil {
			return nil, err
		}
		path = cfg.Database
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runTrace(opts *TraceOptions, cmd *cobra.Command, prefix string) error {
	ctx := context.Background()

	st, err := openStore(opts.RootOptions, cmd, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, prefix)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) || errors.Is(err, store.ErrAmbiguousRun) {
			if opts.Format == "json" {
				f := newFormatter(opts.RootOptions, cmd)
				_ = f.Error(runErrorCode(err), err.Error(), nil)
			}
		}
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	results, err := st.Results(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read results", err)
	}
	exchanges, err := st.Exchanges(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read exchanges", err)
	}

	result := TraceResult{
		Run:       run,
		Results:   results,
		Exchanges: filterExchanges(exchanges, opts),
		Stats:     traceStats(exchanges),
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

func runTraceHash(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openStore(opts.RootOptions, cmd, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	exchanges, err := st.ExchangesByHash(ctx, opts.Hash)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read exchanges", err)
	}

	if opts.Format == "json" {
		return newFormatter(opts.RootOptions, cmd).Success(exchanges)
	}

	w := cmd.OutOrStdout()
	if len(exchanges) == 0 {
		fmt.Fprintf(w, "No exchanges with hash %s\n", opts.Hash)
		return nil
	}
	for _, ex := range exchanges {
		fmt.Fprintf(w, "%s ", truncateID(ex.RunID))
		formatExchange(w, ex, opts.Verbose)
	}
	return nil
}

func runErrorCode(err error) string {
	if errors.Is(err, store.ErrAmbiguousRun) {
		return "E_AMBIGUOUS_RUN"
	}
	return "E_RUN_NOT_FOUND"
}

// filterExchanges applies the --oid and --errors filters.
func filterExchanges(exchanges []store.Exchange, opts *TraceOptions) []store.Exchange {
	out := []store.Exchange{}
	for _, ex := range exchanges {
		if opts.OID != 0 && ex.OID != opts.OID {
			continue
		}
		if opts.Errors && ex.Status.OK() {
			continue
		}
		out = append(out, ex)
	}
	return out
}

// traceStats counts over every exchange of the run, ignoring filters.
func traceStats(exchanges []store.Exchange) TraceStats {
	stats := TraceStats{Exchanges: len(exchanges)}
	for _, ex := range exchanges {
		switch ex.Method {
		case "Get":
			stats.Gets++
		case "Set":
			stats.Sets++
		}
		switch {
		case ex.Status == 0:
			stats.NoReply++
		case !ex.Status.OK():
			stats.Rejected++
		}
	}
	return stats
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
	return f.encode(CLIResponse{
		Status: "ok",
		Data:   result,
		RunID:  result.Run.ID,
	})
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()
	run := result.Run

	fmt.Fprintf(w, "Trace for Run: %s\n", run.ID)
	fmt.Fprintf(w, "Device: %s\n", run.URL)
	fmt.Fprintf(w, "Status: %s\n", runStatus(run))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Results ===")
	if len(result.Results) == 0 {
		fmt.Fprintln(w, "  (no results)")
	}
	for _, r := range result.Results {
		fmt.Fprintf(w, "  %s %s\n", r.State, r.Name)
		if r.Message != "" && (verbose || r.State != "PASS") {
			fmt.Fprintf(w, "       %s\n", r.Message)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Exchanges ===")
	if len(result.Exchanges) == 0 {
		fmt.Fprintln(w, "  (no exchanges)")
	}
	for _, ex := range result.Exchanges {
		fmt.Fprint(w, "  ")
		formatExchange(w, ex, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Exchanges: %d\n", result.Stats.Exchanges)
	fmt.Fprintf(w, "  Gets:      %d\n", result.Stats.Gets)
	fmt.Fprintf(w, "  Sets:      %d\n", result.Stats.Sets)
	fmt.Fprintf(w, "  Rejected:  %d\n", result.Stats.Rejected)
	fmt.Fprintf(w, "  No reply:  %d\n", result.Stats.NoReply)

	return nil
}

// formatExchange writes one exchange line, plus arguments and outcome when
// verbose.
func formatExchange(w io.Writer, ex store.Exchange, verbose bool) {
	fmt.Fprintf(w, "[%d] %s oid=%d %s\n", ex.Seq, ex.Method, ex.OID, statusLabel(ex.Status))
	if !verbose {
		return
	}
	if len(ex.Arguments) > 0 {
		fmt.Fprintf(w, "       Args: %s\n", formatArgs(ex.Arguments))
	}
	if ex.Error != "" {
		fmt.Fprintf(w, "       Error: %s\n", ex.Error)
	} else if ex.Value != nil {
		fmt.Fprintf(w, "       Value: %s\n", formatValue(ex.Value))
	}
	fmt.Fprintf(w, "       Hash: %s\n", truncateID(ex.Hash))
}

func statusLabel(s ncp.Status) string {
	if s == 0 {
		return "no reply"
	}
	return fmt.Sprintf("status %d", int(s))
}

func runStatus(run store.Run) string {
	if run.FinishedAt.IsZero() {
		return "unfinished"
	}
	return fmt.Sprintf("%d passed, %d failed, %d unclear", run.Passed, run.Failed, run.Unclear)
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:16] + "..."
}
