package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/benchgrid/internal/app"
	"github.com/specialistvlad/benchgrid/internal/writer"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var (
		raw    app.Config
		chosen bool
	)
	capture := func(command string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, positional []string) error {
			raw.Command = command
			raw.SweepPaths = append(raw.SweepPaths, positional...)
			chosen = true
			return nil
		}
	}

	root := &cobra.Command{
		Use:   "benchgrid",
		Short: "Benchmark sweep driver for MPI interference experiments.",
		Long: `benchgrid expands declarative HCL sweeps into benchmark variants, builds
them once, launches every variant on a cluster backend with a preloaded
profiling library, and collects the profiling data into CSV, JSON or Go
benchmark format.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetArgs(args)
	root.SetOut(output)
	root.SetErr(output)

	pf := root.PersistentFlags()
	pf.StringVarP(&raw.ProfilePath, "profile", "p", "", "Path to the backend profile (yaml).")
	pf.StringVar(&raw.LogLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&raw.LogFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")

	runCmd := &cobra.Command{
		Use:   "run [SWEEP_PATH...]",
		Short: "Build and run every benchmark variant of the sweeps",
		RunE:  capture(app.CommandRun),
	}
	rf := runCmd.Flags()
	rf.StringVarP(&raw.OutputPath, "output", "o", "", "Result file.")
	rf.BoolVar(&raw.Cache, "cache", false, "Reuse and update the compilation cache.")
	rf.StringVarP(&raw.Filter, "filter", "f", "", "Only run variants matching key=v1,v2:key2=v3.")
	rf.StringVarP(&raw.Writer, "writer", "w", writer.KindCSV, "Output format. Options: "+strings.Join(writer.Kinds(), ", ")+".")
	rf.StringVar(&raw.RunOrder, "run-order", "interleave", "Run order. Options: 'interleave' or 'consecutive'.")
	rf.StringSliceVarP(&raw.SweepPaths, "sweep", "s", nil, "Sweep file or directory (repeatable).")
	rf.IntVar(&raw.Runs, "runs", -1, "Number of runs; negative uses the profile's value.")
	rf.StringVar(&raw.StateDir, "state-dir", ".", "Directory holding the compilation cache.")

	prepareCmd := &cobra.Command{
		Use:   "prepare",
		Short: "Build and install the profiling preload library",
		Args:  cobra.NoArgs,
		RunE:  capture(app.CommandPrepare),
	}
	prepareCmd.Flags().StringVar(&raw.SourceDir, "source", "", "Library source directory; overrides the profile.")

	expandCmd := &cobra.Command{
		Use:   "expand [SWEEP_PATH...]",
		Short: "Print the benchmark variants of the sweeps without running them",
		RunE:  capture(app.CommandExpand),
	}
	expandCmd.Flags().StringSliceVarP(&raw.SweepPaths, "sweep", "s", nil, "Sweep file or directory (repeatable).")
	expandCmd.Flags().StringVarP(&raw.Filter, "filter", "f", "", "Mark variants not matching key=v1,v2:key2=v3.")

	root.AddCommand(runCmd, prepareCmd, expandCmd)

	if err := root.Execute(); err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	if !chosen {
		slog.Debug("No command executed, exiting.")
		return nil, true, nil
	}
	slog.Debug("Arguments parsed successfully.", "command", raw.Command)

	raw.LogLevel = strings.ToLower(raw.LogLevel)
	raw.LogFormat = strings.ToLower(raw.LogFormat)
	config, err := app.NewConfig(raw)
	if err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
