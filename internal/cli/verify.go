package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/calltrace/internal/sink"
)

// VerifyReport summarizes a verified sink.
type VerifyReport struct {
	Sink      string         `json:"sink"`
	Records   int            `json:"records"`
	Failed    int            `json:"failed"`
	Functions map[string]int `json:"functions"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <sink>",
		Short: "Check that every entry in a sink is a well-formed record",
		Long: `Read a sink back and decode every entry.

Exits 1 at the first entry that is not a single well-formed record, and
2 when the sink cannot be opened or is write-only.

Examples:
  calltrace verify main.log
  calltrace verify sqlite://calls.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return formatter(rootOpts, cmd).Fail(runVerify(rootOpts, cmd, args[0]))
		},
	}
	return cmd
}

func runVerify(opts *RootOptions, cmd *cobra.Command, location string) error {
	s, err := sink.Open(location)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open sink", err)
	}
	defer s.Close()

	records, err := sink.ReadRecords(cmd.Context(), s)
	if err != nil {
		if isNotReadable(err) {
			return WrapExitError(ExitCommandError, "cannot verify sink", err)
		}
		return WrapExitError(ExitFailure, "verification failed", err)
	}

	report := VerifyReport{Sink: location, Records: len(records), Functions: make(map[string]int)}
	for _, rec := range records {
		report.Functions[rec.FunctionName]++
		if rec.Failed() {
			report.Failed++
		}
	}

	if opts.Format == "json" {
		return formatter(opts, cmd).Success(report)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records OK (%d failed calls)\n", location, report.Records, report.Failed)
	return nil
}
