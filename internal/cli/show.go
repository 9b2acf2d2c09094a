package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/calltrace/internal/ir"
	"github.com/roach88/calltrace/internal/sink"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Function string
	Failed   bool
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <sink>",
		Short: "Print the records stored in a sink",
		Long: `Print the records of a readable sink in append order.

Text output is the stored lines exactly as written. JSON output wraps
them in the standard response envelope.

Examples:
  calltrace show main.log
  calltrace show sqlite://calls.db --function summator
  calltrace show main.log --failed --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return formatter(opts.RootOptions, cmd).Fail(runShow(opts, cmd, args[0]))
		},
	}

	cmd.Flags().StringVar(&opts.Function, "function", "", "only records of this function")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only records of failed calls")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command, location string) error {
	s, err := sink.Open(location)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open sink", err)
	}
	defer s.Close()

	r, ok := s.(sink.LineReader)
	if !ok {
		return WrapExitError(ExitCommandError, "cannot show sink", sink.ErrNotReadable)
	}
	lines, err := r.ReadLines(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sink", err)
	}

	var selected []json.RawMessage
	for i, line := range lines {
		if opts.Function != "" || opts.Failed {
			rec, err := ir.DecodeRecord(line)
			if err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("entry %d", i+1), err)
			}
			if opts.Function != "" && rec.FunctionName != opts.Function {
				continue
			}
			if opts.Failed && !rec.Failed() {
				continue
			}
		}
		selected = append(selected, trimNewline(line))
	}

	if opts.Format == "json" {
		if selected == nil {
			selected = []json.RawMessage{}
		}
		return formatter(opts.RootOptions, cmd).Success(map[string]any{
			"sink":    location,
			"records": selected,
		})
	}
	for _, line := range selected {
		fmt.Fprintln(cmd.OutOrStdout(), string(line))
	}
	return nil
}

func trimNewline(line []byte) json.RawMessage {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		return json.RawMessage(line[:n-1])
	}
	return json.RawMessage(line)
}

// isNotReadable reports whether err means the sink is write-only.
func isNotReadable(err error) bool {
	return errors.Is(err, sink.ErrNotReadable)
}
