package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/calltrace/internal/demo"
	"github.com/roach88/calltrace/internal/intercept"
	"github.com/roach88/calltrace/internal/ir"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Sink   string
	Kwargs []string
}

// CallResult is the JSON payload of a successful call.
type CallResult struct {
	Function string     `json:"function"`
	Result   ir.IRValue `json:"result"`
	Sink     string     `json:"sink"`
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <function> [args...]",
		Short: "Call one demo function and record it",
		Long: `Call a demo function through the interceptor.

Positional values and --kw values are parsed as integers, floats or
booleans when they look like one, and passed as strings otherwise.

Examples:
  calltrace call summator 2 2
  calltrace call summator 4.3 --kw b=2.2
  calltrace call div 1 0 --sink calls.log`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return formatter(opts.RootOptions, cmd).Fail(runCall(opts, cmd, args[0], args[1:]))
		},
	}

	cmd.Flags().StringVar(&opts.Sink, "sink", "", "sink location (overrides config)")
	cmd.Flags().StringArrayVar(&opts.Kwargs, "kw", nil, "keyword argument as key=value (repeatable)")

	return cmd
}

func runCall(opts *CallOptions, cmd *cobra.Command, function string, rawArgs []string) error {
	target, err := demo.Lookup(function)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown function", err)
	}

	call, err := parseCall(rawArgs, opts.Kwargs)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	router, cfg, err := newRouter(opts.RootOptions, opts.Sink, logger)
	if err != nil {
		return err
	}
	defer router.Close()

	ic, err := router.Interceptor(function)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open sink", err)
	}

	result, err := intercept.Wrap(ic, function, target)(cmd.Context(), call)
	if err != nil {
		if intercept.IsSinkWriteError(err) || intercept.IsSerializationError(err) {
			return WrapExitError(ExitCommandError, "call not recorded", err)
		}
		return WrapExitError(ExitFailure, function+" failed", err)
	}

	value, err := ir.FromGo(result)
	if err != nil {
		return WrapExitError(ExitCommandError, "unprintable result", err)
	}

	f := formatter(opts.RootOptions, cmd)
	if opts.Format == "json" {
		return f.Success(CallResult{Function: function, Result: value, Sink: cfg.SinkFor(function)})
	}
	out, err := ir.MarshalIRValue(value)
	if err != nil {
		return WrapExitError(ExitCommandError, "unprintable result", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// parseCall builds a Call from positional values and key=value pairs.
func parseCall(args, kwargs []string) (intercept.Call, error) {
	values := make([]any, len(args))
	for i, a := range args {
		values[i] = demo.ParseValue(a)
	}
	call := intercept.Args(values...)

	for _, kv := range kwargs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return intercept.Call{}, fmt.Errorf("keyword argument %q: expected key=value", kv)
		}
		if _, dup := call.Kwargs[key]; dup {
			return intercept.Call{}, fmt.Errorf("keyword argument %q given twice", key)
		}
		call = call.With(key, demo.ParseValue(value))
	}
	return call, nil
}
