package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/calltrace/internal/demo"
	"github.com/roach88/calltrace/internal/intercept"
	"github.com/roach88/calltrace/internal/ir"
)

// DemoOptions holds flags for the demo command.
type DemoOptions struct {
	*RootOptions
	Sink string
}

// DemoCall is one line of demo output.
type DemoCall struct {
	Function string     `json:"function"`
	Call     string     `json:"call"`
	Result   ir.IRValue `json:"result,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Record a sample run of the demo functions",
		Long: `Call hello_world, summator and div through the interceptor.

Each call is appended to its routed sink (main.log unless --config or
--sink says otherwise). Running the demo twice appends twice.

Examples:
  calltrace demo
  calltrace demo --sink sqlite://calls.db
  calltrace demo --config calltrace.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return formatter(opts.RootOptions, cmd).Fail(runDemo(opts, cmd))
		},
	}

	cmd.Flags().StringVar(&opts.Sink, "sink", "", "sink location for every call (overrides config)")

	return cmd
}

func runDemo(opts *DemoOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	router, _, err := newRouter(opts.RootOptions, opts.Sink, logger)
	if err != nil {
		return err
	}
	defer router.Close()

	outcomes, err := demo.Run(cmd.Context(), router, demo.SelfTest)
	if err != nil {
		return WrapExitError(ExitFailure, "demo run failed", err)
	}

	calls := make([]DemoCall, 0, len(outcomes))
	for _, o := range outcomes {
		dc := DemoCall{Function: o.Step.Function, Call: describeCall(o.Step.Function, o.Step.Call)}
		if o.Err != nil {
			dc.Error = o.Err.Error()
		} else if v, err := ir.FromGo(o.Result); err == nil {
			dc.Result = v
		}
		calls = append(calls, dc)
	}

	f := formatter(opts.RootOptions, cmd)
	if opts.Format == "json" {
		return f.Success(calls)
	}
	for _, c := range calls {
		if c.Error != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> error: %s\n", c.Call, c.Error)
			continue
		}
		out, _ := ir.MarshalIRValue(c.Result)
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", c.Call, out)
	}
	return nil
}

// describeCall renders a call as name(arg, ..., key=value).
func describeCall(name string, call intercept.Call) string {
	args, err := ir.FromGo(call.Args)
	if err != nil {
		return name + "(?)"
	}
	parts := make([]string, 0, len(call.Args)+len(call.Kwargs))
	if arr, ok := args.(ir.IRArray); ok {
		for _, a := range arr {
			b, _ := ir.MarshalIRValue(a)
			parts = append(parts, string(b))
		}
	}
	kwargs, err := ir.FromGo(call.Kwargs)
	if obj, ok := kwargs.(ir.IRObject); ok && err == nil {
		for _, k := range obj.SortedKeys() {
			b, _ := ir.MarshalIRValue(obj[k])
			parts = append(parts, k+"="+string(b))
		}
	}

	s := name + "("
	for i, p := range parts {
		if i > 0 {
			s += ", "
		}
		s += p
	}
	return s + ")"
}
