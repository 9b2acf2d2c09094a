// Package harness runs calltrace scenarios: scripted calls of the demo
// targets through real interceptors, followed by assertions on the
// records each sink received.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	failure_policy: log        # log | skip
//	sink_policy: propagate     # propagate | log
//	sinks:
//	  main: memory             # memory | file | sqlite
//	calls:
//	  - function: summator
//	    sink: main
//	    args: [4.3]
//	    kwargs: { b: 2.2 }
//	    expect:
//	      result: 6.5
//	assertions:
//	  - type: record_count
//	    sink: main
//	    count: 1
//	  - type: record_contains
//	    sink: main
//	    function: summator
//	    return_value: 6.5
//
// A scenario without sinks gets one memory sink named "main", and calls
// without a sink write to it.
//
// # Assertion Types
//
//   - record_count: the sink holds exactly count records (of function, if set)
//   - record_contains: some record of function matches every field given
//   - record_order: the first records of functions appear in the given order
//   - line_contains: some stored line contains text verbatim
//
// # Determinism
//
// Every scenario runs with a clock starting at 2024-03-01 12:00:00 UTC
// advancing one second per call, and call ids call-0001, call-0002, ...
// shared across all sinks, so sink contents are byte-stable and can be
// compared against golden files.
package harness
