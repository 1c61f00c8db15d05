// Package harness runs scenario files against a real network and engine.
//
// A scenario builds a network, applies a sequence of edits and evaluations,
// then checks the trace the engine wrote to its store along with the final
// property and port values.
//
// # Scenario Format
//
//	name: number_pipeline
//	description: "Scaling follows the source"
//	token: golden
//	network_file: pipeline.yaml      # or an inline network: document
//	resources:
//	  tint.glsl: red
//	setup:
//	  - set: a.value
//	    value: 2
//	flow:
//	  - evaluate: true
//	    expect:
//	      executed: [a, scale]
//	  - set: a.value
//	    value: 5
//	  - press: export.export
//	  - connect: a.number -> sum.numbers
//	  - disconnect: a.number -> scale.number
//	assertions:
//	  - type: trace_contains
//	    processor: scale
//	    outcome: valid
//	  - type: trace_order
//	    processors: [a, scale]
//	  - type: trace_count
//	    processor: scale
//	    count: 2
//	  - type: final_state
//	    output: scale.result
//	    expect: 15
//
// # Assertion Types
//
//   - trace_contains: a processor run with the given outcome (default valid)
//   - trace_order: processors first ran in this order
//   - trace_count: a processor ran validly exactly N times
//   - final_state: a property (path) or outport (output) holds a value
//
// # Deterministic Testing
//
// Every scenario runs with a fresh in-memory store, a fixed pass token and
// a logical clock starting at zero, so traces are identical across runs
// and can be compared against golden files.
package harness
