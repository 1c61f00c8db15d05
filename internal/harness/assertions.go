package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/network"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nRuns:\n")
		for _, ev := range e.Trace {
			if ev.Type != EventRun {
				continue
			}
			fmt.Fprintf(&buf, "  [%d] %s %s", ev.Seq, ev.Processor, ev.Outcome)
			if ev.Error != "" {
				fmt.Fprintf(&buf, " (%s)", ev.Error)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

func wantOutcome(a Assertion) ir.Outcome {
	if a.Outcome == "" {
		return ir.OutcomeValid
	}
	return ir.Outcome(a.Outcome)
}

// assertTraceContains checks for a run of the processor with the given
// outcome.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	outcome := wantOutcome(a)
	for _, ev := range trace {
		if ev.Type == EventRun && ev.Processor == a.Processor && ev.Outcome == outcome {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("run of %s with outcome %s", a.Processor, outcome),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first runs of the processors appear in
// the given order. Other runs may come in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if ev.Type != EventRun {
			continue
		}
		if _, seen := positions[ev.Processor]; !seen {
			positions[ev.Processor] = i + 1
		}
	}

	for _, id := range a.Processors {
		if positions[id] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all processors run: %v", a.Processors),
				Actual:   fmt.Sprintf("%s never ran", id),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Processors); i++ {
		prev, curr := a.Processors[i-1], a.Processors[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("processors in order: %v", a.Processors),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the number of valid runs of a processor.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type == EventRun && ev.Processor == a.Processor && ev.Outcome == ir.OutcomeValid {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d valid runs of %s", a.Count, a.Processor),
			Actual:   fmt.Sprintf("%d valid runs", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState compares a property or outport value. Numbers compare
// by value, so 15 matches 15.0.
func assertFinalState(result *Result, net *network.Network, a Assertion) error {
	want, err := ir.FromAny(a.Expect)
	if err != nil {
		return fmt.Errorf("final_state: expect: %w", err)
	}

	var got ir.Value
	var subject string
	switch {
	case a.Path != "":
		subject = a.Path
		v, ok := result.State[a.Path]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("property %s", a.Path),
				Actual:   "no such property",
			}
		}
		got = v
	default:
		subject = a.Output
		if got, err = outputValue(net, a.Output); err != nil {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %s", subject, format(want)),
				Actual:   err.Error(),
			}
		}
	}

	if !ir.Equal(want, got) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", subject, format(want)),
			Actual:   fmt.Sprintf("%s = %s", subject, format(got)),
		}
	}
	return nil
}

func outputValue(net *network.Network, path string) (ir.Value, error) {
	if net == nil {
		return nil, fmt.Errorf("no network")
	}
	id, name, ok := strings.Cut(path, ".")
	if !ok {
		return nil, fmt.Errorf("output %q: want processor.outport", path)
	}
	p := net.Processor(id)
	if p == nil {
		return nil, fmt.Errorf("no processor %s", id)
	}
	out := p.Core().Outport(name)
	if out == nil {
		return nil, fmt.Errorf("no outport %s", path)
	}
	data, err := out.Data()
	if err != nil {
		return nil, err
	}
	return ir.FromAny(data)
}

func format(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// AssertionContext gives assertions access to the live network.
type AssertionContext struct {
	Network *network.Network
}

// EvaluateAssertions evaluates all assertions against the result and
// returns the messages of those that failed.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			var net *network.Network
			if actx != nil {
				net = actx.Network
			}
			err = assertFinalState(result, net, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
