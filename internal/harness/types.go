package harness

import "github.com/roach88/procnet/internal/ir"

// Trace event types.
const (
	EventPass     = "pass"
	EventRun      = "run"
	EventMutation = "mutation"
)

// TraceEvent is one record read back from the store. Runs follow the
// pass they belong to and share its seq.
type TraceEvent struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq"`

	// mutation
	Path  string   `json:"path,omitempty"`
	Value ir.Value `json:"value,omitempty"`

	// pass
	Executed []string `json:"executed,omitempty"`
	Failed   []string `json:"failed,omitempty"`
	Skipped  []string `json:"skipped,omitempty"`

	// run
	Processor   string     `json:"processor,omitempty"`
	Outcome     ir.Outcome `json:"outcome,omitempty"`
	Initialized bool       `json:"initialized,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// State is the flattened property state of the network at the end.
	State ir.Object `json:"state,omitempty"`
}

func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  ir.Object{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Runs returns the run events, in trace order.
func (r *Result) Runs() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventRun {
			out = append(out, ev)
		}
	}
	return out
}

// canonical renders the event as an ir.Object with only the fields its
// type uses.
func (ev TraceEvent) canonical() ir.Object {
	obj := ir.Object{
		"type": ir.String(ev.Type),
		"seq":  ir.Int(ev.Seq),
	}
	switch ev.Type {
	case EventMutation:
		obj["path"] = ir.String(ev.Path)
		obj["value"] = ev.Value
		if ev.Value == nil {
			obj["value"] = ir.Null{}
		}
	case EventPass:
		obj["executed"] = idArray(ev.Executed)
		obj["failed"] = idArray(ev.Failed)
		obj["skipped"] = idArray(ev.Skipped)
	case EventRun:
		obj["processor"] = ir.String(ev.Processor)
		obj["outcome"] = ir.String(ev.Outcome)
		obj["initialized"] = ir.Bool(ev.Initialized)
		if ev.Error != "" {
			obj["error"] = ir.String(ev.Error)
		}
	}
	return obj
}

func idArray(ids []string) ir.Array {
	arr := make(ir.Array, len(ids))
	for i, id := range ids {
		arr[i] = ir.String(id)
	}
	return arr
}
