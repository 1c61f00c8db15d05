package ir

// Outcome is how a processor ended an evaluation pass.
type Outcome string

const (
	OutcomeValid         Outcome = "valid"
	OutcomeError         Outcome = "error"
	OutcomeUpstreamError Outcome = "upstream_error"
	OutcomeNotReady      Outcome = "not_ready"
)

// PassRecord is one evaluation pass as written to the event log.
//
// Seq comes from the evaluator's logical clock; wall-clock time is never
// part of a record so replayed logs compare byte for byte.
type PassRecord struct {
	ID          string   `json:"id"`
	Token       string   `json:"token"`
	Seq         int64    `json:"seq"`
	NetworkHash string   `json:"network_hash"`
	Executed    []string `json:"executed"`
	Failed      []string `json:"failed"`
	Skipped     []string `json:"skipped"`
}

// ProcessorRun is the outcome of one processor within a pass.
type ProcessorRun struct {
	PassID      string  `json:"pass_id"`
	Seq         int64   `json:"seq"`
	Processor   string  `json:"processor"`
	Outcome     Outcome `json:"outcome"`
	Initialized bool    `json:"initialized"`
	Error       string  `json:"error,omitempty"`
}

// Mutation is a property change observed between passes.
type Mutation struct {
	Seq   int64  `json:"seq"`
	Path  string `json:"path"`
	Value Value  `json:"value"`
}

// Snapshot is a serialized network stored under its content hash.
type Snapshot struct {
	Hash string `json:"hash"`
	Name string `json:"name"`
	Doc  Value  `json:"doc"`
}
