package processor

// State is the evaluation state of a processor.
type State int

const (
	// Valid means the outputs are current.
	Valid State = iota
	// Invalid means the processor must run on the next evaluation.
	Invalid
	// Processing means Process is executing. Re-entry is not allowed.
	Processing
	// Error means Process failed, or an upstream processor did, in the
	// last evaluation.
	Error
)

func (s State) String() string {
	switch s {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case Processing:
		return "processing"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// CodeState describes the maturity of a processor class.
type CodeState string

const (
	Experimental CodeState = "experimental"
	Stable       CodeState = "stable"
	Deprecated   CodeState = "deprecated"
)

// Info describes a processor class.
type Info struct {
	ClassIdentifier string
	DisplayName     string
	Category        string
	CodeState       CodeState
	Tags            []string
	Help            string

	// SharedContext marks processors that touch the shared rendering
	// context. The evaluator never runs two of them at the same time.
	SharedContext bool
}
