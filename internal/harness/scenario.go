package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/procnet/internal/serial"
)

// DefaultToken is the pass token used when a scenario names none.
const DefaultToken = "scenario-default"

// Scenario describes a network, the edits applied to it and what the
// resulting trace and state must look like.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Network is an inline network document. Exactly one of Network and
	// NetworkFile is set.
	Network *serial.NetworkDoc `yaml:"network,omitempty"`

	// NetworkFile is a YAML or JSON network document, relative to the
	// scenario file when loaded with LoadScenarioWithBasePath.
	NetworkFile string `yaml:"network_file,omitempty"`

	// Resources are served to processors by name.
	Resources map[string]string `yaml:"resources,omitempty"`

	// Token is the fixed pass token. Defaults to DefaultToken.
	Token string `yaml:"token,omitempty"`

	// Setup steps run before Flow and must not fail.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow steps run in order; each may carry an expectation.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one edit or evaluation. Exactly one action field is set.
type Step struct {
	// Set assigns Value to the property at this path.
	Set   string `yaml:"set,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Press presses the button property at this path.
	Press string `yaml:"press,omitempty"`

	// Connect and Disconnect take "proc.outport -> proc.inport".
	Connect    string `yaml:"connect,omitempty"`
	Disconnect string `yaml:"disconnect,omitempty"`

	// Evaluate runs one pass.
	Evaluate bool `yaml:"evaluate,omitempty"`

	// Expect checks the pass run by an evaluate step.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Kind names the action of the step.
func (s Step) Kind() string {
	switch {
	case s.Set != "":
		return "set"
	case s.Press != "":
		return "press"
	case s.Connect != "":
		return "connect"
	case s.Disconnect != "":
		return "disconnect"
	case s.Evaluate:
		return "evaluate"
	}
	return ""
}

func (s Step) String() string {
	switch s.Kind() {
	case "set":
		return fmt.Sprintf("set %s = %v", s.Set, s.Value)
	case "press":
		return "press " + s.Press
	case "connect":
		return "connect " + s.Connect
	case "disconnect":
		return "disconnect " + s.Disconnect
	case "evaluate":
		return "evaluate"
	}
	return "empty step"
}

// ExpectClause checks the lists of one pass. Only the listed fields are
// compared; nil lists are not checked, empty lists must match exactly.
type ExpectClause struct {
	Executed []string `yaml:"executed,omitempty"`
	Failed   []string `yaml:"failed,omitempty"`
	Skipped  []string `yaml:"skipped,omitempty"`

	// Errors maps a processor to a substring of its error message.
	Errors map[string]string `yaml:"errors,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count and
	// final_state.
	Type string `yaml:"type"`

	// Processor is used by trace_contains and trace_count.
	Processor string `yaml:"processor,omitempty"`

	// Outcome is used by trace_contains; empty means valid.
	Outcome string `yaml:"outcome,omitempty"`

	// Processors is the expected first-run order (trace_order).
	Processors []string `yaml:"processors,omitempty"`

	// Count is the expected number of valid runs (trace_count).
	Count int `yaml:"count,omitempty"`

	// Path names a property and Output names an outport (final_state).
	Path   string `yaml:"path,omitempty"`
	Output string `yaml:"output,omitempty"`

	// Expect is the value final_state compares against.
	Expect any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath is LoadScenario with NetworkFile resolved
// relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.NetworkFile != "" && !filepath.IsAbs(s.NetworkFile) && basePath != "" {
		s.NetworkFile = filepath.Join(basePath, s.NetworkFile)
	}
	if s.NetworkFile != "" {
		if _, err := os.Stat(s.NetworkFile); err != nil {
			return nil, fmt.Errorf("invalid scenario: network file: %w", err)
		}
	}
	return s, nil
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if s.Token == "" {
		s.Token = DefaultToken
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if (s.Network == nil) == (s.NetworkFile == "") {
		return errors.New("exactly one of network and network_file is required")
	}
	if len(s.Flow) == 0 {
		return errors.New("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return errors.New("assertions list is required and must be non-empty")
	}
	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is only allowed in flow", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(s Step) error {
	n := 0
	for _, set := range []bool{s.Set != "", s.Press != "", s.Connect != "", s.Disconnect != "", s.Evaluate} {
		if set {
			n++
		}
	}
	switch {
	case n == 0:
		return errors.New("one of set, press, connect, disconnect or evaluate is required")
	case n > 1:
		return errors.New("only one action per step")
	}
	if s.Set != "" && s.Value == nil {
		return errors.New("set requires a value")
	}
	if s.Expect != nil && !s.Evaluate {
		return errors.New("expect requires evaluate")
	}
	for _, edge := range []string{s.Connect, s.Disconnect} {
		if edge == "" {
			continue
		}
		if _, _, err := splitEdge(edge); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return errors.New("type is required")
	case AssertTraceContains:
		if a.Processor == "" {
			return errors.New("processor is required for trace_contains")
		}
	case AssertTraceOrder:
		if len(a.Processors) == 0 {
			return errors.New("processors list is required for trace_order")
		}
	case AssertTraceCount:
		if a.Processor == "" {
			return errors.New("processor is required for trace_count")
		}
		if a.Count < 0 {
			return errors.New("count must be non-negative for trace_count")
		}
	case AssertFinalState:
		if (a.Path == "") == (a.Output == "") {
			return errors.New("exactly one of path and output is required for final_state")
		}
		if a.Expect == nil {
			return errors.New("expect is required for final_state")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// splitEdge parses "a.out -> b.in".
func splitEdge(edge string) (string, string, error) {
	from, to, ok := strings.Cut(edge, "->")
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if !ok || from == "" || to == "" {
		return "", "", fmt.Errorf("edge %q: want \"proc.outport -> proc.inport\"", edge)
	}
	return from, to, nil
}
