package harness

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/procnet/internal/ir"
)

// MarshalTrace renders a trace as JSON lines: a header naming the scenario
// followed by one canonical object per event. Pass IDs are left out since
// they are hashes of the token.
func MarshalTrace(scenario, token string, trace []TraceEvent) ([]byte, error) {
	var buf bytes.Buffer

	header := ir.Object{"scenario": ir.String(scenario)}
	if token != "" {
		header["token"] = ir.String(token)
	}
	if err := writeLine(&buf, header); err != nil {
		return nil, err
	}
	for _, ev := range trace {
		if err := writeLine(&buf, ev.canonical()); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeLine(buf *bytes.Buffer, obj ir.Object) error {
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return err
	}
	buf.Write(data)
	buf.WriteByte('\n')
	return nil
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	data, err := MarshalTrace(scenario.Name, scenario.Token, result.Trace)
	if err != nil {
		return nil, err
	}
	newGoldie(t).Assert(t, scenario.Name, data)
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalTrace(scenarioName, "", result.Trace)
	if err != nil {
		return err
	}
	newGoldie(t).Assert(t, scenarioName, data)
	return nil
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}
