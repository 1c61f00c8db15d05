package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ScenarioNotFoundError is returned when a scenario path does not exist.
type ScenarioNotFoundError struct {
	Path string
}

func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario %q does not exist", e.Path)
}

// FindScenarios expands path into scenario files. A directory yields every
// .yaml and .yml file in it, sorted by name; a file yields itself.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}

// SuiteResult summarizes a run over several scenario files.
type SuiteResult struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Skipped  int            `json:"skipped,omitempty"`
	Failures []SuiteFailure `json:"failures,omitempty"`
	// Updated lists golden files written in update mode.
	Updated []string `json:"updated,omitempty"`
}

// SuiteFailure is one scenario that failed to load, run or pass.
type SuiteFailure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// OK reports whether every scenario passed.
func (r *SuiteResult) OK() bool { return r.Failed == 0 }

func (r *SuiteResult) fail(name, path string, errs ...string) {
	r.Failed++
	r.Failures = append(r.Failures, SuiteFailure{Scenario: name, Path: path, Errors: errs})
}

// RunSuite loads and runs every scenario under path. Network files are
// resolved relative to each scenario. Load and run failures are counted as
// failed scenarios; the returned error is only for an unreadable path.
func RunSuite(ctx context.Context, path string, opts ...Option) (*SuiteResult, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	files, err := FindScenarios(path)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if o.filter != "" && !strings.Contains(filepath.Base(file), o.filter) {
			result.Skipped++
			continue
		}
		result.Total++

		scenario, err := LoadScenarioWithBasePath(file, filepath.Dir(file))
		if err != nil {
			result.fail("", file, fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}
		run, err := RunContext(ctx, scenario, opts...)
		if err != nil {
			result.fail(scenario.Name, file, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}
		if !run.Pass {
			result.fail(scenario.Name, file, run.Errors...)
			continue
		}
		if o.goldenDir != "" {
			updated, msg, err := checkGolden(o.goldenDir, o.update, scenario, run)
			if err != nil {
				result.fail(scenario.Name, file, fmt.Sprintf("golden: %v", err))
				continue
			}
			if msg != "" {
				result.fail(scenario.Name, file, msg)
				continue
			}
			if updated != "" {
				result.Updated = append(result.Updated, updated)
			}
		}
		result.Passed++
	}
	return result, nil
}

// checkGolden compares the run's trace with its golden file, or writes it
// in update mode. A mismatch is returned as msg; err is for I/O failures.
func checkGolden(dir string, update bool, scenario *Scenario, run *Result) (updated, msg string, err error) {
	data, err := MarshalTrace(scenario.Name, scenario.Token, run.Trace)
	if err != nil {
		return "", "", err
	}
	file := filepath.Join(dir, scenario.Name+".golden")
	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", "", err
		}
		if err := os.WriteFile(file, data, 0o644); err != nil {
			return "", "", err
		}
		return file, "", nil
	}

	want, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return "", fmt.Sprintf("golden file %s missing, rerun with update", file), nil
	}
	if err != nil {
		return "", "", err
	}
	if bytes.Equal(want, data) {
		return "", "", nil
	}
	return "", fmt.Sprintf("trace differs from %s at line %d", file, firstDiffLine(want, data)), nil
}

func firstDiffLine(a, b []byte) int {
	la := bytes.Split(a, []byte("\n"))
	lb := bytes.Split(b, []byte("\n"))
	for i := range min(len(la), len(lb)) {
		if !bytes.Equal(la[i], lb[i]) {
			return i + 1
		}
	}
	return min(len(la), len(lb)) + 1
}
