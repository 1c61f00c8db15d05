package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/procnet/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestPass creates a pass whose ID is derived from token and seq.
func createTestPass(token string, seq int64, executed ...string) ir.PassRecord {
	return ir.PassRecord{
		ID:          ir.PassID(token, seq),
		Token:       token,
		Seq:         seq,
		NetworkHash: "test-hash",
		Executed:    executed,
	}
}

func createTestRun(pass ir.PassRecord, processor string, outcome ir.Outcome) ir.ProcessorRun {
	return ir.ProcessorRun{
		PassID:    pass.ID,
		Seq:       pass.Seq,
		Processor: processor,
		Outcome:   outcome,
	}
}
