package store

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"testing"

	"github.com/roach88/procnet/internal/ir"
)

func TestReadPasses_Empty(t *testing.T) {
	s := createTestStore(t)

	passes, err := s.ReadPasses(context.Background())
	if err != nil {
		t.Fatalf("ReadPasses() failed: %v", err)
	}
	if passes == nil || len(passes) != 0 {
		t.Errorf("ReadPasses() = %#v, want empty non-nil slice", passes)
	}
}

func TestReadPasses_DeterministicOrdering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Written out of order; read back by seq.
	for _, seq := range []int64{5, 1, 3} {
		if err := s.WritePass(ctx, createTestPass("tok", seq, "a"), nil); err != nil {
			t.Fatalf("WritePass(%d) failed: %v", seq, err)
		}
	}

	passes, err := s.ReadPasses(ctx)
	if err != nil {
		t.Fatalf("ReadPasses() failed: %v", err)
	}
	var seqs []int64
	for _, p := range passes {
		seqs = append(seqs, p.Seq)
	}
	if !slices.Equal(seqs, []int64{1, 3, 5}) {
		t.Errorf("seqs = %v, want [1 3 5]", seqs)
	}
}

func TestReadPassesForToken(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	s.WritePass(ctx, createTestPass("one", 1), nil)
	s.WritePass(ctx, createTestPass("two", 2), nil)
	s.WritePass(ctx, createTestPass("one", 3), nil)

	passes, err := s.ReadPassesForToken(ctx, "one")
	if err != nil {
		t.Fatalf("ReadPassesForToken() failed: %v", err)
	}
	if len(passes) != 2 || passes[0].Seq != 1 || passes[1].Seq != 3 {
		t.Errorf("passes = %+v", passes)
	}
}

func TestReadPass_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	pass := createTestPass("tok", 2, "a", "b")
	pass.Skipped = []string{"c"}
	if err := s.WritePass(ctx, pass, nil); err != nil {
		t.Fatalf("WritePass() failed: %v", err)
	}

	got, err := s.ReadPass(ctx, pass.ID)
	if err != nil {
		t.Fatalf("ReadPass() failed: %v", err)
	}
	if got.Token != "tok" || got.Seq != 2 || got.NetworkHash != "test-hash" {
		t.Errorf("pass = %+v", got)
	}
	if !slices.Equal(got.Executed, []string{"a", "b"}) || len(got.Failed) != 0 || !slices.Equal(got.Skipped, []string{"c"}) {
		t.Errorf("lists = %v %v %v", got.Executed, got.Failed, got.Skipped)
	}
}

func TestReadPass_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadPass(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadPass() error = %v, want sql.ErrNoRows", err)
	}
}

func TestReadProcessorRuns_ExecutionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	pass := createTestPass("tok", 1, "z", "a")
	runs := []ir.ProcessorRun{
		createTestRun(pass, "z", ir.OutcomeValid),
		createTestRun(pass, "a", ir.OutcomeUpstreamError),
	}
	runs[1].Error = "upstream"
	if err := s.WritePass(ctx, pass, runs); err != nil {
		t.Fatalf("WritePass() failed: %v", err)
	}

	got, err := s.ReadProcessorRuns(ctx, pass.ID)
	if err != nil {
		t.Fatalf("ReadProcessorRuns() failed: %v", err)
	}
	if len(got) != 2 || got[0].Processor != "z" || got[1].Processor != "a" {
		t.Fatalf("runs = %+v", got)
	}
	if got[1].Outcome != ir.OutcomeUpstreamError || got[1].Error != "upstream" {
		t.Errorf("second run = %+v", got[1])
	}
}

func TestReadProcessorHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for seq := int64(1); seq <= 3; seq++ {
		pass := createTestPass("tok", seq, "a")
		run := createTestRun(pass, "a", ir.OutcomeValid)
		run.Initialized = seq == 1
		if err := s.WritePass(ctx, pass, []ir.ProcessorRun{run}); err != nil {
			t.Fatalf("WritePass(%d) failed: %v", seq, err)
		}
	}

	history, err := s.ReadProcessorHistory(ctx, "a")
	if err != nil {
		t.Fatalf("ReadProcessorHistory() failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history = %d runs, want 3", len(history))
	}
	if !history[0].Initialized || history[1].Initialized {
		t.Errorf("initialized flags = %v %v", history[0].Initialized, history[1].Initialized)
	}
}

func TestReadMutations_Range(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for seq := int64(1); seq <= 4; seq++ {
		if err := s.WriteMutation(ctx, ir.Mutation{Seq: seq, Path: "a.value", Value: ir.Int(seq)}); err != nil {
			t.Fatalf("WriteMutation(%d) failed: %v", seq, err)
		}
	}

	all, err := s.ReadMutations(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ReadMutations() failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("all = %d, want 4", len(all))
	}

	window, err := s.ReadMutations(ctx, 1, 3)
	if err != nil {
		t.Fatalf("ReadMutations(1, 3) failed: %v", err)
	}
	if len(window) != 2 || window[0].Seq != 2 || window[1].Seq != 3 {
		t.Errorf("window = %+v", window)
	}
	if !ir.Equal(window[0].Value, ir.Int(2)) {
		t.Errorf("value = %#v, want Int(2)", window[0].Value)
	}
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("empty LastSeq() = %d, want 0", seq)
	}

	s.WritePass(ctx, createTestPass("tok", 4), nil)
	s.WriteMutation(ctx, ir.Mutation{Seq: 9, Path: "a.value", Value: ir.Int(1)})

	if seq, _ = s.LastSeq(ctx); seq != 9 {
		t.Errorf("LastSeq() = %d, want 9", seq)
	}
}
