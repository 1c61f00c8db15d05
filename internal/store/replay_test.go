package store

import (
	"context"
	"testing"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/property"
	"github.com/roach88/procnet/internal/testutil"
)

func TestReplayMutations_ReproducesState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	log := []ir.Mutation{
		{Seq: 1, Path: "a.value", Value: ir.Float(1.5)},
		{Seq: 2, Path: "b.detail", Value: ir.Bool(true)},
		{Seq: 3, Path: "a.value", Value: ir.Float(4)},
	}
	for _, m := range log {
		if err := s.WriteMutation(ctx, m); err != nil {
			t.Fatalf("WriteMutation(%d) failed: %v", m.Seq, err)
		}
	}

	net, nodes := testutil.BuildNetwork(t, nil, []string{"a", "b"}, "a->b")
	result, err := s.ReplayMutations(ctx, net, 0, 0)
	if err != nil {
		t.Fatalf("ReplayMutations() failed: %v", err)
	}
	if result.Applied != 3 || len(result.Skipped) != 0 || result.LastSeq != 3 {
		t.Errorf("result = %+v", result)
	}
	if got := nodes["a"].Value.Get(); got != 4 {
		t.Errorf("a.value = %v, want 4", got)
	}
	if !nodes["b"].Detail.Get() {
		t.Error("b.detail not replayed")
	}
}

func TestReplayMutations_Window(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for seq := int64(1); seq <= 3; seq++ {
		s.WriteMutation(ctx, ir.Mutation{Seq: seq, Path: "a.value", Value: ir.Float(float64(seq * 10))})
	}

	net, nodes := testutil.BuildNetwork(t, nil, []string{"a"})
	result, err := s.ReplayMutations(ctx, net, 0, 2)
	if err != nil {
		t.Fatalf("ReplayMutations() failed: %v", err)
	}
	if result.Applied != 2 || result.LastSeq != 2 {
		t.Errorf("result = %+v", result)
	}
	if got := nodes["a"].Value.Get(); got != 20 {
		t.Errorf("a.value = %v, want 20", got)
	}
}

func TestReplayMutations_SkipsUnresolvable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	s.WriteMutation(ctx, ir.Mutation{Seq: 1, Path: "gone.value", Value: ir.Float(1)})
	s.WriteMutation(ctx, ir.Mutation{Seq: 2, Path: "a.detail", Value: ir.String("not a bool")})
	s.WriteMutation(ctx, ir.Mutation{Seq: 3, Path: "a.value", Value: ir.Float(2)})

	net, nodes := testutil.BuildNetwork(t, nil, []string{"a"})
	result, err := s.ReplayMutations(ctx, net, 0, 0)
	if err != nil {
		t.Fatalf("ReplayMutations() failed: %v", err)
	}
	if result.Applied != 1 || len(result.Skipped) != 2 {
		t.Fatalf("result = %+v", result)
	}
	if result.Skipped[0].Seq != 1 || result.Skipped[1].Seq != 2 {
		t.Errorf("skipped = %+v", result.Skipped)
	}
	if nodes["a"].Value.Get() != 2 {
		t.Error("later mutations must still apply")
	}
}

func TestReplayDeterminism(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for seq := int64(1); seq <= 5; seq++ {
		s.WriteMutation(ctx, ir.Mutation{Seq: seq, Path: "a.value", Value: ir.Float(float64(seq) / 4)})
	}

	hash := func() string {
		net, nodes := testutil.BuildNetwork(t, nil, []string{"a"})
		if _, err := s.ReplayMutations(ctx, net, 0, 0); err != nil {
			t.Fatalf("ReplayMutations() failed: %v", err)
		}
		h, err := ir.StateHash(property.Flatten(nodes["a"]))
		if err != nil {
			t.Fatalf("StateHash() failed: %v", err)
		}
		return h
	}

	first, second := hash(), hash()
	if first != second {
		t.Errorf("replay not deterministic: %s != %s", first, second)
	}
}
