package store

import (
	"context"
	"fmt"

	"github.com/roach88/procnet/internal/property"
)

// Target resolves property paths on a network being replayed into.
// *network.Network satisfies it.
type Target interface {
	Property(path string) (property.Property, error)
}

// ReplaySkip is a logged mutation that could not be applied.
type ReplaySkip struct {
	Seq  int64
	Path string
	Err  error
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Applied int
	Skipped []ReplaySkip
	LastSeq int64
}

// ReplayMutations re-applies logged property changes with from < seq <= to
// onto target, in seq order. A to of zero or less replays the whole tail.
//
// Mutations whose path no longer resolves, or whose value the property
// rejects, are reported in Skipped and do not stop the replay. Applying the
// full log to a network built from the same snapshot reproduces the
// property state that was recorded.
func (s *Store) ReplayMutations(ctx context.Context, target Target, from, to int64) (ReplayResult, error) {
	mutations, err := s.ReadMutations(ctx, from, to)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	result := ReplayResult{LastSeq: from}
	for _, m := range mutations {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.LastSeq = m.Seq

		p, err := target.Property(m.Path)
		if err != nil {
			result.Skipped = append(result.Skipped, ReplaySkip{Seq: m.Seq, Path: m.Path, Err: err})
			continue
		}
		if err := p.SetValue(m.Value); err != nil {
			result.Skipped = append(result.Skipped, ReplaySkip{Seq: m.Seq, Path: m.Path, Err: err})
			continue
		}
		result.Applied++
	}
	return result, nil
}
