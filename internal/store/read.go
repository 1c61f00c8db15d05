package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/procnet/internal/ir"
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// ReadSnapshot retrieves a stored network by hash.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSnapshot(ctx context.Context, hash string) (ir.Snapshot, error) {
	var snap ir.Snapshot
	var docJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT hash, name, doc FROM snapshots WHERE hash = ?
	`, hash).Scan(&snap.Hash, &snap.Name, &docJSON)
	if err != nil {
		return ir.Snapshot{}, err
	}
	if snap.Doc, err = unmarshalValue(docJSON); err != nil {
		return ir.Snapshot{}, fmt.Errorf("read snapshot %s: %w", hash, err)
	}
	return snap, nil
}

// ReadSnapshots returns every stored snapshot ordered by name, then hash.
func (s *Store) ReadSnapshots(ctx context.Context) ([]ir.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, name, doc FROM snapshots
		ORDER BY name COLLATE BINARY ASC, hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []ir.Snapshot{}
	for rows.Next() {
		var snap ir.Snapshot
		var docJSON string
		if err := rows.Scan(&snap.Hash, &snap.Name, &docJSON); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if snap.Doc, err = unmarshalValue(docJSON); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", snap.Hash, err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// ReadPass retrieves a single pass by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadPass(ctx context.Context, id string) (ir.PassRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, token, seq, network_hash, executed, failed, skipped
		FROM passes
		WHERE id = ?
	`, id)
	return scanPass(row)
}

// ReadPasses returns all passes ordered by seq ASC, id ASC.
//
// Returns an empty slice (not nil) if the log is empty.
func (s *Store) ReadPasses(ctx context.Context) ([]ir.PassRecord, error) {
	return s.queryPasses(ctx, `
		SELECT id, token, seq, network_hash, executed, failed, skipped
		FROM passes
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// ReadPassesForToken returns the passes of one evaluator session.
func (s *Store) ReadPassesForToken(ctx context.Context, token string) ([]ir.PassRecord, error) {
	return s.queryPasses(ctx, `
		SELECT id, token, seq, network_hash, executed, failed, skipped
		FROM passes
		WHERE token = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, token)
}

func (s *Store) queryPasses(ctx context.Context, query string, args ...any) ([]ir.PassRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	passes := []ir.PassRecord{}
	for rows.Next() {
		pass, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, pass)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	return passes, nil
}

// ReadProcessorRuns returns the runs of a pass in execution order.
func (s *Store) ReadProcessorRuns(ctx context.Context, passID string) ([]ir.ProcessorRun, error) {
	return s.queryRuns(ctx, `
		SELECT pass_id, seq, processor, outcome, initialized, error
		FROM processor_runs
		WHERE pass_id = ?
		ORDER BY seq ASC, rowid ASC
	`, passID)
}

// ReadProcessorHistory returns every recorded run of one processor,
// oldest first.
func (s *Store) ReadProcessorHistory(ctx context.Context, processor string) ([]ir.ProcessorRun, error) {
	return s.queryRuns(ctx, `
		SELECT pass_id, seq, processor, outcome, initialized, error
		FROM processor_runs
		WHERE processor = ?
		ORDER BY seq ASC, pass_id COLLATE BINARY ASC
	`, processor)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]ir.ProcessorRun, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query processor runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.ProcessorRun{}
	for rows.Next() {
		var run ir.ProcessorRun
		var outcome string
		var initialized int
		if err := rows.Scan(&run.PassID, &run.Seq, &run.Processor, &outcome, &initialized, &run.Error); err != nil {
			return nil, fmt.Errorf("scan processor run: %w", err)
		}
		run.Outcome = ir.Outcome(outcome)
		run.Initialized = initialized != 0
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processor runs: %w", err)
	}
	return runs, nil
}

// ReadMutations returns mutations with from < seq <= to, in seq order.
// A to of zero or less means no upper bound.
func (s *Store) ReadMutations(ctx context.Context, from, to int64) ([]ir.Mutation, error) {
	query := `SELECT seq, path, value FROM mutations WHERE seq > ?`
	args := []any{from}
	if to > 0 {
		query += ` AND seq <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query mutations: %w", err)
	}
	defer rows.Close()

	mutations := []ir.Mutation{}
	for rows.Next() {
		var m ir.Mutation
		var valueJSON string
		if err := rows.Scan(&m.Seq, &m.Path, &valueJSON); err != nil {
			return nil, fmt.Errorf("scan mutation: %w", err)
		}
		if m.Value, err = unmarshalValue(valueJSON); err != nil {
			return nil, fmt.Errorf("mutation %d: %w", m.Seq, err)
		}
		mutations = append(mutations, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mutations: %w", err)
	}
	return mutations, nil
}

// LastSeq returns the highest seq in the log, or 0 for an empty log.
// An evaluator resuming a log starts its clock here.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM passes
			UNION ALL
			SELECT seq FROM mutations
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

func scanPass(row scanner) (ir.PassRecord, error) {
	var pass ir.PassRecord
	var executed, failed, skipped string
	if err := row.Scan(&pass.ID, &pass.Token, &pass.Seq, &pass.NetworkHash, &executed, &failed, &skipped); err != nil {
		if err == sql.ErrNoRows {
			return ir.PassRecord{}, err
		}
		return ir.PassRecord{}, fmt.Errorf("scan pass: %w", err)
	}
	var err error
	if pass.Executed, err = unmarshalIDs(executed); err != nil {
		return ir.PassRecord{}, err
	}
	if pass.Failed, err = unmarshalIDs(failed); err != nil {
		return ir.PassRecord{}, err
	}
	if pass.Skipped, err = unmarshalIDs(skipped); err != nil {
		return ir.PassRecord{}, err
	}
	return pass, nil
}
