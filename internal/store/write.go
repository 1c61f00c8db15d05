package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/procnet/internal/ir"
)

// WriteSnapshot stores a serialized network under its content hash.
// Uses ON CONFLICT(hash) DO NOTHING: the same network written twice is one row.
func (s *Store) WriteSnapshot(ctx context.Context, snap ir.Snapshot) error {
	docJSON, err := marshalValue(snap.Doc)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (hash, name, doc)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, snap.Hash, snap.Name, docJSON)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// WritePass records a pass together with its processor runs in a single
// transaction. Writing the same pass ID again is a no-op.
func (s *Store) WritePass(ctx context.Context, pass ir.PassRecord, runs []ir.ProcessorRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write pass: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	inserted, err := insertPass(ctx, tx, pass)
	if err != nil {
		return fmt.Errorf("write pass: %w", err)
	}
	if inserted {
		for _, run := range runs {
			if run.PassID == "" {
				run.PassID = pass.ID
			}
			if err := insertProcessorRun(ctx, tx, run); err != nil {
				return fmt.Errorf("write pass: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write pass: commit: %w", err)
	}
	return nil
}

// WriteProcessorRun appends one processor outcome to an existing pass.
//
// Note: The pass referenced by PassID must exist (foreign key constraint).
func (s *Store) WriteProcessorRun(ctx context.Context, run ir.ProcessorRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write processor run: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertProcessorRun(ctx, tx, run); err != nil {
		return fmt.Errorf("write processor run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write processor run: commit: %w", err)
	}
	return nil
}

// WriteMutation appends a property change. Seq is the primary key, so a
// mutation written twice is stored once.
func (s *Store) WriteMutation(ctx context.Context, m ir.Mutation) error {
	valueJSON, err := marshalValue(m.Value)
	if err != nil {
		return fmt.Errorf("write mutation: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mutations (seq, path, value)
		VALUES (?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, m.Seq, m.Path, valueJSON)
	if err != nil {
		return fmt.Errorf("write mutation: %w", err)
	}
	return nil
}

func insertPass(ctx context.Context, tx *sql.Tx, pass ir.PassRecord) (bool, error) {
	executed, err := marshalIDs(pass.Executed)
	if err != nil {
		return false, err
	}
	failed, err := marshalIDs(pass.Failed)
	if err != nil {
		return false, err
	}
	skipped, err := marshalIDs(pass.Skipped)
	if err != nil {
		return false, err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO passes (id, token, seq, network_hash, executed, failed, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, pass.ID, pass.Token, pass.Seq, pass.NetworkHash, executed, failed, skipped)
	if err != nil {
		return false, fmt.Errorf("insert pass: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert pass: rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func insertProcessorRun(ctx context.Context, tx *sql.Tx, run ir.ProcessorRun) error {
	initialized := 0
	if run.Initialized {
		initialized = 1
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO processor_runs (pass_id, seq, processor, outcome, initialized, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(pass_id, processor) DO NOTHING
	`, run.PassID, run.Seq, run.Processor, string(run.Outcome), initialized, run.Error)
	if err != nil {
		return fmt.Errorf("insert processor run %s: %w", run.Processor, err)
	}
	return nil
}
