package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/queryir"
)

func TestCompile_Select(t *testing.T) {
	st, err := Compile(&queryir.Select{
		From:   queryir.TableRuns,
		Filter: &queryir.Equals{Field: "processor", Value: ir.String("scale")},
		Fields: []string{"seq", "outcome"},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT seq, outcome FROM processor_runs WHERE processor = ? ORDER BY seq ASC, rowid ASC", st.SQL)
	assert.Equal(t, []any{"scale"}, st.Args)
	assert.Equal(t, []Column{{Name: "seq"}, {Name: "outcome"}}, st.Columns)
}

func TestCompile_SelectAllColumns(t *testing.T) {
	st, err := Compile(&queryir.Select{From: queryir.TablePasses})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, token, seq, network_hash, executed, failed, skipped FROM passes ORDER BY seq ASC, id COLLATE BINARY ASC",
		st.SQL)
	assert.Empty(t, st.Args)

	var jsonCols []string
	for _, c := range st.Columns {
		if c.JSON {
			jsonCols = append(jsonCols, c.Name)
		}
	}
	assert.Equal(t, []string{"executed", "failed", "skipped"}, jsonCols)
}

func TestCompile_ParametersNeverInterpolated(t *testing.T) {
	st, err := Compile(&queryir.Select{
		From: queryir.TableMutations,
		Filter: &queryir.And{Predicates: []queryir.Predicate{
			&queryir.Equals{Field: "path", Value: ir.String("a.value'; DROP TABLE passes; --")},
			&queryir.Compare{Field: "seq", Op: queryir.OpGt, Value: ir.Int(4)},
			&queryir.Compare{Field: "seq", Op: queryir.OpLe, Value: ir.Float(9)},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT seq, path, value FROM mutations WHERE path = ? AND seq > ? AND seq <= ? ORDER BY seq ASC", st.SQL)
	assert.Equal(t, []any{"a.value'; DROP TABLE passes; --", int64(4), float64(9)}, st.Args)
}

func TestCompile_EmptyAnd(t *testing.T) {
	st, err := Compile(&queryir.Select{From: queryir.TableMutations, Filter: &queryir.And{}, Fields: []string{"seq"}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT seq FROM mutations WHERE 1 = 1 ORDER BY seq ASC", st.SQL)
}

func TestCompile_Join(t *testing.T) {
	st, err := Compile(&queryir.Join{
		Left: &queryir.Select{
			From:   queryir.TableRuns,
			Filter: &queryir.Equals{Field: "outcome", Value: ir.String("error")},
			Fields: []string{"processor"},
		},
		Right: &queryir.Select{
			From:   queryir.TablePasses,
			Filter: &queryir.Equals{Field: "token", Value: ir.String("tok")},
			Fields: []string{"token"},
		},
		LeftField:  "pass_id",
		RightField: "id",
	})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT processor_runs.processor AS "processor_runs.processor", passes.token AS "passes.token" `+
			`FROM processor_runs JOIN passes ON processor_runs.pass_id = passes.id `+
			`WHERE processor_runs.outcome = ? AND passes.token = ? `+
			`ORDER BY processor_runs.seq ASC, processor_runs.rowid ASC`,
		st.SQL)
	assert.Equal(t, []any{"error", "tok"}, st.Args)
	assert.Equal(t, []Column{{Name: "processor_runs.processor"}, {Name: "passes.token"}}, st.Columns)
}

func TestCompile_RejectsInvalidQuery(t *testing.T) {
	_, err := Compile(&queryir.Select{From: "sqlite_master"})
	require.Error(t, err)
	assert.ErrorIs(t, err, queryir.ErrInvalidQuery)

	_, err = Compile(&queryir.Select{
		From:   queryir.TableRuns,
		Filter: &queryir.Equals{Field: "processor = processor OR 1", Value: ir.Int(1)},
	})
	assert.ErrorIs(t, err, queryir.ErrInvalidQuery)
}
