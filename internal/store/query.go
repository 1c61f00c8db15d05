package store

import (
	"context"
	"fmt"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/queryir"
	"github.com/roach88/procnet/internal/querysql"
)

// Select runs q and returns one object per row, keyed by column name.
// JSON columns are decoded; NULL becomes ir.Null.
func (s *Store) Select(ctx context.Context, q queryir.Query) ([]ir.Object, error) {
	stmt, err := querysql.Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	result := []ir.Object{}
	raw := make([]any, len(stmt.Columns))
	ptrs := make([]any, len(raw))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("select: scan: %w", err)
		}
		row := make(ir.Object, len(raw))
		for i, col := range stmt.Columns {
			v, err := columnValue(raw[i], col.JSON)
			if err != nil {
				return nil, fmt.Errorf("select: column %s: %w", col.Name, err)
			}
			row[col.Name] = v
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return result, nil
}

func columnValue(v any, isJSON bool) (ir.Value, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if s, ok := v.(string); ok && isJSON {
		return unmarshalValue(s)
	}
	return ir.FromAny(v)
}

// QueryRuns returns processor runs matching filter, in execution order.
// A non-empty token restricts them to passes of that session.
func (s *Store) QueryRuns(ctx context.Context, filter queryir.Predicate, token string) ([]ir.ProcessorRun, error) {
	runs := &queryir.Select{From: queryir.TableRuns, Filter: filter}
	var q queryir.Query = runs
	prefix := ""
	if token != "" {
		q = &queryir.Join{
			Left: runs,
			Right: &queryir.Select{
				From:   queryir.TablePasses,
				Filter: &queryir.Equals{Field: "token", Value: ir.String(token)},
				Fields: []string{"token"},
			},
			LeftField:  "pass_id",
			RightField: "id",
		}
		prefix = queryir.TableRuns + "."
	}

	rows, err := s.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]ir.ProcessorRun, 0, len(rows))
	for _, row := range rows {
		get := func(col string) ir.Value { return row[prefix+col] }
		seq, _ := ir.AsInt(get("seq"))
		initialized, _ := ir.AsInt(get("initialized"))
		out = append(out, ir.ProcessorRun{
			PassID:      asString(get("pass_id")),
			Seq:         seq,
			Processor:   asString(get("processor")),
			Outcome:     ir.Outcome(asString(get("outcome"))),
			Initialized: initialized != 0,
			Error:       asString(get("error")),
		})
	}
	return out, nil
}

func asString(v ir.Value) string {
	if s, ok := v.(ir.String); ok {
		return string(s)
	}
	return ""
}
