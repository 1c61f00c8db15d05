// Package querysql compiles queryir queries to SQLite SQL.
//
// Every statement ends in the table's ORDER BY from queryir.Schema so
// results are deterministic, and every value is a ? parameter.
package querysql

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/queryir"
)

// Statement is a compiled query.
type Statement struct {
	SQL  string
	Args []any
	// Columns names the result columns in order. Join results are named
	// "table.column".
	Columns []Column
}

// Column is one result column.
type Column struct {
	Name string
	// JSON is set for columns holding JSON text.
	JSON bool
}

// Compile validates q and turns it into a Statement.
func Compile(q queryir.Query) (Statement, error) {
	if err := queryir.Validate(q); err != nil {
		return Statement{}, err
	}
	switch q := q.(type) {
	case *queryir.Select:
		return compileSelect(q)
	case *queryir.Join:
		return compileJoin(q)
	default:
		return Statement{}, fmt.Errorf("unsupported query type: %T", q)
	}
}

func compileSelect(s *queryir.Select) (Statement, error) {
	table := queryir.Schema[s.From]
	var st Statement
	cols := selected(s)
	for _, c := range cols {
		st.Columns = append(st.Columns, Column{Name: c, JSON: slices.Contains(table.JSON, c)})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), s.From)
	if s.Filter != nil {
		where, args, err := compilePredicate("", s.Filter)
		if err != nil {
			return Statement{}, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE " + where)
		st.Args = args
	}
	b.WriteString(" ORDER BY " + strings.Join(table.Order, ", "))
	st.SQL = b.String()
	return st, nil
}

func compileJoin(j *queryir.Join) (Statement, error) {
	var st Statement
	var exprs []string
	for _, side := range []*queryir.Select{j.Left, j.Right} {
		table := queryir.Schema[side.From]
		for _, c := range selected(side) {
			name := side.From + "." + c
			exprs = append(exprs, fmt.Sprintf("%s AS %q", name, name))
			st.Columns = append(st.Columns, Column{Name: name, JSON: slices.Contains(table.JSON, c)})
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s JOIN %s ON %s.%s = %s.%s",
		strings.Join(exprs, ", "),
		j.Left.From, j.Right.From,
		j.Left.From, j.LeftField, j.Right.From, j.RightField)

	var where []string
	for _, side := range []*queryir.Select{j.Left, j.Right} {
		if side.Filter == nil {
			continue
		}
		sql, args, err := compilePredicate(side.From+".", side.Filter)
		if err != nil {
			return Statement{}, fmt.Errorf("compile %s filter: %w", side.From, err)
		}
		where = append(where, sql)
		st.Args = append(st.Args, args...)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	var order []string
	for _, o := range queryir.Schema[j.Left.From].Order {
		order = append(order, j.Left.From+"."+o)
	}
	b.WriteString(" ORDER BY " + strings.Join(order, ", "))
	st.SQL = b.String()
	return st, nil
}

func selected(s *queryir.Select) []string {
	if len(s.Fields) > 0 {
		return s.Fields
	}
	return queryir.Schema[s.From].Columns
}

// compilePredicate renders p with column names prefixed by prefix.
func compilePredicate(prefix string, p queryir.Predicate) (string, []any, error) {
	switch p := p.(type) {
	case *queryir.Equals:
		return compileCompare(prefix, p.Field, queryir.OpEq, p.Value)
	case *queryir.Compare:
		return compileCompare(prefix, p.Field, p.Op, p.Value)
	case *queryir.And:
		if len(p.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		var parts []string
		var args []any
		for _, sub := range p.Predicates {
			sql, subArgs, err := compilePredicate(prefix, sub)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			args = append(args, subArgs...)
		}
		return strings.Join(parts, " AND "), args, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileCompare(prefix, field string, op queryir.Op, v ir.Value) (string, []any, error) {
	param, err := toParam(v)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", field, err)
	}
	return fmt.Sprintf("%s%s %s ?", prefix, field, op), []any{param}, nil
}

// toParam converts a scalar ir.Value to a driver value.
func toParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Float:
		return float64(val), nil
	case ir.Bool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("%T cannot be a SQL parameter", v)
	}
}
