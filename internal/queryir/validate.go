package queryir

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/procnet/internal/ir"
)

// ErrInvalidQuery wraps every validation failure.
var ErrInvalidQuery = errors.New("invalid query")

// Validate checks q against Schema and reports every problem found.
// A query that passes can be compiled without interpolating anything that
// is not a Schema name.
func Validate(q Query) error {
	v := &validator{}
	v.query(q)
	if len(v.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidQuery, errors.Join(v.errs...))
}

type validator struct {
	errs []error
}

func (v *validator) addf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) query(q Query) {
	switch q := q.(type) {
	case *Select:
		if q == nil {
			v.addf("nil select")
			return
		}
		v.selectNode(q)
	case *Join:
		if q == nil {
			v.addf("nil join")
			return
		}
		v.join(q)
	case nil:
		v.addf("nil query")
	default:
		v.addf("unknown query type %T", q)
	}
}

func (v *validator) selectNode(s *Select) {
	table, ok := Schema[s.From]
	if !ok {
		v.addf("unknown table %q", s.From)
		return
	}
	for _, f := range s.Fields {
		v.column(s.From, table, f)
	}
	v.predicate(s.From, table, s.Filter)
}

func (v *validator) join(j *Join) {
	if j.Left == nil || j.Right == nil {
		v.addf("join needs both sides")
		return
	}
	v.selectNode(j.Left)
	v.selectNode(j.Right)
	if j.Left.From == j.Right.From {
		v.addf("self join on %q", j.Left.From)
	}
	if t, ok := Schema[j.Left.From]; ok {
		v.column(j.Left.From, t, j.LeftField)
	}
	if t, ok := Schema[j.Right.From]; ok {
		v.column(j.Right.From, t, j.RightField)
	}
}

func (v *validator) column(name string, t Table, col string) {
	if !slices.Contains(t.Columns, col) {
		v.addf("unknown column %q in %s", col, name)
	}
}

func (v *validator) predicate(name string, t Table, p Predicate) {
	switch p := p.(type) {
	case nil:
	case *Equals:
		v.column(name, t, p.Field)
		v.value(p.Field, p.Value)
	case *Compare:
		v.column(name, t, p.Field)
		v.value(p.Field, p.Value)
		if !p.Op.valid() {
			v.addf("%s: unknown operator %q", p.Field, p.Op)
		}
	case *And:
		for _, sub := range p.Predicates {
			v.predicate(name, t, sub)
		}
	default:
		v.addf("unknown predicate type %T", p)
	}
}

// value accepts scalars only; null never compares equal in SQL.
func (v *validator) value(field string, val ir.Value) {
	switch val.(type) {
	case ir.String, ir.Int, ir.Float, ir.Bool:
	case nil, ir.Null:
		v.addf("%s: compared to null", field)
	default:
		v.addf("%s: %T is not a scalar", field, val)
	}
}

func (o Op) valid() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}
