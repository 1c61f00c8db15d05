package queryir

import "github.com/roach88/procnet/internal/ir"

// Query is a sealed query node: *Select or *Join.
type Query interface {
	queryNode()
}

// Predicate is a sealed filter node: *Equals, *Compare or *And.
type Predicate interface {
	predicateNode()
}

// Select reads rows of one table.
//
//	SELECT <fields> FROM <from> WHERE <filter> ORDER BY <table order>
//
// An empty Fields list selects every column of the table in Schema order.
type Select struct {
	From   string
	Filter Predicate // nil matches every row
	Fields []string
}

func (*Select) queryNode() {}

// Join is an inner equi-join of two tables.
//
//	SELECT ... FROM <left> JOIN <right> ON left.<LeftField> = right.<RightField>
//
// Fields and filter columns must be qualified as "table.column". Rows are
// ordered by the left table's order.
type Join struct {
	Left       *Select
	Right      *Select
	LeftField  string
	RightField string
}

func (*Join) queryNode() {}

// Equals matches rows whose Field equals Value.
type Equals struct {
	Field string
	Value ir.Value
}

func (*Equals) predicateNode() {}

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Compare matches rows where Field Op Value holds.
type Compare struct {
	Field string
	Op    Op
	Value ir.Value
}

func (*Compare) predicateNode() {}

// And holds when every predicate holds. An empty And matches everything.
type And struct {
	Predicates []Predicate
}

func (*And) predicateNode() {}

// AllOf returns nil for no predicates, the predicate itself for one, and
// an And otherwise.
func AllOf(preds ...Predicate) Predicate {
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	}
	return &And{Predicates: preds}
}
