// Package queryir is a small query representation over the evaluation log.
//
// Queries name a log table, filter its rows with predicates and pick the
// columns to return. The IR is backend-neutral; querysql compiles it to
// parameterized SQLite SQL and store.Select runs it.
//
//	[--where expr] → [queryir.Query] → [querysql] → SQL
//
// Tables and their columns are fixed by Schema. Validate rejects any
// reference outside it, so compiled SQL only ever interpolates names that
// appear in Schema; values always travel as parameters.
//
// Query and Predicate are sealed with marker methods so backends can
// switch exhaustively:
//
//	switch q := query.(type) {
//	case *Select:
//	case *Join:
//	}
//
// Example: failed runs of the processor "scale" after seq 10.
//
//	&Select{
//	  From: TableRuns,
//	  Filter: &And{Predicates: []Predicate{
//	    &Equals{Field: "processor", Value: ir.String("scale")},
//	    &Equals{Field: "outcome", Value: ir.String("error")},
//	    &Compare{Field: "seq", Op: OpGt, Value: ir.Int(10)},
//	  }},
//	}
package queryir
