package queryir

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/procnet/internal/ir"
)

// two-character operators first so ">=" is not read as ">"
var parseOps = []Op{OpGe, OpLe, OpNe, OpEq, OpGt, OpLt}

// ParsePredicate reads "field op value", for example "outcome=error" or
// "seq>=10". Values that parse as integers, floats or booleans take those
// types; anything else is a string, with optional surrounding quotes
// removed.
func ParsePredicate(expr string) (Predicate, error) {
	at, op := -1, Op("")
	for _, candidate := range parseOps {
		if i := strings.Index(expr, string(candidate)); i >= 0 && (at < 0 || i < at) {
			at, op = i, candidate
		}
	}
	if at <= 0 {
		return nil, fmt.Errorf("%q: want field op value: %w", expr, ErrInvalidQuery)
	}
	field := strings.TrimSpace(expr[:at])
	value := parseLiteral(strings.TrimSpace(expr[at+len(op):]))
	if op == OpEq {
		return &Equals{Field: field, Value: value}, nil
	}
	return &Compare{Field: field, Op: op, Value: value}, nil
}

func parseLiteral(s string) ir.Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ir.Int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return ir.Float(f)
	}
	switch s {
	case "true":
		return ir.Bool(true)
	case "false":
		return ir.Bool(false)
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return ir.String(s[1 : len(s)-1])
	}
	return ir.String(s)
}
