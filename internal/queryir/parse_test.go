package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procnet/internal/ir"
)

func TestParsePredicate(t *testing.T) {
	tests := []struct {
		expr string
		want Predicate
	}{
		{"outcome=error", &Equals{Field: "outcome", Value: ir.String("error")}},
		{"seq>=10", &Compare{Field: "seq", Op: OpGe, Value: ir.Int(10)}},
		{"seq <= 4", &Compare{Field: "seq", Op: OpLe, Value: ir.Int(4)}},
		{"processor!=scale", &Compare{Field: "processor", Op: OpNe, Value: ir.String("scale")}},
		{"seq>2", &Compare{Field: "seq", Op: OpGt, Value: ir.Int(2)}},
		{"seq<2", &Compare{Field: "seq", Op: OpLt, Value: ir.Int(2)}},
		{"initialized=true", &Equals{Field: "initialized", Value: ir.Bool(true)}},
		{"processor=t", &Equals{Field: "processor", Value: ir.String("t")}},
		{"value=1.5", &Equals{Field: "value", Value: ir.Float(1.5)}},
		{`path="a=b"`, &Equals{Field: "path", Value: ir.String("a=b")}},
		{"error=", &Equals{Field: "error", Value: ir.String("")}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParsePredicate(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePredicate_Invalid(t *testing.T) {
	for _, expr := range []string{"", "outcome", "=error", ">3"} {
		_, err := ParsePredicate(expr)
		assert.ErrorIs(t, err, ErrInvalidQuery, expr)
	}
}
