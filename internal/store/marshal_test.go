package store

import (
	"math"
	"testing"

	"github.com/roach88/procnet/internal/ir"
)

func TestMarshalValue_Canonical(t *testing.T) {
	tests := []struct {
		name  string
		value ir.Value
		want  string
	}{
		{"nil is null", nil, "null"},
		{"sorted keys", ir.Object{"b": ir.Int(1), "a": ir.Bool(true)}, `{"a":true,"b":1}`},
		{"float", ir.Float(0.25), "0.25"},
		{"no html escape", ir.String("<a&b>"), `"<a&b>"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := marshalValue(tt.value)
			if err != nil {
				t.Fatalf("marshalValue() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("marshalValue() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMarshalValue_RejectsNonFinite(t *testing.T) {
	if _, err := marshalValue(ir.Float(math.Inf(1))); err == nil {
		t.Error("expected error for +Inf")
	}
}

func TestUnmarshalValue_LargeInteger(t *testing.T) {
	v, err := unmarshalValue("9007199254740993")
	if err != nil {
		t.Fatalf("unmarshalValue() failed: %v", err)
	}
	if !ir.Equal(v, ir.Int(9007199254740993)) {
		t.Errorf("value = %#v, precision lost", v)
	}
}

func TestUnmarshalValue_Empty(t *testing.T) {
	v, err := unmarshalValue("")
	if err != nil {
		t.Fatalf("unmarshalValue() failed: %v", err)
	}
	if _, ok := v.(ir.Null); !ok {
		t.Errorf("value = %#v, want Null", v)
	}
}

func TestMarshalIDs(t *testing.T) {
	got, err := marshalIDs(nil)
	if err != nil || got != "[]" {
		t.Errorf("marshalIDs(nil) = %q, %v", got, err)
	}
	ids, err := unmarshalIDs(`["b","a"]`)
	if err != nil {
		t.Fatalf("unmarshalIDs() failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "b" {
		t.Errorf("ids = %v, order must be kept", ids)
	}
	if _, err := unmarshalIDs("{"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
