package ir

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Float(0.5)
	var _ Value = Bool(true)
	var _ Value = Array{String("a"), Int(1)}
	var _ Value = Object{"key": String("value")}
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{
		"zebra":  String("z"),
		"apple":  String("a"),
		"banana": String("b"),
	}
	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestObjectSortedKeysUTF16Order(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 but after it in UTF-16
	// (the emoji encodes as the surrogate pair D83D DE00).
	obj := Object{
		"\U0001F600": Int(1),
		"\uFF61":     Int(2),
	}
	assert.Equal(t, []string{"\U0001F600", "\uFF61"}, obj.SortedKeys())
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same int", Int(3), Int(3), true},
		{"int vs float", Int(3), Float(3), true},
		{"float vs int fraction", Float(3.5), Int(3), false},
		{"string", String("a"), String("a"), true},
		{"string vs int", String("1"), Int(1), false},
		{"null", Null{}, Null{}, true},
		{"arrays", Array{Int(1), Bool(true)}, Array{Int(1), Bool(true)}, true},
		{"array length", Array{Int(1)}, Array{Int(1), Int(2)}, false},
		{"objects", Object{"a": Int(1)}, Object{"a": Float(1)}, true},
		{"object keys", Object{"a": Int(1)}, Object{"b": Int(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestAsIntRejectsFraction(t *testing.T) {
	n, ok := AsInt(Float(4))
	require.True(t, ok)
	assert.Equal(t, int64(4), n)

	_, ok = AsInt(Float(4.25))
	assert.False(t, ok)

	_, ok = AsInt(String("4"))
	assert.False(t, ok)

	for _, f := range []float64{1e300, -1e300, 1 << 63} {
		_, ok = AsInt(Float(f))
		assert.False(t, ok, "%g", f)
	}
	n, ok = AsInt(Float(-(1 << 63)))
	require.True(t, ok)
	assert.Equal(t, int64(math.MinInt64), n)
}

func TestUnmarshalValueNumbers(t *testing.T) {
	v, err := UnmarshalValue([]byte(`{"i": 3, "f": 0.25, "e": 1e2, "n": null}`))
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok)
	assert.Equal(t, Int(3), obj["i"])
	assert.Equal(t, Float(0.25), obj["f"])
	assert.Equal(t, Float(100), obj["e"])
	assert.Equal(t, Null{}, obj["n"])
}

func TestObjectJSONRoundTrip(t *testing.T) {
	original := Object{
		"name":    String("scale"),
		"factor":  Float(1.5),
		"enabled": Bool(true),
		"layers":  Array{Int(1), Int(2)},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Equal(t, `{"enabled":true,"factor":1.5,"layers":[1,2],"name":"scale"}`, string(data))

	var decoded Object
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, Equal(original, decoded))
}

func TestFromAnyYAMLShapes(t *testing.T) {
	v, err := FromAny(map[string]any{
		"count": 2,
		"items": []any{"a", 1.5, true},
	})
	require.NoError(t, err)
	assert.True(t, Equal(Object{
		"count": Int(2),
		"items": Array{String("a"), Float(1.5), Bool(true)},
	}, v))
}

func TestFromAnyRejectsNonFinite(t *testing.T) {
	_, err := FromAny(json.Number("1e999"))
	assert.Error(t, err)
}

func TestToAnyInvertsFromAny(t *testing.T) {
	v := Object{"a": Array{Int(1), Float(0.5), Null{}}, "b": String("x")}
	back, err := FromAny(ToAny(v))
	require.NoError(t, err)
	assert.True(t, Equal(v, back))
}
