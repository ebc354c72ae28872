package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceToBool(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", NullValue(), false},
		{"false", BoolValue(false), false},
		{"true", BoolValue(true), true},
		{"zero", NumberValue(0), false},
		{"nonzero", NumberValue(3.14), true},
		{"empty string", StringValue(""), false},
		{"nonempty string", StringValue("x"), true},
		{"vector", VectorValue(NewVector(nil)), true},
		{"map", MapValue(NewMap()), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, CoerceToBool(c.v))
		})
	}
}

func TestCompareValuesCrossKind(t *testing.T) {
	// Different tags are never equal, and ordering is fixed by tag order.
	assert.NotEqual(t, 0, CompareValues(NumberValue(1), StringValue("1")))
	assert.True(t, CompareValues(NullValue(), BoolValue(false)) < 0)
}

func TestCompareValuesNumbers(t *testing.T) {
	assert.Equal(t, -1, CompareValues(NumberValue(1), NumberValue(2)))
	assert.Equal(t, 1, CompareValues(NumberValue(2), NumberValue(1)))
	assert.Equal(t, 0, CompareValues(NumberValue(2), NumberValue(2)))
}

func TestCompareValuesStrings(t *testing.T) {
	assert.Equal(t, -1, CompareValues(StringValue("a"), StringValue("b")))
	assert.Equal(t, 0, CompareValues(StringValue("a"), StringValue("a")))
}

func TestCompareValuesBooleanOrder(t *testing.T) {
	// false < true, per spec.md §3.4.
	assert.True(t, CompareValues(BoolValue(false), BoolValue(true)) < 0)
}

func TestRefCountingVectorChildren(t *testing.T) {
	inner := NewVector(nil)
	outer := NewVector([]Value{VectorValue(inner)})
	IncRef(VectorValue(inner)) // simulate inner being referenced by outer's construction
	require.Equal(t, 2, inner.refCount)

	err := DecRef(VectorValue(outer), nil)
	require.NoError(t, err)
	// outer's single decref drops it to 0, which recursively decrefs inner.
	assert.Equal(t, 1, inner.refCount)
}

func TestMapGetSetRemove(t *testing.T) {
	m := NewMap()
	m.Set(StringValue("a"), NumberValue(1))
	m.Set(StringValue("b"), NumberValue(2))

	v, ok := m.Get(StringValue("a"))
	require.True(t, ok)
	assert.Equal(t, float64(1), v.Num())

	m.Set(StringValue("a"), NumberValue(99))
	v, _ = m.Get(StringValue("a"))
	assert.Equal(t, float64(99), v.Num())

	assert.True(t, m.Remove(StringValue("b")))
	_, ok = m.Get(StringValue("b"))
	assert.False(t, ok)
}

func TestMapEnumerationCanonicalOrder(t *testing.T) {
	// spec.md scenario 3: m = {"b": 2, "a": 1}; iteration visits a, b.
	m := NewMap()
	m.Set(StringValue("b"), NumberValue(2))
	m.Set(StringValue("a"), NumberValue(1))

	m.Rewind()
	var keys []string
	for {
		more, pair := m.Next()
		if !more {
			break
		}
		keys = append(keys, pair.Vec().Elems[0].Str())
	}
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestVectorEnumerationEmpty(t *testing.T) {
	v := NewVector(nil)
	v.Rewind()
	more, val := v.Next()
	assert.False(t, more)
	assert.True(t, val.IsNull())
	assert.Equal(t, 0, v.Index)
}

func TestDisplayQuotesStringsOnlyWhenNested(t *testing.T) {
	assert.Equal(t, "hi", Display(StringValue("hi")))
	v := VectorValue(NewVector([]Value{StringValue("hi")}))
	assert.Equal(t, `["hi"]`, Display(v))
}

func TestDisplayNumberFormatting(t *testing.T) {
	assert.Equal(t, "14", Display(NumberValue(14)))
	assert.Equal(t, "3.5", Display(NumberValue(3.5)))
}
