package wrenlet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotsRoundTrip(t *testing.T) {
	vm, _ := newTestVM(t, Config{})
	defer vm.Close()
	s := vm.Slots()

	t.Run("null", func(t *testing.T) {
		require.NoError(t, s.Set(0, nil))
		_, err := Get[struct{}](s, 0)
		require.NoError(t, err)
		assert.Equal(t, Null(), s.Value(0))
	})

	t.Run("bool", func(t *testing.T) {
		for _, b := range []bool{true, false} {
			require.NoError(t, s.Set(0, b))
			got, err := Get[bool](s, 0)
			require.NoError(t, err)
			assert.Equal(t, b, got)
		}
	})

	t.Run("num", func(t *testing.T) {
		for _, n := range []any{1.5, float32(2.5), 3, int8(-4), uint64(5), -0.0} {
			require.NoError(t, s.Set(1, n))
			assert.Equal(t, TypeNum, s.Type(1))
			_, err := Get[float64](s, 1)
			require.NoError(t, err)
		}
		require.NoError(t, s.Set(1, int32(42)))
		got, err := Get[float64](s, 1)
		require.NoError(t, err)
		assert.Equal(t, 42.0, got)
	})

	t.Run("string", func(t *testing.T) {
		for _, str := range []string{"", "hello", "héllo wörld", "nul\x00byte"} {
			require.NoError(t, s.Set(2, str))
			got, err := Get[string](s, 2)
			require.NoError(t, err)
			assert.Equal(t, str, got)
		}
	})

	t.Run("value", func(t *testing.T) {
		for _, v := range []Value{Null(), Bool(true), Num(7), String("seven")} {
			require.NoError(t, s.Set(3, v))
			assert.Equal(t, v, s.Value(3))
		}
	})
}

func TestGetMismatch(t *testing.T) {
	vm, _ := newTestVM(t, Config{})
	defer vm.Close()
	s := vm.Slots()
	require.NoError(t, s.Set(0, 1.0))

	_, err := Get[bool](s, 0)
	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, TypeMismatch, ce.Kind)
	assert.Equal(t, []SlotType{TypeBool}, ce.Expected)
	assert.Equal(t, TypeNum, ce.Found)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = Get[string](s, 0)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = Get[struct{}](s, 0)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	// The slot is untouched.
	got, err := Get[float64](s, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestGetStrings(t *testing.T) {
	vm, _ := newTestVM(t, Config{})
	defer vm.Close()
	s := vm.Slots()
	invalid := []byte{'a', 0xff, 'b'}
	require.NoError(t, s.Set(0, invalid))

	_, err := Get[string](s, 0)
	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, InvalidEncoding, ce.Kind)
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	lossy, err := Get[LossyString](s, 0)
	require.NoError(t, err)
	assert.Equal(t, LossyString("a�b"), lossy)

	raw, err := Get[[]byte](s, 0)
	require.NoError(t, err)
	assert.Equal(t, invalid, raw)
	raw[0] = 'z'
	again, err := Get[[]byte](s, 0)
	require.NoError(t, err)
	assert.Equal(t, byte('a'), again[0])
}

func TestSetUnsupported(t *testing.T) {
	vm, _ := newTestVM(t, Config{})
	defer vm.Close()
	s := vm.Slots()
	require.NoError(t, s.Set(0, "keep"))

	tests := []struct {
		name  string
		value any
	}{
		{name: "struct", value: struct{ A int }{1}},
		{name: "map", value: map[string]int{}},
		{name: "list value", value: Value{Type: TypeList}},
		{name: "complex", value: complex(1, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Set(3, tt.value)
			assert.ErrorIs(t, err, ErrUnsupportedType)
			assert.Equal(t, 1, s.Count())
			assert.Equal(t, String("keep"), s.Value(0))
		})
	}
}

func TestEnsure(t *testing.T) {
	vm, _ := newTestVM(t, Config{})
	defer vm.Close()
	s := vm.Slots()

	s.Ensure(2)
	require.NoError(t, s.Set(1, true))
	s.Ensure(2)
	assert.Equal(t, 2, s.Count())
	assert.Equal(t, Bool(true), s.Value(1))

	s.Ensure(5)
	assert.Equal(t, 5, s.Count())
	for i := 2; i < 5; i++ {
		assert.Equal(t, TypeNull, s.Type(i))
	}
	s.Ensure(1)
	assert.Equal(t, 5, s.Count())

	require.NoError(t, s.Set(7, 1))
	assert.Equal(t, 8, s.Count())
	for i := 5; i < 7; i++ {
		assert.Equal(t, Null(), s.Value(i))
	}
}

func TestSlotsContract(t *testing.T) {
	vm, _ := newTestVM(t, Config{})
	defer vm.Close()

	s := vm.Slots()
	s.Ensure(1)
	v := requireViolation(t, func() { s.Type(1) })
	assert.Equal(t, "Type", v.Op)
	requireViolation(t, func() { _, _ = Get[bool](s, -1) })
	requireViolation(t, func() { s.Ensure(-1) })
	requireViolation(t, func() { _ = s.Set(-1, 1) })
	requireViolation(t, func() { s.Abort(assert.AnError) })

	fresh := vm.Slots()
	v = requireViolation(t, func() { s.Count() })
	assert.Contains(t, v.Reason, "ran again")
	fresh.Ensure(1)
}

func TestLists(t *testing.T) {
	vm, _ := newTestVM(t, Config{})
	defer vm.Close()
	s := vm.Slots()

	s.NewList(0)
	s.Ensure(3)
	for i, v := range []any{"a", "b", "c"} {
		require.NoError(t, s.Set(1, v))
		require.NoError(t, s.InsertInList(0, -1, 1))
		n, err := s.ListCount(0)
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
	}
	require.NoError(t, s.Set(1, "first"))
	require.NoError(t, s.InsertInList(0, 0, 1))

	require.NoError(t, s.ListElement(0, -1, 2))
	assert.Equal(t, String("c"), s.Value(2))
	require.NoError(t, s.ListElement(0, 0, 2))
	assert.Equal(t, String("first"), s.Value(2))

	require.NoError(t, s.Set(1, 9))
	require.NoError(t, s.SetListElement(0, 1, 1))
	require.NoError(t, s.ListElement(0, 1, 2))
	assert.Equal(t, Num(9), s.Value(2))

	requireViolation(t, func() { _ = s.ListElement(0, 4, 2) })
	requireViolation(t, func() { _ = s.ListElement(0, -5, 2) })

	_, err := s.ListCount(1)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Equal(t, "<list>", s.Value(0).String())
}

func TestMaps(t *testing.T) {
	vm, _ := newTestVM(t, Config{})
	defer vm.Close()
	s := vm.Slots()

	s.NewMap(0)
	s.Ensure(4)
	require.NoError(t, s.Set(1, "key"))
	require.NoError(t, s.Set(2, 1.5))
	require.NoError(t, s.SetMapValue(0, 1, 2))

	n, err := s.MapCount(0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	ok, err := s.MapContainsKey(0, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.MapValue(0, 1, 3))
	assert.Equal(t, Num(1.5), s.Value(3))

	require.NoError(t, s.RemoveMapValue(0, 1, 3))
	assert.Equal(t, Num(1.5), s.Value(3))
	require.NoError(t, s.MapValue(0, 1, 3))
	assert.True(t, s.Value(3).IsNull())

	_, err = s.MapCount(1)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Null(), "null"},
		{Bool(true), "true"},
		{Num(2.5), "2.5"},
		{String("hi"), `"hi"`},
		{Value{Type: TypeForeign}, "<foreign>"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.v.String())
	}
	assert.True(t, String("x").IsScalar())
	assert.False(t, Value{Type: TypeMap}.IsScalar())
	assert.Equal(t, "x", String("x").Text())
}

func TestValuePredicates(t *testing.T) {
	tests := []struct {
		v      Value
		null   bool
		scalar bool
		text   string
	}{
		{v: Null(), null: true, scalar: true},
		{v: Bool(true), scalar: true},
		{v: Num(1.5), scalar: true},
		{v: String("wren"), scalar: true, text: "wren"},
		{v: Value{Type: TypeList}},
		{v: Value{Type: TypeForeign}},
	}
	for _, tt := range tests {
		t.Run(tt.v.Type.String(), func(t *testing.T) {
			assert.Equal(t, tt.null, tt.v.IsNull())
			assert.Equal(t, tt.scalar, tt.v.IsScalar())
			assert.Equal(t, tt.text, tt.v.Text())
		})
	}
}
