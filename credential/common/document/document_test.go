package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

func TestParse(t *testing.T) {
	t.Run("keeps member order and number literals", func(t *testing.T) {
		input := `{"z":1.50,"a":[true,null,"x<y"],"m":{"k":-2e3}}`

		v, err := Parse([]byte(input))
		require.NoError(t, err)

		require.Equal(t, Object, v.Kind)
		require.Len(t, v.Members, 3)
		assert.Equal(t, "z", v.Members[0].Key)
		assert.Equal(t, "1.50", v.Get("z").Number)
		assert.Equal(t, Array, v.Get("a").Kind)

		out, err := v.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, input, string(out))
	})

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ``},
		{"whitespace", `   `},
		{"truncated", `{"a":`},
		{"not json", `hello`},
		{"duplicate key", `{"a":1,"a":2}`},
		{"trailing value", `{} {}`},
		{"trailing garbage", `{"a":1} x`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, vcerr.ErrMalformedDocument)
		})
	}
}

func TestValue_WithWithout(t *testing.T) {
	v, err := Parse([]byte(`{"a":1,"proof":{},"b":2}`))
	require.NoError(t, err)

	stripped := v.Without("proof")
	out, _ := stripped.MarshalJSON()
	assert.Equal(t, `{"a":1,"b":2}`, string(out))

	replaced := v.With("proof", NewString("x"))
	out, _ = replaced.MarshalJSON()
	assert.Equal(t, `{"a":1,"proof":"x","b":2}`, string(out))

	appended := stripped.With("c", NewBool(false))
	out, _ = appended.MarshalJSON()
	assert.Equal(t, `{"a":1,"b":2,"c":false}`, string(out))

	// the original is untouched
	out, _ = v.MarshalJSON()
	assert.Equal(t, `{"a":1,"proof":{},"b":2}`, string(out))
}

func TestValue_ToInterface(t *testing.T) {
	v, err := Parse([]byte(`{"n":3,"s":"x","l":[false,null],"o":{}}`))
	require.NoError(t, err)

	generic, err := v.ToInterface()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"n": float64(3),
		"s": "x",
		"l": []interface{}{false, nil},
		"o": map[string]interface{}{},
	}, generic)
}

func TestValue_ToInterface_Numbers(t *testing.T) {
	accepted := []struct {
		literal string
		value   float64
	}{
		{"0", 0},
		{"1.0", 1},
		{"1.50", 1.5},
		{"0.1", 0.1},
		{"-2e3", -2000},
		{"9007199254740991", 9007199254740991},
		{"1e20", 1e20},
	}
	for _, tt := range accepted {
		t.Run(tt.literal, func(t *testing.T) {
			generic, err := NewNumber(tt.literal).ToInterface()

			require.NoError(t, err)
			assert.Equal(t, tt.value, generic)
		})
	}

	rejected := []string{
		"12345678901234567890",
		"12345678901234567891",
		"9007199254740993",
		"0.10000000000000001",
		"3.14159265358979323846",
		"1e400",
	}
	for _, literal := range rejected {
		t.Run(literal, func(t *testing.T) {
			_, err := NewNumber(literal).ToInterface()

			assert.ErrorIs(t, err, vcerr.ErrMalformedDocument)
		})
	}
}

func TestValue_Get(t *testing.T) {
	var nilValue *Value
	assert.Nil(t, nilValue.Get("a"))
	assert.Nil(t, NewString("a").Get("a"))
	assert.False(t, NewObject().Has("a"))

	s, ok := NewString("abc").StringValue()
	assert.True(t, ok)
	assert.Equal(t, "abc", s)
	_, ok = NewBool(true).StringValue()
	assert.False(t, ok)
}
