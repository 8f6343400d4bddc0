package transform

import (
	"encoding/json"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValues_EqualAcrossNumericTypes(t *testing.T) {
	a := Values{"radius": 3, "sigma": 1.5, "mode": "stack", "on": true}
	b := Values{"radius": 3.0, "sigma": float32(1.5), "mode": "stack", "on": true}
	assert.True(t, a.Equal(b))

	b["radius"] = 4
	assert.False(t, a.Equal(b))

	assert.False(t, a.Equal(Values{"radius": 3}))
}

func TestValues_SurviveJSON(t *testing.T) {
	v := Values{"radius": 3, "color": "#ff0000", "opacity": 0.5}
	data, err := json.Marshal(v)
	require.NoError(t, err)

	var got Values
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, v.Equal(got))

	n, err := ToInt("radius", got["radius"])
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestValues_Keys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Values{"c": 1, "a": 2, "b": 3}.Keys())
}

func TestValues_Conversions(t *testing.T) {
	_, err := ToInt("n", 1.5)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = ToInt("n", "one")
	assert.ErrorIs(t, err, ErrInvalidParameter)

	f, err := ToFloat("f", 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, f)

	b, err := ToBool("b", "true")
	require.NoError(t, err)
	assert.True(t, b)

	_, err = ToString("s", 4)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestValues_EveryIntegerType(t *testing.T) {
	for _, v := range []any{int(5), int8(5), int16(5), int32(5), int64(5), uint(5), uint8(5), uint16(5), uint32(5), uint64(5)} {
		n, err := ToInt("n", v)
		require.NoError(t, err, "%T", v)
		assert.Equal(t, 5, n, "%T", v)
	}
	assert.True(t, Values{"x": uint(5)}.Equal(Values{"x": int16(5)}))
}

func TestValues_Colors(t *testing.T) {
	cases := map[string]color.NRGBA{
		"#f00":      {R: 0xff, A: 0xff},
		"#00ff00":   {G: 0xff, A: 0xff},
		"0000ff80":  {B: 0xff, A: 0x80},
		" #102030 ": {R: 0x10, G: 0x20, B: 0x30, A: 0xff},
	}
	for in, want := range cases {
		got, err := ToColor("c", in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ToColor("c", "#12")
	assert.ErrorIs(t, err, ErrInvalidParameter)

	assert.Equal(t, "#102030", HexColor(color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}))
	assert.Equal(t, "#0000ff80", HexColor(color.NRGBA{B: 0xff, A: 0x80}))
}
