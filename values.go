package transform

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Values is the name to value form of a parameter set. It is what snapshots
// store and what persistence serialises, so values are kept to plain types:
// bool, int, float64 and string.
type Values map[string]any

// Clone returns a shallow copy of v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether v and o hold the same names with equal values.
// Numbers compare by value regardless of their Go type, so values that went
// through a JSON round trip still compare equal.
func (v Values) Equal(o Values) bool {
	if len(v) != len(o) {
		return false
	}
	for k, a := range v {
		b, ok := o[k]
		if !ok {
			return false
		}
		fa, aNum := numeric(a)
		fb, bNum := numeric(b)
		if aNum && bNum {
			if fa != fb {
				return false
			}
			continue
		}
		if a != b {
			return false
		}
	}
	return true
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// ToFloat converts a parameter value to float64.
func ToFloat(name string, v any) (float64, error) {
	if f, ok := numeric(v); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, InvalidParam(name, v, "not a finite number")
		}
		return f, nil
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, nil
		}
	}
	return 0, InvalidParam(name, v, "expected a number")
}

// ToInt converts a parameter value to int. Floats are accepted only when integral.
func ToInt(name string, v any) (int, error) {
	f, err := ToFloat(name, v)
	if err != nil {
		return 0, InvalidParam(name, v, "expected an integer")
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, InvalidParam(name, v, "expected an integer")
	}
	return int(f), nil
}

// ToString converts a parameter value to string.
func ToString(name string, v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	}
	return "", InvalidParam(name, v, "expected a string")
}

// ToBool converts a parameter value to bool.
func ToBool(name string, v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		if p, err := strconv.ParseBool(b); err == nil {
			return p, nil
		}
	}
	return false, InvalidParam(name, v, "expected a boolean")
}

// ToColor converts a parameter value to a color. Strings are parsed as
// #rgb, #rrggbb or #rrggbbaa hex notation.
func ToColor(name string, v any) (color.NRGBA, error) {
	switch c := v.(type) {
	case color.NRGBA:
		return c, nil
	case color.Color:
		return color.NRGBAModel.Convert(c).(color.NRGBA), nil
	case string:
		if col, ok := parseHex(c); ok {
			return col, nil
		}
	}
	return color.NRGBA{}, InvalidParam(name, v, "expected a hex color")
}

// HexColor formats c in the notation accepted by ToColor.
func HexColor(c color.NRGBA) string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

func parseHex(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return color.NRGBA{}, false
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{
		R: uint8(n >> 24),
		G: uint8(n >> 16),
		B: uint8(n >> 8),
		A: uint8(n),
	}, true
}
