package effects

import (
	"fmt"

	transform "github.com/filestack/transformations-ui-ios-sub001"
	"github.com/filestack/transformations-ui-ios-sub001/utils"
)

func floatIn(name string, v any, lo, hi float64) (float64, error) {
	f, err := transform.ToFloat(name, v)
	if err != nil {
		return 0, err
	}
	if f < lo || f > hi {
		return 0, transform.InvalidParam(name, v, fmt.Sprintf("must be within [%g, %g]", lo, hi))
	}
	return f, nil
}

func intAtLeast(name string, v any, lo int) (int, error) {
	n, err := transform.ToInt(name, v)
	if err != nil {
		return 0, err
	}
	if n < lo {
		return 0, transform.InvalidParam(name, v, fmt.Sprintf("must be >= %d", lo))
	}
	return n, nil
}

func oneOf(name string, v any, options ...string) (string, error) {
	s, err := transform.ToString(name, v)
	if err != nil {
		return "", err
	}
	if !utils.Contains(options, s) {
		return "", transform.InvalidParam(name, v, "unsupported value")
	}
	return s, nil
}

func intIn(name string, v any, lo, hi int) (int, error) {
	n, err := transform.ToInt(name, v)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, transform.InvalidParam(name, v, fmt.Sprintf("must be within [%d, %d]", lo, hi))
	}
	return n, nil
}
