package driver

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"zigbee-lumi/internal/lumi"
)

// Args are the named arguments of a command, usually decoded from JSON.
type Args map[string]interface{}

// Int returns a required integer argument.
func (a Args) Int(key string) (int, error) {
	v, ok := a[key]
	if !ok {
		return 0, &lumi.ValidationError{Field: key, Reason: "required"}
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, &lumi.ValidationError{Field: key, Value: int(n), Reason: "must be an integer"}
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, &lumi.ValidationError{Field: key, Reason: "must be an integer"}
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, &lumi.ValidationError{Field: key, Reason: fmt.Sprintf("must be an integer, got %q", n)}
		}
		return i, nil
	}
	return 0, &lumi.ValidationError{Field: key, Reason: fmt.Sprintf("must be an integer, got %T", v)}
}

// IntIn returns an integer argument within [lo, hi].
func (a Args) IntIn(key string, lo, hi int) (int, error) {
	n, err := a.Int(key)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, &lumi.ValidationError{Field: key, Value: n, Reason: fmt.Sprintf("must be %d..%d", lo, hi)}
	}
	return n, nil
}

// Rect reads top, bottom, left and right. Missing keys are 0.
func (a Args) Rect() (lumi.Rect, error) {
	var r lumi.Rect
	for _, f := range []struct {
		key string
		dst *int
	}{
		{"top", &r.Top},
		{"bottom", &r.Bottom},
		{"left", &r.Left},
		{"right", &r.Right},
	} {
		if _, ok := a[f.key]; !ok {
			continue
		}
		n, err := a.Int(f.key)
		if err != nil {
			return lumi.Rect{}, err
		}
		*f.dst = n
	}
	return r, r.Validate()
}
