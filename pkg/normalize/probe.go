package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// probe inspects a decoded JSON value and reports whether it found a T.
type probe[T any] func(v any) (T, bool)

// first returns the result of the first probe that matches v.
func first[T any](v any, probes ...probe[T]) (T, bool) {
	for _, p := range probes {
		if out, ok := p(v); ok {
			return out, true
		}
	}
	var zero T
	return zero, false
}

// decode parses payload into a generic JSON value.
func decode(payload []byte) (any, bool) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, false
	}
	return v, true
}

// lookup walks nested objects along path.
func lookup(v any, path ...string) (any, bool) {
	cur := v
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, cur != nil
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func asInt(v any) (int64, bool) {
	f, ok := asFloat(v)
	if !ok || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(math.Round(f)), true
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func floatAt(path ...string) probe[float64] {
	return func(v any) (float64, bool) {
		x, ok := lookup(v, path...)
		if !ok {
			return 0, false
		}
		return asFloat(x)
	}
}

func intAt(path ...string) probe[int64] {
	return func(v any) (int64, bool) {
		x, ok := lookup(v, path...)
		if !ok {
			return 0, false
		}
		return asInt(x)
	}
}

func stringAt(path ...string) probe[string] {
	return func(v any) (string, bool) {
		x, ok := lookup(v, path...)
		if !ok {
			return "", false
		}
		return asString(x)
	}
}

func boolAt(path ...string) probe[bool] {
	return func(v any) (bool, bool) {
		x, ok := lookup(v, path...)
		if !ok {
			return false, false
		}
		return asBool(x)
	}
}

func arrayAt(path ...string) probe[[]any] {
	return func(v any) ([]any, bool) {
		x, ok := lookup(v, path...)
		if !ok {
			return nil, false
		}
		arr, ok := x.([]any)
		return arr, ok
	}
}

// scaled multiplies a matched float by factor.
func scaled(p probe[float64], factor float64) probe[float64] {
	return func(v any) (float64, bool) {
		f, ok := p(v)
		return f * factor, ok
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ptr[T any](v T) *T { return &v }
