package task

import (
	"encoding/json"
	"fmt"
	"math"
)

// Args carries positional and keyword arguments for a single invocation.
// Values must be encodable by the configured codec; after a round trip
// through a codec, numbers may arrive as any integer or float type, so use
// the typed accessors instead of asserting directly.
type Args struct {
	Args   []any          `json:"args,omitempty"   msgpack:"args,omitempty"`
	Kwargs map[string]any `json:"kwargs,omitempty" msgpack:"kwargs,omitempty"`
}

// A builds positional Args.
func A(vals ...any) Args { return Args{Args: vals} }

// Len returns the number of positional arguments.
func (a Args) Len() int { return len(a.Args) }

// At returns positional argument i.
func (a Args) At(i int) (any, bool) {
	if i < 0 || i >= len(a.Args) {
		return nil, false
	}
	return a.Args[i], true
}

// Kwarg returns the keyword argument with the given name.
func (a Args) Kwarg(name string) (any, bool) {
	v, ok := a.Kwargs[name]
	return v, ok
}

// IntAt returns positional argument i as an int64.
func (a Args) IntAt(i int) (int64, error) {
	v, ok := a.At(i)
	if !ok {
		return 0, fmt.Errorf("argument %d: missing", i)
	}
	n, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", i, err)
	}
	return n, nil
}

// FloatAt returns positional argument i as a float64.
func (a Args) FloatAt(i int) (float64, error) {
	v, ok := a.At(i)
	if !ok {
		return 0, fmt.Errorf("argument %d: missing", i)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	n, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", i, err)
	}
	return float64(n), nil
}

// StringAt returns positional argument i as a string.
func (a Args) StringAt(i int) (string, error) {
	v, ok := a.At(i)
	if !ok {
		return "", fmt.Errorf("argument %d: missing", i)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %d: want string, got %T", i, v)
	}
	return s, nil
}

// Bind decodes positional argument i into out by re-encoding it as JSON.
// It is the bridge from codec-generic values to typed structs.
func (a Args) Bind(i int, out any) error {
	v, ok := a.At(i)
	if !ok {
		return fmt.Errorf("argument %d: missing", i)
	}
	data, err := json.Marshal(normalize(v))
	if err != nil {
		return fmt.Errorf("argument %d: %w", i, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("argument %d: %w", i, err)
	}
	return nil
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("want integer, got %T", v)
	}
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	return int64(f), nil
}

// normalize converts map[any]any values (which some codecs produce for
// nested maps) into map[string]any so encoding/json accepts them.
func normalize(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = normalize(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = normalize(val)
		}
		return s
	default:
		return v
	}
}
