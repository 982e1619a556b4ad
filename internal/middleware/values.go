package middleware

import (
	"encoding/base64"
	"fmt"
	"math"
	"sort"

	"github.com/agentic-research/grove/internal/snapshot"
)

// valueFromAny converts a decoded JSON, YAML or HCL value into a typed
// property value. Strings, booleans and numbers convert implicitly;
// anything else needs the explicit {"Type": ..., "Value": ...} form.
func valueFromAny(raw any) (snapshot.Value, error) {
	switch v := raw.(type) {
	case string:
		return snapshot.String(v), nil
	case bool:
		return snapshot.Bool(v), nil
	case int:
		return snapshot.Int64(v), nil
	case int64:
		return snapshot.Int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows Int64", v)
		}
		return snapshot.Int64(v), nil
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return snapshot.Int64(int64(v)), nil
		}
		return snapshot.Float64(v), nil
	case map[string]any:
		return typedValue(v)
	case nil:
		return nil, fmt.Errorf("null is not a property value")
	default:
		return nil, fmt.Errorf("cannot infer a property type for %T; use {\"Type\": ..., \"Value\": ...}", raw)
	}
}

func typedValue(m map[string]any) (snapshot.Value, error) {
	typ, ok := m["Type"].(string)
	if !ok {
		return nil, fmt.Errorf("typed value needs a string \"Type\" field")
	}
	raw, ok := m["Value"]
	if !ok {
		return nil, fmt.Errorf("typed %s value has no \"Value\" field", typ)
	}

	switch snapshot.ValueType(typ) {
	case snapshot.TypeString:
		s, err := asString(raw)
		return snapshot.String(s), err
	case snapshot.TypeContent:
		s, err := asString(raw)
		return snapshot.Content(s), err
	case snapshot.TypeBinaryString:
		s, err := asString(raw)
		if err != nil {
			return nil, err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("BinaryString: %w", err)
		}
		return snapshot.BinaryString(b), nil
	case snapshot.TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("Bool value must be a boolean, got %T", raw)
		}
		return snapshot.Bool(b), nil
	case snapshot.TypeInt32:
		n, err := asInteger(raw, math.MinInt32, math.MaxInt32)
		return snapshot.Int32(n), err
	case snapshot.TypeInt64:
		n, err := asInteger(raw, math.MinInt64, math.MaxInt64)
		return snapshot.Int64(n), err
	case snapshot.TypeEnum:
		n, err := asInteger(raw, 0, math.MaxUint32)
		return snapshot.Enum(n), err
	case snapshot.TypeFloat32:
		f, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("Float32 value must be a number, got %T", raw)
		}
		return snapshot.Float32(f), nil
	case snapshot.TypeFloat64:
		f, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("Float64 value must be a number, got %T", raw)
		}
		return snapshot.Float64(f), nil
	case snapshot.TypeVector2:
		c, err := floats(raw, 2)
		if err != nil {
			return nil, fmt.Errorf("Vector2: %w", err)
		}
		return snapshot.Vector2{X: c[0], Y: c[1]}, nil
	case snapshot.TypeVector3:
		c, err := floats(raw, 3)
		if err != nil {
			return nil, fmt.Errorf("Vector3: %w", err)
		}
		return snapshot.Vector3{X: c[0], Y: c[1], Z: c[2]}, nil
	case snapshot.TypeColor3:
		c, err := floats(raw, 3)
		if err != nil {
			return nil, fmt.Errorf("Color3: %w", err)
		}
		return snapshot.Color3{R: c[0], G: c[1], B: c[2]}, nil
	default:
		return nil, fmt.Errorf("unknown property type %q", typ)
	}
}

// propertiesFromAny converts a property mapping. Keys are processed in
// sorted order so the first reported error is stable.
func propertiesFromAny(raw map[string]any) (map[string]snapshot.Value, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]snapshot.Value, len(raw))
	for _, k := range keys {
		v, err := valueFromAny(raw[k])
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func asString(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("expected a string, got %T", raw)
	}
	return s, nil
}

func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func asInteger(raw any, lo, hi float64) (int64, error) {
	if n, ok := raw.(int64); ok {
		if float64(n) < lo || float64(n) > hi {
			return 0, fmt.Errorf("%d is out of range", n)
		}
		return n, nil
	}
	f, ok := toFloat(raw)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("expected an integer, got %v", raw)
	}
	if f < lo || f > hi {
		return 0, fmt.Errorf("%v is out of range", raw)
	}
	return int64(f), nil
}

func floats(raw any, n int) ([]float32, error) {
	list, ok := raw.([]any)
	if !ok || len(list) != n {
		return nil, fmt.Errorf("expected an array of %d numbers", n)
	}
	out := make([]float32, n)
	for i, e := range list {
		f, ok := toFloat(e)
		if !ok {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		out[i] = float32(f)
	}
	return out, nil
}
