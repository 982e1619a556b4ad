package store

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/agentic-research/grove/internal/snapshot"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonFloat is a float payload. JSON numbers cannot hold NaN or the
// infinities, so those are written as the strings "NaN", "Infinity" and
// "-Infinity".
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *jsonFloat) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case "NaN":
			*f = jsonFloat(math.NaN())
		case "Infinity":
			*f = jsonFloat(math.Inf(1))
		case "-Infinity":
			*f = jsonFloat(math.Inf(-1))
		default:
			return fmt.Errorf("invalid float %q", s)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

func floats(vs ...float32) []jsonFloat {
	out := make([]jsonFloat, len(vs))
	for i, v := range vs {
		out[i] = jsonFloat(v)
	}
	return out
}

// encodeValue stores a property as JSON. The value type is kept in its own
// column, so the JSON is the bare payload: numbers, strings, or arrays of
// components.
func encodeValue(v snapshot.Value) ([]byte, error) {
	var payload any
	switch x := v.(type) {
	case snapshot.String:
		payload = string(x)
	case snapshot.Content:
		payload = string(x)
	case snapshot.BinaryString:
		payload = base64.StdEncoding.EncodeToString(x)
	case snapshot.Bool:
		payload = bool(x)
	case snapshot.Int32:
		payload = int32(x)
	case snapshot.Int64:
		payload = int64(x)
	case snapshot.Float32:
		payload = jsonFloat(x)
	case snapshot.Float64:
		payload = jsonFloat(x)
	case snapshot.Vector2:
		payload = floats(x.X, x.Y)
	case snapshot.Vector3:
		payload = floats(x.X, x.Y, x.Z)
	case snapshot.Color3:
		payload = floats(x.R, x.G, x.B)
	case snapshot.Enum:
		payload = uint32(x)
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
	return json.Marshal(payload)
}

func decodeValue(t snapshot.ValueType, data []byte) (snapshot.Value, error) {
	switch t {
	case snapshot.TypeString, snapshot.TypeContent, snapshot.TypeBinaryString:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		switch t {
		case snapshot.TypeContent:
			return snapshot.Content(s), nil
		case snapshot.TypeBinaryString:
			b, err := base64.StdEncoding.DecodeString(s)
			return snapshot.BinaryString(b), err
		}
		return snapshot.String(s), nil
	case snapshot.TypeBool:
		var b bool
		err := json.Unmarshal(data, &b)
		return snapshot.Bool(b), err
	case snapshot.TypeInt32:
		var n int32
		err := json.Unmarshal(data, &n)
		return snapshot.Int32(n), err
	case snapshot.TypeInt64:
		var n int64
		err := json.Unmarshal(data, &n)
		return snapshot.Int64(n), err
	case snapshot.TypeEnum:
		var n uint32
		err := json.Unmarshal(data, &n)
		return snapshot.Enum(n), err
	case snapshot.TypeFloat32:
		var f jsonFloat
		err := json.Unmarshal(data, &f)
		return snapshot.Float32(f), err
	case snapshot.TypeFloat64:
		var f jsonFloat
		err := json.Unmarshal(data, &f)
		return snapshot.Float64(f), err
	case snapshot.TypeVector2, snapshot.TypeVector3, snapshot.TypeColor3:
		var raw []jsonFloat
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		c := make([]float32, len(raw))
		for i, f := range raw {
			c[i] = float32(f)
		}
		want := 3
		if t == snapshot.TypeVector2 {
			want = 2
		}
		if len(c) != want {
			return nil, fmt.Errorf("%s needs %d components, got %d", t, want, len(c))
		}
		switch t {
		case snapshot.TypeVector2:
			return snapshot.Vector2{X: c[0], Y: c[1]}, nil
		case snapshot.TypeVector3:
			return snapshot.Vector3{X: c[0], Y: c[1], Z: c[2]}, nil
		}
		return snapshot.Color3{R: c[0], G: c[1], B: c[2]}, nil
	}
	return nil, fmt.Errorf("unknown value type %q", t)
}
