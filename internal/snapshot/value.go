package snapshot

import (
	"fmt"
	"math"
)

// ValueType names the type of a property value.
// The names match the type names used by model files on disk.
type ValueType string

const (
	TypeString       ValueType = "String"
	TypeBinaryString ValueType = "BinaryString"
	TypeContent      ValueType = "Content"
	TypeBool         ValueType = "Bool"
	TypeInt32        ValueType = "Int32"
	TypeInt64        ValueType = "Int64"
	TypeFloat32      ValueType = "Float32"
	TypeFloat64      ValueType = "Float64"
	TypeVector2      ValueType = "Vector2"
	TypeVector3      ValueType = "Vector3"
	TypeColor3       ValueType = "Color3"
	TypeEnum         ValueType = "Enum"
)

// Value is a sealed interface over typed property values.
// Only the types in this file implement it.
type Value interface {
	Type() ValueType
	value()
}

// String is a UTF-8 text property.
type String string

// BinaryString is an opaque byte property.
type BinaryString []byte

// Content is an asset reference (e.g. "rbxassetid://123").
type Content string

type Bool bool

type Int32 int32

type Int64 int64

type Float32 float32

type Float64 float64

// Vector2 is a 2D vector.
type Vector2 struct {
	X, Y float32
}

// Vector3 is a 3D vector.
type Vector3 struct {
	X, Y, Z float32
}

// Color3 holds color components in the range [0, 1].
type Color3 struct {
	R, G, B float32
}

// Enum is an enum item referenced by its numeric value.
type Enum uint32

func (String) Type() ValueType       { return TypeString }
func (BinaryString) Type() ValueType { return TypeBinaryString }
func (Content) Type() ValueType      { return TypeContent }
func (Bool) Type() ValueType         { return TypeBool }
func (Int32) Type() ValueType        { return TypeInt32 }
func (Int64) Type() ValueType        { return TypeInt64 }
func (Float32) Type() ValueType      { return TypeFloat32 }
func (Float64) Type() ValueType      { return TypeFloat64 }
func (Vector2) Type() ValueType      { return TypeVector2 }
func (Vector3) Type() ValueType      { return TypeVector3 }
func (Color3) Type() ValueType       { return TypeColor3 }
func (Enum) Type() ValueType         { return TypeEnum }

func (String) value()       {}
func (BinaryString) value() {}
func (Content) value()      {}
func (Bool) value()         {}
func (Int32) value()        {}
func (Int64) value()        {}
func (Float32) value()      {}
func (Float64) value()      {}
func (Vector2) value()      {}
func (Vector3) value()      {}
func (Color3) value()       {}
func (Enum) value()         {}

// FormatValue renders v in a stable, human-readable form.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case String:
		return fmt.Sprintf("%q", string(x))
	case Content:
		return fmt.Sprintf("content(%q)", string(x))
	case BinaryString:
		return fmt.Sprintf("binary(%d bytes)", len(x))
	case Bool:
		return fmt.Sprintf("%t", bool(x))
	case Int32:
		return fmt.Sprintf("%d", int32(x))
	case Int64:
		return fmt.Sprintf("%d", int64(x))
	case Float32:
		return formatFloat(float64(x))
	case Float64:
		return formatFloat(float64(x))
	case Vector2:
		return fmt.Sprintf("(%s, %s)", formatFloat(float64(x.X)), formatFloat(float64(x.Y)))
	case Vector3:
		return fmt.Sprintf("(%s, %s, %s)", formatFloat(float64(x.X)), formatFloat(float64(x.Y)), formatFloat(float64(x.Z)))
	case Color3:
		return fmt.Sprintf("rgb(%s, %s, %s)", formatFloat(float64(x.R)), formatFloat(float64(x.G)), formatFloat(float64(x.B)))
	case Enum:
		return fmt.Sprintf("enum(%d)", uint32(x))
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%g", f)
}
