package rbxm

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/agentic-research/grove/internal/codec"
	"github.com/agentic-research/grove/internal/snapshot"
)

var zstdEncoder, _ = zstd.NewWriter(nil)

// Encode writes roots as a binary model. Properties of one class must agree
// on type; instances missing a property get the type's zero value.
func Encode(roots []*codec.Instance, compression Compression) ([]byte, error) {
	var flat []*codec.Instance
	parents := map[*codec.Instance]int32{}
	var visit func(in *codec.Instance, parent int32)
	visit = func(in *codec.Instance, parent int32) {
		ref := int32(len(flat))
		flat = append(flat, in)
		parents[in] = parent
		for _, c := range in.Children {
			visit(c, ref)
		}
	}
	for _, r := range roots {
		visit(r, -1)
	}

	byClass := map[string][]int32{}
	for ref, in := range flat {
		byClass[in.ClassName] = append(byClass[in.ClassName], int32(ref))
	}
	classNames := make([]string, 0, len(byClass))
	for name := range byClass {
		classNames = append(classNames, name)
	}
	sort.Strings(classNames)

	out := []byte(magic + signature)
	out = binary.LittleEndian.AppendUint16(out, 0)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(classNames)))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(flat)))
	out = append(out, make([]byte, 8)...)

	for id, name := range classNames {
		w := &writer{}
		w.u32(uint32(id))
		w.str(name)
		w.u8(0)
		w.u32(uint32(len(byClass[name])))
		w.referents(byClass[name])
		out = appendChunk(out, "INST", w.b, compression)
	}

	for id, name := range classNames {
		refs := byClass[name]
		members := make([]*codec.Instance, len(refs))
		for i, ref := range refs {
			members[i] = flat[ref]
		}

		names := make([]snapshot.Value, len(members))
		for i, in := range members {
			names[i] = snapshot.String(in.Name)
		}
		w := &writer{}
		if err := writeProp(w, uint32(id), "Name", names); err != nil {
			return nil, err
		}
		out = appendChunk(out, "PROP", w.b, compression)

		propNames := map[string]snapshot.ValueType{}
		for _, in := range members {
			for k, v := range in.Properties {
				if k == "Name" {
					continue
				}
				if t, ok := propNames[k]; ok && t != v.Type() {
					return nil, fmt.Errorf("rbxm: %s.%s has conflicting types %s and %s", name, k, t, v.Type())
				}
				propNames[k] = v.Type()
			}
		}
		keys := make([]string, 0, len(propNames))
		for k := range propNames {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			vals := make([]snapshot.Value, len(members))
			for i, in := range members {
				v, ok := in.Properties[k]
				if !ok {
					v = zeroValue(propNames[k])
				}
				vals[i] = v
			}
			w := &writer{}
			if err := writeProp(w, uint32(id), k, vals); err != nil {
				return nil, err
			}
			out = appendChunk(out, "PROP", w.b, compression)
		}
	}

	w := &writer{}
	w.u8(0)
	w.u32(uint32(len(flat)))
	children := make([]int32, len(flat))
	parentRefs := make([]int32, len(flat))
	for ref, in := range flat {
		children[ref] = int32(ref)
		parentRefs[ref] = parents[in]
	}
	w.referents(children)
	w.referents(parentRefs)
	out = appendChunk(out, "PRNT", w.b, compression)

	return appendChunk(out, "END\x00", []byte(endMarker), CompressNone), nil
}

func appendChunk(out []byte, name string, payload []byte, compression Compression) []byte {
	var compressed []byte
	switch compression {
	case CompressLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, buf, nil)
		if err == nil && n > 0 {
			compressed = buf[:n]
		}
	case CompressZstd:
		compressed = zstdEncoder.EncodeAll(payload, nil)
	}

	out = append(out, name...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(compressed)))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	out = binary.LittleEndian.AppendUint32(out, 0)
	if compressed != nil {
		return append(out, compressed...)
	}
	return append(out, payload...)
}

func writeProp(w *writer, classID uint32, name string, vals []snapshot.Value) error {
	w.u32(classID)
	w.str(name)
	switch first := vals[0].(type) {
	case snapshot.String, snapshot.BinaryString, snapshot.Content:
		w.u8(typeString)
		for _, v := range vals {
			w.str(stringOf(v))
		}
	case snapshot.Bool:
		w.u8(typeBool)
		for _, v := range vals {
			if v.(snapshot.Bool) {
				w.u8(1)
			} else {
				w.u8(0)
			}
		}
	case snapshot.Int32:
		w.u8(typeInt32)
		ints := make([]int32, len(vals))
		for i, v := range vals {
			ints[i] = int32(v.(snapshot.Int32))
		}
		w.int32s(ints)
	case snapshot.Float32:
		w.u8(typeFloat32)
		fs := make([]float32, len(vals))
		for i, v := range vals {
			fs[i] = float32(v.(snapshot.Float32))
		}
		w.float32s(fs)
	case snapshot.Float64:
		w.u8(typeFloat64)
		for _, v := range vals {
			w.b = binary.LittleEndian.AppendUint64(w.b, math.Float64bits(float64(v.(snapshot.Float64))))
		}
	case snapshot.Color3:
		w.u8(typeColor3)
		r, g, b := make([]float32, len(vals)), make([]float32, len(vals)), make([]float32, len(vals))
		for i, v := range vals {
			c := v.(snapshot.Color3)
			r[i], g[i], b[i] = c.R, c.G, c.B
		}
		w.float32s(r)
		w.float32s(g)
		w.float32s(b)
	case snapshot.Vector2:
		w.u8(typeVector2)
		x, y := make([]float32, len(vals)), make([]float32, len(vals))
		for i, v := range vals {
			vec := v.(snapshot.Vector2)
			x[i], y[i] = vec.X, vec.Y
		}
		w.float32s(x)
		w.float32s(y)
	case snapshot.Vector3:
		w.u8(typeVector3)
		x, y, z := make([]float32, len(vals)), make([]float32, len(vals)), make([]float32, len(vals))
		for i, v := range vals {
			vec := v.(snapshot.Vector3)
			x[i], y[i], z[i] = vec.X, vec.Y, vec.Z
		}
		w.float32s(x)
		w.float32s(y)
		w.float32s(z)
	case snapshot.Enum:
		w.u8(typeEnum)
		us := make([]uint32, len(vals))
		for i, v := range vals {
			us[i] = uint32(v.(snapshot.Enum))
		}
		w.uint32s(us)
	case snapshot.Int64:
		w.u8(typeInt64)
		ints := make([]int64, len(vals))
		for i, v := range vals {
			ints[i] = int64(v.(snapshot.Int64))
		}
		w.int64s(ints)
	default:
		return fmt.Errorf("rbxm: property %s: cannot encode %s", name, first.Type())
	}
	return nil
}

func stringOf(v snapshot.Value) string {
	switch s := v.(type) {
	case snapshot.String:
		return string(s)
	case snapshot.BinaryString:
		return string(s)
	case snapshot.Content:
		return string(s)
	}
	return ""
}

func zeroValue(t snapshot.ValueType) snapshot.Value {
	switch t {
	case snapshot.TypeString:
		return snapshot.String("")
	case snapshot.TypeBinaryString:
		return snapshot.BinaryString(nil)
	case snapshot.TypeContent:
		return snapshot.Content("")
	case snapshot.TypeBool:
		return snapshot.Bool(false)
	case snapshot.TypeInt32:
		return snapshot.Int32(0)
	case snapshot.TypeInt64:
		return snapshot.Int64(0)
	case snapshot.TypeFloat32:
		return snapshot.Float32(0)
	case snapshot.TypeFloat64:
		return snapshot.Float64(0)
	case snapshot.TypeVector2:
		return snapshot.Vector2{}
	case snapshot.TypeVector3:
		return snapshot.Vector3{}
	case snapshot.TypeColor3:
		return snapshot.Color3{}
	case snapshot.TypeEnum:
		return snapshot.Enum(0)
	}
	return nil
}
