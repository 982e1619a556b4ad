package rbxm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/agentic-research/grove/internal/codec"
	"github.com/agentic-research/grove/internal/snapshot"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// maxChunkLen bounds the uncompressed size of a single chunk.
const maxChunkLen = 256 << 20

// lz4MaxRatio is the largest expansion an LZ4 block can encode: one token
// byte followed by 255-valued length bytes.
const lz4MaxRatio = 255

var zstdDecoder, _ = zstd.NewReader(nil,
	zstd.WithDecoderConcurrency(0),
	zstd.WithDecoderMaxMemory(maxChunkLen))

type class struct {
	name      string
	referents []int32
}

type decoder struct {
	classes   map[uint32]*class
	instances map[int32]*codec.Instance
	parents   map[int32]int32
	root      *codec.Instance
}

// Decode parses a binary model. The returned instance is a synthetic
// DataModel root whose children are the model's top-level instances.
func Decode(data []byte) (*codec.Instance, error) {
	if len(data) < headerLen || !bytes.Equal(data[:len(magic)+len(signature)], []byte(magic+signature)) {
		return nil, ErrBadHeader
	}
	r := &reader{b: data, off: len(magic) + len(signature)}
	hdr, _ := r.bytes(2 + 4 + 4 + 8)
	if v := binary.LittleEndian.Uint16(hdr); v != 0 {
		return nil, fmt.Errorf("rbxm: unsupported version %d", v)
	}

	d := &decoder{
		classes:   make(map[uint32]*class),
		instances: make(map[int32]*codec.Instance),
		parents:   make(map[int32]int32),
		root:      codec.NewRoot(),
	}

	for {
		name, payload, err := readChunk(r)
		if err != nil {
			return nil, err
		}
		switch name {
		case "INST":
			err = d.inst(payload)
		case "PROP":
			err = d.prop(payload)
		case "PRNT":
			err = d.prnt(payload)
		case "END\x00":
			return d.root, nil
		default:
			// META, SSTR and unknown chunks carry nothing we keep.
		}
		if err != nil {
			return nil, fmt.Errorf("rbxm: %s chunk: %w", trimChunkName(name), err)
		}
	}
}

func trimChunkName(name string) string {
	return string(bytes.TrimRight([]byte(name), "\x00"))
}

func readChunk(r *reader) (string, []byte, error) {
	hdr, err := r.bytes(16)
	if err != nil {
		return "", nil, fmt.Errorf("rbxm: chunk header: %w", err)
	}
	name := string(hdr[:4])
	compressed := binary.LittleEndian.Uint32(hdr[4:])
	size := binary.LittleEndian.Uint32(hdr[8:])
	if size > maxChunkLen {
		return "", nil, fmt.Errorf("rbxm: %s chunk too large (%d bytes)", trimChunkName(name), size)
	}

	if compressed == 0 {
		payload, err := r.bytes(int(size))
		if err != nil {
			return "", nil, fmt.Errorf("rbxm: %s chunk: %w", trimChunkName(name), err)
		}
		return name, payload, nil
	}

	src, err := r.bytes(int(compressed))
	if err != nil {
		return "", nil, fmt.Errorf("rbxm: %s chunk: %w", trimChunkName(name), err)
	}
	var payload []byte
	if bytes.HasPrefix(src, zstdMagic) {
		// The frame header, not the chunk header, decides how much the
		// decoder allocates; the decoder refuses frames above maxChunkLen.
		payload, err = zstdDecoder.DecodeAll(src, nil)
	} else {
		if uint64(size) > uint64(compressed)*lz4MaxRatio+16 {
			return "", nil, fmt.Errorf("rbxm: %s chunk: %d compressed bytes cannot expand to %d",
				trimChunkName(name), compressed, size)
		}
		payload = make([]byte, size)
		var n int
		n, err = lz4.UncompressBlock(src, payload)
		payload = payload[:max(n, 0)]
	}
	if err != nil {
		return "", nil, fmt.Errorf("rbxm: %s chunk: decompress: %w", trimChunkName(name), err)
	}
	if len(payload) != int(size) {
		return "", nil, fmt.Errorf("rbxm: %s chunk: decompressed %d bytes, header says %d",
			trimChunkName(name), len(payload), size)
	}
	return name, payload, nil
}

func (d *decoder) inst(payload []byte) error {
	r := &reader{b: payload}
	id, err := r.u32()
	if err != nil {
		return err
	}
	name, err := r.str()
	if err != nil {
		return err
	}
	format, err := r.u8()
	if err != nil {
		return err
	}
	n, err := r.count(4)
	if err != nil {
		return err
	}
	refs, err := r.referents(n)
	if err != nil {
		return err
	}
	if format == 1 {
		if _, err := r.bytes(n); err != nil {
			return err
		}
	}
	if _, dup := d.classes[id]; dup {
		return fmt.Errorf("duplicate class id %d", id)
	}
	d.classes[id] = &class{name: name, referents: refs}
	for _, ref := range refs {
		if _, dup := d.instances[ref]; dup {
			return fmt.Errorf("duplicate referent %d", ref)
		}
		d.instances[ref] = codec.NewInstance(name, name)
	}
	return nil
}

func (d *decoder) prop(payload []byte) error {
	r := &reader{b: payload}
	id, err := r.u32()
	if err != nil {
		return err
	}
	name, err := r.str()
	if err != nil {
		return err
	}
	typ, err := r.u8()
	if err != nil {
		return err
	}
	c, ok := d.classes[id]
	if !ok {
		return fmt.Errorf("property %s refers to unknown class id %d", name, id)
	}
	values, err := readValues(r, typ, len(c.referents))
	if err != nil {
		return fmt.Errorf("property %s.%s: %w", c.name, name, err)
	}
	if values == nil {
		return nil // unsupported type, skipped
	}
	for i, ref := range c.referents {
		inst := d.instances[ref]
		if name == "Name" {
			if s, ok := values[i].(snapshot.String); ok {
				inst.Name = string(s)
				continue
			}
		}
		inst.Properties[name] = values[i]
	}
	return nil
}

func (d *decoder) prnt(payload []byte) error {
	r := &reader{b: payload}
	version, err := r.u8()
	if err != nil {
		return err
	}
	if version != 0 {
		return fmt.Errorf("unsupported version %d", version)
	}
	n, err := r.count(8)
	if err != nil {
		return err
	}
	children, err := r.referents(n)
	if err != nil {
		return err
	}
	parents, err := r.referents(n)
	if err != nil {
		return err
	}
	for i := range children {
		if err := d.link(children[i], parents[i]); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) link(child, parent int32) error {
	inst, ok := d.instances[child]
	if !ok {
		return fmt.Errorf("unknown child referent %d", child)
	}
	if _, dup := d.parents[child]; dup {
		return fmt.Errorf("referent %d is parented twice", child)
	}
	if parent == -1 {
		d.parents[child] = -1
		d.root.Children = append(d.root.Children, inst)
		return nil
	}
	p, ok := d.instances[parent]
	if !ok {
		return fmt.Errorf("unknown parent referent %d", parent)
	}
	for anc := parent; anc != -1; {
		if anc == child {
			return fmt.Errorf("referent %d is its own ancestor", child)
		}
		next, ok := d.parents[anc]
		if !ok {
			break
		}
		anc = next
	}
	d.parents[child] = parent
	p.Children = append(p.Children, inst)
	return nil
}

// readValues decodes a column of n values. It returns nil, nil for types
// this package does not decode.
func readValues(r *reader, typ byte, n int) ([]snapshot.Value, error) {
	out := make([]snapshot.Value, n)
	switch typ {
	case typeString:
		for i := range out {
			s, err := r.str()
			if err != nil {
				return nil, err
			}
			if utf8.ValidString(s) {
				out[i] = snapshot.String(s)
			} else {
				out[i] = snapshot.BinaryString(s)
			}
		}
	case typeBool:
		raw, err := r.bytes(n)
		if err != nil {
			return nil, err
		}
		for i, b := range raw {
			out[i] = snapshot.Bool(b != 0)
		}
	case typeInt32:
		vals, err := r.int32s(n)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			out[i] = snapshot.Int32(v)
		}
	case typeFloat32:
		vals, err := r.float32s(n)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			out[i] = snapshot.Float32(v)
		}
	case typeFloat64:
		raw, err := r.bytes(n * 8)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = snapshot.Float64(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	case typeColor3:
		cols, err := floatColumns(r, n, 3)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = snapshot.Color3{R: cols[0][i], G: cols[1][i], B: cols[2][i]}
		}
	case typeVector2:
		cols, err := floatColumns(r, n, 2)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = snapshot.Vector2{X: cols[0][i], Y: cols[1][i]}
		}
	case typeVector3:
		cols, err := floatColumns(r, n, 3)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = snapshot.Vector3{X: cols[0][i], Y: cols[1][i], Z: cols[2][i]}
		}
	case typeEnum:
		vals, err := r.uint32s(n)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			out[i] = snapshot.Enum(v)
		}
	case typeInt64:
		vals, err := r.int64s(n)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			out[i] = snapshot.Int64(v)
		}
	default:
		return nil, nil
	}
	return out, nil
}

func floatColumns(r *reader, n, k int) ([][]float32, error) {
	cols := make([][]float32, k)
	for c := range cols {
		vals, err := r.float32s(n)
		if err != nil {
			return nil, err
		}
		cols[c] = vals
	}
	return cols, nil
}
