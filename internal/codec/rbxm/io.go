package rbxm

import (
	"encoding/binary"
	"fmt"
	"math"
)

type reader struct {
	b   []byte
	off int
}

func (r *reader) remaining() int { return len(r.b) - r.off }

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, ErrTruncated
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *reader) u8() (byte, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if int64(n) > int64(r.remaining()) {
		return "", ErrTruncated
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// count reads a u32 element count and checks that at least width bytes
// per element remain, so corrupt counts cannot trigger huge allocations.
func (r *reader) count(width int) (int, error) {
	n, err := r.u32()
	if err != nil {
		return 0, err
	}
	if int64(n)*int64(width) > int64(r.remaining()) {
		return 0, fmt.Errorf("%w: count %d exceeds payload", ErrTruncated, n)
	}
	return int(n), nil
}

// interleaved reads n values of the given width whose bytes are stored
// transposed: all first bytes, then all second bytes, and so on.
func (r *reader) interleaved(n, width int) ([]byte, error) {
	raw, err := r.bytes(n * width)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n*width)
	for i := 0; i < n; i++ {
		for j := 0; j < width; j++ {
			out[i*width+j] = raw[j*n+i]
		}
	}
	return out, nil
}

func (r *reader) int32s(n int) ([]int32, error) {
	raw, err := r.interleaved(n, 4)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = unzigzag32(binary.BigEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

func (r *reader) uint32s(n int) ([]uint32, error) {
	raw, err := r.interleaved(n, 4)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.BigEndian.Uint32(raw[i*4:])
	}
	return out, nil
}

func (r *reader) int64s(n int) ([]int64, error) {
	raw, err := r.interleaved(n, 8)
	if err != nil {
		return nil, err
	}
	out := make([]int64, n)
	for i := range out {
		u := binary.BigEndian.Uint64(raw[i*8:])
		out[i] = int64(u>>1) ^ -int64(u&1)
	}
	return out, nil
}

func (r *reader) float32s(n int) ([]float32, error) {
	raw, err := r.interleaved(n, 4)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		u := binary.BigEndian.Uint32(raw[i*4:])
		// sign bit is stored as the least significant bit
		out[i] = math.Float32frombits(u>>1 | u<<31)
	}
	return out, nil
}

// referents reads n delta-encoded referents.
func (r *reader) referents(n int) ([]int32, error) {
	refs, err := r.int32s(n)
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(refs); i++ {
		refs[i] += refs[i-1]
	}
	return refs, nil
}

func unzigzag32(u uint32) int32 { return int32(u>>1) ^ -int32(u&1) }

func zigzag32(v int32) uint32 { return uint32(v<<1) ^ uint32(v>>31) }

func zigzag64(v int64) uint64 { return uint64(v<<1) ^ uint64(v>>63) }

type writer struct {
	b []byte
}

func (w *writer) u8(v byte) { w.b = append(w.b, v) }

func (w *writer) u32(v uint32) { w.b = binary.LittleEndian.AppendUint32(w.b, v) }

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.b = append(w.b, s...)
}

func (w *writer) interleaved(raw []byte, n, width int) {
	start := len(w.b)
	w.b = append(w.b, make([]byte, n*width)...)
	for i := 0; i < n; i++ {
		for j := 0; j < width; j++ {
			w.b[start+j*n+i] = raw[i*width+j]
		}
	}
}

func (w *writer) int32s(vals []int32) {
	raw := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		raw = binary.BigEndian.AppendUint32(raw, zigzag32(v))
	}
	w.interleaved(raw, len(vals), 4)
}

func (w *writer) uint32s(vals []uint32) {
	raw := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		raw = binary.BigEndian.AppendUint32(raw, v)
	}
	w.interleaved(raw, len(vals), 4)
}

func (w *writer) int64s(vals []int64) {
	raw := make([]byte, 0, len(vals)*8)
	for _, v := range vals {
		raw = binary.BigEndian.AppendUint64(raw, zigzag64(v))
	}
	w.interleaved(raw, len(vals), 8)
}

func (w *writer) float32s(vals []float32) {
	raw := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		u := math.Float32bits(v)
		raw = binary.BigEndian.AppendUint32(raw, u<<1|u>>31)
	}
	w.interleaved(raw, len(vals), 4)
}

func (w *writer) referents(refs []int32) {
	deltas := make([]int32, len(refs))
	for i, r := range refs {
		if i == 0 {
			deltas[i] = r
			continue
		}
		deltas[i] = r - refs[i-1]
	}
	w.int32s(deltas)
}
