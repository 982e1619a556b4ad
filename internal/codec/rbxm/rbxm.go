// Package rbxm reads and writes the chunked binary model format.
//
// A file is a fixed header followed by chunks. Each chunk has a four byte
// name, compressed and uncompressed lengths, and a payload that is stored
// raw, LZ4 block compressed, or zstd compressed:
//
//	INST  one per class: class id, class name, referents
//	PROP  one per class and property: column of values
//	PRNT  child/parent referent pairs, -1 meaning the root
//	END   terminator
//
// Decode never panics on malformed input; every structural problem is
// returned as an error.
package rbxm

import "errors"

const (
	magic     = "<roblox!"
	signature = "\x89\xff\r\n\x1a\n"
	headerLen = len(magic) + len(signature) + 2 + 4 + 4 + 8
	endMarker = "</roblox>"
)

var (
	ErrBadHeader = errors.New("rbxm: not a binary model file")
	ErrTruncated = errors.New("rbxm: unexpected end of data")
)

// property type ids
const (
	typeString  byte = 0x01
	typeBool    byte = 0x02
	typeInt32   byte = 0x03
	typeFloat32 byte = 0x04
	typeFloat64 byte = 0x05
	typeColor3  byte = 0x0C
	typeVector2 byte = 0x0D
	typeVector3 byte = 0x0E
	typeEnum    byte = 0x12
	typeInt64   byte = 0x1B
)

// Compression selects how Encode stores chunk payloads.
type Compression int

const (
	CompressNone Compression = iota
	CompressLZ4
	CompressZstd
)
