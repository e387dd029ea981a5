package domain

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeDescriptor serializes d into the payload carried by a Domain or
// Mask control message (spec.md §4.1/§6; the Mask message,
// SPEC_FULL.md §11, reuses this same encoding with a populated Mask):
// [globalSize u64][indexCount u32][index u64]*[hasMask u8][maskLen u32]
// [mask byte]*maskLen, all little-endian, matching pkg/message/wire.go's
// framing conventions.
func EncodeDescriptor(d *Descriptor) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(d.GlobalSize))
	binary.Write(&buf, binary.LittleEndian, uint32(len(d.GlobalIndices)))
	for _, idx := range d.GlobalIndices {
		binary.Write(&buf, binary.LittleEndian, uint64(idx))
	}
	if d.Mask == nil {
		buf.WriteByte(0)
		return buf.Bytes()
	}
	buf.WriteByte(1)
	binary.Write(&buf, binary.LittleEndian, uint32(len(d.Mask)))
	for _, included := range d.Mask {
		if included {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

// DecodeDescriptor parses a payload produced by EncodeDescriptor, as seen
// on a Domain or Mask message's Payload.
func DecodeDescriptor(payload []byte) (*Descriptor, error) {
	r := bytes.NewReader(payload)

	var globalSize uint64
	if err := binary.Read(r, binary.LittleEndian, &globalSize); err != nil {
		return nil, fmt.Errorf("decode descriptor: short read on globalSize: %w", err)
	}

	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("decode descriptor: short read on index count: %w", err)
	}
	indices := make([]int, n)
	for i := range indices {
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, fmt.Errorf("decode descriptor: short read on index %d: %w", i, err)
		}
		indices[i] = int(v)
	}

	hasMask, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("decode descriptor: short read on mask flag: %w", err)
	}

	var mask []bool
	if hasMask != 0 {
		var maskLen uint32
		if err := binary.Read(r, binary.LittleEndian, &maskLen); err != nil {
			return nil, fmt.Errorf("decode descriptor: short read on mask length: %w", err)
		}
		mask = make([]bool, maskLen)
		for i := range mask {
			b, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("decode descriptor: short read on mask byte %d: %w", i, err)
			}
			mask[i] = b != 0
		}
	}

	return &Descriptor{GlobalSize: int(globalSize), GlobalIndices: indices, Mask: mask}, nil
}
