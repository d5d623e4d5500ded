// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package encoding implements the BinaryCIF column encoding pipeline:
// an ordered chain of reversible transformations applied to a
// column's raw bytes to yield a typed vector (ByteArray,
// IntegerPacking, Delta, RunLength, FixedPoint, StringArray).
package encoding

import (
	"fmt"
	"math"

	"github.com/ihmwg/go-cif-reader/pkg/ciferr"
)

// Tag identifies the type currently held by a Buffer. Each stage
// rewrites the tag as it consumes and produces data.
type Tag int

const (
	TagRaw Tag = iota
	TagI8
	TagU8
	TagI16
	TagU16
	TagI32
	TagU32
	TagF32
	TagF64
	TagString
)

// Buffer is the typed vector threaded through an encoding chain.
type Buffer struct {
	Tag Tag
	Raw []byte
	I32 []int32
	F64 []float64
	Str []string
}

func (b Buffer) Len() int {
	switch b.Tag {
	case TagString:
		return len(b.Str)
	case TagF64:
		return len(b.F64)
	case TagI32:
		return len(b.I32)
	default:
		return len(b.Raw)
	}
}

// Kind identifies which of the six supported encodings a chain stage
// applies.
type Kind int

const (
	ByteArray Kind = iota
	IntegerPacking
	Delta
	RunLength
	FixedPoint
	StringArray
)

// ByteArray element type codes, per the BinaryCIF wire format.
const (
	TypeI8  = 1
	TypeI16 = 2
	TypeI32 = 3
	TypeU8  = 4
	TypeU16 = 5
	TypeU32 = 6
	TypeF32 = 32
	TypeF64 = 33
)

// Encoding is one stage of a column's decoding chain. Only the fields
// relevant to Kind are populated; StringArray additionally carries
// two independent sub-chains (for its indices and its offsets), its
// raw offsets bytes, and the concatenated string blob they index
// into — a cycle-free tree, since each stage owns its sub-chains by
// value and nothing points back up to a parent stage.
type Encoding struct {
	Kind Kind

	// ByteArray
	Type int

	// Delta
	Origin int32

	// FixedPoint
	Factor float64

	// StringArray
	DataEncoding   []Encoding
	OffsetEncoding []Encoding
	Offsets        []byte
	StringData     []byte
}

// Apply runs buf through each stage of chain in order and returns the
// final typed buffer.
func Apply(chain []Encoding, buf Buffer) (Buffer, error) {
	var err error
	for _, enc := range chain {
		buf, err = applyOne(enc, buf)
		if err != nil {
			return Buffer{}, err
		}
	}
	return buf, nil
}

func applyOne(enc Encoding, buf Buffer) (Buffer, error) {
	switch enc.Kind {
	case ByteArray:
		return applyByteArray(enc, buf)
	case IntegerPacking:
		return applyIntegerPacking(buf)
	case Delta:
		return applyDelta(enc, buf)
	case RunLength:
		return applyRunLength(buf)
	case FixedPoint:
		return applyFixedPoint(enc, buf)
	case StringArray:
		return applyStringArray(enc, buf)
	default:
		return Buffer{}, ciferr.FileFormatf(0, "unsupported encoding kind %d", enc.Kind)
	}
}

func elemSize(t int) int {
	switch t {
	case TypeI8, TypeU8:
		return 1
	case TypeI16, TypeU16:
		return 2
	case TypeI32, TypeU32, TypeF32:
		return 4
	case TypeF64:
		return 8
	default:
		return 0
	}
}

func applyByteArray(enc Encoding, buf Buffer) (Buffer, error) {
	if buf.Tag != TagRaw {
		return Buffer{}, ciferr.FileFormatf(0, "ByteArray encoding requires raw input, got tag %d", buf.Tag)
	}
	size := elemSize(enc.Type)
	if size == 0 {
		return Buffer{}, ciferr.FileFormatf(0, "unsupported ByteArray type %d", enc.Type)
	}
	raw := buf.Raw
	if len(raw)%size != 0 {
		return Buffer{}, ciferr.FileFormatf(0, "ByteArray raw length %d is not a multiple of element size %d", len(raw), size)
	}
	n := len(raw) / size
	switch enc.Type {
	case TypeI8:
		out := make([]int32, n)
		for i := 0; i < n; i++ {
			out[i] = int32(int8(raw[i]))
		}
		return Buffer{Tag: TagI8, I32: out}, nil
	case TypeU8:
		out := make([]int32, n)
		for i := 0; i < n; i++ {
			out[i] = int32(raw[i])
		}
		return Buffer{Tag: TagU8, I32: out}, nil
	case TypeI16:
		out := make([]int32, n)
		for i := 0; i < n; i++ {
			v := uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
			out[i] = int32(int16(v))
		}
		return Buffer{Tag: TagI16, I32: out}, nil
	case TypeU16:
		out := make([]int32, n)
		for i := 0; i < n; i++ {
			out[i] = int32(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		}
		return Buffer{Tag: TagU16, I32: out}, nil
	case TypeI32:
		out := make([]int32, n)
		for i := 0; i < n; i++ {
			v := uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 | uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24
			out[i] = int32(v)
		}
		return Buffer{Tag: TagI32, I32: out}, nil
	case TypeU32:
		out := make([]int32, n)
		for i := 0; i < n; i++ {
			v := uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 | uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24
			out[i] = int32(v)
		}
		return Buffer{Tag: TagU32, I32: out}, nil
	case TypeF32:
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			v := uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 | uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24
			out[i] = float64(math.Float32frombits(v))
		}
		return Buffer{Tag: TagF32, F64: out}, nil
	case TypeF64:
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			v := uint64(raw[8*i]) | uint64(raw[8*i+1])<<8 | uint64(raw[8*i+2])<<16 | uint64(raw[8*i+3])<<24 |
				uint64(raw[8*i+4])<<32 | uint64(raw[8*i+5])<<40 | uint64(raw[8*i+6])<<48 | uint64(raw[8*i+7])<<56
			out[i] = math.Float64frombits(v)
		}
		return Buffer{Tag: TagF64, F64: out}, nil
	default:
		return Buffer{}, ciferr.FileFormatf(0, "unsupported ByteArray type %d", enc.Type)
	}
}

func applyIntegerPacking(buf Buffer) (Buffer, error) {
	var posSentinel, negSentinel int32
	var hasNeg bool
	switch buf.Tag {
	case TagI8:
		posSentinel, negSentinel, hasNeg = 0x7F, -0x80, true
	case TagU8:
		posSentinel, hasNeg = 0xFF, false
	case TagI16:
		posSentinel, negSentinel, hasNeg = 0x7FFF, -0x8000, true
	case TagU16:
		posSentinel, hasNeg = 0xFFFF, false
	default:
		return Buffer{}, ciferr.FileFormatf(0, "IntegerPacking requires 8- or 16-bit integer input, got tag %d", buf.Tag)
	}

	out := make([]int32, 0, len(buf.I32))
	var sum int32
	for _, v := range buf.I32 {
		if v == posSentinel || (hasNeg && v == negSentinel) {
			sum += v
			continue
		}
		sum += v
		out = append(out, sum)
		sum = 0
	}
	return Buffer{Tag: TagI32, I32: out}, nil
}

func applyDelta(enc Encoding, buf Buffer) (Buffer, error) {
	if buf.Tag != TagI32 {
		return Buffer{}, ciferr.FileFormatf(0, "Delta requires i32 input, got tag %d", buf.Tag)
	}
	out := make([]int32, len(buf.I32))
	running := enc.Origin
	for i, v := range buf.I32 {
		running += v
		out[i] = running
	}
	return Buffer{Tag: TagI32, I32: out}, nil
}

func applyRunLength(buf Buffer) (Buffer, error) {
	if buf.Tag != TagI32 {
		return Buffer{}, ciferr.FileFormatf(0, "RunLength requires i32 input, got tag %d", buf.Tag)
	}
	if len(buf.I32)%2 != 0 {
		return Buffer{}, ciferr.FileFormatf(0, "RunLength input must have even length, got %d", len(buf.I32))
	}
	var total int
	for i := 1; i < len(buf.I32); i += 2 {
		total += int(buf.I32[i])
	}
	out := make([]int32, 0, total)
	for i := 0; i < len(buf.I32); i += 2 {
		value, count := buf.I32[i], buf.I32[i+1]
		for c := int32(0); c < count; c++ {
			out = append(out, value)
		}
	}
	return Buffer{Tag: TagI32, I32: out}, nil
}

func applyFixedPoint(enc Encoding, buf Buffer) (Buffer, error) {
	if buf.Tag != TagI32 {
		return Buffer{}, ciferr.FileFormatf(0, "FixedPoint requires i32 input, got tag %d", buf.Tag)
	}
	factor := enc.Factor
	if factor == 0 {
		factor = 1
	}
	out := make([]float64, len(buf.I32))
	for i, v := range buf.I32 {
		out[i] = float64(v) / factor
	}
	return Buffer{Tag: TagF64, F64: out}, nil
}

func applyStringArray(enc Encoding, buf Buffer) (Buffer, error) {
	indices, err := Apply(enc.DataEncoding, buf)
	if err != nil {
		return Buffer{}, err
	}
	if indices.Tag != TagI32 {
		return Buffer{}, ciferr.FileFormatf(0, "StringArray indices chain must produce i32, got tag %d", indices.Tag)
	}
	offsets, err := Apply(enc.OffsetEncoding, Buffer{Tag: TagRaw, Raw: enc.Offsets})
	if err != nil {
		return Buffer{}, err
	}
	if offsets.Tag != TagI32 {
		return Buffer{}, ciferr.FileFormatf(0, "StringArray offsets chain must produce i32, got tag %d", offsets.Tag)
	}
	if len(offsets.I32) == 0 {
		if len(indices.I32) != 0 {
			return Buffer{}, ciferr.FileFormatf(0, "StringArray index %d out of range [0,0)", indices.I32[0])
		}
		return Buffer{Tag: TagString, Str: make([]string, 0)}, nil
	}

	numStrings := len(offsets.I32) - 1
	strData := enc.StringData
	out := make([]string, len(indices.I32))
	for i, idx := range indices.I32 {
		if idx < 0 || int(idx) >= numStrings {
			return Buffer{}, ciferr.FileFormatf(0, "StringArray index %d out of range [0,%d)", idx, numStrings)
		}
		start, end := offsets.I32[idx], offsets.I32[idx+1]
		if start < 0 || end < start || int(end) > len(strData) {
			return Buffer{}, ciferr.FileFormatf(0, "StringArray offset range [%d,%d) out of bounds for %d-byte string data", start, end, len(strData))
		}
		out[i] = string(strData[start:end])
	}
	return Buffer{Tag: TagString, Str: out}, nil
}

// NarrowToU8 converts an i32 mask buffer (produced when a mask's last
// encoding stage is IntegerPacking rather than ByteArray(u8)) down to
// u8 values, a compatibility accommodation for real-world files (see
// the format's open question on mask narrowing).
func NarrowToU8(buf Buffer) ([]byte, error) {
	switch buf.Tag {
	case TagU8:
		out := make([]byte, len(buf.I32))
		for i, v := range buf.I32 {
			out[i] = byte(v)
		}
		return out, nil
	case TagI32:
		out := make([]byte, len(buf.I32))
		for i, v := range buf.I32 {
			if v < 0 || v > 255 {
				return nil, ciferr.FileFormatf(0, "mask value %d out of u8 range", v)
			}
			out[i] = byte(v)
		}
		return out, nil
	default:
		return nil, ciferr.FileFormatf(0, "mask stream decoded to unsupported tag %d", buf.Tag)
	}
}

// FormatNumeric renders an i32 or f64 column value using the
// canonical %d / %g-equivalent format mmCIF text values use, writing
// into scratch to avoid an allocation per row.
func FormatNumeric(buf Buffer, i int, scratch []byte) []byte {
	switch buf.Tag {
	case TagI32:
		return appendInt(scratch[:0], buf.I32[i])
	case TagF64:
		return appendFloat(scratch[:0], buf.F64[i])
	default:
		return scratch[:0]
	}
}

func appendInt(scratch []byte, v int32) []byte {
	return append(scratch, []byte(fmt.Sprintf("%d", v))...)
}

func appendFloat(scratch []byte, v float64) []byte {
	return append(scratch, []byte(fmt.Sprintf("%g", v))...)
}
