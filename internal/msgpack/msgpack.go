// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package msgpack provides the typed reads the BinaryCIF walker needs
// over a byte source: map headers (including the optional map-or-nil
// form BinaryCIF uses for absent sub-maps), array headers, integers
// coerced to i32, strings, binary blobs, and recursive skip. It is a
// thin, allocation-conscious shim over the low-level decoder in
// github.com/vmihailenco/msgpack/v5, used the way a streaming
// consumer would rather than through struct-tag unmarshaling.
package msgpack

import (
	"bufio"
	"io"

	"github.com/ihmwg/go-cif-reader/pkg/ciferr"
	vmsgpack "github.com/vmihailenco/msgpack/v5"
)

// nilCode is the MessagePack fixed code for nil (0xc0).
const nilCode = 0xc0

// Decoder reads typed MessagePack values from a byte source.
type Decoder struct {
	dec *vmsgpack.Decoder
}

// NewDecoder wraps src (any byte-pulling source) for MessagePack
// reads, buffering it if it is not already a *bufio.Reader.
func NewDecoder(src io.Reader) *Decoder {
	br, ok := src.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(src, 64*1024)
	}
	return &Decoder{dec: vmsgpack.NewDecoder(br)}
}

func wrap(err error, what string) error {
	if err == nil {
		return nil
	}
	if err == io.EOF {
		return err
	}
	return ciferr.FileFormatWrap(err, "%s: %v", what, err)
}

// MapLen reads a map header and returns its element count, failing if
// the next value is not a map.
func (d *Decoder) MapLen() (int, error) {
	n, err := d.dec.DecodeMapLen()
	if err != nil {
		return 0, wrap(err, "expected a MessagePack map")
	}
	return n, nil
}

// MapOrNilLen reads a map header, or accepts a bare nil as an empty
// map (BinaryCIF treats an absent optional sub-map this way).
func (d *Decoder) MapOrNilLen() (int, error) {
	code, err := d.dec.PeekCode()
	if err != nil {
		return 0, wrap(err, "expected a MessagePack map or nil")
	}
	if code == nilCode {
		if err := d.dec.DecodeNil(); err != nil {
			return 0, wrap(err, "expected nil")
		}
		return 0, nil
	}
	return d.MapLen()
}

// ArrayLen reads an array header and returns its element count.
func (d *Decoder) ArrayLen() (int, error) {
	n, err := d.dec.DecodeArrayLen()
	if err != nil {
		return 0, wrap(err, "expected a MessagePack array")
	}
	return n, nil
}

// Int32 reads an integer of any signed or unsigned width that fits in
// 32 bits.
func (d *Decoder) Int32() (int32, error) {
	n, err := d.dec.DecodeInt32()
	if err != nil {
		return 0, wrap(err, "expected a MessagePack integer")
	}
	return n, nil
}

// Str reads a string value.
func (d *Decoder) Str() (string, error) {
	s, err := d.dec.DecodeString()
	if err != nil {
		return "", wrap(err, "expected a MessagePack string")
	}
	return s, nil
}

// Bytes reads a binary value.
func (d *Decoder) Bytes() ([]byte, error) {
	b, err := d.dec.DecodeBytes()
	if err != nil {
		return nil, wrap(err, "expected MessagePack binary data")
	}
	return b, nil
}

// SkipRecursive discards the next value and, if it is a map or array,
// everything nested beneath it, for use when the caller does not know
// (or does not care about) its shape. vmsgpack's Skip always recurses;
// there is no separate single-value skip to offer.
func (d *Decoder) SkipRecursive() error {
	return wrap(d.dec.Skip(), "skip")
}

// Key reads the next map key as a string, as BinaryCIF map keys
// always are.
func (d *Decoder) Key() (string, error) {
	return d.Str()
}

// Float64 reads a floating-point value, also accepting an integer
// code (some encoders write a whole-number factor as an int).
func (d *Decoder) Float64() (float64, error) {
	code, err := d.dec.PeekCode()
	if err != nil {
		return 0, wrap(err, "expected a number")
	}
	if code == 0xca || code == 0xcb { // float32, float64
		f, err := d.dec.DecodeFloat64()
		if err != nil {
			return 0, wrap(err, "expected a float")
		}
		return f, nil
	}
	n, err := d.Int32()
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}
