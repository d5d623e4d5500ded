// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cif

// Format selects which of the two wire formats a Reader parses.
type Format int

const (
	// Text is the line-oriented mmCIF dictionary format.
	Text Format = iota
	// Binary is BinaryCIF: the same logical data as typed, compressed
	// columns inside a MessagePack envelope.
	Binary
)

func (f Format) String() string {
	if f == Binary {
		return "BinaryCIF"
	}
	return "mmCIF"
}

// Sniff inspects the first bytes of a file to decide its format.
// BinaryCIF documents are always a MessagePack map at the root, whose
// first byte is a fixmap code (0x80-0x8f) or map16/map32
// (0xde/0xdf); anything else, including an empty peek, is treated as
// text.
func Sniff(peek []byte) Format {
	if len(peek) == 0 {
		return Text
	}
	b := peek[0]
	if b >= 0x80 && b <= 0x8f {
		return Binary
	}
	if b == 0xde || b == 0xdf {
		return Binary
	}
	return Text
}
