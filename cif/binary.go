// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cif

import (
	"github.com/ihmwg/go-cif-reader/internal/encoding"
	"github.com/ihmwg/go-cif-reader/pkg/ciferr"
	"github.com/ihmwg/go-cif-reader/pkg/ciflog"
)

// readBlockBinary walks one data block of a BinaryCIF document,
// decoding each column's encoding chain and dispatching row callbacks
// the same way the text state machine does. The top-level envelope is
// read lazily, on the first call.
func (r *Reader) readBlockBinary() (more bool, err error) {
	if !r.headerRead {
		if err := r.readBinaryHeader(); err != nil {
			return false, err
		}
	}
	if r.blocksWalked >= r.blocksInFile {
		return false, nil
	}

	for _, c := range r.categories {
		c.resetBlock()
	}
	if err := r.walkBinaryBlock(); err != nil {
		r.clearAllRows()
		return false, err
	}
	r.blocksWalked++
	return r.blocksWalked < r.blocksInFile, nil
}

// readBinaryHeader consumes the document's top-level map, recording
// the number of data blocks it holds. Keys other than "dataBlocks"
// (e.g. "encoder", "version") are skipped, unrecognized.
func (r *Reader) readBinaryHeader() error {
	n, err := r.dec.MapLen()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		key, err := r.dec.Key()
		if err != nil {
			return err
		}
		switch key {
		case "dataBlocks":
			count, err := r.dec.ArrayLen()
			if err != nil {
				return err
			}
			r.blocksInFile = count
		default:
			if err := r.dec.SkipRecursive(); err != nil {
				return err
			}
		}
	}
	r.headerRead = true
	return nil
}

// walkBinaryBlock reads one element of the "dataBlocks" array: a map
// with a "header" string (ignored; mmCIF block names have no
// registered handler of their own) and a "categories" array.
func (r *Reader) walkBinaryBlock() error {
	n, err := r.dec.MapLen()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		key, err := r.dec.Key()
		if err != nil {
			return err
		}
		switch key {
		case "categories":
			if err := r.walkBinaryCategories(); err != nil {
				return err
			}
		default:
			if err := r.dec.SkipRecursive(); err != nil {
				return err
			}
		}
	}
	return nil
}

// walkBinaryCategories processes the "categories" array in file
// order. Unlike the text format, there is no registry-order
// requirement here: each category's rows and finalize callback fire
// as it is encountered, since buffering every category up front to
// reorder them would defeat the point of streaming a binary column
// store.
func (r *Reader) walkBinaryCategories() error {
	n, err := r.dec.ArrayLen()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := r.walkBinaryCategory(); err != nil {
			return err
		}
	}
	return nil
}

type binaryColumn struct {
	kw   *Keyword
	data encoding.Buffer
	mask []byte
}

func (r *Reader) walkBinaryCategory() error {
	n, err := r.dec.MapLen()
	if err != nil {
		return err
	}

	var name string
	var cat *Category
	haveName := false
	var cols []binaryColumn

	for i := 0; i < n; i++ {
		key, err := r.dec.Key()
		if err != nil {
			return err
		}
		switch key {
		case "name":
			name, err = r.dec.Str()
			if err != nil {
				return err
			}
			haveName = true
			cat = r.findCategory([]byte(name))
			if cat == nil {
				r.logUnknownCategory(name)
			}
		case "columns":
			cols, err = r.walkBinaryColumns(cat)
			if err != nil {
				return err
			}
		default:
			if err := r.dec.SkipRecursive(); err != nil {
				return err
			}
		}
	}
	if !haveName {
		return ciferr.FileFormatf(0, "BinaryCIF category is missing its name")
	}
	if cat == nil {
		return nil
	}
	return r.dispatchBinaryCategory(cat, cols)
}

// walkBinaryColumns decodes the "columns" array. If cat is nil (the
// category is unregistered) every column's data and mask are skipped
// without decoding.
func (r *Reader) walkBinaryColumns(cat *Category) ([]binaryColumn, error) {
	n, err := r.dec.ArrayLen()
	if err != nil {
		return nil, err
	}
	if cat == nil {
		for i := 0; i < n; i++ {
			if err := r.dec.SkipRecursive(); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	cols := make([]binaryColumn, 0, n)
	for i := 0; i < n; i++ {
		col, skip, err := r.walkBinaryColumn(cat)
		if err != nil {
			return nil, err
		}
		if !skip {
			cols = append(cols, col)
		}
	}
	return cols, nil
}

func (r *Reader) walkBinaryColumn(cat *Category) (col binaryColumn, skip bool, err error) {
	n, err := r.dec.MapLen()
	if err != nil {
		return col, false, err
	}

	var name string
	var haveData bool
	var dataRaw []byte
	var dataChain []encoding.Encoding
	var haveMask bool
	var maskRaw []byte
	var maskChain []encoding.Encoding

	for i := 0; i < n; i++ {
		key, err := r.dec.Key()
		if err != nil {
			return col, false, err
		}
		switch key {
		case "name":
			name, err = r.dec.Str()
			if err != nil {
				return col, false, err
			}
		case "data":
			dataRaw, dataChain, err = r.decodeDataSubmap()
			if err != nil {
				return col, false, err
			}
			haveData = true
		case "mask":
			maskRaw, maskChain, haveMask, err = r.decodeOptionalDataSubmap()
			if err != nil {
				return col, false, err
			}
		default:
			if err := r.dec.SkipRecursive(); err != nil {
				return col, false, err
			}
		}
	}
	if name == "" {
		return col, false, ciferr.FileFormatf(0, "BinaryCIF column in category %q is missing its name", cat.Name)
	}

	kw := cat.Keyword(name)
	if kw == nil {
		r.logUnknownKeyword(cat.Name, name)
		return col, true, nil
	}
	if !haveData {
		return col, false, ciferr.FileFormatf(0, "column %s.%s has no data", cat.Name, name)
	}

	buf, err := encoding.Apply(dataChain, encoding.Buffer{Tag: encoding.TagRaw, Raw: dataRaw})
	if err != nil {
		return col, false, err
	}
	col = binaryColumn{kw: kw, data: buf}

	if haveMask {
		mbuf, err := encoding.Apply(maskChain, encoding.Buffer{Tag: encoding.TagRaw, Raw: maskRaw})
		if err != nil {
			return col, false, err
		}
		if mbuf.Tag == encoding.TagI32 {
			ciflog.Warnf("cif: mask of %s.%s decoded to i32, narrowing to u8", cat.Name, name)
		}
		mask, err := encoding.NarrowToU8(mbuf)
		if err != nil {
			return col, false, err
		}
		col.mask = mask
	}
	return col, false, nil
}

// decodeDataSubmap reads a {data: <binary>, encoding: [...]} sub-map,
// the shape shared by a column's "data" and "mask" fields.
func (r *Reader) decodeDataSubmap() (raw []byte, chain []encoding.Encoding, err error) {
	n, err := r.dec.MapLen()
	if err != nil {
		return nil, nil, err
	}
	return r.decodeDataSubmapBody(n)
}

// decodeOptionalDataSubmap reads a column's "mask" field, which is
// either absent (a bare nil) or the same {data, encoding} shape as
// decodeDataSubmap. present reports whether a sub-map was there to
// read.
func (r *Reader) decodeOptionalDataSubmap() (raw []byte, chain []encoding.Encoding, present bool, err error) {
	n, err := r.dec.MapOrNilLen()
	if err != nil {
		return nil, nil, false, err
	}
	if n == 0 {
		return nil, nil, false, nil
	}
	raw, chain, err = r.decodeDataSubmapBody(n)
	return raw, chain, true, err
}

func (r *Reader) decodeDataSubmapBody(n int) (raw []byte, chain []encoding.Encoding, err error) {
	for i := 0; i < n; i++ {
		key, err := r.dec.Key()
		if err != nil {
			return nil, nil, err
		}
		switch key {
		case "data":
			raw, err = r.dec.Bytes()
			if err != nil {
				return nil, nil, err
			}
		case "encoding":
			chain, err = r.decodeEncodingChain()
			if err != nil {
				return nil, nil, err
			}
		default:
			if err := r.dec.SkipRecursive(); err != nil {
				return nil, nil, err
			}
		}
	}
	return raw, chain, nil
}

func (r *Reader) decodeEncodingChain() ([]encoding.Encoding, error) {
	n, err := r.dec.ArrayLen()
	if err != nil {
		return nil, err
	}
	chain := make([]encoding.Encoding, n)
	for i := 0; i < n; i++ {
		enc, err := r.decodeEncoding()
		if err != nil {
			return nil, err
		}
		chain[i] = enc
	}
	return chain, nil
}

func (r *Reader) decodeEncoding() (encoding.Encoding, error) {
	var enc encoding.Encoding
	var kind string

	n, err := r.dec.MapLen()
	if err != nil {
		return enc, err
	}
	for i := 0; i < n; i++ {
		key, err := r.dec.Key()
		if err != nil {
			return enc, err
		}
		switch key {
		case "kind":
			kind, err = r.dec.Str()
			if err != nil {
				return enc, err
			}
		case "type":
			v, err := r.dec.Int32()
			if err != nil {
				return enc, err
			}
			enc.Type = int(v)
		case "origin":
			v, err := r.dec.Int32()
			if err != nil {
				return enc, err
			}
			enc.Origin = v
		case "factor":
			v, err := r.dec.Float64()
			if err != nil {
				return enc, err
			}
			enc.Factor = v
		case "dataEncoding":
			enc.DataEncoding, err = r.decodeEncodingChain()
			if err != nil {
				return enc, err
			}
		case "offsetEncoding":
			enc.OffsetEncoding, err = r.decodeEncodingChain()
			if err != nil {
				return enc, err
			}
		case "offsets":
			enc.Offsets, err = r.dec.Bytes()
			if err != nil {
				return enc, err
			}
		case "stringData":
			s, err := r.dec.Str()
			if err != nil {
				return enc, err
			}
			enc.StringData = []byte(s)
		default:
			if err := r.dec.SkipRecursive(); err != nil {
				return enc, err
			}
		}
	}

	switch kind {
	case "ByteArray":
		enc.Kind = encoding.ByteArray
	case "IntegerPacking":
		enc.Kind = encoding.IntegerPacking
	case "Delta":
		enc.Kind = encoding.Delta
	case "RunLength":
		enc.Kind = encoding.RunLength
	case "FixedPoint":
		enc.Kind = encoding.FixedPoint
	case "StringArray":
		enc.Kind = encoding.StringArray
	default:
		return enc, ciferr.FileFormatf(0, "unrecognized BinaryCIF encoding kind %q", kind)
	}
	return enc, nil
}

// dispatchBinaryCategory fires one row callback per row across cols,
// applying mask semantics (1=omitted, 2=unknown) and stringifying
// numeric columns through a per-column scratch buffer, then invokes
// finalize once the category's rows are exhausted.
func (r *Reader) dispatchBinaryCategory(cat *Category, cols []binaryColumn) error {
	if len(cols) == 0 {
		return nil
	}
	rows := cols[0].data.Len()
	for _, c := range cols {
		if c.data.Len() != rows {
			return ciferr.FileFormatf(0, "category %s has columns of differing length (%d vs %d)", cat.Name, c.data.Len(), rows)
		}
		if c.mask != nil && len(c.mask) != rows {
			return ciferr.FileFormatf(0, "category %s column %s has a mask of length %d, expected %d", cat.Name, c.kw.Name, len(c.mask), rows)
		}
	}

	scratches := make([][]byte, len(cols))
	for row := 0; row < rows; row++ {
		for i, c := range cols {
			assignBinaryValue(c.kw, c.data, c.mask, row, &scratches[i])
		}
		cat.seenInBlock = true
		if err := r.fireRow(cat); err != nil {
			return err
		}
	}
	if cat.FinalizeFunc != nil {
		if err := cat.FinalizeFunc(r, cat); err != nil {
			return err
		}
	}
	return nil
}

func assignBinaryValue(kw *Keyword, buf encoding.Buffer, mask []byte, row int, scratch *[]byte) {
	if mask != nil {
		switch mask[row] {
		case 1:
			kw.setOmitted()
			return
		case 2:
			kw.setUnknown()
			return
		}
	}
	kw.InFile = true
	if buf.Tag == encoding.TagString {
		kw.setBorrowed([]byte(buf.Str[row]))
		return
	}
	*scratch = encoding.FormatNumeric(buf, row, (*scratch)[:0])
	kw.setBorrowed(*scratch)
}
