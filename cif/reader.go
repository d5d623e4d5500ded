// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cif is a selective, streaming reader for mmCIF and
// BinaryCIF, the two file formats used to distribute macromolecular
// structural data. Callers register only the categories and keywords
// they care about; a per-row callback is invoked with the current
// keyword values already placed in caller-owned slots.
package cif

import (
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ihmwg/go-cif-reader/internal/msgpack"
	"github.com/ihmwg/go-cif-reader/internal/source"
	"github.com/ihmwg/go-cif-reader/internal/token"
	"github.com/ihmwg/go-cif-reader/pkg/ciflog"
)

// UnknownCategoryFunc is called once per occurrence of a category
// named in the file that no caller registered interest in.
type UnknownCategoryFunc func(name string)

// UnknownKeywordFunc is called once per occurrence of a keyword named
// in the file under a registered category that the caller did not
// register.
type UnknownKeywordFunc func(category, keyword string)

// Reader owns the byte source, tokenizer state (text) or MessagePack
// cursor (binary), the registry of categories, and the optional
// unknown-category/unknown-keyword fallbacks. One goroutine owns a
// Reader at a time; ReadBlock blocks on the byte source and invokes
// callbacks synchronously on the calling goroutine.
type Reader struct {
	format Format
	opts   Options

	categories []*Category
	sorted     bool

	onUnknownCategory UnknownCategoryFunc
	onUnknownKeyword  UnknownKeywordFunc

	// text state
	lineBuf *source.Buffer
	lineRdr *source.LineReader
	tok     *token.Tokenizer
	inSave  bool
	blocks  int
	pending *token.Token

	// binary state
	rawSrc        io.Reader
	dec           *msgpack.Decoder
	headerRead    bool
	blocksInFile  int
	blocksWalked  int
}

// NewReader constructs a Reader over src for the given format. Use
// DefaultOptions() for opts unless the caller needs to tune buffering
// or strictness.
func NewReader(src io.Reader, format Format, opts Options) *Reader {
	r := &Reader{format: format, opts: opts}
	switch format {
	case Binary:
		r.rawSrc = src
		r.dec = msgpack.NewDecoder(src)
	default:
		r.lineBuf = source.NewBufferSize(src, opts.GrowThreshold, retryDelayOrDefault(opts.RetryDelay))
		r.lineRdr = source.NewLineReader(r.lineBuf)
		r.tok = token.New(r.lineRdr)
	}
	return r
}

func retryDelayOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return source.DefaultRetryDelay
	}
	return d
}

// RegisterCategory adds a new Category to the reader. data fires once
// per row (or once at block end for a singleton category); finalize
// fires once per block for categories that saw data; userData and
// destroy give the caller a per-category payload that is released
// when the Reader is discarded (call Close).
func (r *Reader) RegisterCategory(name string, data RowFunc, finalize FinalizeFunc, userData interface{}, destroy func(interface{})) *Category {
	c := &Category{Name: name, DataFunc: data, FinalizeFunc: finalize, UserData: userData, destroy: destroy}
	r.categories = append(r.categories, c)
	r.sorted = false
	return c
}

// RegisterSaveFrameEnd sets the callback fired when a save frame
// closes, for a category that cares about save-frame boundaries.
func (c *Category) RegisterSaveFrameEnd(fn RowFunc) { c.SaveEndFunc = fn }

// RemoveAllCategories discards every registered category, releasing
// their payloads via each one's destroy function. Callers may
// re-register categories afterwards, between blocks.
func (r *Reader) RemoveAllCategories() {
	for _, c := range r.categories {
		c.free()
	}
	r.categories = nil
	r.sorted = false
}

// RemoveCategory discards a single registered category by name.
func (r *Reader) RemoveCategory(name string) {
	for i, c := range r.categories {
		if strings.EqualFold(c.Name, name) {
			c.free()
			r.categories = append(r.categories[:i], r.categories[i+1:]...)
			r.sorted = false
			return
		}
	}
}

// SetUnknownCategoryHandler registers fn to be called once per
// occurrence of an unregistered category name.
func (r *Reader) SetUnknownCategoryHandler(fn UnknownCategoryFunc) { r.onUnknownCategory = fn }

// SetUnknownKeywordHandler registers fn to be called once per
// occurrence of an unregistered keyword under a registered category.
func (r *Reader) SetUnknownKeywordHandler(fn UnknownKeywordFunc) { r.onUnknownKeyword = fn }

// Close releases every registered category's payload.
func (r *Reader) Close() {
	r.RemoveAllCategories()
}

// ensureSorted lazily sorts the registry by case-insensitive category
// name exactly once before the first block is read. The sort order is
// part of the documented contract: unrelated categories' callbacks
// fire in this order within a block.
func (r *Reader) ensureSorted() {
	if r.sorted {
		return
	}
	sort.SliceStable(r.categories, func(i, j int) bool {
		return strings.ToLower(r.categories[i].Name) < strings.ToLower(r.categories[j].Name)
	})
	r.sorted = true
}

// findCategory performs a case-insensitive lookup by binary search
// over the sorted registry. The working set of registered categories
// is small enough that this beats the bookkeeping of a hash table.
func (r *Reader) findCategory(name []byte) *Category {
	r.ensureSorted()
	lname := strings.ToLower(string(name))
	i := sort.Search(len(r.categories), func(i int) bool {
		return strings.ToLower(r.categories[i].Name) >= lname
	})
	if i < len(r.categories) && strings.EqualFold(r.categories[i].Name, lname) {
		return r.categories[i]
	}
	return nil
}

// ReadBlock reads one data block. more reports whether a subsequent
// block is available. The very first call for a BinaryCIF source
// implicitly reads the file header.
func (r *Reader) ReadBlock() (more bool, err error) {
	r.ensureSorted()
	if r.format == Binary {
		return r.readBlockBinary()
	}
	return r.readBlockText()
}

func (r *Reader) logUnknownCategory(name string) {
	ciflog.Debugf("cif: skipping unregistered category %q", name)
	if r.onUnknownCategory != nil {
		r.onUnknownCategory(name)
	}
}

func (r *Reader) logUnknownKeyword(cat, kw string) {
	ciflog.Debugf("cif: skipping unregistered keyword %q in category %q", kw, cat)
	if r.onUnknownKeyword != nil {
		r.onUnknownKeyword(cat, kw)
	}
}
