// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cif

import (
	"sort"
	"strings"
)

// RowFunc is invoked once per loop row, or once at block end for a
// single-value (non-loop) category. Returning an error aborts the
// current ReadBlock call.
type RowFunc func(r *Reader, cat *Category) error

// FinalizeFunc is invoked once per block. For mmCIF input it fires
// after every row of every category has been delivered, for
// categories that saw at least one keyword assigned during the block.
// For BinaryCIF input it fires right after the category's own last
// row, for each registered category with at least one registered
// column, even if that column holds no rows.
type FinalizeFunc func(r *Reader, cat *Category) error

// Category is immutable after registration except for its keywords'
// per-row state and the UserData payload a caller may mutate from
// within its own callbacks.
type Category struct {
	Name string

	DataFunc     RowFunc
	SaveEndFunc  RowFunc
	FinalizeFunc FinalizeFunc

	UserData interface{}
	destroy  func(interface{})

	keywords    []*Keyword
	kwSorted    []int // indices into keywords, sorted by lowercase Name
	kwIsSorted  bool
	seenInBlock bool
}

// RegisterKeyword adds a new keyword slot to the category. Keyword
// lookups are case-insensitive.
func (c *Category) RegisterKeyword(name string) *Keyword {
	kw := &Keyword{Name: name}
	c.keywords = append(c.keywords, kw)
	c.kwIsSorted = false
	return kw
}

// ensureKeywordsSorted lazily builds the binary-search index over
// keywords by lowercase name exactly once before the first lookup.
// The working set is small per category (a handful of keywords), so
// this beats the bookkeeping of a hash table, matching Reader's
// category registry.
func (c *Category) ensureKeywordsSorted() {
	if c.kwIsSorted {
		return
	}
	c.kwSorted = make([]int, len(c.keywords))
	for i := range c.keywords {
		c.kwSorted[i] = i
	}
	sort.SliceStable(c.kwSorted, func(i, j int) bool {
		return strings.ToLower(c.keywords[c.kwSorted[i]].Name) < strings.ToLower(c.keywords[c.kwSorted[j]].Name)
	})
	c.kwIsSorted = true
}

// Keyword looks up a previously registered keyword by name
// (case-insensitive), returning nil if it was never registered.
func (c *Category) Keyword(name string) *Keyword {
	c.ensureKeywordsSorted()
	lname := strings.ToLower(name)
	i := sort.Search(len(c.kwSorted), func(i int) bool {
		return strings.ToLower(c.keywords[c.kwSorted[i]].Name) >= lname
	})
	if i < len(c.kwSorted) && strings.EqualFold(c.keywords[c.kwSorted[i]].Name, lname) {
		return c.keywords[c.kwSorted[i]]
	}
	return nil
}

// Keywords returns every keyword registered on this category, in
// registration order.
func (c *Category) Keywords() []*Keyword {
	return c.keywords
}

// SeenInBlock reports whether any keyword of this category was
// assigned at least once during the current block. Queryable from
// within FinalizeFunc to tell whether the category had any data this
// block at all.
func (c *Category) SeenInBlock() bool { return c.seenInBlock }

func (c *Category) resetRow() {
	for _, kw := range c.keywords {
		kw.reset()
	}
}

func (c *Category) resetBlock() {
	c.seenInBlock = false
}

func (c *Category) free() {
	if c.destroy != nil && c.UserData != nil {
		c.destroy(c.UserData)
	}
}
