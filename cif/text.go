// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cif

import (
	"strings"

	"github.com/ihmwg/go-cif-reader/internal/token"
	"github.com/ihmwg/go-cif-reader/pkg/ciferr"
	"github.com/ihmwg/go-cif-reader/pkg/ciflog"
)

// readBlockText drives the mmCIF token stream through the block /
// save-frame / key-value / loop state machine, dispatching row
// callbacks as it goes.
func (r *Reader) readBlockText() (more bool, err error) {
	for _, c := range r.categories {
		c.resetBlock()
	}
	r.inSave = false

	sawHeader := false
	for {
		tok, ok, nerr := r.nextToken()
		if nerr != nil {
			r.clearAllRows()
			return false, nerr
		}
		if !ok {
			if sawHeader {
				if err := r.endOfBlock(); err != nil {
					r.clearAllRows()
					return false, err
				}
			}
			return false, nil
		}

		switch tok.Kind {
		case token.BlockHeader, token.GlobalBlock:
			if !sawHeader {
				sawHeader = true
				r.blocks++
				continue
			}
			r.tok.PushBack(tok)
			if err := r.endOfBlock(); err != nil {
				r.clearAllRows()
				return false, err
			}
			return true, nil

		case token.SaveFrame:
			if err := r.handleSaveFrame(); err != nil {
				r.clearAllRows()
				return false, err
			}

		case token.LoopIntro:
			if err := r.handleLoop(); err != nil {
				r.clearAllRows()
				return false, err
			}

		case token.Variable:
			if err := r.handleSingleValue(tok); err != nil {
				r.clearAllRows()
				return false, err
			}

		case token.LoopStop:
			continue

		default:
			return false, ciferr.FileFormatf(tok.Line, "unexpected token %q at top level", tok.Text)
		}
	}
}

func (r *Reader) nextToken() (token.Token, bool, error) {
	return r.tok.Next()
}

func (r *Reader) clearAllRows() {
	for _, c := range r.categories {
		c.resetRow()
	}
}

// handleSingleValue processes "_category.keyword value" assignment.
// The value is always copied into the keyword's own storage: unlike a
// loop row, its data callback does not fire until the enclosing
// block or save frame closes, by which point the tokenizer's line
// buffer has long since moved on.
func (r *Reader) handleSingleValue(varTok token.Token) error {
	catName := string(varTok.Category)
	kwName := string(varTok.Keyword)
	cat := r.findCategory(varTok.Category)
	if cat == nil {
		r.logUnknownCategory(catName)
	}

	valTok, ok, err := r.nextToken()
	if err != nil {
		return err
	}
	if !ok || !valTok.IsValueLike() {
		return ciferr.FileFormatf(varTok.Line, "expected a value for %s.%s", catName, kwName)
	}

	if cat == nil {
		return nil
	}
	kw := cat.Keyword(kwName)
	if kw == nil {
		r.logUnknownKeyword(cat.Name, kwName)
		return nil
	}
	if kw.InFile && r.opts.StrictMode {
		ciflog.Warnf("cif: duplicate assignment to %s.%s, keeping the last value", cat.Name, kwName)
	}
	assignSingletonValue(kw, valTok)
	cat.seenInBlock = true
	return nil
}

func assignSingletonValue(kw *Keyword, tok token.Token) {
	switch tok.Kind {
	case token.Omitted:
		kw.reset()
		kw.setOmitted()
	case token.Unknown:
		kw.reset()
		kw.setUnknown()
	default:
		kw.reset()
		kw.InFile = true
		kw.setOwned(tok.Text)
	}
}

// handleLoop reads a loop_ header (a run of Variable tokens sharing
// one category) followed by rows of values, one per header variable,
// firing the category's row callback after each completed row.
func (r *Reader) handleLoop() error {
	type column struct{ kw *Keyword }

	var catName string
	var cat *Category
	var cols []column
	haveCat := false

	for {
		tok, ok, err := r.nextToken()
		if err != nil {
			return err
		}
		if !ok {
			return ciferr.FileFormatf(0, "unexpected end of file in loop_ header")
		}
		if tok.Kind != token.Variable {
			r.tok.PushBack(tok)
			break
		}
		name := string(tok.Category)
		if !haveCat {
			catName = name
			cat = r.findCategory(tok.Category)
			haveCat = true
		} else if !strings.EqualFold(name, catName) {
			return ciferr.FileFormatf(tok.Line, "loop_ header mixes categories %q and %q", catName, name)
		}
		var kw *Keyword
		if cat != nil {
			kwName := string(tok.Keyword)
			kw = cat.Keyword(kwName)
			if kw == nil {
				r.logUnknownKeyword(cat.Name, kwName)
			}
		}
		cols = append(cols, column{kw: kw})
	}
	if len(cols) == 0 {
		return ciferr.FileFormatf(0, "loop_ with no header variables")
	}
	if cat == nil {
		r.logUnknownCategory(catName)
	}

	for {
		first, ok, err := r.nextToken()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if !first.IsValueLike() {
			r.tok.PushBack(first)
			return nil
		}

		values := make([]token.Token, len(cols))
		values[0] = first
		crossed := false
		for i := 1; i < len(cols); i++ {
			if r.tok.AtLineEnd() && !crossed {
				crossed = true
				for j := 0; j < i; j++ {
					values[j] = cloneIfBorrowed(values[j])
				}
			}
			next, ok2, err2 := r.nextToken()
			if err2 != nil {
				return err2
			}
			if !ok2 || !next.IsValueLike() {
				return ciferr.FileFormatf(first.Line, "loop_ row has %d value(s), expected %d", i, len(cols))
			}
			if crossed {
				next = cloneIfBorrowed(next)
			}
			values[i] = next
		}

		if cat != nil {
			for i, c := range cols {
				if c.kw == nil {
					continue
				}
				assignLoopValue(c.kw, values[i])
			}
			cat.seenInBlock = true
			if err := r.fireRow(cat); err != nil {
				return err
			}
		}
	}
}

func cloneIfBorrowed(t token.Token) token.Token {
	if t.Owned || t.Kind != token.Value {
		return t
	}
	cp := append([]byte(nil), t.Text...)
	t.Text = cp
	t.Owned = true
	return t
}

func assignLoopValue(kw *Keyword, tok token.Token) {
	switch tok.Kind {
	case token.Omitted:
		kw.setOmitted()
	case token.Unknown:
		kw.setUnknown()
	default:
		kw.InFile = true
		if tok.Owned {
			kw.Data = tok.Text
			kw.owned = true
		} else {
			kw.setBorrowed(tok.Text)
		}
	}
}

func (r *Reader) fireRow(cat *Category) error {
	if cat.DataFunc != nil {
		if err := cat.DataFunc(r, cat); err != nil {
			return err
		}
	}
	cat.resetRow()
	return nil
}

// handleSaveFrame toggles in/out of a save_ frame. On the closing
// transition it flushes any pending singleton data accumulated within
// the frame, then fires every registered category's save-frame-end
// callback.
func (r *Reader) handleSaveFrame() error {
	if !r.inSave {
		r.inSave = true
		return nil
	}
	r.inSave = false
	if err := r.flushPendingSingletons(); err != nil {
		return err
	}
	for _, cat := range r.categories {
		if cat.SaveEndFunc != nil {
			if err := cat.SaveEndFunc(r, cat); err != nil {
				return err
			}
		}
	}
	return nil
}

// flushPendingSingletons fires the row callback, exactly once, for
// every category that has at least one keyword still marked InFile
// (i.e. a singleton assignment that a loop's per-row dispatch never
// reset).
func (r *Reader) flushPendingSingletons() error {
	for _, cat := range r.categories {
		hasPending := false
		for _, kw := range cat.keywords {
			if kw.InFile {
				hasPending = true
				break
			}
		}
		if !hasPending {
			continue
		}
		if err := r.fireRow(cat); err != nil {
			return err
		}
	}
	return nil
}

// endOfBlock flushes pending singleton data, then invokes finalize
// exactly once for every category that saw at least one keyword
// touched in this block.
func (r *Reader) endOfBlock() error {
	if err := r.flushPendingSingletons(); err != nil {
		return err
	}
	for _, cat := range r.categories {
		if !cat.seenInBlock {
			continue
		}
		if cat.FinalizeFunc != nil {
			if err := cat.FinalizeFunc(r, cat); err != nil {
				return err
			}
		}
	}
	return nil
}
