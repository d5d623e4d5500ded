// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package token tokenizes mmCIF input one logical line at a time,
// handling quoted strings, semicolon-delimited multi-line strings,
// and the grammar's reserved words. It supports a single-token
// pushback for the state machine in package cif.
package token

import (
	"bytes"

	"github.com/ihmwg/go-cif-reader/internal/source"
	"github.com/ihmwg/go-cif-reader/pkg/ciferr"
)

// Kind classifies a Token.
type Kind int

const (
	Value Kind = iota
	Omitted
	Unknown
	LoopIntro
	BlockHeader
	SaveFrame
	Variable
	GlobalBlock
	LoopStop
)

func (k Kind) String() string {
	switch k {
	case Value:
		return "value"
	case Omitted:
		return "omitted"
	case Unknown:
		return "unknown"
	case LoopIntro:
		return "loop_"
	case BlockHeader:
		return "data_"
	case SaveFrame:
		return "save_"
	case Variable:
		return "variable"
	case GlobalBlock:
		return "global_"
	case LoopStop:
		return "stop_"
	default:
		return "?"
	}
}

// Token is one lexical unit of an mmCIF line. Text (and Category/
// Keyword, for Variable tokens) borrow directly into the line
// buffer's current window unless Owned is set, in which case they are
// independent copies (produced for multi-line string values).
type Token struct {
	Kind     Kind
	Text     []byte
	Category []byte
	Keyword  []byte
	Owned    bool
	Line     int
}

// IsValueLike reports whether the token can stand in as a loop row's
// column value (Value, Omitted, or Unknown).
func (t Token) IsValueLike() bool {
	return t.Kind == Value || t.Kind == Omitted || t.Kind == Unknown
}

// Tokenizer turns the line-oriented byte stream into a token stream,
// scanning the current physical line one token per Next call and
// transparently pulling further lines when a semicolon-delimited
// multi-line string has not yet reached its closing ';'.
type Tokenizer struct {
	lr     *source.LineReader
	line   []byte
	pos    int
	lineNo int
	pushed *Token
	eof    bool
}

func New(lr *source.LineReader) *Tokenizer {
	return &Tokenizer{lr: lr}
}

// PushBack returns tok to be the next token Next() yields. Only one
// token of lookahead is supported; callers must consume it before
// pushing back another.
func (t *Tokenizer) PushBack(tok Token) {
	cp := tok
	t.pushed = &cp
}

// AtLineEnd reports whether the next call to Next will need to pull a
// new physical line (i.e. only whitespace or a comment remains on the
// current one). The state machine uses this to know when a loop row's
// still-borrowed values must be copied before the underlying line
// buffer is allowed to move on to a new line.
func (t *Tokenizer) AtLineEnd() bool {
	if t.pushed != nil {
		return false
	}
	p := t.pos
	for p < len(t.line) && (t.line[p] == ' ' || t.line[p] == '\t') {
		p++
	}
	return p >= len(t.line) || t.line[p] == '#'
}

// Next returns the next token, or ok=false once input is exhausted.
func (t *Tokenizer) Next() (tok Token, ok bool, err error) {
	if t.pushed != nil {
		tok = *t.pushed
		t.pushed = nil
		return tok, true, nil
	}
	for {
		if t.pos >= len(t.line) {
			if t.eof {
				return Token{}, false, nil
			}
			line, got, lerr := t.lr.Next()
			if lerr != nil {
				return Token{}, false, lerr
			}
			if !got {
				t.eof = true
				return Token{}, false, nil
			}
			t.line = line
			t.pos = 0
			t.lineNo = t.lr.LineNo()
			if source.IsBlankOrComment(line) {
				t.pos = len(t.line)
				continue
			}
		}

		if t.pos == 0 && len(t.line) > 0 && t.line[0] == ';' {
			return t.readMultilineString()
		}

		for t.pos < len(t.line) && (t.line[t.pos] == ' ' || t.line[t.pos] == '\t') {
			t.pos++
		}
		if t.pos >= len(t.line) {
			continue
		}
		if t.line[t.pos] == '#' {
			t.pos = len(t.line)
			continue
		}

		c := t.line[t.pos]
		if c == '"' || c == '\'' {
			return t.readQuoted(c)
		}
		return t.readBare()
	}
}

func (t *Tokenizer) readQuoted(quote byte) (Token, bool, error) {
	start := t.pos + 1
	line := t.lineNo
	for i := start; i < len(t.line); i++ {
		if t.line[i] != quote {
			continue
		}
		if i+1 == len(t.line) || t.line[i+1] == ' ' || t.line[i+1] == '\t' {
			text := t.line[start:i]
			t.pos = i + 1
			return Token{Kind: Value, Text: text, Line: line}, true, nil
		}
		// quote followed by a non-whitespace char is literal; keep scanning.
	}
	return Token{}, false, ciferr.FileFormatf(line, "unterminated quoted string")
}

// readMultilineString consumes the semicolon-delimited value starting
// on the current line (whose first byte is ';') through to the line
// that opens with ';', joining intervening lines with '\n'.
func (t *Tokenizer) readMultilineString() (Token, bool, error) {
	openLine := t.lineNo
	parts := [][]byte{append([]byte(nil), t.line[1:]...)}
	for {
		line, got, err := t.lr.Next()
		if err != nil {
			return Token{}, false, err
		}
		if !got {
			return Token{}, false, ciferr.FileFormatf(openLine, "unterminated multi-line string")
		}
		if len(line) > 0 && line[0] == ';' {
			t.line = nil
			t.pos = 0
			t.lineNo = t.lr.LineNo()
			body := bytes.Join(parts, []byte("\n"))
			return Token{Kind: Value, Text: body, Owned: true, Line: openLine}, true, nil
		}
		parts = append(parts, append([]byte(nil), line...))
	}
}

func (t *Tokenizer) readBare() (Token, bool, error) {
	start := t.pos
	line := t.lineNo
	for t.pos < len(t.line) {
		c := t.line[t.pos]
		if c == ' ' || c == '\t' || c == '#' {
			break
		}
		t.pos++
	}
	raw := t.line[start:t.pos]
	return classify(raw, line)
}

func classify(raw []byte, line int) (Token, bool, error) {
	switch {
	case len(raw) == 1 && raw[0] == '.':
		return Token{Kind: Omitted, Text: raw, Line: line}, true, nil
	case len(raw) == 1 && raw[0] == '?':
		return Token{Kind: Unknown, Text: raw, Line: line}, true, nil
	case equalFold(raw, "loop_"):
		return Token{Kind: LoopIntro, Text: raw, Line: line}, true, nil
	case equalFold(raw, "global_"):
		return Token{Kind: GlobalBlock, Text: raw, Line: line}, true, nil
	case equalFold(raw, "stop_"):
		return Token{Kind: LoopStop, Text: raw, Line: line}, true, nil
	case hasFoldPrefix(raw, "save_"):
		return Token{Kind: SaveFrame, Text: raw[5:], Line: line}, true, nil
	case hasFoldPrefix(raw, "data_"):
		return Token{Kind: BlockHeader, Text: raw[5:], Line: line}, true, nil
	case len(raw) > 0 && raw[0] == '_':
		dot := bytes.IndexByte(raw, '.')
		if dot < 0 {
			return Token{}, false, ciferr.FileFormatf(line, "variable name %q is missing a '.'", raw)
		}
		return Token{
			Kind:     Variable,
			Text:     raw,
			Category: raw[1:dot],
			Keyword:  raw[dot+1:],
			Line:     line,
		}, true, nil
	default:
		return Token{Kind: Value, Text: raw, Line: line}, true, nil
	}
}

func equalFold(b []byte, s string) bool {
	return len(b) == len(s) && bytes.EqualFold(b, []byte(s))
}

func hasFoldPrefix(b []byte, s string) bool {
	return len(b) >= len(s) && bytes.EqualFold(b[:len(s)], []byte(s))
}
