// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package source

import "bytes"

// LineReader exposes the current logical line of an mmCIF file to the
// tokenizer. A line ends at the first \n, \r, \r\n, or embedded \0.
type LineReader struct {
	buf    *Buffer
	lineNo int
}

func NewLineReader(buf *Buffer) *LineReader {
	return &LineReader{buf: buf}
}

// LineNo returns the 1-based number of the line most recently
// returned by Next, for error messages.
func (l *LineReader) LineNo() int { return l.lineNo }

// findTerminator locates the end of a line within window, returning
// the line length and the number of terminator bytes to skip (0 if no
// terminator was found in window).
func findTerminator(window []byte) (lineLen, skip int) {
	for i, c := range window {
		switch c {
		case '\n':
			return i, 1
		case '\r':
			if i+1 < len(window) && window[i+1] == '\n' {
				return i, 2
			}
			if i+1 == len(window) {
				return -1, 0 // need more bytes to know if \r\n
			}
			return i, 1
		case 0:
			return i, 1
		}
	}
	return -1, 0
}

// Next returns the next logical line (without its terminator) or
// io.EOF-equivalent ok=false if the source is exhausted. The returned
// slice is valid only until the next call to Next or Grow.
func (l *LineReader) Next() (line []byte, ok bool, err error) {
	for {
		window := l.buf.Unread()
		lineLen, skip := findTerminator(window)
		if lineLen >= 0 {
			l.buf.Advance(lineLen + skip)
			l.lineNo++
			return window[:lineLen], true, nil
		}
		more, ferr := l.buf.Grow()
		if ferr != nil {
			return nil, false, ferr
		}
		if !more {
			// EOF: whatever remains (possibly empty) is the final line.
			window = l.buf.Unread()
			if len(window) == 0 {
				return nil, false, nil
			}
			l.buf.Advance(len(window))
			l.lineNo++
			return window, true, nil
		}
	}
}

// GrowCurrent pulls more bytes into the buffer without treating them
// as belonging to a new line. Next already grows the buffer until it
// finds a terminator, so the tokenizer does not call this.
func (l *LineReader) GrowCurrent() (bool, error) {
	return l.buf.Grow()
}

// Unread exposes the raw buffered window without consuming it.
func (l *LineReader) Unread() []byte { return l.buf.Unread() }

// Advance consumes n bytes of the buffered window.
func (l *LineReader) Advance(n int) { l.buf.Advance(n) }

// IsBlankOrComment reports whether a line (as returned by Next) is
// empty or, once leading whitespace is stripped, starts with '#'.
func IsBlankOrComment(line []byte) bool {
	trimmed := bytes.TrimLeft(line, " \t")
	return len(trimmed) == 0 || trimmed[0] == '#'
}
