// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package source implements the reader's only blocking boundary: a
// byte source pulled into an internal buffer with retention, and the
// line buffer the mmCIF tokenizer scans one logical line at a time.
package source

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/ihmwg/go-cif-reader/pkg/ciferr"
)

// DefaultGrowThreshold is the buffered-window size at or above which
// reads are amplified to reduce syscall count, per the reader's
// "amortize reads at >= 4 MiB" rule.
const DefaultGrowThreshold = 4 << 20

// DefaultRetryDelay is the pause between retries when the byte source
// reports a transient, EAGAIN-equivalent unavailability.
const DefaultRetryDelay = time.Millisecond

// Puller is the byte source contract: fill buf with whatever is
// available and report how much was written. A read that returns
// n==0 with a nil error is retried at once; one that returns an error
// whose Temporary() reports true is retried after a short sleep; true
// end of input is reported as io.EOF, exactly as for io.Reader. Any
// concrete io.Reader already satisfies this interface.
type Puller interface {
	Read(buf []byte) (n int, err error)
}

func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	if errors.As(err, &te) {
		return te.Temporary()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Temporary()
	}
	return false
}

// Buffer retains unconsumed bytes from a Puller and amortizes reads.
// Consumed bytes are shifted out (not merely advanced past), so the
// live memory footprint is bounded by the longest line or multi-line
// value currently being scanned, not by file size.
type Buffer struct {
	src        Puller
	buf        []byte
	start      int // first unconsumed byte
	end        int // one past last valid byte
	growAt     int
	retryDelay time.Duration
	eof        bool
}

// NewBuffer wraps src with default amortization and retry settings.
func NewBuffer(src Puller) *Buffer {
	return NewBufferSize(src, DefaultGrowThreshold, DefaultRetryDelay)
}

// NewBufferSize wraps src with an explicit grow threshold and retry
// delay, letting cif.Options tune both.
func NewBufferSize(src Puller, growThreshold int, retryDelay time.Duration) *Buffer {
	if growThreshold <= 0 {
		growThreshold = DefaultGrowThreshold
	}
	return &Buffer{
		src:        src,
		buf:        make([]byte, 0, 4096),
		growAt:     growThreshold,
		retryDelay: retryDelay,
	}
}

func (b *Buffer) unread() int { return b.end - b.start }

// compact shifts unconsumed bytes to the front of buf.
func (b *Buffer) compact() {
	if b.start == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.start:b.end])
	b.start = 0
	b.end = n
}

// fill pulls more bytes from src, growing buf as needed, retrying
// transient errors with a short sleep. It returns false once the
// source has reported io.EOF and no further bytes were read.
func (b *Buffer) fill() (bool, error) {
	if b.eof {
		return false, nil
	}
	b.compact()

	chunk := 4096
	if cap(b.buf) >= b.growAt {
		chunk = cap(b.buf)
	}
	if b.end+chunk > cap(b.buf) {
		grown := make([]byte, len(b.buf), cap(b.buf)+chunk)
		copy(grown, b.buf[:b.end])
		b.buf = grown
	}
	b.buf = b.buf[:cap(b.buf)]

	for {
		n, err := b.src.Read(b.buf[b.end:cap(b.buf)])
		if n > 0 {
			b.end += n
			b.buf = b.buf[:b.end]
			return true, nil
		}
		if err == nil {
			continue
		}
		if err == io.EOF {
			b.eof = true
			b.buf = b.buf[:b.end]
			return false, nil
		}
		if isTemporary(err) {
			time.Sleep(b.retryDelay)
			continue
		}
		b.buf = b.buf[:b.end]
		return false, ciferr.IOf(err, "reading byte source: %v", err)
	}
}

// Peek ensures at least n unconsumed bytes are buffered (or EOF is
// hit first) and returns the window, without consuming it.
func (b *Buffer) Peek(n int) ([]byte, error) {
	for b.unread() < n {
		more, err := b.fill()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	if b.unread() < n {
		n = b.unread()
	}
	return b.buf[b.start : b.start+n], nil
}

// Grow attempts to pull additional bytes beyond what is currently
// buffered, for callers (LineReader, looking for a line terminator)
// that have run off the end of the buffered window without finding
// their terminator. It reports whether any new bytes arrived.
func (b *Buffer) Grow() (bool, error) {
	return b.fill()
}

// Unread returns the currently buffered, unconsumed window.
func (b *Buffer) Unread() []byte { return b.buf[b.start:b.end] }

// Advance marks n bytes of the unconsumed window as consumed.
func (b *Buffer) Advance(n int) {
	b.start += n
	if b.start > b.end {
		b.start = b.end
	}
}

// AtEOF reports whether the underlying source has been fully drained
// into the buffer (the buffer itself may still hold unconsumed bytes).
func (b *Buffer) AtEOF() bool { return b.eof }
