// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cif

import (
	"time"

	"github.com/ihmwg/go-cif-reader/internal/source"
)

// Options carries the reader's non-functional knobs: how eagerly the
// line buffer amortizes reads, how long to back off on a transient
// byte-source error, and whether to surface behavior the format
// documents as permitted-but-unusual.
type Options struct {
	// GrowThreshold is the buffered-window size at or above which
	// reads are amplified.
	GrowThreshold int

	// RetryDelay is the pause before retrying a transient,
	// EAGAIN-equivalent byte-source error.
	RetryDelay time.Duration

	// StrictMode elevates a duplicate single-value keyword
	// assignment within one block from silent last-write-wins to a
	// logged warning. It never changes the default behavior: the
	// last value written always wins either way.
	StrictMode bool
}

// DefaultOptions mirrors the reader's built-in defaults.
func DefaultOptions() Options {
	return Options{
		GrowThreshold: source.DefaultGrowThreshold,
		RetryDelay:    source.DefaultRetryDelay,
	}
}
