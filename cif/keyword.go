// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cif

// Keyword is a named slot inside a Category. After a row callback
// fires, exactly one of Omitted, Unknown, or a plain Data holds if
// InFile is true; InFile is cleared again before the next row.
//
// Data may alias the tokenizer's line buffer or a BinaryCIF column's
// per-row scratch buffer or decoded string (valid only for the
// duration of the current callback) or, for single-value assignments
// and loop values that spanned multiple input lines, be an independent
// copy — callers that need a value past their own return must copy it
// themselves; see Keyword.String.
type Keyword struct {
	Name string

	InFile  bool
	Omitted bool
	Unknown bool
	Data    []byte

	owned bool
}

// String copies Data into an independent Go string, safe to retain
// past the callback that observed it.
func (k *Keyword) String() string {
	if k.Data == nil {
		return ""
	}
	return string(k.Data)
}

func (k *Keyword) reset() {
	k.InFile = false
	k.Omitted = false
	k.Unknown = false
	k.Data = nil
	k.owned = false
}

// setBorrowed points the keyword at a slice owned by the caller
// (typically the tokenizer's current line, or the BinaryCIF dispatch
// scratch buffer) without copying.
func (k *Keyword) setBorrowed(data []byte) {
	k.Data = data
	k.owned = false
}

// setOwned copies data into the keyword's own storage.
func (k *Keyword) setOwned(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	k.Data = cp
	k.owned = true
}

func (k *Keyword) setOmitted() {
	k.InFile = true
	k.Omitted = true
}

func (k *Keyword) setUnknown() {
	k.InFile = true
	k.Unknown = true
}
