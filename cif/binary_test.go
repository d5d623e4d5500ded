package cif

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vmsgpack "github.com/vmihailenco/msgpack/v5"
)

// encodeByteArrayI32Encoding writes a single ByteArray(type=i32)
// encoding map for a column whose data is already int32, little-endian.
func encodeByteArrayI32Encoding(t *testing.T, enc *vmsgpack.Encoder) {
	t.Helper()
	require.NoError(t, enc.EncodeMapLen(2))
	enc.EncodeString("kind")
	enc.EncodeString("ByteArray")
	enc.EncodeString("type")
	enc.EncodeInt(3) // TypeI32
}

func i32le(values ...int32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		u := uint32(v)
		out[4*i] = byte(u)
		out[4*i+1] = byte(u >> 8)
		out[4*i+2] = byte(u >> 16)
		out[4*i+3] = byte(u >> 24)
	}
	return out
}

// buildDocument encodes a minimal BinaryCIF document with one block
// holding one category whose columns are described by cols.
type bcifColumn struct {
	name string
	data []byte
	mask []byte // nil if absent
}

func buildDocument(t *testing.T, catName string, cols []bcifColumn) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := vmsgpack.NewEncoder(&buf)

	require.NoError(t, enc.EncodeMapLen(1))
	enc.EncodeString("dataBlocks")
	require.NoError(t, enc.EncodeArrayLen(1))

	require.NoError(t, enc.EncodeMapLen(1))
	enc.EncodeString("categories")
	require.NoError(t, enc.EncodeArrayLen(1))

	require.NoError(t, enc.EncodeMapLen(2))
	enc.EncodeString("name")
	enc.EncodeString(catName)
	enc.EncodeString("columns")
	require.NoError(t, enc.EncodeArrayLen(len(cols)))

	for _, c := range cols {
		n := 2
		if c.mask != nil {
			n = 3
		}
		require.NoError(t, enc.EncodeMapLen(n))
		enc.EncodeString("name")
		enc.EncodeString(c.name)
		enc.EncodeString("data")
		require.NoError(t, enc.EncodeMapLen(2))
		enc.EncodeString("data")
		enc.EncodeBytes(c.data)
		enc.EncodeString("encoding")
		require.NoError(t, enc.EncodeArrayLen(1))
		encodeByteArrayI32Encoding(t, enc)
		if c.mask != nil {
			enc.EncodeString("mask")
			require.NoError(t, enc.EncodeMapLen(2))
			enc.EncodeString("data")
			enc.EncodeBytes(c.mask)
			enc.EncodeString("encoding")
			require.NoError(t, enc.EncodeArrayLen(1))
			encodeByteArrayI32Encoding(t, enc)
		}
	}

	return buf.Bytes()
}

func TestBinaryCIFMaskSemantics(t *testing.T) {
	raw := buildDocument(t, "atom", []bcifColumn{
		{name: "id", data: i32le(10, 11, 12), mask: i32le(0, 1, 2)},
	})
	r := NewReader(bytes.NewReader(raw), Binary, DefaultOptions())

	type row struct {
		omitted, unknown bool
		value            string
	}
	var rows []row
	atom := r.RegisterCategory("atom", func(r *Reader, cat *Category) error {
		kw := cat.Keyword("id")
		rows = append(rows, row{omitted: kw.Omitted, unknown: kw.Unknown, value: kw.String()})
		return nil
	}, nil, nil, nil)
	atom.RegisterKeyword("id")

	more, err := r.ReadBlock()
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, rows, 3)
	assert.Equal(t, "10", rows[0].value)
	assert.True(t, rows[1].omitted)
	assert.True(t, rows[2].unknown)
}

func TestBinaryCIFFinalizeFiresOncePerCategory(t *testing.T) {
	raw := buildDocument(t, "atom", []bcifColumn{
		{name: "id", data: i32le(1, 2, 3)},
	})
	r := NewReader(bytes.NewReader(raw), Binary, DefaultOptions())

	rows, finalizes := 0, 0
	atom := r.RegisterCategory("atom", func(r *Reader, cat *Category) error {
		rows++
		return nil
	}, func(r *Reader, cat *Category) error {
		finalizes++
		return nil
	}, nil, nil)
	atom.RegisterKeyword("id")

	_, err := r.ReadBlock()
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	assert.Equal(t, 1, finalizes)
}

func TestBinaryCIFMismatchedColumnLengthIsAnError(t *testing.T) {
	raw := buildDocument(t, "atom", []bcifColumn{
		{name: "id", data: i32le(1, 2, 3)},
		{name: "charge", data: i32le(1, 2)},
	})
	r := NewReader(bytes.NewReader(raw), Binary, DefaultOptions())

	atom := r.RegisterCategory("atom", func(r *Reader, cat *Category) error { return nil }, nil, nil, nil)
	atom.RegisterKeyword("id")
	atom.RegisterKeyword("charge")

	_, err := r.ReadBlock()
	assert.Error(t, err)
}

func TestBinaryCIFUnknownColumnIsSkipped(t *testing.T) {
	raw := buildDocument(t, "atom", []bcifColumn{
		{name: "id", data: i32le(1, 2)},
		{name: "mystery", data: i32le(9, 9)},
	})
	r := NewReader(bytes.NewReader(raw), Binary, DefaultOptions())

	var seen string
	r.SetUnknownKeywordHandler(func(cat, kw string) { seen = cat + "." + kw })
	rows := 0
	atom := r.RegisterCategory("atom", func(r *Reader, cat *Category) error {
		rows++
		return nil
	}, nil, nil, nil)
	atom.RegisterKeyword("id")

	_, err := r.ReadBlock()
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
	assert.Equal(t, "atom.mystery", seen)
}

func TestBinaryCIFUnknownCategoryIsSkipped(t *testing.T) {
	raw := buildDocument(t, "mystery_cat", []bcifColumn{
		{name: "id", data: i32le(1, 2)},
	})
	r := NewReader(bytes.NewReader(raw), Binary, DefaultOptions())

	var seen string
	r.SetUnknownCategoryHandler(func(name string) { seen = name })

	more, err := r.ReadBlock()
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, "mystery_cat", seen)
}
