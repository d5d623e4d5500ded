package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteArrayDecodesEachType(t *testing.T) {
	buf, err := applyByteArray(Encoding{Type: TypeI8}, Buffer{Tag: TagRaw, Raw: []byte{0xFE, 0x02}})
	require.NoError(t, err)
	assert.Equal(t, []int32{-2, 2}, buf.I32)

	buf, err = applyByteArray(Encoding{Type: TypeU8}, Buffer{Tag: TagRaw, Raw: []byte{0xFE, 0x02}})
	require.NoError(t, err)
	assert.Equal(t, []int32{254, 2}, buf.I32)

	buf, err = applyByteArray(Encoding{Type: TypeI32}, Buffer{Tag: TagRaw, Raw: []byte{0x01, 0x00, 0x00, 0x00}})
	require.NoError(t, err)
	assert.Equal(t, []int32{1}, buf.I32)
}

func TestByteArrayRejectsMisalignedLength(t *testing.T) {
	_, err := applyByteArray(Encoding{Type: TypeI32}, Buffer{Tag: TagRaw, Raw: []byte{1, 2, 3}})
	assert.Error(t, err)
}

func TestIntegerPackingSumsContinuationSentinels(t *testing.T) {
	in := Buffer{Tag: TagI8, I32: []int32{0x7F, 0x7F, 0x01, 5}}
	out, err := applyIntegerPacking(in)
	require.NoError(t, err)
	assert.Equal(t, []int32{0x7F + 0x7F + 1, 5}, out.I32)
}

func TestIntegerPackingNegativeSentinel(t *testing.T) {
	in := Buffer{Tag: TagI8, I32: []int32{-0x80, -0x80, -10}}
	out, err := applyIntegerPacking(in)
	require.NoError(t, err)
	assert.Equal(t, []int32{-0x80 + -0x80 + -10}, out.I32)
}

func TestDeltaAppliesRunningOrigin(t *testing.T) {
	out, err := applyDelta(Encoding{Origin: 100}, Buffer{Tag: TagI32, I32: []int32{5, 0, 0}})
	require.NoError(t, err)
	assert.Equal(t, []int32{105, 105, 105}, out.I32)
}

func TestDeltaRecoversArithmeticSequence(t *testing.T) {
	diffs := []int32{3, 3, 3, 3}
	out, err := applyDelta(Encoding{Origin: 10}, Buffer{Tag: TagI32, I32: diffs})
	require.NoError(t, err)
	assert.Equal(t, []int32{13, 16, 19, 22}, out.I32)
}

func TestRunLengthExpandsPairs(t *testing.T) {
	out, err := applyRunLength(Buffer{Tag: TagI32, I32: []int32{7, 3, 9, 2}})
	require.NoError(t, err)
	assert.Equal(t, []int32{7, 7, 7, 9, 9}, out.I32)
}

func TestRunLengthRejectsOddLength(t *testing.T) {
	_, err := applyRunLength(Buffer{Tag: TagI32, I32: []int32{1, 2, 3}})
	assert.Error(t, err)
}

func TestFixedPointDividesByFactor(t *testing.T) {
	out, err := applyFixedPoint(Encoding{Factor: 100}, Buffer{Tag: TagI32, I32: []int32{150, 25}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 0.25}, out.F64)
}

func TestStringArrayIndexesIntoStringData(t *testing.T) {
	enc := Encoding{
		Kind:           StringArray,
		DataEncoding:   []Encoding{{Kind: ByteArray, Type: TypeI32}},
		OffsetEncoding: []Encoding{{Kind: ByteArray, Type: TypeI32}},
		StringData:     []byte("ABC"),
	}
	offsets := []int32{0, 1, 2, 3}
	enc.Offsets = i32Bytes(offsets)
	indices := i32Bytes([]int32{0, 1, 2, 1})

	out, err := applyStringArray(enc, Buffer{Tag: TagRaw, Raw: indices})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "B"}, out.Str)
}

func TestStringArrayRejectsOutOfRangeIndex(t *testing.T) {
	enc := Encoding{
		DataEncoding:   []Encoding{{Kind: ByteArray, Type: TypeI32}},
		OffsetEncoding: []Encoding{{Kind: ByteArray, Type: TypeI32}},
		StringData:     []byte("AB"),
		Offsets:        i32Bytes([]int32{0, 1, 2}),
	}
	_, err := applyStringArray(enc, Buffer{Tag: TagRaw, Raw: i32Bytes([]int32{5})})
	assert.Error(t, err)
}

func TestStringArrayRejectsIndexAgainstEmptyStringTable(t *testing.T) {
	enc := Encoding{
		DataEncoding:   []Encoding{{Kind: ByteArray, Type: TypeI32}},
		OffsetEncoding: []Encoding{{Kind: ByteArray, Type: TypeI32}},
		StringData:     nil,
		Offsets:        nil,
	}
	_, err := applyStringArray(enc, Buffer{Tag: TagRaw, Raw: i32Bytes([]int32{0})})
	assert.Error(t, err)
}

func TestStringArrayAcceptsEmptyIndicesAgainstEmptyStringTable(t *testing.T) {
	enc := Encoding{
		DataEncoding:   []Encoding{{Kind: ByteArray, Type: TypeI32}},
		OffsetEncoding: []Encoding{{Kind: ByteArray, Type: TypeI32}},
		StringData:     nil,
		Offsets:        nil,
	}
	out, err := applyStringArray(enc, Buffer{Tag: TagRaw, Raw: nil})
	require.NoError(t, err)
	assert.Empty(t, out.Str)
}

func TestApplyChainsThreeStages(t *testing.T) {
	chain := []Encoding{
		{Kind: ByteArray, Type: TypeI8},
		{Kind: IntegerPacking},
		{Kind: Delta, Origin: 100},
	}
	raw := []byte{0x05, 0x7F, 0x7F, 0x01}
	out, err := Apply(chain, Buffer{Tag: TagRaw, Raw: raw})
	require.NoError(t, err)
	assert.Equal(t, TagI32, out.Tag)
	assert.Equal(t, []int32{105, 100 + 5 + 0x7F + 0x7F + 1}, out.I32)
}

func TestNarrowToU8FromIntegerPacking(t *testing.T) {
	out, err := NarrowToU8(Buffer{Tag: TagI32, I32: []int32{0, 1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, out)
}

func TestNarrowToU8RejectsOutOfRange(t *testing.T) {
	_, err := NarrowToU8(Buffer{Tag: TagI32, I32: []int32{300}})
	assert.Error(t, err)
}

func TestFormatNumericRendersIntAndFloat(t *testing.T) {
	scratch := make([]byte, 0, 16)
	out := FormatNumeric(Buffer{Tag: TagI32, I32: []int32{42}}, 0, scratch)
	assert.Equal(t, "42", string(out))

	out = FormatNumeric(Buffer{Tag: TagF64, F64: []float64{1.5}}, 0, scratch)
	assert.Equal(t, "1.5", string(out))
}

func i32Bytes(values []int32) []byte {
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
