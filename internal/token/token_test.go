package token

import (
	"bytes"
	"testing"

	"github.com/ihmwg/go-cif-reader/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenizer(t *testing.T, data string) *Tokenizer {
	t.Helper()
	buf := source.NewBuffer(bytes.NewReader([]byte(data)))
	return New(source.NewLineReader(buf))
}

func collect(t *testing.T, tz *Tokenizer) []Token {
	t.Helper()
	var toks []Token
	for {
		tok, ok, err := tz.Next()
		require.NoError(t, err)
		if !ok {
			return toks
		}
		toks = append(toks, tok)
	}
}

func TestClassifyVariableSplitsCategoryAndKeyword(t *testing.T) {
	tz := newTokenizer(t, "_entry.id 1YTI\n")
	toks := collect(t, tz)
	require.Len(t, toks, 2)
	assert.Equal(t, Variable, toks[0].Kind)
	assert.Equal(t, "entry", string(toks[0].Category))
	assert.Equal(t, "id", string(toks[0].Keyword))
	assert.Equal(t, Value, toks[1].Kind)
	assert.Equal(t, "1YTI", string(toks[1].Text))
}

func TestVariableWithoutDotIsAnError(t *testing.T) {
	tz := newTokenizer(t, "_entryid 1YTI\n")
	_, _, err := tz.Next()
	assert.Error(t, err)
}

func TestOmittedAndUnknownSentinels(t *testing.T) {
	tz := newTokenizer(t, ". ?\n")
	toks := collect(t, tz)
	require.Len(t, toks, 2)
	assert.Equal(t, Omitted, toks[0].Kind)
	assert.Equal(t, Unknown, toks[1].Kind)
}

func TestReservedWordsAreCaseInsensitive(t *testing.T) {
	tz := newTokenizer(t, "LOOP_\nSTOP_\nGLOBAL_\n")
	toks := collect(t, tz)
	require.Len(t, toks, 3)
	assert.Equal(t, LoopIntro, toks[0].Kind)
	assert.Equal(t, LoopStop, toks[1].Kind)
	assert.Equal(t, GlobalBlock, toks[2].Kind)
}

func TestQuotedStringPreservesEmbeddedApostrophe(t *testing.T) {
	tz := newTokenizer(t, `"O5' position"` + "\n")
	toks := collect(t, tz)
	require.Len(t, toks, 1)
	assert.Equal(t, "O5' position", string(toks[0].Text))
}

func TestUnterminatedQuoteIsAnError(t *testing.T) {
	tz := newTokenizer(t, `"unterminated` + "\n")
	_, _, err := tz.Next()
	assert.Error(t, err)
}

func TestMultilineStringJoinsWithNewline(t *testing.T) {
	tz := newTokenizer(t, ";alpha\nbeta\n;\n")
	toks := collect(t, tz)
	require.Len(t, toks, 1)
	assert.Equal(t, "alpha\nbeta", string(toks[0].Text))
	assert.True(t, toks[0].Owned)
}

func TestCommentAndBlankLinesAreSkipped(t *testing.T) {
	tz := newTokenizer(t, "# a comment\n\n_entry.id 1YTI\n")
	toks := collect(t, tz)
	require.Len(t, toks, 2)
	assert.Equal(t, Variable, toks[0].Kind)
}

func TestPushBackReplaysToken(t *testing.T) {
	tz := newTokenizer(t, "data_B\n")
	tok, ok, err := tz.Next()
	require.NoError(t, err)
	require.True(t, ok)
	tz.PushBack(tok)
	replayed, ok, err := tz.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tok.Kind, replayed.Kind)
	assert.Equal(t, string(tok.Text), string(replayed.Text))
}

func TestAtLineEndDetectsRemainingTokens(t *testing.T) {
	tz := newTokenizer(t, "1 2\n3\n")
	_, ok, err := tz.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, tz.AtLineEnd(), "a second value still follows on this line")
	_, ok, err = tz.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, tz.AtLineEnd(), "nothing left before the next physical line")
}
