package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeaug/internal/types"
)

func testMarkers() Markers {
	return Markers{
		GenCodeStart:   []string{"#GS"},
		GenCodeEnd:     []string{"#GE"},
		EmbeddedString: []string{"#ES"},
		EmbeddedJSON:   []string{"#ARG"},
		// prefix pair, the longer one must win
		SkipCodeStart: []string{"//--<<"},
		SkipCodeEnd:   []string{"//--"},
		AugCodeBuckets: [][]string{
			{"#PHP"},
			{"#PHP5", "#PHP7"},
		},
		InlineGenCode:    []string{"#GG#"},
		NestedLevelStart: []string{"[[", "{{", "(("},
		NestedLevelEnd:   []string{"]]", "}}", "))"},
	}
}

func TestTokenize_Classification(t *testing.T) {
	tok := New(testMarkers())

	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, got types.Token)
	}{
		{"aug code bucket 0", "#PHP println\n", func(t *testing.T, got types.Token) {
			assert.Equal(t, types.TokenAugCode, got.Kind)
			assert.Equal(t, 0, got.AugCodeSpecIndex)
			assert.Equal(t, "#PHP", got.DirectiveMarker)
			assert.Equal(t, " println", got.DirectiveContent)
		}},
		{"aug code bucket 1 longest marker", "  #PHP7 foo\n", func(t *testing.T, got types.Token) {
			assert.Equal(t, types.TokenAugCode, got.Kind)
			assert.Equal(t, 1, got.AugCodeSpecIndex)
			assert.Equal(t, "#PHP7", got.DirectiveMarker)
			assert.Equal(t, "  ", got.Indent)
			assert.Equal(t, " foo", got.DirectiveContent)
		}},
		{"skip start beats prefix", "//--<< hi\n", func(t *testing.T, got types.Token) {
			assert.Equal(t, types.TokenSkipStart, got.Kind)
			assert.False(t, got.IsGeneratedCodeMarker)
			assert.Equal(t, " hi", got.DirectiveContent)
		}},
		{"skip end", "//--\n", func(t *testing.T, got types.Token) {
			assert.Equal(t, types.TokenSkipEnd, got.Kind)
			assert.Equal(t, "", got.DirectiveContent)
		}},
		{"generated start", "\t#GS\n", func(t *testing.T, got types.Token) {
			assert.Equal(t, types.TokenSkipStart, got.Kind)
			assert.True(t, got.IsGeneratedCodeMarker)
			assert.False(t, got.IsInlineGeneratedCodeMarker)
			assert.Equal(t, "\t", got.Indent)
		}},
		{"generated end", "#GE\n", func(t *testing.T, got types.Token) {
			assert.Equal(t, types.TokenSkipEnd, got.Kind)
			assert.True(t, got.IsGeneratedCodeMarker)
		}},
		{"inline generated", "#GG# x = 1;\n", func(t *testing.T, got types.Token) {
			assert.Equal(t, types.TokenSkipStart, got.Kind)
			assert.True(t, got.IsGeneratedCodeMarker)
			assert.True(t, got.IsInlineGeneratedCodeMarker)
		}},
		{"embedded string", "#ES text\n", func(t *testing.T, got types.Token) {
			assert.Equal(t, types.TokenEmbeddedString, got.Kind)
			assert.Equal(t, " text", got.DirectiveContent)
		}},
		{"embedded json keeps nested marker text", "#ARG[[1]\n", func(t *testing.T, got types.Token) {
			assert.Equal(t, types.TokenEmbeddedJSON, got.Kind)
			assert.Equal(t, "[[1]", got.DirectiveContent)
			assert.Empty(t, got.NestedLevelStartMarker)
		}},
		{"nested start", "#PHP{{ open\n", func(t *testing.T, got types.Token) {
			assert.Equal(t, "{{", got.NestedLevelStartMarker)
			assert.Empty(t, got.NestedLevelEndMarker)
			assert.Equal(t, " open", got.DirectiveContent)
		}},
		{"nested end", "#PHP5)) close\n", func(t *testing.T, got types.Token) {
			assert.Equal(t, "))", got.NestedLevelEndMarker)
			assert.Equal(t, " close", got.DirectiveContent)
		}},
		{"nested marker must be at the front", "#PHP x [[\n", func(t *testing.T, got types.Token) {
			assert.False(t, got.HasNestedLevelStart())
			assert.Equal(t, " x [[", got.DirectiveContent)
		}},
		{"blank", "  \t\n", func(t *testing.T, got types.Token) {
			assert.Equal(t, types.TokenBlank, got.Kind)
			assert.Equal(t, "", got.Indent)
		}},
		{"other", "\t  echo 1;\n", func(t *testing.T, got types.Token) {
			assert.Equal(t, types.TokenOther, got.Kind)
			assert.Equal(t, "\t  ", got.Indent)
		}},
		{"marker not at line start", "x #PHP\n", func(t *testing.T, got types.Token) {
			assert.Equal(t, types.TokenOther, got.Kind)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tok.Tokenize(tt.line)
			require.Len(t, got, 1)
			assert.Equal(t, tt.line, got[0].Text)
			tt.check(t, got[0])
		})
	}
}

func TestTokenize_Positions(t *testing.T) {
	tok := New(testMarkers())
	got := tok.Tokenize("a\r\n#PHP bb\n c")
	require.Len(t, got, 3)

	assert.Equal(t, 0, got[0].StartPos)
	assert.Equal(t, 3, got[0].EndPos)
	assert.Equal(t, "\r\n", got[0].Newline)

	assert.Equal(t, 3, got[1].StartPos)
	assert.Equal(t, 11, got[1].EndPos)
	assert.Equal(t, 2, got[1].LineNumber)
	assert.Equal(t, 1, got[1].Index)

	assert.Equal(t, 11, got[2].StartPos)
	assert.Equal(t, 13, got[2].EndPos)
	assert.Equal(t, "", got[2].Newline)
	assert.Equal(t, " ", got[2].Indent)
}

func TestTokenize_RoundTrip(t *testing.T) {
	tok := New(testMarkers())
	inputs := []string{
		"",
		"\n",
		"#PHP println\r\n#PHP7 foo\r\n",
		"line\rwith\r\nmixed\nendings",
		"//--<<\n#PHP ignored\n//--\n#GS\ncode\n#GE\n#GG# one\n   \n",
	}
	for _, input := range inputs {
		var sb strings.Builder
		for _, token := range tok.Tokenize(input) {
			sb.WriteString(token.Text)
		}
		assert.Equal(t, input, sb.String())
	}
}

func TestTokenize_AugCodeMarkerWinsDuplicates(t *testing.T) {
	tok := New(Markers{
		AugCodeBuckets: [][]string{{"//:X:"}},
		EmbeddedString: []string{"//:X:", "  "},
	})
	got := tok.Tokenize("//:X: a\n")
	require.Len(t, got, 1)
	assert.Equal(t, types.TokenAugCode, got[0].Kind)
}

func TestTokenize_IndentCharacters(t *testing.T) {
	tok := New(testMarkers())
	got := tok.Tokenize("\v#PHP a\n\f\t#ES b\n\vcode\n")
	require.Len(t, got, 3)

	assert.Equal(t, types.TokenAugCode, got[0].Kind)
	assert.Equal(t, "\v", got[0].Indent)
	assert.Equal(t, types.TokenEmbeddedString, got[1].Kind)
	assert.Equal(t, "\f\t", got[1].Indent)
	assert.Equal(t, types.TokenOther, got[2].Kind)
	assert.Equal(t, "\v", got[2].Indent)
}

func TestTokenize_NoMarkers(t *testing.T) {
	tok := New(Markers{})
	got := tok.Tokenize("#PHP a\n\n")
	require.Len(t, got, 2)
	assert.Equal(t, types.TokenOther, got[0].Kind)
	assert.Equal(t, types.TokenBlank, got[1].Kind)
}

func TestTokenize_TwoBucketsExample(t *testing.T) {
	tok := New(Markers{AugCodeBuckets: [][]string{{"#PHP"}, {"#PHP7"}}})
	got := tok.Tokenize("#PHP println\r\n#PHP7 foo\r\n")
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].AugCodeSpecIndex)
	assert.Equal(t, 1, got[1].AugCodeSpecIndex)
	assert.Equal(t, " foo", got[1].DirectiveContent)
}
