package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Line
	}{
		{"empty", "", nil},
		{"no terminator", "abc", []Line{{Text: "abc"}}},
		{"lf", "a\nb\n", []Line{{"a", "\n"}, {"b", "\n"}}},
		{"mixed", "a\r\nb\rc\nd", []Line{{"a", "\r\n"}, {"b", "\r"}, {"c", "\n"}, {Text: "d"}}},
		{"lone cr then lf", "a\r\r\n", []Line{{"a", "\r"}, {"", "\r\n"}}},
		{"blank lines", "\n\n", []Line{{"", "\n"}, {"", "\n"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLines(tt.input))
		})
	}
}

func TestSplitLinesKeepEnds(t *testing.T) {
	assert.Equal(t, []string{"a\r\n", "b\r", "c"}, SplitLinesKeepEnds("a\r\nb\rc"))
}

func TestCalculateLineNumber(t *testing.T) {
	text := "ab\ncd\r\nef"
	assert.Equal(t, 1, CalculateLineNumber(text, 0))
	assert.Equal(t, 1, CalculateLineNumber(text, 2))
	assert.Equal(t, 2, CalculateLineNumber(text, 3))
	assert.Equal(t, 2, CalculateLineNumber(text, 6))
	assert.Equal(t, 3, CalculateLineNumber(text, 7))
}

func TestModifyNameToBeAbsent(t *testing.T) {
	taken := map[string]bool{"src": true, "src-1": true}
	assert.Equal(t, "main", ModifyNameToBeAbsent(taken, "main"))
	assert.Equal(t, "src-2", ModifyNameToBeAbsent(taken, "src"))
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsBlank(" \t"))
	assert.False(t, IsBlank(" x"))
	assert.True(t, EndsWithNewline("a\r"))
	assert.False(t, EndsWithNewline(""))
	assert.Equal(t, "  \t", LeadingWhitespace("  \tx "))
	assert.Equal(t, "\v\f ", LeadingWhitespace("\v\f x"))
}
