// Package textutil holds the line and string helpers shared by the tokenizer,
// the response merger and the pipeline stages.
package textutil

import (
	"strconv"
	"strings"
)

// Line is a line of text and its terminator. Terminator is empty only for an
// unterminated last line.
type Line struct {
	Text       string
	Terminator string
}

// SplitLines splits text on "\r\n", "\n" and "\r", keeping terminators separate.
// A trailing newline does not produce an empty final line.
func SplitLines(text string) []Line {
	var lines []Line
	start := 0
	for {
		idx, size := locateNewline(text, start)
		if idx == -1 {
			break
		}
		lines = append(lines, Line{Text: text[start:idx], Terminator: text[idx : idx+size]})
		start = idx + size
	}
	if start < len(text) {
		lines = append(lines, Line{Text: text[start:]})
	}
	return lines
}

// SplitLinesKeepEnds splits text like SplitLines but keeps each terminator attached.
func SplitLinesKeepEnds(text string) []string {
	lines := SplitLines(text)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text + l.Terminator
	}
	return out
}

// CalculateLineNumber returns the 1-based line holding the byte at position.
func CalculateLineNumber(text string, position int) int {
	lineNr := 1
	start := 0
	for {
		idx, size := locateNewline(text, start)
		if idx == -1 || idx+size > position {
			break
		}
		start = idx + size
		lineNr++
	}
	return lineNr
}

func locateNewline(text string, start int) (int, int) {
	idx := strings.IndexAny(text[start:], "\r\n")
	if idx == -1 {
		return -1, 0
	}
	idx += start
	if text[idx] == '\r' && idx+1 < len(text) && text[idx+1] == '\n' {
		return idx, 2
	}
	return idx, 1
}

// IsNewline reports whether ch is '\r' or '\n'.
func IsNewline(ch byte) bool {
	return ch == '\r' || ch == '\n'
}

// EndsWithNewline reports whether s ends in '\r' or '\n'.
func EndsWithNewline(s string) bool {
	return s != "" && IsNewline(s[len(s)-1])
}

// IsBlank reports whether s is empty or whitespace only.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// IndentChars are the characters that make up a line's indent.
const IndentChars = " \t\f\v"

// LeadingWhitespace returns the indent of s, the prefix made of IndentChars.
func LeadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, IndentChars))]
}

// ModifyNameToBeAbsent returns name, or name suffixed with "-1", "-2", ...
// until it is not among taken.
func ModifyNameToBeAbsent(taken map[string]bool, name string) string {
	if !taken[name] {
		return name
	}
	for i := 1; ; i++ {
		candidate := name + "-" + strconv.Itoa(i)
		if !taken[candidate] {
			return candidate
		}
	}
}
