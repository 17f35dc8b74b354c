package merge

import (
	"strings"

	"codeaug/internal/textutil"
	"codeaug/internal/types"
)

// EnsureEndingNewline appends newline to code unless code already ends in '\r' or '\n'.
func EnsureEndingNewline(code, newline string) string {
	if textutil.EndsWithNewline(code) {
		return code
	}
	return code + newline
}

// RepairSplitCrLfs moves a leading "\n" of a part onto the previous part when that
// one ends in "\r", so no part boundary splits a CRLF. IndentCode depends on it.
func RepairSplitCrLfs(parts []types.ContentPart) {
	for i := 0; i+1 < len(parts); i++ {
		if strings.HasSuffix(parts[i].Content, "\r") && strings.HasPrefix(parts[i+1].Content, "\n") {
			parts[i].Content += "\n"
			parts[i+1].Content = parts[i+1].Content[1:]
		}
	}
}

// IndentCode prefixes indent to every non-empty line of the concatenated parts, in
// place. The result equals indenting the concatenation as a single string.
// Empty lines are left alone, as editors do.
func IndentCode(parts []types.ContentPart, indent string) {
	for i := range parts {
		startsOnNewline := partBeginsOnNewline(parts, i)
		var sb strings.Builder
		for j, line := range textutil.SplitLines(parts[i].Content) {
			if (j > 0 || startsOnNewline) && line.Text != "" {
				sb.WriteString(indent)
			}
			sb.WriteString(line.Text)
			sb.WriteString(line.Terminator)
		}
		parts[i].Content = sb.String()
	}
}

// partBeginsOnNewline reports whether part i starts a new line of the concatenation.
func partBeginsOnNewline(parts []types.ContentPart, i int) bool {
	if parts[i].Content == "" {
		return false
	}
	for k := i - 1; k >= 0; k-- {
		if prev := parts[k].Content; prev != "" {
			return textutil.EndsWithNewline(prev)
		}
	}
	return true
}
