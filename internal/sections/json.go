package sections

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"codeaug/internal/types"
)

// validateJSON checks s strictly: exactly one JSON value, nothing but whitespace around it.
func validateJSON(s string) error {
	var v any
	return json.Unmarshal([]byte(s), &v)
}

// jsonValidationError builds the error for the invalid JSON block at blockIndex. The
// block is re-validated in a padded form whose byte positions line up with the source
// file, so the failure can be pinned to a line and column.
func jsonValidationError(blockIndex int, section []types.Token, delimiters []int, path string) *types.TaskError {
	padded := paddedJSONEquivalent(blockIndex, section, delimiters)
	verr := validateJSON(padded)
	if verr == nil {
		// cannot happen, padding only adds whitespace
		verr = errors.New("invalid JSON")
	}

	start := section[delimiters[blockIndex]]
	lineNumber := start.LineNumber
	snippet := start.Text
	detail := verr.Error()

	var serr *json.SyntaxError
	if errors.As(verr, &serr) {
		line, col := position(padded, int(serr.Offset))
		detail = fmt.Sprintf("%s at line %d column %d", serr.Error(), line, col)
		for _, t := range section {
			if t.LineNumber != line {
				continue
			}
			lineNumber = t.LineNumber
			// the column may point one past the offending character, so mark two
			snippet = t.Text + strings.Repeat(" ", max(col-2, 0)) + "^^"
			break
		}
	}

	return types.NewTaskError("Embedded JSON section of augmenting code is not valid: "+detail,
		path, lineNumber, snippet)
}

// paddedJSONEquivalent reproduces the block prefixed by (line - 1) newlines, with each
// directive marker replaced by spaces.
func paddedJSONEquivalent(blockIndex int, section []types.Token, delimiters []int) string {
	end := len(section)
	if blockIndex+1 < len(delimiters) {
		end = delimiters[blockIndex+1]
	}
	blockTokens := section[delimiters[blockIndex]:end]

	var sb strings.Builder
	sb.WriteString(strings.Repeat("\n", blockTokens[0].LineNumber-1))
	for i, t := range blockTokens {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(t.Indent)
		sb.WriteString(strings.Repeat(" ", len(t.DirectiveMarker)))
		sb.WriteString(t.DirectiveContent)
	}
	return sb.String()
}

// position converts a byte offset into a 1-based line and column.
func position(s string, offset int) (int, int) {
	if offset > len(s) {
		offset = len(s)
	}
	if offset < 0 {
		offset = 0
	}
	prefix := s[:offset]
	line := 1 + strings.Count(prefix, "\n")
	lineStart := strings.LastIndexByte(prefix, '\n') + 1
	return line, offset - lineStart + 1
}
