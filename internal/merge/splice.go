package merge

import (
	"fmt"

	"codeaug/internal/textutil"
	"codeaug/internal/types"
)

// Directives are the generated code markers recorded in the prep file header.
// Nil means the marker was never configured.
type Directives struct {
	GenCodeStart *string
	GenCodeEnd   *string
}

// Splice is a computed replacement for one augmenting code section.
type Splice struct {
	Range Range
	Text  string
}

// Build formats g for insertion at snippet and returns the span it replaces.
// It terminates, repairs, indents and, where needed, wraps g's content parts in
// place. g must have at least one content part.
func Build(snippet types.CodeSnippetDescriptor, g *types.GeneratedCode, dirs Directives) (Splice, error) {
	aug := snippet.AugmentingCodeDescriptor
	newline := aug.LineSeparator
	parts := g.ContentParts

	if ShouldEnsureEndingNewline(g) {
		last := &parts[len(parts)-1]
		last.Content = EnsureEndingNewline(last.Content, newline)
	}
	RepairSplitCrLfs(parts)

	indent := EffectiveIndent(snippet, g)
	if indent != "" {
		IndentCode(parts, indent)
	}

	if ShouldWrap(g, snippet.GeneratedCodeDescriptor) {
		if dirs.GenCodeStart == nil || dirs.GenCodeEnd == nil ||
			textutil.IsBlank(*dirs.GenCodeStart) || textutil.IsBlank(*dirs.GenCodeEnd) {
			kind := "Invalid blank"
			if dirs.GenCodeStart == nil || dirs.GenCodeEnd == nil {
				kind = "No/Null"
			}
			return Splice{}, fmt.Errorf("%s start/end directive markers found in prep file with which to "+
				"insert generated code for augmenting code section with id %d", kind, aug.ID)
		}
		wrapped := make([]types.ContentPart, 0, len(parts)+2)
		wrapped = append(wrapped, types.ContentPart{Content: indent + *dirs.GenCodeStart + newline})
		wrapped = append(wrapped, parts...)
		wrapped = append(wrapped, types.ContentPart{Content: indent + *dirs.GenCodeEnd + newline})
		g.ContentParts = wrapped
	}

	return Splice{Range: ReplacementRange(snippet, g), Text: g.WholeContent()}, nil
}
