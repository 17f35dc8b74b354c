// Package merge splices generated code into source text. It decides which original
// span a generated code replaces, how that code is indented and terminated, and
// whether it gets wrapped in generated code directives. Transformer applies the
// resulting replacements against original offsets.
package merge

import "codeaug/internal/types"

// Policy is the replacement policy of a generated code, derived once from its
// two replace flags.
type Policy int

const (
	// DefaultWrap replaces only the generated code region, adding directives as needed.
	DefaultWrap Policy = iota
	// ReplaceGenOnly replaces everything from the end of the augmenting code section
	// through the generated code end directive.
	ReplaceGenOnly
	// ReplaceAugOnly replaces the augmenting code section.
	ReplaceAugOnly
	// ReplaceBoth replaces the augmenting code section and the generated code region.
	ReplaceBoth
)

// PolicyOf derives the policy of g.
func PolicyOf(g *types.GeneratedCode) Policy {
	switch {
	case g.ReplaceAugCodeDirectives && g.ReplaceGenCodeDirectives:
		return ReplaceBoth
	case g.ReplaceAugCodeDirectives:
		return ReplaceAugOnly
	case g.ReplaceGenCodeDirectives:
		return ReplaceGenOnly
	default:
		return DefaultWrap
	}
}

func (p Policy) String() string {
	switch p {
	case DefaultWrap:
		return "default"
	case ReplaceGenOnly:
		return "replace_gen"
	case ReplaceAugOnly:
		return "replace_aug"
	case ReplaceBoth:
		return "replace_both"
	default:
		return "unknown"
	}
}

// Range is a half-open span [Start, End) of the original text.
type Range struct {
	Start int
	End   int
}

// ReplacementRange determines the span of the original text that g replaces.
func ReplacementRange(snippet types.CodeSnippetDescriptor, g *types.GeneratedCode) Range {
	aug := snippet.AugmentingCodeDescriptor
	gen := snippet.GeneratedCodeDescriptor

	switch PolicyOf(g) {
	case ReplaceBoth:
		if gen != nil {
			return Range{aug.StartPos, gen.EndDirectiveEndPos}
		}
		return Range{aug.StartPos, aug.EndPos}
	case ReplaceAugOnly:
		return Range{aug.StartPos, aug.EndPos}
	case ReplaceGenOnly:
		// starts at the end of the augmenting code so blank lines in between go too
		if gen != nil {
			return Range{aug.EndPos, gen.EndDirectiveEndPos}
		}
		return Range{aug.EndPos, aug.EndPos}
	default:
		switch {
		case gen == nil:
			return Range{aug.EndPos, aug.EndPos}
		case gen.Inline:
			return Range{gen.StartDirectiveStartPos, gen.EndDirectiveEndPos}
		default:
			return Range{gen.StartDirectiveEndPos, gen.EndDirectiveStartPos}
		}
	}
}

// ShouldEnsureEndingNewline reports whether the merged content must end with a newline.
// Only replacing policies let the generated code opt out.
func ShouldEnsureEndingNewline(g *types.GeneratedCode) bool {
	if PolicyOf(g) == DefaultWrap {
		return true
	}
	return !g.DisableEnsureEndingNewline
}

// EffectiveIndent determines the indent applied to generated code content.
func EffectiveIndent(snippet types.CodeSnippetDescriptor, g *types.GeneratedCode) string {
	if g.Indent != nil {
		return *g.Indent
	}
	if PolicyOf(g) != DefaultWrap {
		return ""
	}
	if snippet.GeneratedCodeDescriptor != nil {
		return snippet.GeneratedCodeDescriptor.Indent
	}
	return snippet.AugmentingCodeDescriptor.Indent
}

// ShouldWrap reports whether the content must be wrapped in generated code start
// and end directives. A non-inline region already has its own directive lines.
func ShouldWrap(g *types.GeneratedCode, gen *types.GeneratedCodeDescriptor) bool {
	if PolicyOf(g) != DefaultWrap {
		return false
	}
	return gen == nil || gen.Inline
}
