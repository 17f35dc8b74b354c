package merge

import "strings"

// Transformer applies replacements expressed in offsets of an original text.
// Replacements must be added in ascending order of their original offsets and
// must not overlap.
type Transformer struct {
	text       string
	adjustment int
}

// NewTransformer starts from original.
func NewTransformer(original string) *Transformer {
	return &Transformer{text: original}
}

// Replace substitutes replacement for the original span [start, end).
func (t *Transformer) Replace(replacement string, start, end int) {
	s, e := start+t.adjustment, end+t.adjustment
	var sb strings.Builder
	sb.Grow(len(t.text) - (e - s) + len(replacement))
	sb.WriteString(t.text[:s])
	sb.WriteString(replacement)
	sb.WriteString(t.text[e:])
	t.text = sb.String()
	t.adjustment += len(replacement) - (end - start)
}

// Insert adds text at an original offset.
func (t *Transformer) Insert(text string, pos int) {
	t.Replace(text, pos, pos)
}

// Text returns the transformed text.
func (t *Transformer) Text() string { return t.text }

// Adjustment is the offset mapping original positions outside replaced spans to
// positions in the transformed text.
func (t *Transformer) Adjustment() int { return t.adjustment }
