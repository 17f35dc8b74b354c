// Package tokenizer classifies every line of a source file against a configurable
// set of directive markers. It never fails: lines matching no marker become blank
// or other tokens kept only for position bookkeeping.
package tokenizer

import (
	"regexp"
	"sort"
	"strings"

	"codeaug/internal/logging"
	"codeaug/internal/textutil"
	"codeaug/internal/types"
)

// Markers holds the directive marker lists. Blank markers are discarded.
type Markers struct {
	GenCodeStart   []string
	GenCodeEnd     []string
	InlineGenCode  []string
	SkipCodeStart  []string
	SkipCodeEnd    []string
	EmbeddedString []string
	EmbeddedJSON   []string
	// AugCodeBuckets holds one marker list per directive bucket.
	AugCodeBuckets [][]string

	NestedLevelStart []string
	NestedLevelEnd   []string
}

type directiveKind int

const (
	kindAugCode directiveKind = iota
	kindGenCodeStart
	kindGenCodeEnd
	kindInlineGenCode
	kindSkipCodeStart
	kindSkipCodeEnd
	kindEmbeddedString
	kindEmbeddedJSON
)

type directive struct {
	kind   directiveKind
	bucket int
}

// Tokenizer converts source text into tokens. It is safe for concurrent use.
type Tokenizer struct {
	directives map[string]directive
	lexer      *regexp.Regexp

	// nested maps a nested level marker to true for start markers.
	nested   map[string]bool
	nestedRe *regexp.Regexp
}

// New builds a Tokenizer from the marker set.
func New(m Markers) *Tokenizer {
	t := &Tokenizer{
		directives: make(map[string]directive),
		nested:     make(map[string]bool),
	}

	// Augmenting code markers go first so they win over duplicates in other lists.
	for i, bucket := range m.AugCodeBuckets {
		for _, marker := range bucket {
			t.addDirective(marker, directive{kind: kindAugCode, bucket: i})
		}
	}
	t.addDirectives(m.GenCodeStart, kindGenCodeStart)
	t.addDirectives(m.GenCodeEnd, kindGenCodeEnd)
	t.addDirectives(m.InlineGenCode, kindInlineGenCode)
	t.addDirectives(m.SkipCodeStart, kindSkipCodeStart)
	t.addDirectives(m.SkipCodeEnd, kindSkipCodeEnd)
	t.addDirectives(m.EmbeddedString, kindEmbeddedString)
	t.addDirectives(m.EmbeddedJSON, kindEmbeddedJSON)

	if alt := alternation(keys(t.directives)); alt != "" {
		t.lexer = regexp.MustCompile("^[" + textutil.IndentChars + "]*(" + alt + ")")
	}

	for _, marker := range m.NestedLevelStart {
		t.addNestedMarker(marker, true)
	}
	for _, marker := range m.NestedLevelEnd {
		t.addNestedMarker(marker, false)
	}
	if alt := alternation(keys(t.nested)); alt != "" {
		t.nestedRe = regexp.MustCompile(`^(?:` + alt + `)`)
	}

	logging.Get(logging.CategoryTokenizer).Debug("Tokenizer built with %d directive markers and %d nested level markers",
		len(t.directives), len(t.nested))
	return t
}

func (t *Tokenizer) addDirectives(markers []string, kind directiveKind) {
	for _, marker := range markers {
		t.addDirective(marker, directive{kind: kind})
	}
}

func (t *Tokenizer) addDirective(marker string, d directive) {
	if textutil.IsBlank(marker) {
		return
	}
	if _, exists := t.directives[marker]; exists {
		return
	}
	t.directives[marker] = d
}

func (t *Tokenizer) addNestedMarker(marker string, isStart bool) {
	if textutil.IsBlank(marker) {
		return
	}
	if _, exists := t.nested[marker]; exists {
		return
	}
	t.nested[marker] = isStart
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// alternation orders markers longest first so that a marker which is a prefix of
// another never shadows it. Ties fall back to string order for a stable pattern.
func alternation(markers []string) string {
	sort.Slice(markers, func(i, j int) bool {
		if len(markers[i]) != len(markers[j]) {
			return len(markers[i]) > len(markers[j])
		}
		return markers[i] < markers[j]
	})
	quoted := make([]string, len(markers))
	for i, m := range markers {
		quoted[i] = regexp.QuoteMeta(m)
	}
	return strings.Join(quoted, "|")
}

// Tokenize splits source into lines and classifies each one.
// Joining every token's Text reconstructs source byte for byte.
func (t *Tokenizer) Tokenize(source string) []types.Token {
	lines := textutil.SplitLines(source)
	tokens := make([]types.Token, 0, len(lines))
	startPos := 0
	for i, line := range lines {
		tok := t.classify(line.Text)
		tok.Text = line.Text + line.Terminator
		tok.Newline = line.Terminator
		tok.StartPos = startPos
		tok.EndPos = startPos + len(tok.Text)
		tok.Index = i
		tok.LineNumber = i + 1
		tokens = append(tokens, tok)
		startPos = tok.EndPos
	}
	return tokens
}

func (t *Tokenizer) classify(line string) types.Token {
	if t.lexer != nil {
		if m := t.lexer.FindStringSubmatchIndex(line); m != nil && m[3] > m[2] {
			marker := line[m[2]:m[3]]
			return t.directiveToken(t.directives[marker], marker, m[2], line)
		}
	}
	if textutil.IsBlank(line) {
		return types.Token{Kind: types.TokenBlank}
	}
	return types.Token{Kind: types.TokenOther, Indent: textutil.LeadingWhitespace(line)}
}

func (t *Tokenizer) directiveToken(d directive, marker string, markerIndex int, line string) types.Token {
	tok := types.Token{
		DirectiveMarker:  marker,
		Indent:           line[:markerIndex],
		DirectiveContent: line[markerIndex+len(marker):],
	}
	switch d.kind {
	case kindGenCodeStart:
		tok.Kind = types.TokenSkipStart
		tok.IsGeneratedCodeMarker = true
	case kindGenCodeEnd:
		tok.Kind = types.TokenSkipEnd
		tok.IsGeneratedCodeMarker = true
	case kindInlineGenCode:
		tok.Kind = types.TokenSkipStart
		tok.IsGeneratedCodeMarker = true
		tok.IsInlineGeneratedCodeMarker = true
	case kindSkipCodeStart:
		tok.Kind = types.TokenSkipStart
	case kindSkipCodeEnd:
		tok.Kind = types.TokenSkipEnd
	case kindEmbeddedString:
		tok.Kind = types.TokenEmbeddedString
	case kindEmbeddedJSON:
		tok.Kind = types.TokenEmbeddedJSON
	default:
		tok.Kind = types.TokenAugCode
		tok.AugCodeSpecIndex = d.bucket
		t.stripNestedMarker(&tok)
	}
	return tok
}

// stripNestedMarker moves a nested level marker at the very front of the directive
// content into the token's start or end marker field.
func (t *Tokenizer) stripNestedMarker(tok *types.Token) {
	if t.nestedRe == nil {
		return
	}
	loc := t.nestedRe.FindStringIndex(tok.DirectiveContent)
	if loc == nil || loc[1] == 0 {
		return
	}
	marker := tok.DirectiveContent[:loc[1]]
	if t.nested[marker] {
		tok.NestedLevelStartMarker = marker
	} else {
		tok.NestedLevelEndMarker = marker
	}
	tok.DirectiveContent = tok.DirectiveContent[loc[1]:]
}
