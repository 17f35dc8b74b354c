// Package types provides the shared data model used across codeaug packages.
// This package exists to break import cycles between the tokenizer, section builder,
// merger and the pipeline stages. Types in this package are plain data with JSON tags
// matching the on-disk record schema.
package types

import "strings"

// =============================================================================
// TOKENS
// =============================================================================

// TokenKind classifies a single line of source text.
type TokenKind int

const (
	// TokenSkipStart marks the start of a skipped or generated code region,
	// or a single inline generated code line.
	TokenSkipStart TokenKind = 1
	// TokenSkipEnd marks the end of a skipped or generated code region.
	TokenSkipEnd TokenKind = 2
	// TokenEmbeddedString is a directive line whose content is passed on verbatim.
	TokenEmbeddedString TokenKind = 3
	// TokenEmbeddedJSON is a directive line whose content must be valid JSON.
	TokenEmbeddedJSON TokenKind = 4
	// TokenAugCode is an augmenting code directive line.
	TokenAugCode TokenKind = 7
	// TokenBlank is a whitespace-only line.
	TokenBlank TokenKind = 20
	// TokenOther is any other line.
	TokenOther TokenKind = 50
)

func (k TokenKind) String() string {
	switch k {
	case TokenSkipStart:
		return "skip_start"
	case TokenSkipEnd:
		return "skip_end"
	case TokenEmbeddedString:
		return "embedded_string"
	case TokenEmbeddedJSON:
		return "embedded_json"
	case TokenAugCode:
		return "aug_code"
	case TokenBlank:
		return "blank"
	case TokenOther:
		return "other"
	default:
		return "unknown"
	}
}

// IsSectionContent reports whether tokens of this kind make up augmenting code sections.
func (k TokenKind) IsSectionContent() bool {
	return k == TokenAugCode || k == TokenEmbeddedString || k == TokenEmbeddedJSON
}

// Token is one line of input. Tokens are immutable once produced by the tokenizer;
// nesting levels derived later live in a side table owned by the section builder.
type Token struct {
	Kind       TokenKind
	Index      int // 0-based position in the token list
	LineNumber int // 1-based
	StartPos   int // absolute byte offset of the line start
	EndPos     int // absolute byte offset just past the terminator

	// Indent is the leading whitespace. Directive tokens take everything before the marker.
	// Blank tokens have no indent.
	Indent string
	// Text is the line plus its terminator.
	Text string
	// Newline is the terminator, empty for an unterminated last line.
	Newline string

	DirectiveMarker  string
	DirectiveContent string

	IsGeneratedCodeMarker       bool
	IsInlineGeneratedCodeMarker bool

	NestedLevelStartMarker string
	NestedLevelEndMarker   string

	// AugCodeSpecIndex is the directive bucket of an augmenting code token.
	AugCodeSpecIndex int
}

// HasNestedLevelStart reports whether the token opens a nested level.
func (t Token) HasNestedLevelStart() bool { return t.NestedLevelStartMarker != "" }

// HasNestedLevelEnd reports whether the token closes a nested level.
func (t Token) HasNestedLevelEnd() bool { return t.NestedLevelEndMarker != "" }

// RegionKind names the region a skip token opens or closes.
func (t Token) RegionKind() string {
	if t.IsGeneratedCodeMarker {
		return "generated"
	}
	return "skipped"
}

// =============================================================================
// AUGMENTING CODE
// =============================================================================

// Block is a run of consecutive same-kind lines of an augmenting code section.
type Block struct {
	Content   string `json:"content"`
	Stringify bool   `json:"stringify"`
	Jsonify   bool   `json:"jsonify"`
}

// AugmentingCode is the unit handed to the evaluation stage.
type AugmentingCode struct {
	ID                                  int     `json:"id"`
	Blocks                              []Block `json:"blocks"`
	DirectiveMarker                     string  `json:"directiveMarker"`
	Indent                              string  `json:"indent"`
	LineNumber                          int     `json:"lineNumber"`
	EndLineNumber                       int     `json:"endLineNumber"`
	LineSeparator                       string  `json:"lineSeparator"`
	NestedLevelNumber                   int     `json:"nestedLevelNumber"`
	HasNestedLevelStartMarker           bool    `json:"hasNestedLevelStartMarker"`
	HasNestedLevelEndMarker             bool    `json:"hasNestedLevelEndMarker"`
	MatchingNestedLevelStartMarkerIndex *int    `json:"matchingNestedLevelStartMarkerIndex,omitempty"`
	MatchingNestedLevelEndMarkerIndex   *int    `json:"matchingNestedLevelEndMarkerIndex,omitempty"`
	ExternalNestedContent               string  `json:"externalNestedContent,omitempty"`
	GenCodeIndent                       *string `json:"genCodeIndent,omitempty"`
	GenCodeLineNumber                   int     `json:"genCodeLineNumber,omitempty"`
	GenCodeEndLineNumber                int     `json:"genCodeEndLineNumber,omitempty"`

	// Args holds the decoded string and JSON blocks during the process stage.
	Args []any `json:"-"`
	// Processed is set once a generated code for this augmenting code has been produced.
	Processed bool `json:"-"`
}

// FunctionName is the trimmed content of the first block.
func (a *AugmentingCode) FunctionName() string {
	if len(a.Blocks) == 0 {
		return ""
	}
	return strings.TrimSpace(a.Blocks[0].Content)
}

// SourceFileAugmentingCode groups one file's augmenting codes of a single bucket.
type SourceFileAugmentingCode struct {
	FileID          int              `json:"fileId"`
	Dir             string           `json:"dir"`
	RelativePath    string           `json:"relativePath"`
	AugmentingCodes []AugmentingCode `json:"augmentingCodes"`
}

// =============================================================================
// GENERATED CODE
// =============================================================================

// ContentPart is one fragment of generated code text.
type ContentPart struct {
	Content    string `json:"content"`
	ExactMatch bool   `json:"exactMatch"`
}

// GeneratedCode is the merge input produced by the evaluation stage.
type GeneratedCode struct {
	ID                         int           `json:"id"`
	ContentParts               []ContentPart `json:"contentParts"`
	Indent                     *string       `json:"indent,omitempty"`
	Skipped                    bool          `json:"skipped"`
	ReplaceAugCodeDirectives   bool          `json:"replaceAugCodeDirectives"`
	ReplaceGenCodeDirectives   bool          `json:"replaceGenCodeDirectives"`
	DisableEnsureEndingNewline bool          `json:"disableEnsureEndingNewline"`
}

// WholeContent concatenates all content parts.
func (g *GeneratedCode) WholeContent() string {
	var sb strings.Builder
	for _, p := range g.ContentParts {
		sb.WriteString(p.Content)
	}
	return sb.String()
}

// SourceFileGeneratedCode groups one file's generated codes from a single response stream.
type SourceFileGeneratedCode struct {
	FileID         int             `json:"fileId"`
	GeneratedCodes []GeneratedCode `json:"generatedCodes"`
}

// Find returns the generated code with the given id, or nil.
func (s *SourceFileGeneratedCode) Find(id int) *GeneratedCode {
	for i := range s.GeneratedCodes {
		if s.GeneratedCodes[i].ID == id {
			return &s.GeneratedCodes[i]
		}
	}
	return nil
}

// =============================================================================
// DESCRIPTORS
// =============================================================================

// AugmentingCodeDescriptor locates an augmenting code section in the original text.
type AugmentingCodeDescriptor struct {
	ID            int    `json:"id"`
	StartPos      int    `json:"startPos"`
	EndPos        int    `json:"endPos"`
	Indent        string `json:"indent"`
	LineNumber    int    `json:"lineNumber"`
	LineSeparator string `json:"lineSeparator"`
}

// GeneratedCodeDescriptor locates the generated code region following an augmenting code
// section. Inline regions only use StartDirectiveStartPos and EndDirectiveEndPos.
type GeneratedCodeDescriptor struct {
	StartDirectiveStartPos int    `json:"startDirectiveStartPos"`
	StartDirectiveEndPos   int    `json:"startDirectiveEndPos"`
	EndDirectiveStartPos   int    `json:"endDirectiveStartPos"`
	EndDirectiveEndPos     int    `json:"endDirectiveEndPos"`
	Inline                 bool   `json:"inline"`
	Indent                 string `json:"indent"`
}

// CodeSnippetDescriptor pairs an augmenting code descriptor with its optional
// generated code descriptor.
type CodeSnippetDescriptor struct {
	AugmentingCodeDescriptor AugmentingCodeDescriptor `json:"augmentingCodeDescriptor"`
	GeneratedCodeDescriptor  *GeneratedCodeDescriptor `json:"generatedCodeDescriptor,omitempty"`
}

// SourceFileDescriptor describes one prepared source file.
type SourceFileDescriptor struct {
	FileID       int                     `json:"fileId"`
	Dir          string                  `json:"dir"`
	RelativePath string                  `json:"relativePath"`
	CodeSnippets []CodeSnippetDescriptor `json:"codeSnippets"`
	ContentHash  string                  `json:"contentHash"`
}

// =============================================================================
// CHANGE SUMMARY
// =============================================================================

// ChangedFile is one record of a change summary.
type ChangedFile struct {
	RelativePath string `json:"relativePath"`
	SrcDir       string `json:"srcDir"`
	DestDir      string `json:"destDir"`
}
