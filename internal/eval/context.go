// Package eval turns augmenting codes into generated codes.
//
// An Evaluator resolves the function named by the first block of an augmenting code and
// calls it with the augmenting code and a Context. The Context carries the request header,
// the file being processed and two variable scopes: a global scope that lives for a whole
// request file and a file scope that is cleared before every source file.
package eval

import (
	"path/filepath"

	"codeaug/internal/types"
)

// IndentVar is seeded into the global scope with four spaces.
const IndentVar = "codeAugmentor_indent"

// Context is shared by all evaluations of one request file.
type Context struct {
	// Header is the decoded request file header.
	Header any
	// SrcFile is the source file the current augmenting codes were taken from.
	SrcFile string
	// FileAugCodes holds every augmenting code of the current file.
	FileAugCodes *types.SourceFileAugmentingCode
	// AugCodeIndex is the index of the augmenting code being evaluated.
	AugCodeIndex int

	globalScope map[string]any
	fileScope   map[string]any
}

// NewContext creates a context with the default global scope.
func NewContext(header any) *Context {
	return &Context{
		Header:      header,
		globalScope: map[string]any{IndentVar: "    "},
		fileScope:   make(map[string]any),
	}
}

// BeginFile points the context at a new source file and clears the file scope.
func (c *Context) BeginFile(fileAugCodes *types.SourceFileAugmentingCode) {
	c.FileAugCodes = fileAugCodes
	c.SrcFile = filepath.Join(fileAugCodes.Dir, fileAugCodes.RelativePath)
	c.AugCodeIndex = 0
	clear(c.fileScope)
}

// GlobalScope returns the variables shared across files.
func (c *Context) GlobalScope() map[string]any { return c.globalScope }

// FileScope returns the variables of the current file.
func (c *Context) FileScope() map[string]any { return c.fileScope }

// ScopeVar looks a variable up in the file scope, then in the global scope.
func (c *Context) ScopeVar(name string) any {
	if v, ok := c.fileScope[name]; ok {
		return v
	}
	return c.globalScope[name]
}

// CurrentAugCode returns the augmenting code being evaluated, or nil.
func (c *Context) CurrentAugCode() *types.AugmentingCode {
	if c.FileAugCodes == nil || c.AugCodeIndex < 0 || c.AugCodeIndex >= len(c.FileAugCodes.AugmentingCodes) {
		return nil
	}
	return &c.FileAugCodes.AugmentingCodes[c.AugCodeIndex]
}

// NewGenCode returns an empty generated code.
func (c *Context) NewGenCode() *types.GeneratedCode {
	return &types.GeneratedCode{ContentParts: []types.ContentPart{}}
}

// NewSkipGenCode returns a generated code that leaves its section untouched.
func (c *Context) NewSkipGenCode() *types.GeneratedCode {
	return &types.GeneratedCode{Skipped: true}
}

// NewContent returns a content part.
func (c *Context) NewContent(content string) types.ContentPart {
	return types.ContentPart{Content: content}
}

// NewExactContent returns a content part flagged as an exact match.
func (c *Context) NewExactContent(content string) types.ContentPart {
	return types.ContentPart{Content: content, ExactMatch: true}
}
