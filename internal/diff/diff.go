// Package diff computes line diffs between an original file and its augmented
// version using the sergi/go-diff library, and renders them as unified hunks.
// Lines are split on "\r\n", "\n" and "\r" alike, so a terminator change alone
// never shows up as a changed line.
package diff

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"

	"codeaug/internal/textutil"
)

// LineType represents the type of diff line
type LineType int

const (
	LineContext LineType = iota // Unchanged context line
	LineAdded                   // Added line
	LineRemoved                 // Removed line
)

// prefix is the unified diff marker of the line type.
func (t LineType) prefix() string {
	switch t {
	case LineAdded:
		return "+"
	case LineRemoved:
		return "-"
	default:
		return " "
	}
}

// Line represents a single line in the diff
type Line struct {
	LineNum int // 1-based, in the old text except for added lines
	Content string
	Type    LineType
}

// Hunk represents a group of changes
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// FileDiff represents changes to a single file
type FileDiff struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
}

// Empty reports whether the texts had no line differences.
func (d *FileDiff) Empty() bool { return len(d.Hunks) == 0 }

// Engine provides diff computation with caching
type Engine struct {
	dmp          *diffmatchpatch.DiffMatchPatch
	contextLines int
	cache        sync.Map // Cache for identical input pairs
}

// cacheKey is used for caching diff results
type cacheKey struct {
	oldHash uint64
	newHash uint64
}

// NewEngine creates a new diff engine producing hunks with contextLines lines of context.
func NewEngine(contextLines int) *Engine {
	dmp := diffmatchpatch.New()
	// Optimize for code diffs
	dmp.DiffTimeout = 0 // Disable timeout for accuracy
	return &Engine{
		dmp:          dmp,
		contextLines: contextLines,
	}
}

// DefaultEngine is a singleton engine with three lines of context.
var DefaultEngine = NewEngine(3)

// ComputeDiff creates a FileDiff from old and new content strings.
func (e *Engine) ComputeDiff(oldPath, newPath, oldContent, newContent string) *FileDiff {
	key := cacheKey{hash(oldContent), hash(newContent)}
	if cached, ok := e.cache.Load(key); ok {
		if cachedDiff, ok := cached.(*FileDiff); ok {
			// Clone cached result with updated paths
			result := *cachedDiff
			result.OldPath = oldPath
			result.NewPath = newPath
			return &result
		}
	}

	ops := e.operations(splitLines(oldContent), splitLines(newContent))
	fileDiff := &FileDiff{
		OldPath: oldPath,
		NewPath: newPath,
		Hunks:   groupIntoHunks(ops, e.contextLines),
	}
	e.cache.Store(key, fileDiff)
	return fileDiff
}

// ComputeDiff is a convenience function using the default engine
func ComputeDiff(oldPath, newPath, oldContent, newContent string) *FileDiff {
	return DefaultEngine.ComputeDiff(oldPath, newPath, oldContent, newContent)
}

// ClearCache clears the diff cache
func (e *Engine) ClearCache() {
	e.cache.Range(func(k, _ any) bool {
		e.cache.Delete(k)
		return true
	})
}

func splitLines(s string) []string {
	lines := textutil.SplitLines(s)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

// operation represents a single line operation
type operation struct {
	typ     LineType
	oldLine int // 0-based, -1 for added lines
	newLine int // 0-based, -1 for removed lines
	content string
}

// operations diffs two line lists. Every distinct line is encoded as one rune so
// the character diff of the encodings is a line diff.
func (e *Engine) operations(oldLines, newLines []string) []operation {
	index := make(map[string]rune)
	var table []string
	encode := func(lines []string) []rune {
		out := make([]rune, len(lines))
		for i, l := range lines {
			r, ok := index[l]
			if !ok {
				r = lineRune(len(table))
				index[l] = r
				table = append(table, l)
			}
			out[i] = r
		}
		return out
	}
	a, b := encode(oldLines), encode(newLines)

	diffs := e.dmp.DiffMainRunes(a, b, false)

	var ops []operation
	oldLine, newLine := 0, 0
	for _, d := range diffs {
		for _, r := range []rune(d.Text) {
			content := table[runeIndex(r)]
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, operation{LineContext, oldLine, newLine, content})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, operation{LineRemoved, oldLine, -1, content})
				oldLine++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, operation{LineAdded, -1, newLine, content})
				newLine++
			}
		}
	}
	return ops
}

// lineRune maps a line index to a rune outside the surrogate range, which would
// not survive conversion to a string.
func lineRune(i int) rune {
	r := rune(i + 1)
	if r >= 0xD800 {
		r += 0x800
	}
	return r
}

func runeIndex(r rune) int {
	if r >= 0xE000 {
		r -= 0x800
	}
	return int(r) - 1
}

// groupIntoHunks groups operations into hunks with context. Changes separated by
// no more than twice the context share a hunk.
func groupIntoHunks(ops []operation, contextLines int) []Hunk {
	var hunks []Hunk
	i := 0
	for i < len(ops) {
		if ops[i].typ == LineContext {
			i++
			continue
		}

		start := max(i-contextLines, 0)
		end := i // exclusive end of the last change seen
		for j := i; j < len(ops); j++ {
			if ops[j].typ != LineContext {
				end = j + 1
				continue
			}
			if j-end >= 2*contextLines {
				break
			}
		}
		stop := min(end+contextLines, len(ops))

		hunks = append(hunks, makeHunk(ops, start, stop))
		i = stop
	}
	return hunks
}

func makeHunk(ops []operation, start, stop int) Hunk {
	h := Hunk{}
	// lines of each side preceding the hunk
	oldBefore, newBefore := 0, 0
	for _, op := range ops[:start] {
		if op.typ != LineAdded {
			oldBefore++
		}
		if op.typ != LineRemoved {
			newBefore++
		}
	}

	for _, op := range ops[start:stop] {
		lineNum := op.oldLine + 1
		if op.typ == LineAdded {
			lineNum = op.newLine + 1
		}
		h.Lines = append(h.Lines, Line{LineNum: lineNum, Content: op.content, Type: op.typ})
		if op.typ != LineAdded {
			h.OldCount++
		}
		if op.typ != LineRemoved {
			h.NewCount++
		}
	}

	// an empty side starts at the line before, as in unified diff
	h.OldStart = oldBefore + 1
	if h.OldCount == 0 {
		h.OldStart = oldBefore
	}
	h.NewStart = newBefore + 1
	if h.NewCount == 0 {
		h.NewStart = newBefore
	}
	return h
}

// TerminatorsOnlyNote follows the header of a diff whose texts differ only in
// line terminators.
const TerminatorsOnlyNote = "line terminators differ"

// WriteUnified writes the diff in unified format: a ---/+++ header followed by
// every hunk, or by TerminatorsOnlyNote when there are none. newline terminates
// each output line.
func (d *FileDiff) WriteUnified(w io.Writer, newline string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s%s+++ %s%s", d.OldPath, newline, d.NewPath, newline)
	if d.Empty() {
		sb.WriteString(TerminatorsOnlyNote + newline)
	}
	for _, h := range d.Hunks {
		fmt.Fprintf(&sb, "@@ -%s +%s @@%s", span(h.OldStart, h.OldCount), span(h.NewStart, h.NewCount), newline)
		for _, l := range h.Lines {
			sb.WriteString(l.Type.prefix())
			sb.WriteString(l.Content)
			sb.WriteString(newline)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Unified renders the diff in unified format with "\n" line endings.
func (d *FileDiff) Unified() string {
	var sb strings.Builder
	_ = d.WriteUnified(&sb, "\n")
	return sb.String()
}

func span(start, count int) string {
	if count == 1 {
		return fmt.Sprint(start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

// hash computes a simple hash for caching (FNV-1a algorithm)
func hash(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	hash := uint64(offset64)
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}
	return hash
}
