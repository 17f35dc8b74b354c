// Package changes verifies that a source file is unchanged since it was prepared,
// applies the computed splices to it, and reports whether the result differs from
// the original together with a line diff of the two.
package changes

import (
	"crypto/md5"
	"encoding/hex"
	"errors"

	"codeaug/internal/diff"
	"codeaug/internal/logging"
	"codeaug/internal/merge"
)

// ErrSourceModified is returned when a source file no longer matches its prepared hash.
var ErrSourceModified = errors.New("Source file has changed unexpectedly. Regeneration required.")

// ContentHash returns the lowercase hex MD5 digest of content.
func ContentHash(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// VerifyIntegrity checks content against the hash recorded when it was prepared.
func VerifyIntegrity(content, expectedHash string) error {
	if ContentHash(content) != expectedHash {
		return ErrSourceModified
	}
	return nil
}

// Outcome is the result of applying splices to one file.
type Outcome struct {
	Text    string
	Changed bool
	// Diff is set only when Changed is true.
	Diff *diff.FileDiff
}

// Detector applies splices and, when enabled, detects changes.
type Detector struct {
	enabled bool
	engine  *diff.Engine
}

// NewDetector creates a Detector. A disabled Detector never reports changes.
func NewDetector(enabled bool, engine *diff.Engine) *Detector {
	if engine == nil {
		engine = diff.DefaultEngine
	}
	return &Detector{enabled: enabled, engine: engine}
}

// Enabled reports whether change detection is on.
func (d *Detector) Enabled() bool { return d.enabled }

// Apply splices into original in order. oldPath and newPath label the diff.
func (d *Detector) Apply(original string, splices []merge.Splice, oldPath, newPath string) Outcome {
	tr := merge.NewTransformer(original)
	changed := false
	for _, sp := range splices {
		tr.Replace(sp.Text, sp.Range.Start, sp.Range.End)
		if d.enabled && !changed {
			changed = original[sp.Range.Start:sp.Range.End] != sp.Text
		}
	}

	out := Outcome{Text: tr.Text(), Changed: changed}
	if changed {
		out.Diff = d.engine.ComputeDiff(oldPath, newPath, original, out.Text)
		logging.Get(logging.CategoryChanges).Debug("%s: %d hunk(s)", oldPath, len(out.Diff.Hunks))
	}
	return out
}
