package changes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeaug/internal/diff"
	"codeaug/internal/merge"
)

func TestContentHash(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", ContentHash(""))
	assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", ContentHash("hello world"))
}

func TestVerifyIntegrity(t *testing.T) {
	content := "package main\n"
	assert.NoError(t, VerifyIntegrity(content, ContentHash(content)))

	err := VerifyIntegrity(content+" ", ContentHash(content))
	assert.ErrorIs(t, err, ErrSourceModified)
	assert.Equal(t, "Source file has changed unexpectedly. Regeneration required.", err.Error())
}

func TestApply_Changed(t *testing.T) {
	original := "//:AUG_CODE: x\n//:GEN_CODE_START:\nold\n//:GEN_CODE_END:\n"
	splices := []merge.Splice{{Range: merge.Range{Start: 34, End: 38}, Text: "new\n"}}

	out := NewDetector(true, nil).Apply(original, splices, "src/a.txt", "out/src/a.txt")
	assert.True(t, out.Changed)
	assert.Equal(t, "//:AUG_CODE: x\n//:GEN_CODE_START:\nnew\n//:GEN_CODE_END:\n", out.Text)
	require.NotNil(t, out.Diff)
	assert.Equal(t, "src/a.txt", out.Diff.OldPath)
	require.Len(t, out.Diff.Hunks, 1)
}

func TestApply_TerminatorsOnly(t *testing.T) {
	original := "a\r\nb\r\n"
	splices := []merge.Splice{{Range: merge.Range{Start: 0, End: 6}, Text: "a\nb\n"}}

	out := NewDetector(true, nil).Apply(original, splices, "x", "y")
	assert.True(t, out.Changed)
	require.NotNil(t, out.Diff)
	assert.Empty(t, out.Diff.Hunks)
	assert.Contains(t, out.Diff.Unified(), diff.TerminatorsOnlyNote)
}

func TestApply_Unchanged(t *testing.T) {
	original := "a\nb\nc\n"
	splices := []merge.Splice{
		{Range: merge.Range{Start: 0, End: 2}, Text: "a\n"},
		{Range: merge.Range{Start: 4, End: 4}, Text: ""},
	}
	out := NewDetector(true, nil).Apply(original, splices, "x", "y")
	assert.False(t, out.Changed)
	assert.Nil(t, out.Diff)
	assert.Equal(t, original, out.Text)
}

func TestApply_Disabled(t *testing.T) {
	d := NewDetector(false, nil)
	assert.False(t, d.Enabled())
	out := d.Apply("abc", []merge.Splice{{Range: merge.Range{Start: 1, End: 2}, Text: "XYZ"}}, "x", "y")
	assert.False(t, out.Changed)
	assert.Nil(t, out.Diff)
	assert.Equal(t, "aXYZc", out.Text)
}

// A later identical splice does not hide an earlier change.
func TestApply_FirstChangeWins(t *testing.T) {
	splices := []merge.Splice{
		{Range: merge.Range{Start: 0, End: 1}, Text: "z"},
		{Range: merge.Range{Start: 2, End: 3}, Text: "c"},
	}
	out := NewDetector(true, nil).Apply("abc\n", splices, "x", "y")
	assert.True(t, out.Changed)
	assert.Equal(t, "zbc\n", out.Text)
}
