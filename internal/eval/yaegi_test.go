package eval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeaug/internal/types"
)

const greetScript = `package main

import (
	"strings"

	"codeaug/augment"
)

func Upper(code *augment.AugmentingCode, ctx *augment.Context) any {
	return strings.ToUpper(code.Args[0].(string))
}

func Indented(code *augment.AugmentingCode, ctx *augment.Context) any {
	return ctx.ScopeVar(augment.IndentVar).(string) + "x"
}

func Skip(code *augment.AugmentingCode, ctx *augment.Context) (any, error) {
	return ctx.NewSkipGenCode(), nil
}

func NotAnEvalFunc(s string) string {
	return s
}
`

func newScriptEvaluator(t *testing.T) *ScriptEvaluator {
	t.Helper()
	se, err := NewScriptEvaluator(ScriptOptions{})
	require.NoError(t, err)
	require.NoError(t, se.Load("greet.go", greetScript))
	return se
}

func TestScriptEvaluator_Evaluate(t *testing.T) {
	se := newScriptEvaluator(t)
	ctx := NewContext(nil)

	t.Run("unqualified name", func(t *testing.T) {
		got, err := se.Evaluate(context.Background(), "Upper", &types.AugmentingCode{ID: 1, Args: []any{"abc"}}, ctx)
		require.NoError(t, err)
		assert.Equal(t, "ABC", got)
	})

	t.Run("qualified name", func(t *testing.T) {
		got, err := se.Evaluate(context.Background(), "main.Indented", &types.AugmentingCode{ID: 1}, ctx)
		require.NoError(t, err)
		assert.Equal(t, "    x", got)
	})

	t.Run("result with error", func(t *testing.T) {
		got, err := se.Evaluate(context.Background(), "Skip", &types.AugmentingCode{ID: 1}, ctx)
		require.NoError(t, err)
		gen := ConvertResult(got, &types.AugmentingCode{ID: 1}, nil)
		require.Len(t, gen, 1)
		assert.True(t, gen[0].Skipped)
	})

	t.Run("builtin", func(t *testing.T) {
		augCode := &types.AugmentingCode{Args: []any{map[string]any{"who": "me"}}}
		_, err := se.Evaluate(context.Background(), "augment.SetGlobalScopeVar", augCode, ctx)
		require.NoError(t, err)
		assert.Equal(t, "me", ctx.ScopeVar("who"))
	})

	t.Run("missing function", func(t *testing.T) {
		_, err := se.Evaluate(context.Background(), "Nope", &types.AugmentingCode{}, ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "function main.Nope not found")
	})

	t.Run("wrong signature", func(t *testing.T) {
		_, err := se.Evaluate(context.Background(), "NotAnEvalFunc", &types.AugmentingCode{}, ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "main.NotAnEvalFunc has incorrect parameters")
	})
}

func TestScriptEvaluator_ForbiddenImports(t *testing.T) {
	se, err := NewScriptEvaluator(ScriptOptions{})
	require.NoError(t, err)

	err = se.Load("bad.go", "package main\n\nimport \"os/exec\"\n\nvar _ = exec.Command\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden imports detected: [os/exec]")

	restricted, err := NewScriptEvaluator(ScriptOptions{AllowedPackages: []string{"fmt"}})
	require.NoError(t, err)
	err = restricted.Load("greet.go", greetScript)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[strings]")
}

func TestScriptEvaluator_LoadFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greet.go")
	require.NoError(t, os.WriteFile(path, []byte(greetScript), 0644))

	se, err := NewScriptEvaluator(ScriptOptions{})
	require.NoError(t, err)
	require.NoError(t, se.LoadFiles(path))

	got, err := se.Evaluate(context.Background(), "Upper", &types.AugmentingCode{Args: []any{"q"}}, NewContext(nil))
	require.NoError(t, err)
	assert.Equal(t, "Q", got)

	err = se.LoadFiles(filepath.Join(dir, "missing.go"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
