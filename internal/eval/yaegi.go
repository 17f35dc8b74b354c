package eval

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"codeaug/internal/logging"
	"codeaug/internal/types"
)

// =============================================================================
// YAEGI SCRIPT EVALUATOR
// =============================================================================
// Scripts are plain Go source interpreted at runtime. An augmenting code whose first
// block reads "Greet" calls main.Greet, and "tools.Greet" calls Greet of the script
// package tools. Script functions take the augmenting code and the evaluation context
// and return a result, optionally followed by an error:
//
//	func Greet(code *augment.AugmentingCode, ctx *augment.Context) any
//	func Greet(code *augment.AugmentingCode, ctx *augment.Context) (any, error)
//
// Scripts import "codeaug/augment" for the data model and the scope functions.

// AugmentImportPath is the import path scripts use for the augment package.
const AugmentImportPath = "codeaug/augment"

// DefaultAllowedPackages lists the stdlib packages scripts may import when the
// configuration does not say otherwise.
var DefaultAllowedPackages = []string{
	"bytes",
	"encoding/base64",
	"encoding/json",
	"fmt",
	"math",
	"path",
	"path/filepath",
	"regexp",
	"sort",
	"strconv",
	"strings",
	"text/template",
	"time",
	"unicode",
}

// Symbols exposes the data model and the scope functions to scripts.
var Symbols = interp.Exports{
	AugmentImportPath + "/augment": {
		"AugmentingCode":           reflect.ValueOf((*types.AugmentingCode)(nil)),
		"Block":                    reflect.ValueOf((*types.Block)(nil)),
		"ContentPart":              reflect.ValueOf((*types.ContentPart)(nil)),
		"Context":                  reflect.ValueOf((*Context)(nil)),
		"GeneratedCode":            reflect.ValueOf((*types.GeneratedCode)(nil)),
		"SourceFileAugmentingCode": reflect.ValueOf((*types.SourceFileAugmentingCode)(nil)),
		"IndentVar":                reflect.ValueOf(IndentVar),
		"SetGlobalScopeVar":        reflect.ValueOf(SetGlobalScopeVar),
		"SetScopeVar":              reflect.ValueOf(SetScopeVar),
	},
}

// ScriptOptions configures a ScriptEvaluator.
type ScriptOptions struct {
	// EntryPackage qualifies function names without a package. Defaults to "main".
	EntryPackage string
	// AllowedPackages restricts script imports. Nil means DefaultAllowedPackages.
	AllowedPackages []string
}

// ScriptEvaluator evaluates functions defined in Go scripts with the yaegi interpreter.
// It is not safe for concurrent use; each bucket gets its own evaluator.
type ScriptEvaluator struct {
	interp          *interp.Interpreter
	entryPackage    string
	allowedPackages map[string]bool

	mu    sync.Mutex
	funcs map[string]reflect.Value
}

// NewScriptEvaluator creates an evaluator with no scripts loaded.
func NewScriptEvaluator(opts ScriptOptions) (*ScriptEvaluator, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib: %w", err)
	}
	if err := i.Use(Symbols); err != nil {
		return nil, fmt.Errorf("failed to load augment symbols: %w", err)
	}

	allowed := opts.AllowedPackages
	if allowed == nil {
		allowed = DefaultAllowedPackages
	}
	se := &ScriptEvaluator{
		interp:          i,
		entryPackage:    opts.EntryPackage,
		allowedPackages: map[string]bool{AugmentImportPath: true},
		funcs:           make(map[string]reflect.Value),
	}
	if se.entryPackage == "" {
		se.entryPackage = "main"
	}
	for _, pkg := range allowed {
		se.allowedPackages[pkg] = true
	}
	return se, nil
}

// LoadFiles reads and evaluates script files in order.
func (se *ScriptEvaluator) LoadFiles(paths ...string) error {
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read script %s: %w", path, err)
		}
		if err := se.Load(path, string(src)); err != nil {
			return err
		}
	}
	return nil
}

// Load evaluates one script. name is only used in error messages.
func (se *ScriptEvaluator) Load(name, src string) error {
	if err := se.validateImports(name, src); err != nil {
		return fmt.Errorf("invalid imports: %w", err)
	}
	timer := logging.StartTimer(logging.CategoryEval, "load "+name)
	defer timer.Stop()
	if _, err := se.interp.Eval(src); err != nil {
		return fmt.Errorf("script %s evaluation failed: %w", name, err)
	}
	return nil
}

// Evaluate implements Evaluator.
func (se *ScriptEvaluator) Evaluate(ctx context.Context, functionName string, augCode *types.AugmentingCode, ectx *Context) (any, error) {
	if fn, ok := Builtins[functionName]; ok {
		return callWithContext(ctx, func() (any, error) {
			return fn(augCode, ectx)
		})
	}

	fn, err := se.resolve(functionName)
	if err != nil {
		return nil, err
	}
	return callWithContext(ctx, func() (any, error) {
		out := fn.Call([]reflect.Value{reflect.ValueOf(augCode), reflect.ValueOf(ectx)})
		return unpackResults(out)
	})
}

func (se *ScriptEvaluator) resolve(functionName string) (reflect.Value, error) {
	qualified := functionName
	if !strings.Contains(qualified, ".") {
		qualified = se.entryPackage + "." + qualified
	}

	se.mu.Lock()
	defer se.mu.Unlock()
	if fn, ok := se.funcs[qualified]; ok {
		return fn, nil
	}

	v, err := se.interp.Eval(qualified)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("function %s not found: %w", qualified, err)
	}
	if err := checkSignature(qualified, v); err != nil {
		return reflect.Value{}, err
	}
	se.funcs[qualified] = v
	logging.Get(logging.CategoryEval).Debug("Resolved script function %s", qualified)
	return v, nil
}

var (
	augCodeType = reflect.TypeOf((*types.AugmentingCode)(nil))
	contextType = reflect.TypeOf((*Context)(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

func checkSignature(name string, v reflect.Value) error {
	const expected = "func(*augment.AugmentingCode, *augment.Context) any or (any, error)"
	if !v.IsValid() || v.Kind() != reflect.Func {
		return fmt.Errorf("%s is not a function (expected: %s)", name, expected)
	}
	t := v.Type()
	if t.NumIn() != 2 || t.In(0) != augCodeType || t.In(1) != contextType {
		return fmt.Errorf("%s has incorrect parameters (expected: %s)", name, expected)
	}
	switch t.NumOut() {
	case 1:
	case 2:
		if !t.Out(1).Implements(errorType) {
			return fmt.Errorf("%s second result must be an error (expected: %s)", name, expected)
		}
	default:
		return fmt.Errorf("%s has incorrect results (expected: %s)", name, expected)
	}
	return nil
}

func unpackResults(out []reflect.Value) (any, error) {
	var result any
	if v := out[0]; v.IsValid() && (v.Kind() != reflect.Interface || !v.IsNil()) {
		result = v.Interface()
	}
	if len(out) == 2 && out[1].IsValid() && !out[1].IsNil() {
		return result, out[1].Interface().(error)
	}
	return result, nil
}

// validateImports checks that the script only imports allowed packages.
func (se *ScriptEvaluator) validateImports(name, src string) error {
	f, err := parser.ParseFile(token.NewFileSet(), name, src, parser.ImportsOnly)
	if err != nil {
		return err
	}

	var forbidden []string
	for _, spec := range f.Imports {
		pkg, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			return err
		}
		if !se.allowedPackages[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports detected: %v (allowed: %v)", forbidden, se.getAllowedPackages())
	}
	return nil
}

func (se *ScriptEvaluator) getAllowedPackages() []string {
	pkgs := make([]string, 0, len(se.allowedPackages))
	for pkg := range se.allowedPackages {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}
