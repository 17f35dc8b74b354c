package eval

import (
	"fmt"

	"codeaug/internal/types"
)

// Func is a natively implemented evaluation function.
type Func func(augCode *types.AugmentingCode, ctx *Context) (any, error)

// Builtins are always resolvable, whatever evaluator is in use.
var Builtins = map[string]Func{
	"augment.SetScopeVar":       SetScopeVar,
	"augment.SetGlobalScopeVar": SetGlobalScopeVar,
}

// SetScopeVar copies every key of every JSON argument into the file scope.
func SetScopeVar(augCode *types.AugmentingCode, ctx *Context) (any, error) {
	if err := modifyScope(ctx.fileScope, augCode); err != nil {
		return nil, err
	}
	return ctx.NewSkipGenCode(), nil
}

// SetGlobalScopeVar copies every key of every JSON argument into the global scope.
func SetGlobalScopeVar(augCode *types.AugmentingCode, ctx *Context) (any, error) {
	if err := modifyScope(ctx.globalScope, augCode); err != nil {
		return nil, err
	}
	return ctx.NewSkipGenCode(), nil
}

func modifyScope(scope map[string]any, augCode *types.AugmentingCode) error {
	for i, arg := range augCode.Args {
		m, ok := arg.(map[string]any)
		if !ok {
			return fmt.Errorf("argument %d is not a JSON object: %T", i+1, arg)
		}
		for name, value := range m {
			scope[name] = value
		}
	}
	return nil
}
