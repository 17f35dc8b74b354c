package eval

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	"codeaug/internal/types"
)

// PrepareArgs resets the processed flag of every augmenting code and decodes its
// embedded string and JSON blocks into Args.
func PrepareArgs(fileAugCodes *types.SourceFileAugmentingCode, path string) error {
	for i := range fileAugCodes.AugmentingCodes {
		augCode := &fileAugCodes.AugmentingCodes[i]
		augCode.Processed = false
		augCode.Args = make([]any, 0, len(augCode.Blocks))
		for _, block := range augCode.Blocks {
			switch {
			case block.Jsonify:
				var v any
				if err := json.Unmarshal([]byte(block.Content), &v); err != nil {
					return types.NewTaskError(fmt.Sprintf("failed to parse JSON argument: %v", err),
						path, augCode.LineNumber, "")
				}
				augCode.Args = append(augCode.Args, v)
			case block.Stringify:
				augCode.Args = append(augCode.Args, block.Content)
			}
		}
	}
	return nil
}

// ConvertResult turns whatever an evaluation function returned into generated codes.
//
// A nil result yields one empty generated code without an id. A slice yields one
// generated code per item, and every augmenting code of the file whose id an item
// carries is marked processed. Any other value yields one generated code carrying
// the id of augCode.
func ConvertResult(result any, augCode *types.AugmentingCode, fileAugCodes *types.SourceFileAugmentingCode) []types.GeneratedCode {
	if result == nil {
		return []types.GeneratedCode{convertItem(nil)}
	}
	if items, ok := listItems(result); ok {
		out := make([]types.GeneratedCode, 0, len(items))
		for _, item := range items {
			g := convertItem(item)
			out = append(out, g)
			if g.ID > 0 && fileAugCodes != nil {
				for i := range fileAugCodes.AugmentingCodes {
					if fileAugCodes.AugmentingCodes[i].ID == g.ID {
						fileAugCodes.AugmentingCodes[i].Processed = true
						break
					}
				}
			}
		}
		return out
	}
	g := convertItem(result)
	g.ID = augCode.ID
	return []types.GeneratedCode{g}
}

func listItems(result any) ([]any, bool) {
	switch v := result.(type) {
	case []any:
		return v, true
	case []types.GeneratedCode:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return items, true
	case []*types.GeneratedCode:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return items, true
	case string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(result)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func convertItem(item any) types.GeneratedCode {
	switch v := item.(type) {
	case nil:
		return types.GeneratedCode{}
	case types.GeneratedCode:
		return v
	case *types.GeneratedCode:
		if v == nil {
			return types.GeneratedCode{}
		}
		return *v
	case types.ContentPart:
		return types.GeneratedCode{ContentParts: []types.ContentPart{v}}
	case *types.ContentPart:
		if v == nil {
			return types.GeneratedCode{}
		}
		return types.GeneratedCode{ContentParts: []types.ContentPart{*v}}
	case string:
		return types.GeneratedCode{ContentParts: []types.ContentPart{{Content: v}}}
	default:
		return types.GeneratedCode{ContentParts: []types.ContentPart{{Content: fmt.Sprint(v)}}}
	}
}

// ValidateIDs checks the ids of one file's generated codes. Negative ids are
// deliberately unassigned and are not checked for uniqueness.
func ValidateIDs(genCodes []types.GeneratedCode) error {
	ids := make([]int, len(genCodes))
	for i, g := range genCodes {
		ids[i] = g.ID
	}
	if slices.Contains(ids, 0) {
		return fmt.Errorf("At least one generated code id was not set. Found: %v", ids)
	}
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if seen[id] {
			return fmt.Errorf("Valid generated code ids must be unique, but found duplicates: %v", ids)
		}
		seen[id] = true
	}
	return nil
}
