package sections

import (
	"fmt"

	"codeaug/internal/types"
)

// nestingLevels is the side table of nested level numbers, indexed by token index.
type nestingLevels []int

// identifySections groups tokens into augmenting code sections while tracking skipped
// and generated code regions and the nesting stack.
func identifySections(tokens []types.Token, levels nestingLevels, rep *reporter) ([][]types.Token, error) {
	var (
		sections [][]types.Token
		current  []types.Token
		region   *types.Token // open skipped or generated code region
		expected int
		stack    []types.Token
	)
	// directive bucket of the current section, -1 until an augmenting line joins it
	bucket := -1

	for _, t := range tokens {
		// Everything inside a skipped or generated region is ignored up to its end.
		if region != nil {
			switch t.Kind {
			case types.TokenSkipStart:
				msg := regionMessage("Expecting end of %s code section before encountering another start directive at line %d",
					*region, t.LineNumber)
				if err := rep.report(msg, *region); err != nil {
					return nil, err
				}
				if t.IsInlineGeneratedCodeMarker {
					region = nil
				} else {
					next := t
					region = &next
				}
			case types.TokenSkipEnd:
				if t.IsGeneratedCodeMarker != region.IsGeneratedCodeMarker {
					msg := regionMessage("Different end directive encountered for %s code section from line %d",
						*region, region.LineNumber)
					if err := rep.report(msg, t); err != nil {
						return nil, err
					}
				}
				region = nil
			}
			continue
		}

		if t.Kind.IsSectionContent() {
			// A section is a run of consecutive lines of a single directive bucket.
			bucketChange := t.Kind == types.TokenAugCode && bucket != -1 && bucket != t.AugCodeSpecIndex
			if len(current) > 0 && (expected != t.LineNumber || bucketChange) {
				sections = append(sections, current)
				current = nil
				bucket = -1
			}
			if t.Kind == types.TokenAugCode && bucket == -1 {
				bucket = t.AugCodeSpecIndex
			}
			current = append(current, t)
			expected = t.LineNumber + 1
		} else if len(current) > 0 {
			sections = append(sections, current)
			current = nil
			bucket = -1
		}

		switch t.Kind {
		case types.TokenSkipEnd:
			msg := regionMessage("Encountered end directive for %s code section without a previous start directive.", t)
			if err := rep.report(msg, t); err != nil {
				return nil, err
			}
		case types.TokenSkipStart:
			if !t.IsInlineGeneratedCodeMarker {
				open := t
				region = &open
			}
		default:
			levels[t.Index] = len(stack)
			if t.Kind != types.TokenAugCode {
				break
			}
			if t.HasNestedLevelStart() {
				stack = append(stack, t)
			} else if t.HasNestedLevelEnd() {
				if len(stack) == 0 {
					if err := rep.report("Encountered nested level end marker for aug code section "+
						"without a previous matching start marker.", t); err != nil {
						return nil, err
					}
					break
				}
				start := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				levels[t.Index]--
				if start.AugCodeSpecIndex != t.AugCodeSpecIndex {
					msg := fmt.Sprintf("Encountered nested level end marker for aug code section "+
						"of a different kind than its matching start marker from line %d", start.LineNumber)
					if err := rep.report(msg, t); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	if len(current) > 0 {
		sections = append(sections, current)
	}

	if region != nil {
		if err := rep.report(regionMessage("Could not find end of %s code section", *region), *region); err != nil {
			return nil, err
		}
	}
	for _, t := range stack {
		if err := rep.report("Could not find nested level end marker for aug code section start marker", t); err != nil {
			return nil, err
		}
	}
	if len(tokens) > 0 {
		if err := ensureDirectiveNewlineEnding(tokens[len(tokens)-1], rep); err != nil {
			return nil, err
		}
	}
	return sections, nil
}

// ensureDirectiveNewlineEnding rejects a directive on an unterminated last line.
func ensureDirectiveNewlineEnding(t types.Token, rep *reporter) error {
	if t.Kind == types.TokenBlank || t.Kind == types.TokenOther || t.Newline != "" {
		return nil
	}
	var desc string
	switch t.Kind {
	case types.TokenAugCode:
		desc = "Augmenting code"
	case types.TokenEmbeddedString:
		desc = "Embedded string"
	case types.TokenEmbeddedJSON:
		desc = "Embedded JSON"
	case types.TokenSkipStart:
		switch {
		case t.IsInlineGeneratedCodeMarker:
			desc = "Inline generated code"
		case t.IsGeneratedCodeMarker:
			desc = "Generated code start"
		default:
			desc = "Skip code start"
		}
	default:
		if t.IsGeneratedCodeMarker {
			desc = "Generated code end"
		} else {
			desc = "Skip code end"
		}
	}
	return rep.report(desc+" directive must end with a newline", t)
}

// validateSection enforces the shape rules of a completed section.
func validateSection(section []types.Token, rep *reporter) error {
	first := section[0]
	bucket := -1
	switch first.Kind {
	case types.TokenAugCode:
		bucket = first.AugCodeSpecIndex
	case types.TokenEmbeddedJSON:
		if err := rep.report("Embedded JSON directive cannot start an augmenting code section", first); err != nil {
			return err
		}
	default:
		if err := rep.report("Embedded string directive cannot start an augmenting code section", first); err != nil {
			return err
		}
	}

	for _, t := range section[1:] {
		if t.Kind != types.TokenAugCode {
			continue
		}
		// identifySections already splits on a bucket change, so this only fires
		// for sections assembled elsewhere.
		if bucket != -1 && bucket != t.AugCodeSpecIndex {
			if err := rep.report("Different kinds of augmenting code directives in same section not allowed", t); err != nil {
				return err
			}
		}
		if t.HasNestedLevelStart() {
			if err := rep.report("Only start of augmenting code section can be marked to start a nested level.", t); err != nil {
				return err
			}
		}
		if t.HasNestedLevelEnd() {
			if err := rep.report("Only start of augmenting code section can be marked to end a nested level.", t); err != nil {
				return err
			}
		}
	}
	return nil
}
