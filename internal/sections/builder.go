// Package sections groups tokens into augmenting code sections, resolves skipped and
// generated code regions, enforces nesting rules, and produces per-section descriptors
// together with the augmenting code objects handed to the evaluation stage.
//
// Errors are routed through a types.ErrorPolicy. With types.Collect every error is
// recorded and analysis continues; with types.RaiseImmediately the first error is
// returned. A file reporting any error yields no output.
package sections

import (
	"fmt"

	"codeaug/internal/logging"
	"codeaug/internal/types"
)

// Result is the output of Build for one file.
type Result struct {
	// Snippets holds one descriptor pair per section, in discovery order.
	Snippets []types.CodeSnippetDescriptor
	// AugCodes holds the augmenting codes of each directive bucket.
	AugCodes [][]types.AugmentingCode
}

// Count returns the total number of augmenting codes across buckets.
func (r *Result) Count() int {
	n := 0
	for _, codes := range r.AugCodes {
		n += len(codes)
	}
	return n
}

type reporter struct {
	policy types.ErrorPolicy
	path   string
	count  int
}

func (r *reporter) report(message string, tok types.Token) error {
	return r.reportError(types.NewTaskError(message, r.path, tok.LineNumber, tok.Text))
}

func (r *reporter) reportError(err *types.TaskError) error {
	r.count++
	return r.policy.Report(err)
}

// Build analyses the tokens of the file at path. bucketCount is the number of
// configured directive buckets.
//
// Under types.RaiseImmediately the first error is returned. Under types.Collect the
// returned Result is nil whenever any error was collected.
func Build(tokens []types.Token, path string, bucketCount int, policy types.ErrorPolicy) (*Result, error) {
	rep := &reporter{policy: policy, path: path}

	levels := make(nestingLevels, len(tokens))
	sections, err := identifySections(tokens, levels, rep)
	if err != nil {
		return nil, err
	}
	for _, section := range sections {
		if err := validateSection(section, rep); err != nil {
			return nil, err
		}
	}
	if rep.count > 0 {
		return nil, nil
	}

	res := &Result{AugCodes: make([][]types.AugmentingCode, bucketCount)}
	for i, section := range sections {
		first := section[0]
		last := section[len(section)-1]

		augDesc := types.AugmentingCodeDescriptor{
			ID:            i + 1,
			StartPos:      first.StartPos,
			EndPos:        last.EndPos,
			Indent:        minIndent(section),
			LineNumber:    first.LineNumber,
			LineSeparator: last.Newline,
		}

		genDesc, genLines, err := generatedCodeDescriptor(tokens, last.Index, rep)
		if err != nil {
			return nil, err
		}
		res.Snippets = append(res.Snippets, types.CodeSnippetDescriptor{
			AugmentingCodeDescriptor: augDesc,
			GeneratedCodeDescriptor:  genDesc,
		})

		blocks, delimiters := buildBlocks(section)
		augCode := types.AugmentingCode{
			ID:                        augDesc.ID,
			Blocks:                    blocks,
			DirectiveMarker:           first.DirectiveMarker,
			Indent:                    augDesc.Indent,
			LineNumber:                augDesc.LineNumber,
			EndLineNumber:             last.LineNumber,
			LineSeparator:             augDesc.LineSeparator,
			NestedLevelNumber:         levels[first.Index],
			HasNestedLevelStartMarker: first.HasNestedLevelStart(),
			HasNestedLevelEndMarker:   first.HasNestedLevelEnd(),
		}
		if genDesc != nil {
			indent := genDesc.Indent
			augCode.GenCodeIndent = &indent
			augCode.GenCodeLineNumber = genLines[0]
			augCode.GenCodeEndLineNumber = genLines[1]
		}
		if augCode.HasNestedLevelStartMarker {
			augCode.ExternalNestedContent = externalNestedContent(tokens, sections, i, levels)
		}

		for j, b := range blocks {
			if !b.Jsonify || validateJSON(b.Content) == nil {
				continue
			}
			if err := rep.reportError(jsonValidationError(j, section, delimiters, path)); err != nil {
				return nil, err
			}
		}

		bucket := first.AugCodeSpecIndex
		for bucket >= len(res.AugCodes) {
			res.AugCodes = append(res.AugCodes, nil)
		}
		res.AugCodes[bucket] = append(res.AugCodes[bucket], augCode)
	}
	if rep.count > 0 {
		return nil, nil
	}

	matchNestedLevels(res.AugCodes)

	logging.Get(logging.CategorySections).Debug("%s: %d section(s), %d aug code(s)", path, len(res.Snippets), res.Count())
	return res, nil
}

func minIndent(section []types.Token) string {
	indent := section[0].Indent
	for _, t := range section[1:] {
		if len(t.Indent) < len(indent) {
			indent = t.Indent
		}
	}
	return indent
}

func regionMessage(format string, tok types.Token, args ...any) string {
	return fmt.Sprintf(format, append([]any{tok.RegionKind()}, args...)...)
}
