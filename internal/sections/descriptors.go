package sections

import (
	"strings"

	"codeaug/internal/types"
)

// generatedCodeDescriptor looks for a generated code region right after the token at
// augCodeEnd, tolerating blank lines only. It also returns the region's first and last
// line numbers.
func generatedCodeDescriptor(tokens []types.Token, augCodeEnd int, rep *reporter) (*types.GeneratedCodeDescriptor, [2]int, error) {
	var lines [2]int
	startIndex := -1
	for i := augCodeEnd + 1; i < len(tokens); i++ {
		t := tokens[i]
		if t.Kind == types.TokenBlank {
			continue
		}
		if t.Kind == types.TokenSkipStart && t.IsGeneratedCodeMarker {
			startIndex = i
		}
		break
	}
	if startIndex == -1 {
		return nil, lines, nil
	}

	st := tokens[startIndex]
	lines[0] = st.LineNumber

	if st.IsInlineGeneratedCodeMarker {
		desc := &types.GeneratedCodeDescriptor{
			StartDirectiveStartPos: st.StartPos,
			EndDirectiveEndPos:     st.EndPos,
			Inline:                 true,
			Indent:                 st.Indent,
		}
		lines[1] = st.LineNumber
		expected := st.LineNumber + 1
		for _, t := range tokens[startIndex+1:] {
			if !t.IsInlineGeneratedCodeMarker || t.LineNumber != expected {
				break
			}
			desc.EndDirectiveEndPos = t.EndPos
			lines[1] = t.LineNumber
			if len(t.Indent) < len(desc.Indent) {
				desc.Indent = t.Indent
			}
			expected++
		}
		return desc, lines, nil
	}

	var minIndent *string
	for _, t := range tokens[startIndex+1:] {
		if t.Kind == types.TokenSkipEnd {
			if !t.IsGeneratedCodeMarker {
				break
			}
			// no content lines: use the narrower of the start and end directive indents
			if minIndent == nil {
				indent := st.Indent
				if len(t.Indent) < len(st.Indent) {
					indent = t.Indent
				}
				minIndent = &indent
			}
			lines[1] = t.LineNumber
			return &types.GeneratedCodeDescriptor{
				StartDirectiveStartPos: st.StartPos,
				StartDirectiveEndPos:   st.EndPos,
				EndDirectiveStartPos:   t.StartPos,
				EndDirectiveEndPos:     t.EndPos,
				Indent:                 *minIndent,
			}, lines, nil
		}
		if t.Kind == types.TokenSkipStart {
			break
		}
		if t.Kind != types.TokenBlank && (minIndent == nil || len(t.Indent) < len(*minIndent)) {
			indent := t.Indent
			minIndent = &indent
		}
	}
	return nil, lines, rep.report("Could not find end of generated code section", st)
}

// buildBlocks merges consecutive same-kind tokens of a section into blocks, joined by
// the previous token's own newline. The returned delimiters hold, per block, the index
// within the section of the token starting it.
func buildBlocks(section []types.Token) ([]types.Block, []int) {
	blocks := []types.Block{{}}
	delimiters := []int{0}
	var sb strings.Builder
	for i, t := range section {
		stringify := t.Kind == types.TokenEmbeddedString
		jsonify := t.Kind == types.TokenEmbeddedJSON
		last := &blocks[len(blocks)-1]
		if last.Stringify == stringify && last.Jsonify == jsonify {
			if i > 0 {
				sb.WriteString(section[i-1].Newline)
			}
			sb.WriteString(t.DirectiveContent)
			continue
		}
		last.Content = sb.String()
		blocks = append(blocks, types.Block{Stringify: stringify, Jsonify: jsonify})
		sb.Reset()
		sb.WriteString(t.DirectiveContent)
		delimiters = append(delimiters, i)
	}
	blocks[len(blocks)-1].Content = sb.String()
	return blocks, delimiters
}

// externalNestedContent returns the verbatim text between section i, which opens a
// nested level, and the first later section closing that level.
func externalNestedContent(tokens []types.Token, sections [][]types.Token, i int, levels nestingLevels) string {
	last := sections[i][len(sections[i])-1]
	level := levels[sections[i][0].Index]
	endIndex := -1
	for _, candidate := range sections[i+1:] {
		rep := candidate[0]
		if levels[rep.Index] == level && rep.HasNestedLevelEnd() {
			endIndex = rep.Index
			break
		}
	}
	if endIndex == -1 {
		return ""
	}
	var sb strings.Builder
	for _, t := range tokens[last.Index+1 : endIndex] {
		sb.WriteString(t.Text)
	}
	return sb.String()
}

// matchNestedLevels links every nested level start in a bucket to its end, using only
// nested level numbers and marker flags.
func matchNestedLevels(buckets [][]types.AugmentingCode) {
	for _, codes := range buckets {
		for i := range codes {
			if !codes[i].HasNestedLevelStartMarker {
				continue
			}
			for j := i + 1; j < len(codes); j++ {
				if codes[j].NestedLevelNumber == codes[i].NestedLevelNumber && codes[j].HasNestedLevelEndMarker {
					end, start := j, i
					codes[i].MatchingNestedLevelEndMarkerIndex = &end
					codes[j].MatchingNestedLevelStartMarkerIndex = &start
					break
				}
			}
		}
	}
}
