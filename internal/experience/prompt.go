package experience

import "strings"

// CandidateBlockHeader opens every rendered candidate block. The upstream
// prompt assembler consumes the block verbatim, so the header text is fixed.
const CandidateBlockHeader = "Candidate Fixes from past experience (choose only what you need):"

// RenderCandidatesBlock renders the selected entries as the plain-text block
// handed to the agent: one group per entry with its id, advice lines, and
// rendered commands. Returns "" for an empty selection.
func RenderCandidatesBlock(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(CandidateBlockHeader)

	for i := range entries {
		e := &entries[i]
		b.WriteString("\n- Fix (id=" + e.ID + "):")

		if len(e.Advice) > 0 {
			b.WriteString("\n  Advice:")
			for _, advice := range e.Advice {
				b.WriteString("\n    - " + advice)
			}
		}

		if cmds := RenderEntry(e); len(cmds) > 0 {
			b.WriteString("\n  Bash snippet:")
			for _, c := range cmds {
				b.WriteString("\n    " + c)
			}
		}
	}

	return b.String()
}
