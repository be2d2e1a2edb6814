package companion

import (
	"fmt"
	"strings"
)

const transcriptRule = "--------------------------------------------------------------------------------"

// Transcript renders a slot's refinement history as Markdown for logs and
// inspection tooling. The last round labels its revision as the final
// answer; a critique without a revision is shown as the closing verdict.
func Transcript(slot *Slot) string {
	if slot == nil {
		return ""
	}

	var out strings.Builder

	writeHeading(&out, "## Query")
	out.WriteString(slot.Query)
	out.WriteString("\n")

	writeHeading(&out, fmt.Sprintf("## Initial Draft (%s)", slot.Variant))
	out.WriteString(slot.Draft)
	out.WriteString("\n")

	for i, critique := range slot.Critiques {
		writeHeading(&out, fmt.Sprintf("## Iteration %d", i+1))

		writeHeading(&out, fmt.Sprintf("### Critique %d", i+1))
		out.WriteString(critique)
		out.WriteString("\n")

		if i >= len(slot.Revisions) {
			continue
		}
		if i == len(slot.Critiques)-1 || i == len(slot.Revisions)-1 {
			writeHeading(&out, "### Final Answer")
		} else {
			writeHeading(&out, fmt.Sprintf("### Revision %d", i+1))
		}
		out.WriteString(slot.Revisions[i])
		out.WriteString("\n")
	}

	if slot.SimilarityScore != nil {
		writeHeading(&out, "## Convergence")
		out.WriteString(fmt.Sprintf("similarity_score: %.4f\n", *slot.SimilarityScore))
	}

	return out.String()
}

func writeHeading(out *strings.Builder, heading string) {
	out.WriteString("\n")
	out.WriteString(transcriptRule)
	out.WriteString("\n")
	out.WriteString(heading)
	out.WriteString("\n")
	out.WriteString(transcriptRule)
	out.WriteString("\n")
}
