package executor

import (
	"fmt"
	"strings"
)

// ResultsTrailer closes every formatted result block.
const ResultsTrailer = "The tool calls above have ALREADY been executed and these results are final. " +
	"Use them directly to answer. Do not announce that you will run these tools again " +
	"and do not repeat the same calls."

// Format renders results as one block for the next prompt.
func Format(results []Result) string {
	var b strings.Builder
	b.WriteString("TOOL RESULTS:\n")

	var ok, failed int
	var total int64
	for i, r := range results {
		total += r.DurationMs
		if r.IsError {
			failed++
			fmt.Fprintf(&b, "\n[%d] ERROR %s (%dms, %s)\n", i+1, r.Tool, r.DurationMs, r.ErrorKind)
		} else {
			ok++
			fmt.Fprintf(&b, "\n[%d] SUCCESS %s (%dms, %d chars)\n", i+1, r.Tool, r.DurationMs, r.ResultLength)
		}
		text := r.Text
		if strings.TrimSpace(text) == "" {
			text = "(no output)"
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nSummary: %d succeeded, %d failed, %dms total.\n\n", ok, failed, total)
	b.WriteString(ResultsTrailer)
	return b.String()
}
