package executor

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

var (
	dataURIRe = regexp.MustCompile(`data:[a-zA-Z0-9+/=\-]+;base64,[A-Za-z0-9+/=]{64,}`)
	hexBlobRe = regexp.MustCompile(`[0-9a-fA-F]{256,}`)
)

// Truncate fits tool output into max bytes for the next prompt. Inline
// base64 data and long hex runs are replaced first; if the text is still
// too long the middle is cut, keeping the head and the tail.
func Truncate(content string, max int) string {
	if max <= 0 || len(content) <= max {
		return content
	}

	content = dataURIRe.ReplaceAllStringFunc(content, func(m string) string {
		return fmt.Sprintf("[base64 data removed, %d bytes]", len(m))
	})
	if len(content) <= max {
		return content
	}
	content = hexBlobRe.ReplaceAllStringFunc(content, func(m string) string {
		return fmt.Sprintf("[hex data removed, %d bytes]", len(m))
	})
	if len(content) <= max {
		return content
	}

	keep := max * 2 / 5
	head := runeFloor(content, keep)
	tail := runeCeil(content, len(content)-keep)
	cut := tail - head
	return content[:head] + fmt.Sprintf("\n\n[... %d bytes truncated ...]\n\n", cut) + content[tail:]
}

// runeFloor moves i back to the start of the rune containing it.
func runeFloor(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil moves i forward to the next rune start.
func runeCeil(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
