package pipeline

import (
	"regexp"
	"strings"
)

var (
	reasoningBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	leadingFence   = regexp.MustCompile("^```[A-Za-z0-9_-]*[ \t]*\r?\n?")
)

// SanitizeModelOutput strips reasoning segments and Markdown fences from a model
// answer so only the delimited data remains. The order of the steps matters:
// reasoning blocks may themselves contain fences.
func SanitizeModelOutput(raw string) string {
	s := reasoningBlock.ReplaceAllString(raw, "")
	s = strings.TrimSpace(s)
	s = leadingFence.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
