package llm

import (
	"regexp"
	"strings"
)

var thinkingTagRe = regexp.MustCompile(`(?s)<think(?:ing)?>.*?</think(?:ing)?>`)

// StripThinkingTags removes <think>...</think> blocks that some open-weight
// models emit before their answer, then trims surrounding whitespace.
func StripThinkingTags(s string) string {
	cleaned := thinkingTagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(cleaned)
}
