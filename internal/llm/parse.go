package llm

import (
	"regexp"
	"strings"
)

var codeBlockRe = regexp.MustCompile("(?s)```(?:\\w+)?\\n(.*?)\\n?```")

// SplitCodeBlock separates a model reply into prose and the first fenced
// code block. The returned content has the block removed; code is empty
// when no fence is present.
func SplitCodeBlock(text string) (content, code string) {
	match := codeBlockRe.FindStringSubmatchIndex(text)
	if match == nil {
		return strings.TrimSpace(text), ""
	}

	code = strings.TrimSpace(text[match[2]:match[3]])
	content = strings.TrimSpace(text[:match[0]] + text[match[1]:])
	return content, code
}
