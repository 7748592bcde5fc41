package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// CountTokens estimates the token count of text. It takes the larger of the
// word-based (~4/3 tokens per word) and character-based (~4 chars per token)
// estimates so dense text without spaces is not undercounted.
func CountTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	byWords := len(strings.Fields(text)) * 4 / 3
	byChars := (utf8.RuneCountInString(text) + 3) / 4
	return max(byWords, byChars, 1)
}

// Diff is the token delta between two texts.
func Diff(before, after string) int {
	return CountTokens(after) - CountTokens(before)
}
