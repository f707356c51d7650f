package conversation

import (
	"strings"
	"unicode/utf8"
)

// EstimateTokens approximates a token count by averaging a character-based
// estimate (chars/4) with a word-based one (words*1.3). It is a heuristic,
// not a tokenizer; real counts for billing come from llm.CountTokens.
func EstimateTokens(text string) int {
	chars := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	charEstimate := chars / 4
	wordEstimate := int(float64(words) * 1.3)
	return (charEstimate + wordEstimate) / 2
}
