package chunk

import (
	"regexp"
	"unicode/utf8"
)

// sentencePattern matches sentence-like runs ending in terminal
// punctuation. Used by the sentence splitter variant.
var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

// EstimateTokens provides a rough token count for sizing chunks and
// embedding rows. Uses rune count divided by 2 as a conservative
// estimate that works for both English (~4 chars/token) and CJK
// (~1.5 chars/token) text.
//
// Every token measurement in the ingestion pipeline goes through this
// function so the configured chunk size keeps a stable meaning.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 2
}
