package core

import "unicode/utf8"

// EstimateTokens approximates the token count of text as one token per four
// characters, with a minimum of one. This is a deliberate heuristic rather
// than a tokenizer call; aggregate document counts depend on it being
// reproduced exactly.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text) / 4
	if n < 1 {
		return 1
	}
	return n
}
