package openai

import "regexp"

// missingOpenQuote matches an object key that lost its opening quote,
// e.g. `, tags":` which some models emit in JSON mode.
var missingOpenQuote = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z_ ]*)":`)

// repairJSON fixes common JSON formatting issues in LLM responses before
// unmarshaling. Currently it restores missing opening quotes on object keys.
func repairJSON(s string) string {
	return missingOpenQuote.ReplaceAllString(s, `$1"$2":`)
}
