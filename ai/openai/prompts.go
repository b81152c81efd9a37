package openai

import "strings"

const taggingResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "tags": {
      "type": "array",
      "minItems": 5,
      "maxItems": 10,
      "items": {
        "type": "string",
        "maxLength": 50
      }
    },
    "rationale": {
      "type": "string"
    }
  },
  "required": ["tags", "rationale"],
  "additionalProperties": false
}`

const taggingSystemPrompt = `You classify documents for a knowledge base. Given a document excerpt and
its heading outline, return 5-10 descriptive tags and a short rationale as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble,
explanation, greeting, or acknowledgment. Start your response directly with the opening brace { and end
with the closing brace }. Your output must exactly follow this schema:

` + taggingResponseSchema + `

Rules:
- Tags must be lowercase, 1-3 words each, no punctuation.
- Prefer topical tags (subject matter, technologies, domains) over structural ones.
- Base tags only on what the excerpt and headings actually cover. Do not hallucinate.
- The rationale is one or two sentences explaining the tag choices.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input:
  Excerpt: "PostgreSQL replication can be configured in streaming or logical mode..."
  Headings: Replication > Streaming; Replication > Logical Decoding
Output:
{
  "tags": ["postgresql", "replication", "streaming replication", "logical decoding", "databases"],
  "rationale": "The document covers PostgreSQL replication modes in depth."
}`

// buildTaggingInput combines the document excerpt with its heading outline
// into the user message for the tagging call.
func buildTaggingInput(excerpt string, headingPaths []string) string {
	var b strings.Builder
	b.WriteString("Excerpt:\n")
	b.WriteString(excerpt)
	if len(headingPaths) > 0 {
		b.WriteString("\n\nHeading outline:\n")
		for _, path := range headingPaths {
			b.WriteString("- ")
			b.WriteString(path)
			b.WriteString("\n")
		}
	}
	return b.String()
}
