package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/duograph/ai"
)

const extractionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {
            "type": "string",
            "pattern": "^[a-z0-9]+( [a-z0-9]+)*$"
          },
          "type": {
            "type": "string"
          }
        },
        "required": ["name", "type"],
        "additionalProperties": false
      }
    },
    "facts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "source": {"type": "string"},
          "target": {"type": "string"},
          "relation": {
            "type": "string",
            "pattern": "^[A-Z]+(_[A-Z]+)*$"
          },
          "statement": {"type": "string"}
        },
        "required": ["source", "target", "relation", "statement"],
        "additionalProperties": false
      }
    }
  },
  "required": ["entities", "facts"],
  "additionalProperties": false
}`

const extractionPromptTemplate = `Extract the entities mentioned in the given text and the relationships asserted between them, and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Entity names must be lowercase, 1-3 words, singular form only.
- The entity type field must match exactly one of the listed values: %s.
- Every fact's source and target must be names from the entities array.
- Relations are short verb phrases in SCREAMING_SNAKE_CASE, e.g. LOCATED_IN, WORKS_AT, PART_OF.
- The statement field restates the fact as one plain sentence grounded in the text.
- Include only entities and facts that are explicitly stated or clearly implied. Do not hallucinate.
- If nothing can be identified, return "entities": [] and "facts": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "The Eiffel Tower is a famous landmark in Paris. It was designed by Gustave Eiffel."
Output:
{
  "entities": [
    {"name":"eiffel tower","type":"building"},
    {"name":"paris","type":"place"},
    {"name":"gustave eiffel","type":"person"}
  ],
  "facts": [
    {"source":"eiffel tower","target":"paris","relation":"LOCATED_IN","statement":"The Eiffel Tower is located in Paris."},
    {"source":"gustave eiffel","target":"eiffel tower","relation":"DESIGNED","statement":"Gustave Eiffel designed the Eiffel Tower."}
  ]
}

Example (no relationships present):
Input: "oranges, apples and pears"
Output:
{
  "entities": [
    {"name":"orange","type":"natural_object"},
    {"name":"apple","type":"natural_object"},
    {"name":"pear","type":"natural_object"}
  ],
  "facts": []
}`

// buildSystemPrompt creates the system prompt with entity types embedded.
func buildSystemPrompt() string {
	return fmt.Sprintf(extractionPromptTemplate,
		extractionResponseSchema,
		strings.Join(ai.EntityTypes, ", "))
}
