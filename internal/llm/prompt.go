package llm

import (
	"strings"
)

// BuildExtractionPrompt renders the column schema into the instruction sent
// to every provider. The wording is deliberately rigid: one raw JSON object,
// exact keys, null for anything the document does not contain. Keeping the
// field list and the example shape in schema order makes the prompt
// deterministic for a given schema.
func BuildExtractionPrompt(columns []ColumnSpec) (string, error) {
	if len(columns) == 0 {
		return "", ErrEmptySchema
	}

	var b strings.Builder
	b.WriteString("You are a document data extractor. Extract the following fields from the attached document:\n\n")
	for _, c := range columns {
		b.WriteString("- ")
		b.WriteString(c.Key)
		b.WriteString(": ")
		b.WriteString(c.Description)
		b.WriteString("\n")
	}

	b.WriteString("\nReturn EXACTLY ONE raw JSON object and nothing else. ")
	b.WriteString("No surrounding prose, no markdown, no code fences. ")
	b.WriteString("Keys must exactly match the field names above. ")
	b.WriteString("If a field is unknown or missing from the document, use null as its value. ")
	b.WriteString("Keep values concise.\n\n")

	b.WriteString("Example return shape:\n{")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(`"`)
		b.WriteString(c.Key)
		b.WriteString(`": ""`)
	}
	b.WriteString("}")

	return b.String(), nil
}
