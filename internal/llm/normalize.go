package llm

// NormalizeToSchema projects a sanitized object onto the declared schema.
// Every schema key is present in the output: absent keys become nil, values
// pass through untouched (string, number or null — no coercion). Keys the
// model invented are silently dropped. Total by construction; never errors.
func NormalizeToSchema(obj map[string]any, columns []ColumnSpec) map[string]any {
	out := make(map[string]any, len(columns))
	for _, c := range columns {
		if v, ok := obj[c.Key]; ok {
			out[c.Key] = v
		} else {
			out[c.Key] = nil
		}
	}
	return out
}
