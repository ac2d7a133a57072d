package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `You are a data transformation assistant. The user works on a table bound to
the variable 'input' and you translate their request into a script in a tiny
table language.

Language rules:
- Statements are assignments, one per line. You MUST bind the final result
  to 'output'.
- Row filtering: output = input[input.Value > 15]
- Column access: input.ColumnName. Comparisons and arithmetic broadcast over
  columns. Combine masks with && and ||.
- Table functions: select(t, cols...), drop(t, cols...), rename(t, old, new),
  sort(t, col, "desc"), head(t, n), distinct(t), fillnull(t, col, value),
  withcolumn(t, name, values), groupsum(t, keyCol, valCol).
- Chart functions (only for chart requests): bar(t, x, y), line(t, x, y),
  scatter(t, x, y), pie(t, labels, values).
- String literals use double quotes. No loops, no imports, nothing else.

Decide the intent first:
- DATA_MUTATION: the user wants to change, filter, clean or reshape the data.
- VISUAL_UPDATE: the user wants a chart or plot; the script must call a chart
  function and must NOT modify 'input'.

Respond with ONLY a JSON object, no markdown fences:
{"intent": "DATA_MUTATION" or "VISUAL_UPDATE", "script": "...", "explanation": "one short sentence"}`

// buildUserPrompt gives the model the schema plus a sample row, the same
// context the classifier contract promises.
func buildUserPrompt(prompt string, columns []string, sample map[string]any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Columns: %s\n", strings.Join(columns, ", "))
	if len(sample) > 0 {
		if b, err := json.Marshal(sample); err == nil {
			fmt.Fprintf(&sb, "Sample row: %s\n", b)
		}
	}
	fmt.Fprintf(&sb, "User request: %q\n", prompt)
	return sb.String()
}

// stripFences removes markdown code fences the model sometimes adds despite
// instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
