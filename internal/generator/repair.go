package generator

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

// localRepairs are applied cumulatively, in order, when model output does not
// decode as JSON. Each one costs one unit of the repair budget.
var localRepairs = []func(string) string{
	stripFences,
	balancedSpan,
}

var errNoJSON = errors.New("output contains no JSON value")

// decodeOutput decodes model output, trying at most budget local repairs.
// It returns the number of repairs spent.
func decodeOutput(text string, budget int) (any, int, error) {
	v, err := decodeJSON(text)
	if err == nil {
		return v, 0, nil
	}

	used := 0
	current := text
	for _, repair := range localRepairs {
		if used >= budget {
			break
		}
		used++
		current = repair(current)
		if v, rerr := decodeJSON(current); rerr == nil {
			return v, used, nil
		}
	}
	return nil, used, err
}

func decodeJSON(text string) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errNoJSON
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func stripFences(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	// Unterminated fence: drop the opening line.
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
			return strings.TrimSpace(trimmed[i+1:])
		}
	}
	return text
}

// balancedSpan returns the first complete {...} or [...] span, ignoring
// brackets inside string literals. The input is returned unchanged when no
// span closes.
func balancedSpan(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}

	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return text
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return text[start : i+1]
			}
		}
	}
	return text
}

// unwrapRecord reduces common wrappings of a single record: a one-element
// array, or an object with a single key holding the record.
func unwrapRecord(v any, marker string) any {
	for range 2 {
		switch val := v.(type) {
		case []any:
			if len(val) == 0 {
				return v
			}
			v = val[0]
		case map[string]any:
			if _, ok := val[marker]; ok || len(val) != 1 {
				return v
			}
			for _, inner := range val {
				switch inner.(type) {
				case map[string]any, []any:
					v = inner
				default:
					return v
				}
			}
		default:
			return v
		}
	}
	return v
}
