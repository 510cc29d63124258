package schema

import "fmt"

// ValidationError identifies the offending field of a rejected record.
type ValidationError struct {
	Kind   Kind
	Key    string // provisional key, set for batch-level reference errors
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s.%s: %s", e.Kind, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s.%s: %s (got %s)", e.Kind, e.Field, e.Reason, describe(e.Value))
}

func invalid(kind Kind, field string, value any, reason string, args ...any) *ValidationError {
	if len(args) > 0 {
		reason = fmt.Sprintf(reason, args...)
	}
	return &ValidationError{Kind: kind, Field: field, Value: value, Reason: reason}
}

// describe renders a received value compactly so reasons stay readable in reports.
func describe(v any) string {
	s := fmt.Sprintf("%#v", v)
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}
