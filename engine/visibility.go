package engine

import (
	"fmt"
	"strings"
)

// Filter builds a Temporal visibility query from equality conditions joined
// with AND.
type Filter struct {
	clauses []string
}

// NewFilter returns an empty filter.
func NewFilter() *Filter {
	return &Filter{}
}

// Equals adds an attribute equality clause. Empty values are skipped so
// callers can pass optional parameters straight through.
func (f *Filter) Equals(attr, value string) *Filter {
	if value == "" {
		return f
	}
	f.clauses = append(f.clauses, fmt.Sprintf("%s = '%s'", attr, escapeValue(value)))
	return f
}

// WorkflowType restricts the listing to one workflow type.
func (f *Filter) WorkflowType(name string) *Filter {
	return f.Equals("WorkflowType", name)
}

// ExecutionStatus restricts the listing to one execution status.
func (f *Filter) ExecutionStatus(status string) *Filter {
	return f.Equals("ExecutionStatus", status)
}

// Query renders the visibility query string. An empty filter renders to an
// empty string, which lists everything.
func (f *Filter) Query() string {
	return strings.Join(f.clauses, " AND ")
}

// escapeValue escapes single quotes and strips control characters so user
// input cannot break out of the quoted literal.
func escapeValue(v string) string {
	v = strings.Map(func(r rune) rune {
		if r < 0x20 {
			return -1
		}
		return r
	}, v)
	return strings.ReplaceAll(v, "'", `\'`)
}
