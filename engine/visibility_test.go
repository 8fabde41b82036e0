package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterQuery(t *testing.T) {
	tests := []struct {
		name   string
		filter *Filter
		want   string
	}{
		{
			name:   "empty",
			filter: NewFilter(),
			want:   "",
		},
		{
			name:   "single clause",
			filter: NewFilter().Equals(AttrAssignee, "user-7"),
			want:   "Assignee = 'user-7'",
		},
		{
			name: "multiple clauses joined with AND",
			filter: NewFilter().
				Equals(AttrAssignee, "user-7").
				Equals(AttrQueue, "document-review").
				ExecutionStatus("Running"),
			want: "Assignee = 'user-7' AND Queue = 'document-review' AND ExecutionStatus = 'Running'",
		},
		{
			name: "empty values skipped",
			filter: NewFilter().
				Equals(AttrAssignee, "").
				Equals(AttrStatus, "pending_review"),
			want: "Status = 'pending_review'",
		},
		{
			name:   "workflow type helper",
			filter: NewFilter().WorkflowType("DocumentContribution"),
			want:   "WorkflowType = 'DocumentContribution'",
		},
		{
			name:   "quotes escaped",
			filter: NewFilter().Equals(AttrAssignee, "o'brien"),
			want:   `Assignee = 'o\'brien'`,
		},
		{
			name:   "control characters stripped",
			filter: NewFilter().Equals(AttrAssignee, "a\nb"),
			want:   "Assignee = 'ab'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Query())
		})
	}
}
