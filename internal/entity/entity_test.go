package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	local := Task{
		UID:      "T1",
		ListUID:  "L1",
		Text:     "buy milk",
		Notes:    "2%",
		Priority: 1,
		Tags:     []string{"home", "food"},
		Synced:   true,
	}

	tests := []struct {
		name   string
		remote func(Task) Task
		want   Fields
	}{
		{
			name:   "identical",
			remote: func(t Task) Task { return t },
			want:   Fields{},
		},
		{
			name: "priority only",
			remote: func(t Task) Task {
				t.Priority = 9
				return t
			},
			want: Fields{FieldPriority: 9},
		},
		{
			name: "tag order is ignored",
			remote: func(t Task) Task {
				t.Tags = []string{"food", "home"}
				return t
			},
			want: Fields{},
		},
		{
			name: "bookkeeping is ignored",
			remote: func(t Task) Task {
				t.Synced = false
				t.Deleted = true
				return t
			},
			want: Fields{},
		},
		{
			name: "several fields",
			remote: func(t Task) Task {
				t.Completed = true
				t.DueDate = "20240101T000000"
				t.Tags = []string{"home"}
				return t
			},
			want: Fields{
				FieldCompleted: true,
				FieldDueDate:   "20240101T000000",
				FieldTags:      []string{"home"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Diff(local, tt.remote(local)))
		})
	}
}

func TestDiffIgnoresLineBreakStyle(t *testing.T) {
	local := Task{UID: "T1", Text: "line one\r\nline two", Notes: "a\r\nb"}
	remote := Task{UID: "T1", Text: "line one\nline two", Notes: "a\nb\nc"}

	assert.Equal(t, Fields{FieldNotes: "a\nb\nc"}, Diff(local, remote))
}

func TestApply(t *testing.T) {
	task := Task{UID: "T1", Notes: "keep", Tags: []string{"a"}}
	task.Apply(Fields{FieldPriority: 5, FieldText: "new", FieldSynced: true})

	assert.Equal(t, 5, task.Priority)
	assert.Equal(t, "new", task.Text)
	assert.Equal(t, "keep", task.Notes)
	assert.Equal(t, []string{"a"}, task.Tags)
	assert.True(t, task.Synced)
}

func TestSameTags(t *testing.T) {
	assert.True(t, SameTags(nil, []string{}))
	assert.True(t, SameTags([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, SameTags([]string{"a"}, []string{"a", "b"}))
	assert.False(t, SameTags([]string{"a", "c"}, []string{"a", "b"}))
}

func TestChangeSetEmpty(t *testing.T) {
	var cs ChangeSet
	assert.True(t, cs.Empty())
	cs.UpdateTrash = true
	assert.False(t, cs.Empty())
	assert.Equal(t, []string{"a", "b"}, Fields{"b": 1, "a": 2}.Names())
}
