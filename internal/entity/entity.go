package entity

import (
	"slices"
	"strings"
)

// Column names shared by the store, the diff and the partial updates.
const (
	FieldUID             = "uid"
	FieldListUID         = "list_uid"
	FieldName            = "name"
	FieldText            = "text"
	FieldNotes           = "notes"
	FieldCompleted       = "completed"
	FieldPercentComplete = "percent_complete"
	FieldPriority        = "priority"
	FieldColor           = "color"
	FieldTags            = "tags"
	FieldParent          = "parent"
	FieldStartDate       = "start_date"
	FieldDueDate         = "due_date"
	FieldCreatedAt       = "created_at"
	FieldChangedAt       = "changed_at"
	FieldSynced          = "synced"
	FieldDeleted         = "deleted"
	FieldTrash           = "trash"
	FieldExpanded        = "expanded"
	FieldToolbarShown    = "toolbar_shown"
	FieldNotified        = "notified"
)

// SyncableTaskFields is the fixed list of task attributes mirrored to the
// remote side. Bookkeeping columns are deliberately absent.
var SyncableTaskFields = []string{
	FieldText,
	FieldNotes,
	FieldCompleted,
	FieldPercentComplete,
	FieldPriority,
	FieldColor,
	FieldTags,
	FieldParent,
	FieldStartDate,
	FieldDueDate,
	FieldCreatedAt,
	FieldChangedAt,
}

// BookkeepingTaskFields are local-only columns a pull never writes.
var BookkeepingTaskFields = []string{
	FieldSynced,
	FieldTrash,
	FieldExpanded,
	FieldToolbarShown,
	FieldDeleted,
	FieldNotified,
}

type TaskList struct {
	UID     string `json:"uid"`
	Name    string `json:"name"`
	Synced  bool   `json:"synced"`
	Deleted bool   `json:"deleted"`
}

type Task struct {
	UID             string   `json:"uid"`
	ListUID         string   `json:"list_uid"`
	Text            string   `json:"text"`
	Notes           string   `json:"notes"`
	Completed       bool     `json:"completed"`
	PercentComplete int      `json:"percent_complete"`
	Priority        int      `json:"priority"`
	Color           string   `json:"color"`
	Tags            []string `json:"tags"`
	Parent          string   `json:"parent"`
	StartDate       string   `json:"start_date"`
	DueDate         string   `json:"due_date"`
	CreatedAt       string   `json:"created_at"`
	ChangedAt       string   `json:"changed_at"`
	Synced          bool     `json:"synced"`
	Deleted         bool     `json:"deleted"`
}

// Fields is a partial update keyed by column name.
type Fields map[string]any

// Names returns the field names in a stable order.
func (f Fields) Names() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Value returns the value of a syncable field by name.
func (t Task) Value(field string) (any, bool) {
	switch field {
	case FieldText:
		return t.Text, true
	case FieldNotes:
		return t.Notes, true
	case FieldCompleted:
		return t.Completed, true
	case FieldPercentComplete:
		return t.PercentComplete, true
	case FieldPriority:
		return t.Priority, true
	case FieldColor:
		return t.Color, true
	case FieldTags:
		return slices.Clone(t.Tags), true
	case FieldParent:
		return t.Parent, true
	case FieldStartDate:
		return t.StartDate, true
	case FieldDueDate:
		return t.DueDate, true
	case FieldCreatedAt:
		return t.CreatedAt, true
	case FieldChangedAt:
		return t.ChangedAt, true
	}
	return nil, false
}

// Apply copies the given fields onto the task. Unknown names are ignored.
func (t *Task) Apply(f Fields) {
	for name, v := range f {
		switch name {
		case FieldText:
			t.Text, _ = v.(string)
		case FieldNotes:
			t.Notes, _ = v.(string)
		case FieldCompleted:
			t.Completed, _ = v.(bool)
		case FieldPercentComplete:
			t.PercentComplete, _ = v.(int)
		case FieldPriority:
			t.Priority, _ = v.(int)
		case FieldColor:
			t.Color, _ = v.(string)
		case FieldTags:
			tags, _ := v.([]string)
			t.Tags = slices.Clone(tags)
		case FieldParent:
			t.Parent, _ = v.(string)
		case FieldStartDate:
			t.StartDate, _ = v.(string)
		case FieldDueDate:
			t.DueDate, _ = v.(string)
		case FieldCreatedAt:
			t.CreatedAt, _ = v.(string)
		case FieldChangedAt:
			t.ChangedAt, _ = v.(string)
		case FieldSynced:
			t.Synced, _ = v.(bool)
		case FieldDeleted:
			t.Deleted, _ = v.(bool)
		}
	}
}

// Diff walks SyncableTaskFields and returns the remote values of every field
// that differs from local. Tags compare as sets.
func Diff(local, remote Task) Fields {
	out := Fields{}
	for _, name := range SyncableTaskFields {
		if name == FieldTags {
			if !SameTags(local.Tags, remote.Tags) {
				out[name] = slices.Clone(remote.Tags)
			}
			continue
		}
		lv, _ := local.Value(name)
		rv, _ := remote.Value(name)
		if ls, ok := lv.(string); ok {
			lv = NormalizeNewlines(ls)
		}
		if rs, ok := rv.(string); ok {
			rv = NormalizeNewlines(rs)
		}
		if lv != rv {
			out[name] = rv
		}
	}
	return out
}

// NormalizeNewlines folds CRLF line breaks to LF, the form text takes after a
// round trip through iCalendar.
func NormalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// SameTags reports whether a and b hold the same set of tags.
func SameTags(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	other := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, ok := set[t]; !ok {
			return false
		}
		other[t] = struct{}{}
	}
	return len(set) == len(other)
}

// ChangeSet collects everything the presentation layer has to refresh after
// one sync run.
type ChangeSet struct {
	ListsToAdd    []TaskList `json:"lists_to_add"`
	ListsToRename []TaskList `json:"lists_to_rename"`
	ListsToPurge  []string   `json:"lists_to_purge"`
	TasksToAdd    []Task     `json:"tasks_to_add"`
	TasksToUpdate []Task     `json:"tasks_to_update"`
	TasksToPurge  []Task     `json:"tasks_to_purge"`
	UpdateTags    bool       `json:"update_tags"`
	UpdateTrash   bool       `json:"update_trash"`
}

func (c *ChangeSet) Empty() bool {
	return len(c.ListsToAdd) == 0 &&
		len(c.ListsToRename) == 0 &&
		len(c.ListsToPurge) == 0 &&
		len(c.TasksToAdd) == 0 &&
		len(c.TasksToUpdate) == 0 &&
		len(c.TasksToPurge) == 0 &&
		!c.UpdateTags &&
		!c.UpdateTrash
}
