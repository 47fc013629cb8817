package store

import (
	"context"

	"github.com/pkg/errors"

	"tasksync/internal/entity"
)

var ErrNotFound = errors.New("record not found")

// TaskFilter narrows Tasks. An empty ListUID selects every list.
type TaskFilter struct {
	ListUID        string
	IncludeDeleted bool
}

// Store is the local task store. Every call is atomic on its own; nothing
// spans several calls.
type Store interface {
	Lists(ctx context.Context, includeDeleted bool) ([]entity.TaskList, error)
	List(ctx context.Context, uid string) (entity.TaskList, error)
	AddList(ctx context.Context, list entity.TaskList) (entity.TaskList, error)
	UpdateList(ctx context.Context, uid string, fields entity.Fields) error
	// DeleteList purges the list together with its tasks.
	DeleteList(ctx context.Context, uid string) error

	Tasks(ctx context.Context, filter TaskFilter) ([]entity.Task, error)
	Task(ctx context.Context, listUID, uid string) (entity.Task, error)
	AddTask(ctx context.Context, task entity.Task) (entity.Task, error)
	UpdateTask(ctx context.Context, listUID, uid string, fields entity.Fields) error
	DeleteTask(ctx context.Context, listUID, uid string) error
}

var listColumns = map[string]bool{
	entity.FieldName:    true,
	entity.FieldSynced:  true,
	entity.FieldDeleted: true,
}

var taskColumns = func() map[string]bool {
	out := map[string]bool{}
	for _, f := range entity.SyncableTaskFields {
		out[f] = true
	}
	for _, f := range entity.BookkeepingTaskFields {
		out[f] = true
	}
	return out
}()
