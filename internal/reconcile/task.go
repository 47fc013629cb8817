package reconcile

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"tasksync/internal/codec"
	"tasksync/internal/entity"
	"tasksync/internal/remote"
	"tasksync/internal/store"
)

// Tasks reconciles the tasks of one list with the to-dos of its calendar.
// Failing to read either side skips the list; per task failures are recorded
// and the remaining tasks are still processed.
func (r *Run) Tasks(ctx context.Context, cal remote.Calendar) error {
	listUID := cal.ID()
	locals, err := r.store.Tasks(ctx, store.TaskFilter{ListUID: listUID, IncludeDeleted: true})
	if err != nil {
		return errors.Wrapf(err, "error reading tasks of list %s", listUID)
	}
	tombstones, err := r.deletedUIDs(ctx)
	if err != nil {
		return err
	}
	todos, err := cal.Todos(ctx)
	if err != nil {
		return errors.Wrapf(err, "error reading todos of list %s", listUID)
	}

	byUID := make(map[string]*remote.Todo, len(todos))
	for _, todo := range todos {
		if uid := todo.UID(); uid != "" {
			byUID[uid] = todo
		}
	}

	localUIDs := make(map[string]bool, len(locals))
	for _, task := range locals {
		localUIDs[task.UID] = true
		todo, inRemote := byUID[task.UID]
		switch {
		case inRemote && task.Deleted:
			r.deleteRemoteTask(ctx, cal, todo, task)
		case !inRemote && task.Synced:
			r.deleteLocalTask(ctx, task)
		case task.Deleted:
			// kept, it still hides the to-do from pull-create
		case inRemote && task.Synced:
			r.pull(ctx, task, codec.Decode(todo.Component, listUID))
		case inRemote:
			r.push(ctx, cal, todo, task)
		default:
			r.createRemoteTask(ctx, cal, task)
		}
	}

	for _, todo := range todos {
		uid := todo.UID()
		if uid == "" || localUIDs[uid] || tombstones[uid] {
			continue
		}
		r.pullCreate(ctx, codec.Decode(todo.Component, listUID))
	}
	return nil
}

// deletedUIDs collects the tombstones of every list.
func (r *Run) deletedUIDs(ctx context.Context) (map[string]bool, error) {
	all, err := r.store.Tasks(ctx, store.TaskFilter{IncludeDeleted: true})
	if err != nil {
		return nil, errors.Wrap(err, "error reading deleted tasks")
	}
	out := make(map[string]bool)
	for _, t := range all {
		if t.Deleted {
			out[t.UID] = true
		}
	}
	return out, nil
}

func (r *Run) pull(ctx context.Context, local, fetched entity.Task) {
	diff := entity.Diff(local, fetched)
	if len(diff) == 0 {
		return
	}
	log.Debug().Str("task", local.UID).Strs("fields", diff.Names()).Msg("update local task")
	if err := r.store.UpdateTask(ctx, local.ListUID, local.UID, diff); err != nil {
		r.fail(ErrLocalWriteFailed, err).Str("task", local.UID).Msg("can't update local task")
		return
	}
	local.Apply(diff)
	r.changes.TasksToUpdate = append(r.changes.TasksToUpdate, local)
	r.changes.UpdateTags = true
	r.changes.UpdateTrash = true
	r.count(TaskPull)
}

func (r *Run) push(ctx context.Context, cal remote.Calendar, todo *remote.Todo, task entity.Task) {
	log.Debug().Str("task", task.UID).Msg("update remote task")
	codec.Uncomplete(todo.Component)
	codec.Encode(task, todo.Component)
	if task.Completed {
		codec.Complete(todo.Component, r.now())
	}
	if err := cal.SaveTodo(ctx, todo); err != nil {
		r.fail(ErrRemoteWriteFailed, err).Str("task", task.UID).Msg("can't update remote task")
		return
	}
	r.count(TaskPush)
	if err := r.store.UpdateTask(ctx, task.ListUID, task.UID, entity.Fields{entity.FieldSynced: true}); err != nil {
		r.fail(ErrLocalWriteFailed, err).Str("task", task.UID).Msg("can't mark task synced")
	}
}

// createRemoteTask marks the task synced even when the server refused it.
func (r *Run) createRemoteTask(ctx context.Context, cal remote.Calendar, task entity.Task) {
	log.Debug().Str("task", task.UID).Msg("create remote task")
	todo := &remote.Todo{Component: codec.NewTodo(task, r.now())}
	fields := entity.Fields{entity.FieldSynced: true}
	if err := cal.CreateTodo(ctx, todo); err != nil {
		r.fail(ErrRemoteWriteFailed, err).Str("task", task.UID).Msg("can't create remote task")
	} else {
		r.count(TaskCreateRemote)
		if task.CreatedAt == "" {
			fields[entity.FieldCreatedAt] = codec.Decode(todo.Component, task.ListUID).CreatedAt
		}
	}
	if err := r.store.UpdateTask(ctx, task.ListUID, task.UID, fields); err != nil {
		r.fail(ErrLocalWriteFailed, err).Str("task", task.UID).Msg("can't mark task synced")
	}
}

func (r *Run) deleteRemoteTask(ctx context.Context, cal remote.Calendar, todo *remote.Todo, task entity.Task) {
	log.Debug().Str("task", task.UID).Msg("delete remote task")
	if err := cal.DeleteTodo(ctx, todo); err != nil {
		r.fail(ErrRemoteDeleteFailed, err).Str("task", task.UID).Msg("can't delete remote task")
		return
	}
	r.count(TaskDeleteRemote)
	r.purge(ctx, task)
}

func (r *Run) deleteLocalTask(ctx context.Context, task entity.Task) {
	log.Debug().Str("task", task.UID).Msg("delete local task")
	if r.purge(ctx, task) {
		r.count(TaskDeleteLocal)
	}
}

func (r *Run) purge(ctx context.Context, task entity.Task) bool {
	if err := r.store.DeleteTask(ctx, task.ListUID, task.UID); err != nil {
		r.fail(ErrLocalWriteFailed, err).Str("task", task.UID).Msg("can't delete local task")
		return false
	}
	r.changes.TasksToPurge = append(r.changes.TasksToPurge, task)
	r.changes.UpdateTags = true
	r.changes.UpdateTrash = true
	return true
}

func (r *Run) pullCreate(ctx context.Context, task entity.Task) {
	log.Debug().Str("task", task.UID).Msg("new remote task")
	task.Synced = true
	added, err := r.store.AddTask(ctx, task)
	if err != nil {
		r.fail(ErrLocalWriteFailed, err).Str("task", task.UID).Msg("can't add remote task")
		return
	}
	r.changes.TasksToAdd = append(r.changes.TasksToAdd, added)
	r.count(TaskPullCreate)
}
