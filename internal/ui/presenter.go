package ui

import (
	"context"
	"errors"
	"slices"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"tasksync/internal/entity"
)

// View is the presentation state refreshed after a sync.
type View interface {
	PurgeList(uid string) error
	AddList(list entity.TaskList) error
	RenameList(list entity.TaskList) error
	PurgeTask(task entity.Task) error
	AddTask(task entity.Task) error
	UpdateTask(task entity.Task) error
	RefreshTags() error
	RefreshTrash() error
}

var _ Sink = (*Presenter)(nil)

// Presenter applies change sets to a View. Lists are purged first and tasks
// added after their lists so that no row references a removed parent.
type Presenter struct {
	view View
}

func NewPresenter(view View) *Presenter {
	return &Presenter{view: view}
}

// Refresh applies every part of changes. A failing row does not stop the
// rest; all row errors are returned joined.
func (p *Presenter) Refresh(_ context.Context, changes entity.ChangeSet) error {
	var errs []error
	collect := func(err error, what, uid string) {
		if err == nil {
			return
		}
		err = pkgerrors.Wrapf(err, "error refreshing %s %s", what, uid)
		log.Warn().Err(err).Msg("ui row not refreshed")
		errs = append(errs, err)
	}

	for _, uid := range changes.ListsToPurge {
		collect(p.view.PurgeList(uid), "list", uid)
	}
	addedLists := make([]string, 0, len(changes.ListsToAdd))
	for _, list := range changes.ListsToAdd {
		collect(p.view.AddList(list), "list", list.UID)
		addedLists = append(addedLists, list.UID)
	}
	for _, list := range changes.ListsToRename {
		collect(p.view.RenameList(list), "list", list.UID)
	}
	for _, task := range changes.TasksToPurge {
		collect(p.view.PurgeTask(task), "task", task.UID)
	}

	// A new list shows its tasks on its own and an added parent brings its
	// children along.
	addedTasks := map[string]bool{}
	for _, task := range changes.TasksToAdd {
		if slices.Contains(addedLists, task.ListUID) || addedTasks[task.Parent] {
			continue
		}
		collect(p.view.AddTask(task), "task", task.UID)
		addedTasks[task.UID] = true
	}

	for _, task := range changes.TasksToUpdate {
		collect(p.view.UpdateTask(task), "task", task.UID)
	}
	if changes.UpdateTags {
		collect(p.view.RefreshTags(), "view", "tags")
	}
	if changes.UpdateTrash {
		collect(p.view.RefreshTrash(), "view", "trash")
	}
	return errors.Join(errs...)
}
