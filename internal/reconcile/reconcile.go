// Package reconcile merges local task lists and tasks with their remote
// calendars and to-dos. A Run lives for exactly one sync and collects the
// UI changes it caused.
package reconcile

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tasksync/internal/entity"
	"tasksync/internal/store"
)

var (
	// ErrRemoteWriteFailed marks a create or update the server rejected.
	ErrRemoteWriteFailed = errors.New("remote write failed")
	// ErrRemoteDeleteFailed marks a delete the server rejected. The local
	// tombstone is kept for the next run.
	ErrRemoteDeleteFailed = errors.New("remote delete failed")
	// ErrLocalWriteFailed marks a store mutation that failed for one record.
	ErrLocalWriteFailed = errors.New("local write failed")
)

type Action string

const (
	ListDiscover     Action = "list_discover"
	ListRenameRemote Action = "list_rename_remote"
	ListRenameLocal  Action = "list_rename_local"
	ListConfirm      Action = "list_confirm"
	ListDeleteLocal  Action = "list_delete_local"
	ListDeleteRemote Action = "list_delete_remote"
	ListPurge        Action = "list_purge"
	ListCreateRemote Action = "list_create_remote"

	TaskPull         Action = "task_pull"
	TaskPush         Action = "task_push"
	TaskCreateRemote Action = "task_create_remote"
	TaskDeleteRemote Action = "task_delete_remote"
	TaskDeleteLocal  Action = "task_delete_local"
	TaskPullCreate   Action = "task_pull_create"
)

type Run struct {
	store   store.Store
	changes *entity.ChangeSet
	now     func() time.Time

	// Actions counts the reconciliation actions applied during the run.
	Actions map[Action]int
	// Errors holds the per-item failures. None of them stopped the run.
	Errors []error
}

func NewRun(st store.Store, changes *entity.ChangeSet) *Run {
	return &Run{
		store:   st,
		changes: changes,
		now:     time.Now,
		Actions: make(map[Action]int),
	}
}

// WithClock replaces the time source used for DTSTAMP and COMPLETED.
func (r *Run) WithClock(now func() time.Time) *Run {
	r.now = now
	return r
}

func (r *Run) Changes() *entity.ChangeSet {
	return r.changes
}

func (r *Run) count(a Action) {
	r.Actions[a]++
}

// fail records a per-item failure and logs it under the given sentinel.
func (r *Run) fail(kind, err error) *zerolog.Event {
	wrapped := errors.Wrap(kind, err.Error())
	r.Errors = append(r.Errors, wrapped)
	return log.Error().Err(wrapped)
}
