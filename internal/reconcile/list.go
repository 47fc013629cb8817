package reconcile

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"tasksync/internal/codec"
	"tasksync/internal/entity"
	"tasksync/internal/remote"
)

// Lists reconciles the local task lists with the task capable calendars of
// session. Only a failed read of the local lists is returned, everything else
// is recorded per list and the run goes on.
func (r *Run) Lists(ctx context.Context, session remote.Session, cals []remote.Calendar) error {
	locals, err := r.store.Lists(ctx, true)
	if err != nil {
		return errors.Wrap(err, "error reading local lists")
	}
	known := make(map[string]bool, len(locals))
	for _, l := range locals {
		known[l.UID] = true
	}

	byID := make(map[string]remote.Calendar, len(cals))
	for _, cal := range cals {
		byID[cal.ID()] = cal
		if known[cal.ID()] {
			continue
		}
		r.discover(ctx, cal)
	}

	for _, list := range locals {
		cal, inRemote := byID[list.UID]
		if inRemote {
			list = r.resolveName(ctx, cal, list)
		}
		switch {
		case !inRemote && list.Synced && !list.Deleted:
			r.deleteLocalList(ctx, list, ListDeleteLocal)
		case !inRemote && list.Synced && list.Deleted:
			r.deleteLocalList(ctx, list, ListPurge)
		case inRemote && list.Synced && list.Deleted:
			r.deleteRemoteList(ctx, cal, list)
		case !inRemote && !list.Synced && !list.Deleted:
			r.createRemoteList(ctx, session, list)
		}
	}
	return nil
}

func (r *Run) discover(ctx context.Context, cal remote.Calendar) {
	list, err := r.store.AddList(ctx, entity.TaskList{UID: cal.ID(), Name: cal.Name(), Synced: true})
	if err != nil {
		r.fail(ErrLocalWriteFailed, err).Str("list", cal.ID()).Msg("can't add discovered list")
		return
	}
	log.Info().Str("list", list.UID).Str("name", list.Name).Msg("new remote list")
	r.changes.ListsToAdd = append(r.changes.ListsToAdd, list)
	r.count(ListDiscover)
}

// resolveName settles a name mismatch and returns the list as stored after
// the step. A local rename is pushed and stays unsynced until a later run
// sees both names equal and confirms it.
func (r *Run) resolveName(ctx context.Context, cal remote.Calendar, list entity.TaskList) entity.TaskList {
	name := cal.Name()
	switch {
	case name == list.Name && !list.Synced:
		if err := r.store.UpdateList(ctx, list.UID, entity.Fields{entity.FieldSynced: true}); err != nil {
			r.fail(ErrLocalWriteFailed, err).Str("list", list.UID).Msg("can't confirm list")
			return list
		}
		list.Synced = true
		r.count(ListConfirm)
	case name != list.Name && !list.Synced:
		log.Debug().Str("list", list.UID).Str("name", list.Name).Msg("rename remote list")
		if err := cal.SetDisplayName(ctx, list.Name); err != nil {
			r.fail(ErrRemoteWriteFailed, err).Str("list", list.UID).Msg("can't rename remote list")
			return list
		}
		if err := r.store.UpdateList(ctx, list.UID, entity.Fields{entity.FieldSynced: false}); err != nil {
			r.fail(ErrLocalWriteFailed, err).Str("list", list.UID).Msg("can't update list")
		}
		r.count(ListRenameRemote)
	case name != list.Name:
		log.Debug().Str("list", list.UID).Str("name", name).Msg("rename local list")
		fields := entity.Fields{entity.FieldName: name, entity.FieldSynced: true}
		if err := r.store.UpdateList(ctx, list.UID, fields); err != nil {
			r.fail(ErrLocalWriteFailed, err).Str("list", list.UID).Msg("can't rename local list")
			return list
		}
		list.Name = name
		list.Synced = true
		r.changes.ListsToRename = append(r.changes.ListsToRename, list)
		r.changes.UpdateTrash = true
		r.count(ListRenameLocal)
	}
	return list
}

func (r *Run) deleteLocalList(ctx context.Context, list entity.TaskList, action Action) {
	log.Debug().Str("list", list.UID).Msg("delete local list")
	if err := r.store.DeleteList(ctx, list.UID); err != nil {
		r.fail(ErrLocalWriteFailed, err).Str("list", list.UID).Msg("can't delete local list")
		return
	}
	if action == ListDeleteLocal {
		r.changes.ListsToPurge = append(r.changes.ListsToPurge, list.UID)
		r.changes.UpdateTags = true
	}
	r.changes.UpdateTrash = true
	r.count(action)
}

func (r *Run) deleteRemoteList(ctx context.Context, cal remote.Calendar, list entity.TaskList) {
	log.Debug().Str("list", list.UID).Msg("delete remote list")
	if err := cal.Delete(ctx); err != nil {
		r.fail(ErrRemoteDeleteFailed, err).Str("list", list.UID).Msg("can't delete remote list")
		return
	}
	r.count(ListDeleteRemote)
	if err := r.store.DeleteList(ctx, list.UID); err != nil {
		r.fail(ErrLocalWriteFailed, err).Str("list", list.UID).Msg("can't purge deleted list")
		return
	}
	r.changes.UpdateTrash = true
}

// createRemoteList marks the list synced even when the server refused it.
// The list then looks deleted remotely on the next run.
func (r *Run) createRemoteList(ctx context.Context, session remote.Session, list entity.TaskList) {
	log.Debug().Str("list", list.UID).Str("name", list.Name).Msg("create remote list")
	if err := session.CreateCalendar(ctx, list.UID, list.Name, []string{codec.ComponentTodo}); err != nil {
		r.fail(ErrRemoteWriteFailed, err).Str("list", list.UID).Msg("can't create remote list")
	} else {
		r.count(ListCreateRemote)
	}
	if err := r.store.UpdateList(ctx, list.UID, entity.Fields{entity.FieldSynced: true}); err != nil {
		r.fail(ErrLocalWriteFailed, err).Str("list", list.UID).Msg("can't update list")
	}
}
