package cmd

import (
	"context"

	"github.com/rs/zerolog/log"

	"tasksync/internal/config"
	"tasksync/internal/remote"
)

// syncCmd runs a single sync against the configured server.
func syncCmd(ctx context.Context) error {
	k := config.Gist()
	runCtx, cancel := context.WithCancel(ctx)
	a, err := newApp(runCtx, k, remote.NewCalDAV(), config.NewCredentials(k))
	if err != nil {
		cancel()
		return err
	}
	defer a.close()
	defer cancel()

	changes, err := a.useCase.Sync(runCtx)
	if err != nil {
		return err
	}
	log.Info().
		Int("lists_added", len(changes.ListsToAdd)).
		Int("lists_purged", len(changes.ListsToPurge)).
		Int("tasks_added", len(changes.TasksToAdd)).
		Int("tasks_updated", len(changes.TasksToUpdate)).
		Int("tasks_purged", len(changes.TasksToPurge)).
		Msg("sync done")
	return nil
}
