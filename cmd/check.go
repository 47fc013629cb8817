package cmd

import (
	"context"

	"github.com/rs/zerolog/log"

	"tasksync/internal/config"
	"tasksync/internal/remote"
	"tasksync/internal/session"
	"tasksync/internal/ui"
)

// checkCmd tests the configured credentials without touching the store.
func checkCmd(ctx context.Context) error {
	k := config.Gist()
	m := session.NewManager(remote.NewCalDAV(), config.NewCredentials(k), ui.LogToaster{})
	m.Provider = k.String(config.CALDAV_PROVIDER)
	m.Backoff = k.Duration(config.SYNC_BACKOFF)
	m.Silent = true

	_, cals, err := m.Establish(ctx)
	if err != nil {
		return err
	}
	for _, cal := range cals {
		log.Info().Str("list", cal.ID()).Str("name", cal.Name()).Msg("task list")
	}
	log.Info().Int("lists", len(cals)).Msg("connection ok")
	return nil
}
