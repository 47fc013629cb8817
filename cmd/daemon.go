package cmd

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"tasksync/internal/config"
	"tasksync/internal/httpapi"
	"tasksync/internal/remote"
)

// daemonCmd syncs on the configured schedule until interrupted and serves the
// control endpoints when http.addr is set.
func daemonCmd(ctx context.Context) error {
	k := config.Gist()
	a, err := newApp(ctx, k, remote.NewCalDAV(), config.NewCredentials(k))
	if err != nil {
		return err
	}
	defer a.close()

	cron := k.String(config.SYNC_CRON)
	log.Info().Str("cron", cron).Msg("scheduling sync")
	a.useCase.TaskSync(cron)

	if addr := k.String(config.HTTP_ADDR); addr != "" {
		if err := httpapi.Serve(ctx, addr, httpapi.NewRouter(a.useCase)); err != nil {
			return errors.Wrap(err, "error running control endpoint")
		}
		return nil
	}
	<-ctx.Done()
	return nil
}
