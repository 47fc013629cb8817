package cmd

import (
	"context"

	"github.com/knadh/koanf/v2"

	"tasksync/internal/config"
	"tasksync/internal/domain"
	"tasksync/internal/remote"
	"tasksync/internal/session"
	"tasksync/internal/store"
	"tasksync/internal/ui"
)

const journalPruneCron = "0 * * * *"

// app holds the collaborators shared by the commands.
type app struct {
	store      *store.SQLite
	sessions   *session.Manager
	dispatcher *ui.Dispatcher
	journal    *ui.Journal
	useCase    *domain.UseCase
}

func newApp(ctx context.Context, k *koanf.Koanf, service remote.Service, creds session.Credentials) (*app, error) {
	st, err := store.OpenSQLite(k.String(config.STORE_PATH))
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(service, creds, ui.LogToaster{})
	sessions.Provider = k.String(config.CALDAV_PROVIDER)
	sessions.Silent = k.Bool(config.SYNC_SILENT)
	sessions.Backoff = k.Duration(config.SYNC_BACKOFF)

	a := &app{store: st, sessions: sessions}
	var sink ui.Sink = ui.NewPresenter(ui.LogView{})
	if path := k.String(config.JOURNAL_PATH); path != "" {
		a.journal = ui.NewJournal(ctx, path, sink)
		a.journal.PruneEvery(journalPruneCron)
		sink = a.journal
	}
	a.dispatcher = ui.NewDispatcher(sink)
	a.useCase = domain.New(ctx, sessions, st, a.dispatcher)
	return a, nil
}

// close waits for pending refreshes and background tasks before closing the
// store. The context given to newApp has to be done first.
func (a *app) close() {
	a.useCase.Stop()
	a.dispatcher.Wait()
	if a.journal != nil {
		a.journal.Stop()
	}
	_ = a.store.Close()
}
