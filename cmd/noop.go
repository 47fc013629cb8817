package cmd

import (
	"context"

	"tasksync/internal/config"
	"tasksync/internal/entity"
	"tasksync/internal/remote"
)

type noopCredentials struct{}

func (noopCredentials) URL() string          { return "memory://noop" }
func (noopCredentials) Username() string     { return "noop" }
func (noopCredentials) Secret(string) string { return "noop" }

// noopCmd runs the scheduled sync against an in-memory server holding one
// demo list.
func noopCmd(ctx context.Context) error {
	srv := remote.NewMemory()
	srv.AddCalendar("noop-inbox", "Inbox")
	srv.PutTask("noop-inbox", entity.Task{UID: "noop-welcome", Text: "Welcome to tasksync", Tags: []string{"demo"}})

	k := config.Gist()
	a, err := newApp(ctx, k, srv, noopCredentials{})
	if err != nil {
		return err
	}
	defer a.close()

	a.useCase.TaskSync(k.String(config.SYNC_CRON))
	<-ctx.Done()
	return nil
}
