package ui

import (
	"github.com/rs/zerolog/log"

	"tasksync/internal/entity"
)

var (
	_ View    = LogView{}
	_ Toaster = LogToaster{}
)

// LogView renders refreshes as log lines for headless runs.
type LogView struct{}

func (LogView) PurgeList(uid string) error {
	log.Info().Str("list", uid).Msg("list removed")
	return nil
}

func (LogView) AddList(list entity.TaskList) error {
	log.Info().Str("list", list.UID).Str("name", list.Name).Msg("list added")
	return nil
}

func (LogView) RenameList(list entity.TaskList) error {
	log.Info().Str("list", list.UID).Str("name", list.Name).Msg("list renamed")
	return nil
}

func (LogView) PurgeTask(task entity.Task) error {
	log.Info().Str("list", task.ListUID).Str("task", task.UID).Msg("task removed")
	return nil
}

func (LogView) AddTask(task entity.Task) error {
	log.Info().Str("list", task.ListUID).Str("task", task.UID).Str("text", task.Text).Msg("task added")
	return nil
}

func (LogView) UpdateTask(task entity.Task) error {
	log.Info().Str("list", task.ListUID).Str("task", task.UID).Str("text", task.Text).Msg("task updated")
	return nil
}

func (LogView) RefreshTags() error {
	log.Debug().Msg("tags refreshed")
	return nil
}

func (LogView) RefreshTrash() error {
	log.Debug().Msg("trash refreshed")
	return nil
}

// LogToaster writes toasts to the log.
type LogToaster struct{}

func (LogToaster) Toast(msg string) {
	log.Warn().Str("toast", msg).Send()
}
