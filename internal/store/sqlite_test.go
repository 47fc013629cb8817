package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/entity"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenTwiceKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = s.AddList(context.Background(), entity.TaskList{UID: "L1", Name: "Inbox"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	lists, err := s.Lists(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []entity.TaskList{{UID: "L1", Name: "Inbox"}}, lists)
}

func TestLists(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.AddList(ctx, entity.TaskList{UID: "L1", Name: "Inbox", Synced: true})
	require.NoError(t, err)
	_, err = s.AddList(ctx, entity.TaskList{UID: "L2", Name: "Old", Deleted: true})
	require.NoError(t, err)
	generated, err := s.AddList(ctx, entity.TaskList{Name: "New"})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.UID)

	all, err := s.Lists(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	live, err := s.Lists(ctx, false)
	require.NoError(t, err)
	assert.Len(t, live, 2)

	require.NoError(t, s.UpdateList(ctx, "L1", entity.Fields{entity.FieldName: "Work", entity.FieldSynced: false}))
	l1, err := s.List(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, entity.TaskList{UID: "L1", Name: "Work"}, l1)

	err = s.UpdateList(ctx, "L1", entity.Fields{"text": "x"})
	assert.Error(t, err)

	err = s.UpdateList(ctx, "missing", entity.Fields{entity.FieldName: "x"})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.List(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTasks(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, err := s.AddList(ctx, entity.TaskList{UID: "L1", Name: "Inbox"})
	require.NoError(t, err)
	_, err = s.AddList(ctx, entity.TaskList{UID: "L2", Name: "Work"})
	require.NoError(t, err)

	task := entity.Task{
		UID:             "T1",
		ListUID:         "L1",
		Text:            "milk",
		Notes:           "2%",
		PercentComplete: 50,
		Priority:        1,
		Tags:            []string{"home", "food"},
		DueDate:         "20240101T000000",
		Synced:          true,
	}
	_, err = s.AddTask(ctx, task)
	require.NoError(t, err)
	_, err = s.AddTask(ctx, entity.Task{UID: "T2", ListUID: "L1", Deleted: true})
	require.NoError(t, err)
	_, err = s.AddTask(ctx, entity.Task{UID: "T3", ListUID: "L2"})
	require.NoError(t, err)

	got, err := s.Task(ctx, "L1", "T1")
	require.NoError(t, err)
	assert.Equal(t, task, got)

	l1, err := s.Tasks(ctx, TaskFilter{ListUID: "L1"})
	require.NoError(t, err)
	assert.Len(t, l1, 1)

	l1All, err := s.Tasks(ctx, TaskFilter{ListUID: "L1", IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, l1All, 2)

	all, err := s.Tasks(ctx, TaskFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.UpdateTask(ctx, "L1", "T1", entity.Fields{
		entity.FieldPriority: 9,
		entity.FieldTags:     []string{"x"},
	}))
	got, err = s.Task(ctx, "L1", "T1")
	require.NoError(t, err)
	assert.Equal(t, 9, got.Priority)
	assert.Equal(t, []string{"x"}, got.Tags)
	assert.Equal(t, "2%", got.Notes)

	// scoped by list
	err = s.UpdateTask(ctx, "L2", "T1", entity.Fields{entity.FieldPriority: 1})
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.DeleteTask(ctx, "L1", "T1"))
	_, err = s.Task(ctx, "L1", "T1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteListPurgesTasks(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, err := s.AddList(ctx, entity.TaskList{UID: "L1"})
	require.NoError(t, err)
	_, err = s.AddTask(ctx, entity.Task{UID: "T1", ListUID: "L1"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteList(ctx, "L1"))

	tasks, err := s.Tasks(ctx, TaskFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Empty(t, tasks)
	lists, err := s.Lists(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, lists)
}
