package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"tasksync/internal/entity"
)

var _ Store = (*SQLite)(nil)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	listSelect = `SELECT uid, name, synced, deleted FROM lists`
	taskSelect = `SELECT uid, list_uid, text, notes, completed, percent_complete, priority, color,
		tags, parent, start_date, due_date, created_at, changed_at, synced, deleted FROM tasks`
)

type SQLite struct {
	db *sqlx.DB
}

type listRow struct {
	UID     string `db:"uid"`
	Name    string `db:"name"`
	Synced  bool   `db:"synced"`
	Deleted bool   `db:"deleted"`
}

type taskRow struct {
	UID             string `db:"uid"`
	ListUID         string `db:"list_uid"`
	Text            string `db:"text"`
	Notes           string `db:"notes"`
	Completed       bool   `db:"completed"`
	PercentComplete int    `db:"percent_complete"`
	Priority        int    `db:"priority"`
	Color           string `db:"color"`
	Tags            string `db:"tags"`
	Parent          string `db:"parent"`
	StartDate       string `db:"start_date"`
	DueDate         string `db:"due_date"`
	CreatedAt       string `db:"created_at"`
	ChangedAt       string `db:"changed_at"`
	Synced          bool   `db:"synced"`
	Deleted         bool   `db:"deleted"`
}

// OpenSQLite migrates the database at path and opens it.
func OpenSQLite(path string) (*SQLite, error) {
	if err := migrateUp(path); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "error opening store")
	}
	db.SetMaxOpenConns(1)
	return &SQLite{db: db}, nil
}

func migrateUp(path string) (err error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "error reading migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite3://"+path)
	if err != nil {
		return errors.Wrap(err, "error creating migrator")
	}
	defer func() {
		serr, dberr := m.Close()
		if err == nil && serr != nil {
			err = errors.Wrap(serr, "error closing migration source")
		}
		if err == nil && dberr != nil {
			err = errors.Wrap(dberr, "error closing migration database")
		}
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "error applying migrations")
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Lists(ctx context.Context, includeDeleted bool) ([]entity.TaskList, error) {
	query := listSelect
	if !includeDeleted {
		query += " WHERE deleted = 0"
	}
	query += " ORDER BY rowid"
	var rows []listRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "error selecting lists")
	}
	out := make([]entity.TaskList, 0, len(rows))
	for _, r := range rows {
		out = append(out, entity.TaskList(r))
	}
	return out, nil
}

func (s *SQLite) List(ctx context.Context, uid string) (entity.TaskList, error) {
	var row listRow
	err := s.db.GetContext(ctx, &row, listSelect+" WHERE uid = ?", uid)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.TaskList{}, errors.Wrap(ErrNotFound, uid)
	}
	if err != nil {
		return entity.TaskList{}, errors.Wrap(err, "error selecting list")
	}
	return entity.TaskList(row), nil
}

func (s *SQLite) AddList(ctx context.Context, list entity.TaskList) (entity.TaskList, error) {
	if list.UID == "" {
		list.UID = uuid.NewString()
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO lists (uid, name, synced, deleted) VALUES (:uid, :name, :synced, :deleted)`,
		listRow(list))
	if err != nil {
		return entity.TaskList{}, errors.Wrap(err, "error inserting list")
	}
	log.Debug().Str("list", list.UID).Msg("list added")
	return list, nil
}

func (s *SQLite) UpdateList(ctx context.Context, uid string, fields entity.Fields) error {
	return s.update(ctx, "lists", listColumns, fields, "uid = ?", uid)
}

func (s *SQLite) DeleteList(ctx context.Context, uid string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "error starting transaction")
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE list_uid = ?`, uid); err != nil {
		return errors.Wrap(err, "error deleting list tasks")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE uid = ?`, uid); err != nil {
		return errors.Wrap(err, "error deleting list")
	}
	return errors.Wrap(tx.Commit(), "error committing list deletion")
}

func (s *SQLite) Tasks(ctx context.Context, filter TaskFilter) ([]entity.Task, error) {
	where := []string{}
	args := []any{}
	if filter.ListUID != "" {
		where = append(where, "list_uid = ?")
		args = append(args, filter.ListUID)
	}
	if !filter.IncludeDeleted {
		where = append(where, "deleted = 0")
	}
	query := taskSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid"

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "error selecting tasks")
	}
	out := make([]entity.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.task())
	}
	return out, nil
}

func (s *SQLite) Task(ctx context.Context, listUID, uid string) (entity.Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, taskSelect+" WHERE list_uid = ? AND uid = ?", listUID, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Task{}, errors.Wrap(ErrNotFound, uid)
	}
	if err != nil {
		return entity.Task{}, errors.Wrap(err, "error selecting task")
	}
	return row.task(), nil
}

func (s *SQLite) AddTask(ctx context.Context, task entity.Task) (entity.Task, error) {
	if task.UID == "" {
		task.UID = uuid.NewString()
	}
	row, err := newTaskRow(task)
	if err != nil {
		return entity.Task{}, err
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO tasks (uid, list_uid, text, notes, completed,
		percent_complete, priority, color, tags, parent, start_date, due_date, created_at, changed_at,
		synced, deleted) VALUES (:uid, :list_uid, :text, :notes, :completed, :percent_complete,
		:priority, :color, :tags, :parent, :start_date, :due_date, :created_at, :changed_at, :synced,
		:deleted)`, row)
	if err != nil {
		return entity.Task{}, errors.Wrap(err, "error inserting task")
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}
	return task, nil
}

func (s *SQLite) UpdateTask(ctx context.Context, listUID, uid string, fields entity.Fields) error {
	return s.update(ctx, "tasks", taskColumns, fields, "list_uid = ? AND uid = ?", listUID, uid)
}

func (s *SQLite) DeleteTask(ctx context.Context, listUID, uid string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE list_uid = ? AND uid = ?`, listUID, uid)
	return errors.Wrap(err, "error deleting task")
}

// update writes only the given columns. Names outside allowed are rejected
// before any SQL is built.
func (s *SQLite) update(ctx context.Context, table string, allowed map[string]bool, fields entity.Fields, where string, keys ...any) error {
	if len(fields) == 0 {
		return nil
	}
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+len(keys))
	for _, name := range fields.Names() {
		if !allowed[name] {
			return errors.New(fmt.Sprintf("unknown %s column %q", table, name))
		}
		v := fields[name]
		if tags, ok := v.([]string); ok {
			encoded, err := encodeTags(tags)
			if err != nil {
				return err
			}
			v = encoded
		}
		sets = append(sets, name+" = ?")
		args = append(args, v)
	}
	args = append(args, keys...)
	res, err := s.db.ExecContext(ctx, "UPDATE "+table+" SET "+strings.Join(sets, ", ")+" WHERE "+where, args...)
	if err != nil {
		return errors.Wrapf(err, "error updating %s", table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "error reading affected rows")
	}
	if n == 0 {
		return errors.Wrap(ErrNotFound, fmt.Sprint(keys...))
	}
	return nil
}

func newTaskRow(t entity.Task) (taskRow, error) {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return taskRow{}, err
	}
	return taskRow{
		UID:             t.UID,
		ListUID:         t.ListUID,
		Text:            t.Text,
		Notes:           t.Notes,
		Completed:       t.Completed,
		PercentComplete: t.PercentComplete,
		Priority:        t.Priority,
		Color:           t.Color,
		Tags:            tags,
		Parent:          t.Parent,
		StartDate:       t.StartDate,
		DueDate:         t.DueDate,
		CreatedAt:       t.CreatedAt,
		ChangedAt:       t.ChangedAt,
		Synced:          t.Synced,
		Deleted:         t.Deleted,
	}, nil
}

func (r taskRow) task() entity.Task {
	tags := []string{}
	if err := json.Unmarshal([]byte(r.Tags), &tags); err != nil {
		log.Warn().Err(err).Str("task", r.UID).Msg("task has malformed tags")
		tags = []string{}
	}
	return entity.Task{
		UID:             r.UID,
		ListUID:         r.ListUID,
		Text:            r.Text,
		Notes:           r.Notes,
		Completed:       r.Completed,
		PercentComplete: r.PercentComplete,
		Priority:        r.Priority,
		Color:           r.Color,
		Tags:            tags,
		Parent:          r.Parent,
		StartDate:       r.StartDate,
		DueDate:         r.DueDate,
		CreatedAt:       r.CreatedAt,
		ChangedAt:       r.ChangedAt,
		Synced:          r.Synced,
		Deleted:         r.Deleted,
	}
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", errors.Wrap(err, "error encoding tags")
	}
	return string(b), nil
}
