package remote

import (
	"context"
	"slices"
	"sync"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"tasksync/internal/codec"
	"tasksync/internal/entity"
)

var (
	_ Service  = (*Memory)(nil)
	_ Session  = (*Memory)(nil)
	_ Calendar = (*memCalendar)(nil)
)

// Operation names accepted by Memory.FailOn.
const (
	OpConnect        = "connect"
	OpCalendars      = "calendars"
	OpCreateCalendar = "create-calendar"
	OpDeleteCalendar = "delete-calendar"
	OpRename         = "rename"
	OpTodos          = "todos"
	OpCreateTodo     = "create-todo"
	OpSaveTodo       = "save-todo"
	OpDeleteTodo     = "delete-todo"
)

// Memory is an in-process calendar server. It backs the noop command and
// the engine tests; every stored to-do is a private copy.
type Memory struct {
	mu        sync.Mutex
	order     []string
	calendars map[string]*memCalendar
	failures  map[string]error
	calls     []string

	// LastCredentials holds the credentials of the latest Connect call.
	LastCredentials Credentials
}

type memCalendar struct {
	m          *Memory
	id         string
	name       string
	components []string
	todos      []*ics.VTodo
}

func NewMemory() *Memory {
	return &Memory{
		calendars: make(map[string]*memCalendar),
		failures:  make(map[string]error),
	}
}

// FailOn makes the operation op on key fail with err until cleared with a
// nil err. Key is a calendar id or a to-do uid, empty for connect and
// calendars.
func (m *Memory) FailOn(op, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op+":"+key)
		return
	}
	m.failures[op+":"+key] = err
}

// Calls returns the write operations performed so far as "op:key".
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// AddCalendar registers a calendar. Components default to VTODO.
func (m *Memory) AddCalendar(id, name string, components ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalendar(id, name, components)
}

// PutTask stores task as a to-do of calendar id.
func (m *Memory) PutTask(id string, task entity.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cal, ok := m.calendars[id]
	if !ok {
		return
	}
	cal.put(codec.NewTodo(task, time.Now()))
}

// Task returns the decoded to-do uid of calendar id.
func (m *Memory) Task(id, uid string) (entity.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cal, ok := m.calendars[id]
	if !ok {
		return entity.Task{}, false
	}
	if i := cal.index(uid); i >= 0 {
		return codec.Decode(cal.todos[i], id), true
	}
	return entity.Task{}, false
}

// CalendarName returns the display name of calendar id.
func (m *Memory) CalendarName(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cal, ok := m.calendars[id]
	if !ok {
		return "", false
	}
	return cal.name, true
}

func (m *Memory) Connect(_ context.Context, creds Credentials) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastCredentials = creds
	if err := m.fail(OpConnect, ""); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Memory) Calendars(_ context.Context) ([]Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(OpCalendars, ""); err != nil {
		return nil, err
	}
	out := make([]Calendar, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.calendars[id])
	}
	return out, nil
}

func (m *Memory) CreateCalendar(_ context.Context, id, name string, components []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(OpCreateCalendar, id); err != nil {
		return err
	}
	if _, ok := m.calendars[id]; ok {
		return errors.Wrap(ErrCalendarExists, id)
	}
	m.record(OpCreateCalendar, id)
	m.addCalendar(id, name, components)
	return nil
}

func (m *Memory) addCalendar(id, name string, components []string) {
	if len(components) == 0 {
		components = []string{codec.ComponentTodo}
	}
	if _, ok := m.calendars[id]; !ok {
		m.order = append(m.order, id)
	}
	m.calendars[id] = &memCalendar{m: m, id: id, name: name, components: slices.Clone(components)}
}

func (m *Memory) fail(op, key string) error {
	return m.failures[op+":"+key]
}

func (m *Memory) record(op, key string) {
	log.Debug().Str("op", op).Str("key", key).Msg("memory remote write")
	m.calls = append(m.calls, op+":"+key)
}

func (c *memCalendar) ID() string {
	return c.id
}

func (c *memCalendar) Name() string {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.name
}

func (c *memCalendar) SupportedComponents() []string {
	return slices.Clone(c.components)
}

func (c *memCalendar) Todos(_ context.Context) ([]*Todo, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.check(OpTodos, c.id); err != nil {
		return nil, err
	}
	out := make([]*Todo, 0, len(c.todos))
	for _, todo := range c.todos {
		out = append(out, &Todo{Path: c.path(codec.UID(todo)), Component: codec.Clone(todo)})
	}
	return out, nil
}

func (c *memCalendar) TodoByUID(_ context.Context, uid string) (*Todo, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.check(OpTodos, c.id); err != nil {
		return nil, err
	}
	i := c.index(uid)
	if i < 0 {
		return nil, errors.Wrap(ErrTodoNotFound, uid)
	}
	return &Todo{Path: c.path(uid), Component: codec.Clone(c.todos[i])}, nil
}

func (c *memCalendar) CreateTodo(_ context.Context, todo *Todo) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	uid := todo.UID()
	if err := c.check(OpCreateTodo, uid); err != nil {
		return err
	}
	c.m.record(OpCreateTodo, uid)
	todo.Path = c.path(uid)
	c.put(codec.Clone(todo.Component))
	return nil
}

func (c *memCalendar) SaveTodo(_ context.Context, todo *Todo) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	uid := todo.UID()
	if err := c.check(OpSaveTodo, uid); err != nil {
		return err
	}
	if c.index(uid) < 0 {
		return errors.Wrap(ErrTodoNotFound, uid)
	}
	c.m.record(OpSaveTodo, uid)
	c.put(codec.Clone(todo.Component))
	return nil
}

func (c *memCalendar) DeleteTodo(_ context.Context, todo *Todo) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	uid := todo.UID()
	if err := c.check(OpDeleteTodo, uid); err != nil {
		return err
	}
	i := c.index(uid)
	if i < 0 {
		return errors.Wrap(ErrTodoNotFound, uid)
	}
	c.m.record(OpDeleteTodo, uid)
	c.todos = slices.Delete(c.todos, i, i+1)
	return nil
}

func (c *memCalendar) SetDisplayName(_ context.Context, name string) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.check(OpRename, c.id); err != nil {
		return err
	}
	c.m.record(OpRename, c.id)
	c.name = name
	return nil
}

func (c *memCalendar) Delete(_ context.Context) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.check(OpDeleteCalendar, c.id); err != nil {
		return err
	}
	c.m.record(OpDeleteCalendar, c.id)
	delete(c.m.calendars, c.id)
	c.m.order = slices.DeleteFunc(c.m.order, func(id string) bool { return id == c.id })
	return nil
}

// check returns the injected failure for op, or ErrCalendarNotFound once the
// calendar has been deleted.
func (c *memCalendar) check(op, key string) error {
	if cur, ok := c.m.calendars[c.id]; !ok || cur != c {
		return errors.Wrap(ErrCalendarNotFound, c.id)
	}
	return c.m.fail(op, key)
}

func (c *memCalendar) index(uid string) int {
	return slices.IndexFunc(c.todos, func(t *ics.VTodo) bool { return codec.UID(t) == uid })
}

func (c *memCalendar) put(todo *ics.VTodo) {
	if i := c.index(codec.UID(todo)); i >= 0 {
		c.todos[i] = todo
		return
	}
	c.todos = append(c.todos, todo)
}

func (c *memCalendar) path(uid string) string {
	return "/" + c.id + "/" + uid + ".ics"
}
