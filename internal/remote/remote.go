package remote

import (
	"context"
	"slices"
	"strings"

	ics "github.com/arran4/golang-ical"

	"tasksync/internal/codec"
)

// Credentials are the connection parameters of a remote calendar server.
type Credentials struct {
	URL      string
	Username string
	Secret   string
	// InsecureSkipVerify disables TLS certificate validation.
	InsecureSkipVerify bool
}

// Service opens sessions against a calendar server.
type Service interface {
	// Connect opens a session and requests the principal so that bad
	// credentials or an unreachable server fail here.
	Connect(ctx context.Context, creds Credentials) (Session, error)
}

type Session interface {
	// Calendars lists every calendar of the principal.
	Calendars(ctx context.Context) ([]Calendar, error)
	CreateCalendar(ctx context.Context, id, name string, components []string) error
}

type Calendar interface {
	ID() string
	Name() string
	SupportedComponents() []string

	// Todos returns all to-dos, completed ones included.
	Todos(ctx context.Context) ([]*Todo, error)
	// TodoByUID returns ErrTodoNotFound when no to-do has the uid.
	TodoByUID(ctx context.Context, uid string) (*Todo, error)
	CreateTodo(ctx context.Context, todo *Todo) error
	SaveTodo(ctx context.Context, todo *Todo) error
	DeleteTodo(ctx context.Context, todo *Todo) error

	SetDisplayName(ctx context.Context, name string) error
	Delete(ctx context.Context) error
}

// Todo is a to-do object stored on the server.
type Todo struct {
	Path      string
	ETag      string
	Component *ics.VTodo
}

func (t *Todo) UID() string {
	if t.Component == nil {
		return ""
	}
	return codec.UID(t.Component)
}

// TaskCalendars keeps the calendars able to hold to-dos.
func TaskCalendars(cals []Calendar) []Calendar {
	out := make([]Calendar, 0, len(cals))
	for _, c := range cals {
		if slices.ContainsFunc(c.SupportedComponents(), func(s string) bool {
			return strings.EqualFold(s, codec.ComponentTodo)
		}) {
			out = append(out, c)
		}
	}
	return out
}
