package remote

import "github.com/pkg/errors"

var (
	ErrTodoNotFound     = errors.New("todo not found")
	ErrCalendarNotFound = errors.New("calendar not found")
	ErrCalendarExists   = errors.New("calendar already exists")
)
