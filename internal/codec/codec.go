// Package codec converts VTODO components to local task records and back.
// Every function here is pure: it only reads or mutates the values passed in.
package codec

import (
	"io"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"tasksync/internal/entity"
)

const (
	CalendarTimeFormat = "20060102T150405"
	ColorProperty      = "X-TASKSYNC-COLOR"
	StatusCompleted    = "COMPLETED"
	StatusNeedsAction  = "NEEDS-ACTION"
	ComponentTodo      = "VTODO"
	productID          = "tasksync"
	midnight           = "T000000"
)

const propColor = ics.ComponentProperty(ColorProperty)

// Decode builds a task from a VTODO. Absent properties decode to zero values.
func Decode(todo *ics.VTodo, listUID string) entity.Task {
	return entity.Task{
		UID:             UID(todo),
		ListUID:         listUID,
		Text:            ics.FromText(ValueOrEmpty(todo.GetProperty(ics.ComponentPropertySummary))),
		Notes:           ics.FromText(ValueOrEmpty(todo.GetProperty(ics.ComponentPropertyDescription))),
		Completed:       strings.EqualFold(ValueOrEmpty(todo.GetProperty(ics.ComponentPropertyStatus)), StatusCompleted),
		PercentComplete: clamp(intOrZero(todo.GetProperty(ics.ComponentPropertyPercentComplete)), 0, 100),
		Priority:        clamp(intOrZero(todo.GetProperty(ics.ComponentPropertyPriority)), 0, -1),
		Color:           ics.FromText(ValueOrEmpty(todo.GetProperty(propColor))),
		Tags:            categories(todo.Properties),
		Parent:          ics.FromText(ValueOrEmpty(todo.GetProperty(ics.ComponentPropertyRelatedTo))),
		StartDate:       dateTime(todo.GetProperty(ics.ComponentPropertyDtStart)),
		DueDate:         dateTime(todo.GetProperty(ics.ComponentPropertyDue)),
		CreatedAt:       stamp(todo.GetProperty(ics.ComponentPropertyDtstamp)),
		ChangedAt:       stamp(todo.GetProperty(ics.ComponentPropertyLastModified)),
	}
}

// Encode writes every syncable attribute of task except completion onto
// todo. Empty dates, tags and parent remove the property.
func Encode(task entity.Task, todo *ics.VTodo) {
	setProperty(todo, ics.ComponentPropertySummary, toText(task.Text))
	setOrRemove(todo, ics.ComponentPropertyDue, task.DueDate)
	setOrRemove(todo, ics.ComponentPropertyDtStart, task.StartDate)
	setOrRemove(todo, ics.ComponentPropertyDtstamp, task.CreatedAt)
	setOrRemove(todo, ics.ComponentPropertyLastModified, task.ChangedAt)
	setProperty(todo, ics.ComponentPropertyPercentComplete, strconv.Itoa(clamp(task.PercentComplete, 0, 100)))
	setProperty(todo, ics.ComponentPropertyDescription, toText(task.Notes))
	setProperty(todo, ics.ComponentPropertyPriority, strconv.Itoa(clamp(task.Priority, 0, -1)))
	setOrRemove(todo, ics.ComponentPropertyCategories, joinTags(task.Tags))
	setOrRemove(todo, ics.ComponentPropertyRelatedTo, toText(task.Parent))
	setOrRemove(todo, propColor, toText(task.Color))
}

// NewTodo builds a fresh VTODO for task. DTSTAMP falls back to now when the
// task carries no creation time.
func NewTodo(task entity.Task, now time.Time) *ics.VTodo {
	todo := &ics.VTodo{}
	setProperty(todo, ics.ComponentPropertyUniqueId, task.UID)
	Uncomplete(todo)
	Encode(task, todo)
	if task.CreatedAt == "" {
		setProperty(todo, ics.ComponentPropertyDtstamp, now.UTC().Format(CalendarTimeFormat))
	}
	if task.Completed {
		Complete(todo, now)
	}
	return todo
}

// Complete marks todo as completed at the given time.
func Complete(todo *ics.VTodo, at time.Time) {
	setProperty(todo, ics.ComponentPropertyStatus, StatusCompleted)
	setProperty(todo, ics.ComponentPropertyCompleted, at.UTC().Format(CalendarTimeFormat)+"Z")
}

// Uncomplete clears completion state.
func Uncomplete(todo *ics.VTodo) {
	setProperty(todo, ics.ComponentPropertyStatus, StatusNeedsAction)
	removeProperty(todo, ics.ComponentPropertyCompleted)
}

func UID(todo *ics.VTodo) string {
	return ValueOrEmpty(todo.GetProperty(ics.ComponentPropertyUniqueId))
}

// Todos returns the VTODO components of a parsed calendar object.
func Todos(cal *ics.Calendar) []*ics.VTodo {
	out := []*ics.VTodo{}
	for _, c := range cal.Components {
		if todo, ok := c.(*ics.VTodo); ok {
			out = append(out, todo)
		}
	}
	return out
}

// Parse reads a calendar object and returns its to-dos.
func Parse(r io.Reader) ([]*ics.VTodo, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, err
	}
	return Todos(cal), nil
}

// Serialize wraps todo into a calendar object ready to be stored remotely.
func Serialize(todo *ics.VTodo) string {
	cal := ics.NewCalendarFor(productID)
	cal.Components = append(cal.Components, todo)
	return cal.Serialize()
}

// Clone deep-copies the properties of todo.
func Clone(todo *ics.VTodo) *ics.VTodo {
	out := &ics.VTodo{}
	out.Components = append(out.Components, todo.Components...)
	for _, p := range todo.Properties {
		params := make(map[string][]string, len(p.ICalParameters))
		for k, v := range p.ICalParameters {
			params[k] = append([]string(nil), v...)
		}
		p.ICalParameters = params
		out.Properties = append(out.Properties, p)
	}
	return out
}

func ValueOrEmpty(prop *ics.IANAProperty) string {
	if prop == nil {
		return ""
	}
	return prop.Value
}

func intOrZero(prop *ics.IANAProperty) int {
	n, err := strconv.Atoi(strings.TrimSpace(ValueOrEmpty(prop)))
	if err != nil {
		return 0
	}
	return n
}

// clamp bounds n to [lo, hi]; a negative hi means no upper bound.
func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if hi >= 0 && n > hi {
		return hi
	}
	return n
}

func dateTime(prop *ics.IANAProperty) string {
	v := strings.TrimSuffix(ValueOrEmpty(prop), "Z")
	if v != "" && !strings.Contains(v, "T") {
		v += midnight
	}
	return v
}

func stamp(prop *ics.IANAProperty) string {
	return strings.TrimSuffix(ValueOrEmpty(prop), "Z")
}

func categories(props []ics.IANAProperty) []string {
	tags := []string{}
	for _, prop := range props {
		if prop.IANAToken != string(ics.ComponentPropertyCategories) {
			continue
		}
		for _, raw := range splitList(prop.Value) {
			if tag := strings.TrimSpace(ics.FromText(raw)); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

func joinTags(tags []string) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			parts = append(parts, toText(t))
		}
	}
	return strings.Join(parts, ",")
}

func setOrRemove(todo *ics.VTodo, name ics.ComponentProperty, value string) {
	if value == "" {
		removeProperty(todo, name)
		return
	}
	setProperty(todo, name, value)
}

func setProperty(todo *ics.VTodo, name ics.ComponentProperty, value string) {
	removeProperty(todo, name)
	todo.Properties = append(todo.Properties, ics.IANAProperty{
		BaseProperty: ics.BaseProperty{
			IANAToken:      string(name),
			ICalParameters: map[string][]string{},
			Value:          value,
		},
	})
}

func removeProperty(todo *ics.VTodo, name ics.ComponentProperty) {
	kept := todo.Properties[:0]
	for _, p := range todo.Properties {
		if p.IANAToken != string(name) {
			kept = append(kept, p)
		}
	}
	todo.Properties = kept
}
