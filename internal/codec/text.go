package codec

import (
	ics "github.com/arran4/golang-ical"

	"tasksync/internal/entity"
)

// toText escapes a TEXT value with line breaks folded to LF.
func toText(s string) string {
	return ics.ToText(entity.NormalizeNewlines(s))
}

// splitList splits a comma separated value, leaving escaped commas alone.
func splitList(s string) []string {
	var (
		out     []string
		start   int
		escaped bool
	)
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == ',':
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
