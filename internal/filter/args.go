package filter

import "strconv"

// Args allocates positional placeholders for a query being assembled.
type Args struct {
	values []any
}

// Add appends v and returns its placeholder ("$n").
func (a *Args) Add(v any) string {
	a.values = append(a.values, v)
	return "$" + strconv.Itoa(len(a.values))
}

func (a *Args) Values() []any { return a.values }
