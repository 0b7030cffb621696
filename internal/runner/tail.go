package runner

import "strings"

// Tail keeps the last N lines of child output for diagnostic reporting when a
// job fails. Not safe for concurrent use; the consuming goroutine owns it.
type Tail struct {
	limit int
	lines []string
	start int
	full  bool
}

const DefaultTailLimit = 200

func NewTail(limit int) *Tail {
	if limit <= 0 {
		limit = DefaultTailLimit
	}
	return &Tail{limit: limit, lines: make([]string, 0, limit)}
}

// Add appends a line, evicting the oldest once the limit is reached.
func (t *Tail) Add(line string) {
	if len(t.lines) < t.limit {
		t.lines = append(t.lines, line)
		return
	}
	t.lines[t.start] = line
	t.start = (t.start + 1) % t.limit
	t.full = true
}

// Len reports how many lines are currently retained.
func (t *Tail) Len() int {
	return len(t.lines)
}

// String joins the retained lines oldest-first.
func (t *Tail) String() string {
	if !t.full {
		return strings.Join(t.lines, "\n")
	}
	var b strings.Builder
	for i := 0; i < t.limit; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.lines[(t.start+i)%t.limit])
	}
	return b.String()
}
