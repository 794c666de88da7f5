// Package resolver decides which line schema applies to the next line of a
// stream. A Resolver carries the per-session ordinal cursor and occurrence
// counters; it is not safe for concurrent use.
package resolver

import "flatcodec/internal/schema"

// Result is the outcome of resolving one line.
type Result int

const (
	Success Result = iota
	NotMatching
	EndOfStream
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case NotMatching:
		return "not matching"
	}
	return "end of stream"
}

// ControlReader returns the text of the control cell of l in the pending
// line. ok is false when the line is too short to hold it.
type ControlReader func(l *schema.LineSchema) (text string, ok bool)

// Resolver selects line schemas in declaration order.
type Resolver struct {
	schema *schema.Schema
	counts []int
	cursor int
}

// New returns a resolver positioned at the start of a stream.
func New(s *schema.Schema) *Resolver {
	return &Resolver{schema: s, counts: make([]int, len(s.Lines))}
}

// Reset rewinds the resolver for a new stream.
func (r *Resolver) Reset() {
	clear(r.counts)
	r.cursor = 0
}

// Resolve picks the line schema for the pending line. Lines with a
// condition match on their control cell wherever they are declared. Lines
// without one match by position: the first one at or after the cursor
// with occurrences left wins and becomes the new cursor.
func (r *Resolver) Resolve(control ControlReader) (*schema.LineSchema, Result) {
	if r.Exhausted() {
		return nil, EndOfStream
	}
	for i, l := range r.schema.Lines {
		if r.counts[i] >= l.Occurs {
			continue
		}
		switch {
		case l.Condition != nil:
			text, ok := control(l)
			if !ok || !l.Condition.Satisfied(text) {
				continue
			}
		case i < r.cursor:
			continue
		default:
			r.cursor = i
		}
		r.counts[i]++
		return l, Success
	}
	return nil, NotMatching
}

// Exhausted reports whether no line schema can match any more lines.
func (r *Resolver) Exhausted() bool {
	for i, l := range r.schema.Lines {
		if r.counts[i] >= l.Occurs {
			continue
		}
		if l.Condition != nil || i >= r.cursor {
			return false
		}
	}
	return true
}

// Release gives back the occurrence taken by the last successful Resolve
// of l, for lines that turn out not to be records such as header rows.
func (r *Resolver) Release(l *schema.LineSchema) {
	for i, candidate := range r.schema.Lines {
		if candidate == l && r.counts[i] > 0 {
			r.counts[i]--
			return
		}
	}
}

// Count returns how many lines have matched the line schema at index i.
func (r *Resolver) Count(i int) int { return r.counts[i] }

// ForType returns the line schema declaring lineType. Composing uses it;
// occurrence and position rules do not apply.
func (r *Resolver) ForType(lineType string) (*schema.LineSchema, bool) {
	return r.schema.LineByType(lineType)
}
