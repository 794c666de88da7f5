// Package schema holds the immutable description of a text layout: an
// ordered list of line schemas, each an ordered list of cell schemas.
//
// A Schema is built once, validated, and then shared read-only by the
// resolver, the parser and the composer of any number of sessions.
package schema

import (
	"errors"
	"fmt"
)

// ErrInvalidSchema is wrapped by every validation failure.
var ErrInvalidSchema = errors.New("invalid schema")

// Kind selects between column-sliced and separator-split lines.
type Kind int

const (
	FixedWidth Kind = iota
	Delimited
)

func (k Kind) String() string {
	if k == Delimited {
		return "delimited"
	}
	return "fixed"
}

// ParseKind reads "fixed" or "delimited" ("csv" is accepted as well).
func ParseKind(s string) (Kind, error) {
	switch s {
	case "fixed", "fixedwidth", "fixed_width":
		return FixedWidth, nil
	case "delimited", "csv":
		return Delimited, nil
	}
	return FixedWidth, fmt.Errorf("unknown schema kind %q", s)
}

// Schema is the complete layout of a stream. Lines are listed in
// precedence order.
type Schema struct {
	Kind  Kind
	Lines []*LineSchema
	// LineSeparator terminates every line. An empty separator on a fixed
	// width schema makes the stream flat.
	LineSeparator string
	Locale        string
}

// Flat reports whether lines follow each other without a terminator.
func (s *Schema) Flat() bool {
	return s.Kind == FixedWidth && s.LineSeparator == ""
}

// LineByType returns the first line schema declaring lineType.
func (s *Schema) LineByType(lineType string) (*LineSchema, bool) {
	for _, l := range s.Lines {
		if l.LineType == lineType {
			return l, true
		}
	}
	return nil, false
}

// HasConditions reports whether any line schema matches by control cell.
func (s *Schema) HasConditions() bool {
	for _, l := range s.Lines {
		if l.Condition != nil {
			return true
		}
	}
	return false
}

// LineSeparatorFor returns the separator written after lines of l.
func (s *Schema) LineSeparatorFor(l *LineSchema) string {
	if l.LineSeparator != nil && !s.Flat() {
		return *l.LineSeparator
	}
	return s.LineSeparator
}

// Validate checks everything the engines rely on.
func (s *Schema) Validate() error {
	if len(s.Lines) == 0 {
		return fmt.Errorf("%w: no line schemas", ErrInvalidSchema)
	}
	if s.Kind == Delimited && s.LineSeparator == "" {
		return fmt.Errorf("%w: delimited schemas need a line separator", ErrInvalidSchema)
	}
	types := make(map[string]struct{}, len(s.Lines))
	for _, l := range s.Lines {
		if err := l.validate(s.Kind); err != nil {
			return err
		}
		if _, dup := types[l.LineType]; dup {
			return fmt.Errorf("%w: duplicate line type %q", ErrInvalidSchema, l.LineType)
		}
		types[l.LineType] = struct{}{}
	}
	return nil
}
