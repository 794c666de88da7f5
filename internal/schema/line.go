package schema

import (
	"fmt"
	"math"
)

// OccursUnbounded lets a line schema match any number of lines.
const OccursUnbounded = math.MaxInt

// DefaultCellSeparator is used by delimited lines that declare none.
const DefaultCellSeparator = ";"

// LineSchema describes the cell layout of one line type and when it applies.
type LineSchema struct {
	LineType string
	Cells    []*CellSchema

	// LineSeparator overrides the schema separator when composing this line type.
	LineSeparator *string
	// Occurs is the maximum number of matching lines per stream.
	Occurs int

	// ControlCell names the cell tested by Condition. Lines without a
	// Condition match by position.
	ControlCell string
	Condition   Condition

	// Delimited only.
	CellSeparator     string
	QuoteChar         rune
	FirstLineAsSchema bool

	// Fixed width only: composed lines shorter than MinLength are padded
	// with FillChar.
	MinLength int
	FillChar  rune
}

// NewLine creates an unbounded line schema with the given cells.
func NewLine(lineType string, cells ...*CellSchema) *LineSchema {
	return &LineSchema{LineType: lineType, Cells: cells, Occurs: OccursUnbounded}
}

// CellIndex returns the position of the named cell or -1.
func (l *LineSchema) CellIndex(name string) int {
	for i, c := range l.Cells {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Cell returns the named cell schema.
func (l *LineSchema) Cell(name string) (*CellSchema, bool) {
	if i := l.CellIndex(name); i >= 0 {
		return l.Cells[i], true
	}
	return nil, false
}

// ControlSpan returns the character offset and length of the control cell
// in a fixed width line.
func (l *LineSchema) ControlSpan() (offset, length int) {
	for _, c := range l.Cells {
		if c.Name == l.ControlCell {
			return offset, c.Length
		}
		offset += c.Length
	}
	return -1, 0
}

// Width is the total number of characters of a fixed width line.
func (l *LineSchema) Width() int {
	w := 0
	for _, c := range l.Cells {
		w += c.Length
	}
	return w
}

// Separator returns the delimited cell separator.
func (l *LineSchema) Separator() string {
	if l.CellSeparator == "" {
		return DefaultCellSeparator
	}
	return l.CellSeparator
}

// Fill returns the line fill character, defaulting to a space.
func (l *LineSchema) Fill() rune {
	if l.FillChar == 0 {
		return ' '
	}
	return l.FillChar
}

func (l *LineSchema) validate(kind Kind) error {
	if l.LineType == "" {
		return fmt.Errorf("%w: line without a line type", ErrInvalidSchema)
	}
	if l.Occurs <= 0 {
		return fmt.Errorf("%w: line %q: occurs must be positive, got %d", ErrInvalidSchema, l.LineType, l.Occurs)
	}
	if len(l.Cells) == 0 {
		return fmt.Errorf("%w: line %q has no cells", ErrInvalidSchema, l.LineType)
	}
	seen := make(map[string]struct{}, len(l.Cells))
	for _, c := range l.Cells {
		if err := c.validate(kind); err != nil {
			return fmt.Errorf("line %q: %w", l.LineType, err)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: line %q: duplicate cell %q", ErrInvalidSchema, l.LineType, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	if (l.Condition == nil) != (l.ControlCell == "") {
		return fmt.Errorf("%w: line %q: control cell and condition go together", ErrInvalidSchema, l.LineType)
	}
	if l.ControlCell != "" && l.CellIndex(l.ControlCell) < 0 {
		return fmt.Errorf("%w: line %q: control cell %q is not a cell of the line", ErrInvalidSchema, l.LineType, l.ControlCell)
	}
	if kind == FixedWidth && (l.CellSeparator != "" || l.QuoteChar != 0 || l.FirstLineAsSchema) {
		return fmt.Errorf("%w: line %q: delimited options on a fixed width line", ErrInvalidSchema, l.LineType)
	}
	if kind == Delimited && l.QuoteChar != 0 && containsRune(l.Separator(), l.QuoteChar) {
		return fmt.Errorf("%w: line %q: quote character inside the cell separator", ErrInvalidSchema, l.LineType)
	}
	if l.MinLength < 0 {
		return fmt.Errorf("%w: line %q: negative min length", ErrInvalidSchema, l.LineType)
	}
	return nil
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}
