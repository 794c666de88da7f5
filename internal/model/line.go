package model

import (
	"fmt"
	"iter"
)

// Line is one record: an ordered set of uniquely named cells tagged with a
// line type. Once emitted a Line belongs to the receiver.
type Line struct {
	LineType   string
	LineNumber int64

	cells      []Cell
	index      map[string]int
	cellErrors []*CellParseError
	lineErrors []*LineParseError
}

// NewLine creates an empty line of the given type.
func NewLine(lineType string, lineNumber int64) *Line {
	return &Line{
		LineType:   lineType,
		LineNumber: lineNumber,
		index:      make(map[string]int),
	}
}

// AddCell appends a cell. Cell names are unique within a line.
func (l *Line) AddCell(c Cell) error {
	if l.index == nil {
		l.index = make(map[string]int)
	}
	if _, dup := l.index[c.Name]; dup {
		return fmt.Errorf("line %q already has a cell named %q", l.LineType, c.Name)
	}
	l.index[c.Name] = len(l.cells)
	l.cells = append(l.cells, c)
	return nil
}

// PutCell replaces the cell with the same name, or appends it.
func (l *Line) PutCell(c Cell) {
	if i, ok := l.index[c.Name]; ok {
		l.cells[i] = c
		return
	}
	_ = l.AddCell(c)
}

func (l *Line) Cell(name string) (Cell, bool) {
	i, ok := l.index[name]
	if !ok {
		return Cell{}, false
	}
	return l.cells[i], true
}

func (l *Line) CellAt(i int) Cell { return l.cells[i] }

func (l *Line) Len() int { return len(l.cells) }

// Cells iterates the cells in order.
func (l *Line) Cells() iter.Seq2[int, Cell] {
	return func(yield func(int, Cell) bool) {
		for i, c := range l.cells {
			if !yield(i, c) {
				return
			}
		}
	}
}

func (l *Line) AddCellError(err *CellParseError) {
	l.cellErrors = append(l.cellErrors, err)
}

func (l *Line) CellErrors() []*CellParseError { return l.cellErrors }

// AddLineError records a problem with the line as a whole that did not stop
// it from being emitted, such as unconsumed trailing characters.
func (l *Line) AddLineError(err *LineParseError) {
	l.lineErrors = append(l.lineErrors, err)
}

func (l *Line) LineErrors() []*LineParseError { return l.lineErrors }

func (l *Line) HasErrors() bool { return len(l.cellErrors) > 0 || len(l.lineErrors) > 0 }
