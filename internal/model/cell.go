package model

// Cell is one named, typed field of a line. An empty cell still carries its
// name and declared type; being empty is not an error.
type Cell struct {
	Name  string
	Type  CellType
	value Value
	empty bool
}

// NewCell creates a non-empty cell whose type is the kind of v.
func NewCell(name string, v Value) Cell {
	return Cell{Name: name, Type: v.Kind(), value: v}
}

// EmptyCell creates a cell without a value.
func EmptyCell(name string, t CellType) Cell {
	return Cell{Name: name, Type: t, empty: true}
}

func (c Cell) IsEmpty() bool { return c.empty }

// Value returns the cell value and false when the cell is empty.
func (c Cell) Value() (Value, bool) {
	if c.empty {
		return Value{}, false
	}
	return c.value, true
}

// Text returns the canonical text of the value, or "" for an empty cell.
func (c Cell) Text() string {
	if c.empty {
		return ""
	}
	return c.value.Text()
}

func (c Cell) String() string {
	if c.empty {
		return c.Name + "=<empty " + c.Type.String() + ">"
	}
	return c.Name + "=" + c.value.Text()
}
