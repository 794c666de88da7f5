package model

import (
	"fmt"
	"strings"
)

// CellType identifies the kind of value a cell holds. The set is closed.
type CellType int

const (
	String CellType = iota
	Integer
	Float
	Decimal
	Boolean
	Date
	DateTime
	Custom
)

var cellTypeNames = [...]string{
	String:   "STRING",
	Integer:  "INTEGER",
	Float:    "FLOAT",
	Decimal:  "DECIMAL",
	Boolean:  "BOOLEAN",
	Date:     "DATE",
	DateTime: "DATE_TIME",
	Custom:   "CUSTOM",
}

func (t CellType) String() string {
	if t < 0 || int(t) >= len(cellTypeNames) {
		return fmt.Sprintf("CellType(%d)", int(t))
	}
	return cellTypeNames[t]
}

// IsNumeric reports whether values of t compare numerically.
func (t CellType) IsNumeric() bool {
	return t == Integer || t == Float || t == Decimal
}

// IsTemporal reports whether values of t compare chronologically.
func (t CellType) IsTemporal() bool {
	return t == Date || t == DateTime
}

// ParseCellType resolves a cell type name. Matching is case-insensitive and
// accepts both "DATE_TIME" and "DATETIME". An empty name means STRING.
func ParseCellType(name string) (CellType, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	switch n {
	case "", "STRING":
		return String, nil
	case "INTEGER", "INT":
		return Integer, nil
	case "FLOAT":
		return Float, nil
	case "DECIMAL":
		return Decimal, nil
	case "BOOLEAN", "BOOL":
		return Boolean, nil
	case "DATE":
		return Date, nil
	case "DATE_TIME", "DATETIME":
		return DateTime, nil
	case "CUSTOM":
		return Custom, nil
	}
	return String, fmt.Errorf("unknown cell type %q", name)
}
