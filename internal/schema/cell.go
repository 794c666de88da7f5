package schema

import (
	"fmt"
	"unicode/utf8"

	"flatcodec/internal/format"
	"flatcodec/internal/model"
)

// Alignment decides on which side fill characters go.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
	AlignNone
)

func (a Alignment) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignRight:
		return "right"
	case AlignCenter:
		return "center"
	}
	return "none"
}

// ParseAlignment reads "left", "right", "center" or "none". Empty means left.
func ParseAlignment(s string) (Alignment, error) {
	switch s {
	case "", "left":
		return AlignLeft, nil
	case "right":
		return AlignRight, nil
	case "center", "centre":
		return AlignCenter, nil
	case "none":
		return AlignNone, nil
	}
	return AlignLeft, fmt.Errorf("unknown alignment %q", s)
}

// FormatSpec selects the formatter for a cell.
type FormatSpec struct {
	Type    model.CellType
	Pattern string
	// Locale overrides the schema locale when set.
	Locale string
}

// CellSchema describes one cell of a line.
type CellSchema struct {
	Name   string
	Format FormatSpec
	// Custom replaces the built-in formatter of a CUSTOM cell.
	Custom format.Formatter

	Alignment Alignment
	// Length is the fixed width in characters; 0 for delimited cells.
	Length   int
	FillChar rune
	TrimFill bool

	Mandatory bool
	// Default is used as the cell text when the input is empty and as the
	// output text when a composed line lacks the cell.
	Default *string

	IgnoreRead  bool
	IgnoreWrite bool

	Min, Max             *model.Value
	MinLength, MaxLength int
}

// NewCell creates a left aligned, space filled STRING cell.
func NewCell(name string, length int) *CellSchema {
	return &CellSchema{Name: name, Length: length, FillChar: ' '}
}

// Key returns the formatter key of the cell under the given schema locale.
func (c *CellSchema) Key(schemaLocale string) format.Key {
	loc := c.Format.Locale
	if loc == "" {
		loc = schemaLocale
	}
	return format.Key{Type: c.Format.Type, Pattern: c.Format.Pattern, Locale: loc}
}

// Fill returns the fill character, defaulting to a space.
func (c *CellSchema) Fill() rune {
	if c.FillChar == 0 {
		return ' '
	}
	return c.FillChar
}

// ValidateValue checks v against the configured min/max range.
func (c *CellSchema) ValidateValue(v model.Value) error {
	if c.Min != nil {
		cmp, err := model.Compare(v, *c.Min)
		if err != nil {
			return err
		}
		if cmp < 0 {
			return fmt.Errorf("value %s is below minimum %s", v.Text(), c.Min.Text())
		}
	}
	if c.Max != nil {
		cmp, err := model.Compare(v, *c.Max)
		if err != nil {
			return err
		}
		if cmp > 0 {
			return fmt.Errorf("value %s is above maximum %s", v.Text(), c.Max.Text())
		}
	}
	return nil
}

// ValidateLength checks the character count of text against MinLength/MaxLength.
func (c *CellSchema) ValidateLength(text string) error {
	n := utf8.RuneCountInString(text)
	if c.MinLength > 0 && n < c.MinLength {
		return fmt.Errorf("length %d is below minimum %d", n, c.MinLength)
	}
	if c.MaxLength > 0 && n > c.MaxLength {
		return fmt.Errorf("length %d is above maximum %d", n, c.MaxLength)
	}
	return nil
}

func (c *CellSchema) validate(kind Kind) error {
	if c.Name == "" {
		return fmt.Errorf("%w: cell without a name", ErrInvalidSchema)
	}
	if kind == FixedWidth && c.Length <= 0 {
		return fmt.Errorf("%w: cell %q needs a positive length", ErrInvalidSchema, c.Name)
	}
	if c.Length < 0 {
		return fmt.Errorf("%w: cell %q has a negative length", ErrInvalidSchema, c.Name)
	}
	if c.MinLength > 0 && c.MaxLength > 0 && c.MinLength > c.MaxLength {
		return fmt.Errorf("%w: cell %q has min length above max length", ErrInvalidSchema, c.Name)
	}
	if c.Min != nil && c.Max != nil {
		cmp, err := model.Compare(*c.Min, *c.Max)
		if err != nil {
			return fmt.Errorf("%w: cell %q range: %v", ErrInvalidSchema, c.Name, err)
		}
		if cmp > 0 {
			return fmt.Errorf("%w: cell %q has min above max", ErrInvalidSchema, c.Name)
		}
	}
	if c.Custom != nil && c.Custom.CellType() != c.Format.Type {
		return fmt.Errorf("%w: cell %q custom formatter produces %s, not %s",
			ErrInvalidSchema, c.Name, c.Custom.CellType(), c.Format.Type)
	}
	return nil
}
