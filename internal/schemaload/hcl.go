// Package schemaload builds schema.Schema values from HCL documents.
package schemaload

import (
	"fmt"
	"unicode/utf8"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog/log"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"flatcodec/internal/format"
	"flatcodec/internal/model"
	"flatcodec/internal/schema"
)

type fileRoot struct {
	Schema *schemaBlock `hcl:"schema,block"`
}

type schemaBlock struct {
	Kind          string       `hcl:"kind,label"`
	LineSeparator *string      `hcl:"line_separator,optional"`
	Locale        string       `hcl:"locale,optional"`
	Lines         []*lineBlock `hcl:"line,block"`
}

type lineBlock struct {
	Type   string `hcl:"type,label"`
	Occurs *int   `hcl:"occurs,optional"`

	ControlCell string  `hcl:"control_cell,optional"`
	Equals      *string `hcl:"equals,optional"`
	Match       string  `hcl:"match,optional"`
	Empty       bool    `hcl:"empty,optional"`

	LineSeparator     *string `hcl:"line_separator,optional"`
	CellSeparator     string  `hcl:"cell_separator,optional"`
	Quote             *string `hcl:"quote,optional"`
	FirstLineAsSchema bool    `hcl:"first_line_as_schema,optional"`
	MinLength         int     `hcl:"min_length,optional"`
	Fill              string  `hcl:"fill,optional"`

	Cells []*cellBlock `hcl:"cell,block"`
}

type cellBlock struct {
	Name    string `hcl:"name,label"`
	Type    string `hcl:"type,optional"`
	Pattern string `hcl:"pattern,optional"`
	Locale  string `hcl:"locale,optional"`

	Length   int    `hcl:"length,optional"`
	Align    string `hcl:"align,optional"`
	Fill     string `hcl:"fill,optional"`
	TrimFill *bool  `hcl:"trim_fill,optional"`

	Mandatory   bool       `hcl:"mandatory,optional"`
	Default     *cty.Value `hcl:"default,optional"`
	IgnoreRead  bool       `hcl:"ignore_read,optional"`
	IgnoreWrite bool       `hcl:"ignore_write,optional"`

	Min       *cty.Value `hcl:"min,optional"`
	Max       *cty.Value `hcl:"max,optional"`
	MinLength int        `hcl:"min_length,optional"`
	MaxLength int        `hcl:"max_length,optional"`
}

// Load parses and validates the schema file at path.
func Load(path string) (*schema.Schema, error) {
	f, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, diags)
	}
	return decode(f, path)
}

// LoadBytes parses and validates a schema held in memory. filename is only
// used in diagnostics.
func LoadBytes(src []byte, filename string) (*schema.Schema, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse schema %s: %w", filename, diags)
	}
	return decode(f, filename)
}

func decode(f *hcl.File, filename string) (*schema.Schema, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(f.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode schema %s: %w", filename, diags)
	}
	if root.Schema == nil {
		return nil, fmt.Errorf("%w: %s has no schema block", schema.ErrInvalidSchema, filename)
	}

	s, err := translateSchema(root.Schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	log.Debug().Str("file", filename).Str("kind", s.Kind.String()).Int("lines", len(s.Lines)).Msg("Schema loaded")
	return s, nil
}

func translateSchema(b *schemaBlock) (*schema.Schema, error) {
	kind, err := schema.ParseKind(b.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrInvalidSchema, err)
	}
	s := &schema.Schema{Kind: kind, Locale: b.Locale, LineSeparator: "\n"}
	if b.LineSeparator != nil {
		s.LineSeparator = *b.LineSeparator
	}
	for _, lb := range b.Lines {
		l, err := translateLine(lb, s)
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", lb.Type, err)
		}
		s.Lines = append(s.Lines, l)
	}
	return s, nil
}

func translateLine(b *lineBlock, s *schema.Schema) (*schema.LineSchema, error) {
	l := schema.NewLine(b.Type)
	if b.Occurs != nil {
		l.Occurs = *b.Occurs
	}
	l.LineSeparator = b.LineSeparator
	l.CellSeparator = b.CellSeparator
	l.FirstLineAsSchema = b.FirstLineAsSchema
	l.MinLength = b.MinLength

	var err error
	switch {
	case b.Quote != nil:
		if l.QuoteChar, err = singleRune("quote", *b.Quote); err != nil {
			return nil, err
		}
	case s.Kind == schema.Delimited:
		l.QuoteChar = '"'
	}
	if l.FillChar, err = singleRune("fill", b.Fill); err != nil {
		return nil, err
	}

	l.ControlCell = b.ControlCell
	conditions := 0
	if b.Equals != nil {
		l.Condition = schema.Equals(*b.Equals)
		conditions++
	}
	if b.Match != "" {
		if l.Condition, err = schema.Matches(b.Match); err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrInvalidSchema, err)
		}
		conditions++
	}
	if b.Empty {
		l.Condition = schema.Empty()
		conditions++
	}
	if conditions > 1 {
		return nil, fmt.Errorf("%w: equals, match and empty are exclusive", schema.ErrInvalidSchema)
	}

	for _, cb := range b.Cells {
		c, err := translateCell(cb, s.Locale)
		if err != nil {
			return nil, fmt.Errorf("cell %q: %w", cb.Name, err)
		}
		l.Cells = append(l.Cells, c)
	}
	return l, nil
}

func translateCell(b *cellBlock, schemaLocale string) (*schema.CellSchema, error) {
	typ, err := model.ParseCellType(b.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrInvalidSchema, err)
	}
	align, err := schema.ParseAlignment(b.Align)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrInvalidSchema, err)
	}
	fill, err := singleRune("fill", b.Fill)
	if err != nil {
		return nil, err
	}

	c := &schema.CellSchema{
		Name:        b.Name,
		Format:      schema.FormatSpec{Type: typ, Pattern: b.Pattern, Locale: b.Locale},
		Alignment:   align,
		Length:      b.Length,
		FillChar:    fill,
		TrimFill:    true,
		Mandatory:   b.Mandatory,
		IgnoreRead:  b.IgnoreRead,
		IgnoreWrite: b.IgnoreWrite,
		MinLength:   b.MinLength,
		MaxLength:   b.MaxLength,
	}
	if b.TrimFill != nil {
		c.TrimFill = *b.TrimFill
	}

	// The pattern is checked here so a bad schema fails at load time rather
	// than on the first line that uses it.
	f, err := format.New(c.Key(schemaLocale))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrInvalidSchema, err)
	}

	if b.Default != nil {
		text, err := defaultText(*b.Default, typ, f)
		if err != nil {
			return nil, fmt.Errorf("%w: default: %v", schema.ErrInvalidSchema, err)
		}
		c.Default = &text
	}
	if c.Min, err = rangeValue(b.Min, typ, f); err != nil {
		return nil, fmt.Errorf("%w: min: %v", schema.ErrInvalidSchema, err)
	}
	if c.Max, err = rangeValue(b.Max, typ, f); err != nil {
		return nil, fmt.Errorf("%w: max: %v", schema.ErrInvalidSchema, err)
	}
	return c, nil
}

// defaultText renders an HCL default as cell text. Numbers are written with
// the cell formatter so that localised patterns still parse them.
func defaultText(v cty.Value, typ model.CellType, f format.Formatter) (string, error) {
	text, numeric, err := scalarText(v)
	if err != nil || !numeric || !typ.IsNumeric() {
		return text, err
	}
	val, err := numberValue(text, typ)
	if err != nil {
		return "", err
	}
	return f.Format(val)
}

func rangeValue(v *cty.Value, typ model.CellType, f format.Formatter) (*model.Value, error) {
	if v == nil {
		return nil, nil
	}
	text, numeric, err := scalarText(*v)
	if err != nil {
		return nil, err
	}
	var val model.Value
	if numeric {
		val, err = numberValue(text, typ)
	} else {
		val, err = f.Parse(text)
	}
	if err != nil {
		return nil, err
	}
	return &val, nil
}

func numberValue(text string, typ model.CellType) (model.Value, error) {
	d, err := model.ParseText(model.Decimal, text)
	if err != nil {
		return model.Value{}, err
	}
	if !typ.IsNumeric() {
		return model.Value{}, fmt.Errorf("numeric bound on a %s cell", typ)
	}
	return model.Convert(d, typ)
}

func scalarText(v cty.Value) (text string, numeric bool, err error) {
	if !v.IsKnown() || v.IsNull() {
		return "", false, fmt.Errorf("value must be a known scalar")
	}
	if !v.Type().IsPrimitiveType() {
		return "", false, fmt.Errorf("value must be a string, number or bool, got %s", v.Type().FriendlyName())
	}
	numeric = v.Type().Equals(cty.Number)
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", false, err
	}
	return s.AsString(), numeric, nil
}

func singleRune(attr, s string) (rune, error) {
	switch utf8.RuneCountInString(s) {
	case 0:
		return 0, nil
	case 1:
		r, _ := utf8.DecodeRuneInString(s)
		return r, nil
	}
	return 0, fmt.Errorf("%w: %s must be a single character, got %q", schema.ErrInvalidSchema, attr, s)
}
