package schema

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flatcodec/internal/model"
)

func fixedSchema() *Schema {
	kind := NewCell("kind", 1)
	header := NewLine("Header", kind, NewCell("date", 8))
	header.Occurs = 1
	header.ControlCell = "kind"
	header.Condition = Equals("H")

	detail := NewLine("Detail", NewCell("kind", 1), NewCell("amount", 6))
	detail.ControlCell = "kind"
	detail.Condition = Equals("D")

	return &Schema{Kind: FixedWidth, Lines: []*LineSchema{header, detail}, LineSeparator: "\n"}
}

func TestValidateAcceptsWellFormedSchema(t *testing.T) {
	s := fixedSchema()
	require.NoError(t, s.Validate())
	assert.False(t, s.Flat())
	assert.True(t, s.HasConditions())

	l, ok := s.LineByType("Detail")
	require.True(t, ok)
	assert.Equal(t, 7, l.Width())
	off, n := l.ControlSpan()
	assert.Equal(t, 0, off)
	assert.Equal(t, 1, n)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Schema)
	}{
		{"no lines", func(s *Schema) { s.Lines = nil }},
		{"zero occurs", func(s *Schema) { s.Lines[0].Occurs = 0 }},
		{"negative occurs", func(s *Schema) { s.Lines[1].Occurs = -3 }},
		{"duplicate cell", func(s *Schema) { s.Lines[1].Cells[1].Name = "kind" }},
		{"duplicate line type", func(s *Schema) { s.Lines[1].LineType = "Header" }},
		{"zero width cell", func(s *Schema) { s.Lines[0].Cells[1].Length = 0 }},
		{"unknown control cell", func(s *Schema) { s.Lines[0].ControlCell = "missing" }},
		{"condition without control cell", func(s *Schema) { s.Lines[0].ControlCell = "" }},
		{"delimited option on fixed line", func(s *Schema) { s.Lines[0].QuoteChar = '"' }},
		{"delimited without separator", func(s *Schema) {
			s.Kind = Delimited
			s.LineSeparator = ""
		}},
		{"min above max", func(s *Schema) {
			lo, hi := model.IntegerValue(10), model.IntegerValue(1)
			s.Lines[1].Cells[1].Min, s.Lines[1].Cells[1].Max = &lo, &hi
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := fixedSchema()
			tt.mutate(s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSchema)
		})
	}
}

func TestFlatAndSeparators(t *testing.T) {
	s := fixedSchema()
	s.LineSeparator = ""
	assert.True(t, s.Flat())

	crlf := "\r\n"
	s.Lines[0].LineSeparator = &crlf
	assert.Equal(t, "", s.LineSeparatorFor(s.Lines[0]), "flat streams ignore line overrides")

	s.LineSeparator = "\n"
	assert.Equal(t, "\r\n", s.LineSeparatorFor(s.Lines[0]))
	assert.Equal(t, "\n", s.LineSeparatorFor(s.Lines[1]))
}

func TestDelimitedDefaults(t *testing.T) {
	l := NewLine("Person", &CellSchema{Name: "first"}, &CellSchema{Name: "last"})
	s := &Schema{Kind: Delimited, Lines: []*LineSchema{l}, LineSeparator: "\n"}
	require.NoError(t, s.Validate())
	assert.Equal(t, ";", l.Separator())

	l.CellSeparator = ","
	l.QuoteChar = ','
	assert.ErrorIs(t, s.Validate(), ErrInvalidSchema)
}

func TestCellConstraints(t *testing.T) {
	lo, hi := model.IntegerValue(1), model.IntegerValue(100)
	c := &CellSchema{Name: "n", Format: FormatSpec{Type: model.Integer}, Min: &lo, Max: &hi, MinLength: 2, MaxLength: 3}

	assert.NoError(t, c.ValidateValue(model.IntegerValue(50)))
	assert.NoError(t, c.ValidateValue(model.DecimalValue(decimal.NewFromInt(1))))
	assert.Error(t, c.ValidateValue(model.IntegerValue(0)))
	assert.Error(t, c.ValidateValue(model.FloatValue(100.5)))
	assert.ErrorIs(t, c.ValidateValue(model.StringValue("x")), model.ErrIncomparable)

	assert.NoError(t, c.ValidateLength("ab"))
	assert.Error(t, c.ValidateLength("a"))
	assert.Error(t, c.ValidateLength("abcd"))
	assert.NoError(t, c.ValidateLength("åäö"), "length counts characters, not bytes")
}

func TestConditions(t *testing.T) {
	assert.True(t, Equals("P").Satisfied("P"))
	assert.False(t, Equals("P").Satisfied("p"))
	assert.True(t, Empty().Satisfied(""))
	assert.False(t, Empty().Satisfied(" "))

	m, err := Matches("^[PC]$")
	require.NoError(t, err)
	assert.True(t, m.Satisfied("C"))
	assert.False(t, m.Satisfied("X"))

	_, err = Matches("(")
	assert.Error(t, err)
}

func TestParseHelpers(t *testing.T) {
	a, err := ParseAlignment("")
	require.NoError(t, err)
	assert.Equal(t, AlignLeft, a)
	a, err = ParseAlignment("right")
	require.NoError(t, err)
	assert.Equal(t, AlignRight, a)
	_, err = ParseAlignment("up")
	assert.Error(t, err)

	k, err := ParseKind("csv")
	require.NoError(t, err)
	assert.Equal(t, Delimited, k)
	_, err = ParseKind("xml")
	assert.Error(t, err)
}
