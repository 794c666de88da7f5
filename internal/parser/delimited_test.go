package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flatcodec/internal/event"
	"flatcodec/internal/model"
	"flatcodec/internal/schema"
)

func delimitedCell(name string, typ model.CellType) *schema.CellSchema {
	return &schema.CellSchema{Name: name, Format: schema.FormatSpec{Type: typ}}
}

func personSchema() *schema.Schema {
	person := schema.NewLine("Person",
		delimitedCell("control", model.String),
		delimitedCell("first", model.String),
		delimitedCell("last", model.String),
	)
	person.CellSeparator = ","
	person.QuoteChar = '"'
	person.ControlCell, person.Condition = "control", schema.Equals("P")

	company := schema.NewLine("Company",
		delimitedCell("control", model.String),
		delimitedCell("name", model.String),
		delimitedCell("employees", model.Integer),
	)
	company.CellSeparator = ","
	company.QuoteChar = '"'
	company.ControlCell, company.Condition = "control", schema.Equals("C")

	return &schema.Schema{Kind: schema.Delimited, LineSeparator: "\n", Lines: []*schema.LineSchema{person, company}}
}

func TestDelimitedControlCell(t *testing.T) {
	rec, n, err := parse(t, personSchema(), DefaultConfig(), "P,Erik,Svensson\nC,Acme,12\nX,??,??\n")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	person := rec.Document().Line(0)
	assert.Equal(t, "Person", person.LineType)
	assert.Equal(t, "P", text(t, person, "control"))
	assert.Equal(t, "Erik", text(t, person, "first"))
	assert.Equal(t, "Svensson", text(t, person, "last"))

	company := rec.Document().Line(1)
	assert.Equal(t, "Company", company.LineType)
	c, _ := company.Cell("employees")
	v, _ := c.Value()
	n64, err := v.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(12), n64)

	require.Len(t, rec.Errors(), 1)
	var lerr *model.LineParseError
	require.ErrorAs(t, rec.Errors()[0].Err, &lerr)
	assert.Equal(t, model.KindNoMatch, lerr.Kind)
	assert.Equal(t, int64(3), lerr.LineNumber)
}

func TestDelimitedQuoting(t *testing.T) {
	input := "P,\"Svensson, Erik\",\"say \"\"hej\"\"\"\n" +
		"P,\"two\nlines\",x\n" +
		"P,,\n"
	rec, n, err := parse(t, personSchema(), DefaultConfig(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	doc := rec.Document()
	assert.Equal(t, "Svensson, Erik", text(t, doc.Line(0), "first"))
	assert.Equal(t, `say "hej"`, text(t, doc.Line(0), "last"))

	assert.Equal(t, "two\nlines", text(t, doc.Line(1), "first"))
	assert.Equal(t, int64(2), doc.Line(1).LineNumber)

	assert.Equal(t, int64(4), doc.Line(2).LineNumber)
	c, _ := doc.Line(2).Cell("first")
	assert.True(t, c.IsEmpty())
}

func TestDelimitedMissingAndExtraCells(t *testing.T) {
	rec, n, err := parse(t, personSchema(), DefaultConfig(), "P,Erik\nP,Erik,Svensson,extra\n")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	short := rec.Document().Line(0)
	c, _ := short.Cell("last")
	assert.True(t, c.IsEmpty())

	require.Len(t, rec.Errors(), 1)
	var lerr *model.LineParseError
	require.ErrorAs(t, rec.Errors()[0].Err, &lerr)
	assert.Equal(t, model.KindTrailing, lerr.Kind)
	assert.Contains(t, lerr.Message, "extra")
}

func TestFirstLineAsSchema(t *testing.T) {
	row := schema.NewLine("Row",
		delimitedCell("id", model.Integer),
		delimitedCell("name", model.String),
		delimitedCell("city", model.String),
	)
	row.CellSeparator = ";"
	row.FirstLineAsSchema = true
	row.Occurs = 2
	s := &schema.Schema{Kind: schema.Delimited, LineSeparator: "\n", Lines: []*schema.LineSchema{row}}

	rec, n, err := parse(t, s, DefaultConfig(), "name;unused;id\nErik;x;1\nAnna;y;2\n")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "the header is not a record and does not count against occurs")

	first := rec.Document().Line(0)
	assert.Equal(t, "1", text(t, first, "id"))
	assert.Equal(t, "Erik", text(t, first, "name"))
	c, _ := first.Cell("city")
	assert.True(t, c.IsEmpty(), "columns absent from the header stay empty")
	assert.Empty(t, rec.Errors())
}

func TestDelimitedUnterminatedQuote(t *testing.T) {
	input := "P,\"Erik,Svensson\n" + strings.Repeat("P,Anna,Andersson\n", 3)
	tests := []struct {
		policy   event.Policy
		lines    int64
		events   int
		severity event.Severity
		err      error
	}{
		{event.Ignore, 4, 0, 0, nil},
		{event.Warn, 4, 1, event.SeverityWarning, nil},
		{event.Reject, 3, 1, event.SeverityError, nil},
		{event.Fatal, 0, 1, event.SeverityFatal, ErrUnterminatedQuote},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.OnOpenQuote = tt.policy
			rec, n, err := parse(t, personSchema(), cfg, input)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.lines, n)
			require.Len(t, rec.Errors(), tt.events)
			if tt.events > 0 {
				e := rec.Errors()[0]
				assert.Equal(t, tt.severity, e.Severity)
				assert.Equal(t, int64(1), e.LineNumber)
				var lerr *model.LineParseError
				require.ErrorAs(t, e.Err, &lerr)
				assert.Equal(t, model.KindOpenQuote, lerr.Kind)
			}
			if tt.lines == 0 {
				return
			}

			doc := rec.Document()
			last := doc.Line(doc.Len() - 1)
			assert.Equal(t, int64(4), last.LineNumber, "following lines keep their numbers")
			assert.Equal(t, "Anna", text(t, last, "first"))
			if tt.lines == 4 {
				first := doc.Line(0)
				assert.Equal(t, "Erik,Svensson", text(t, first, "first"))
				assert.Equal(t, tt.policy == event.Warn, first.HasErrors())
			}
		})
	}
}

func TestDelimitedUnterminatedQuoteLongStream(t *testing.T) {
	const n = 5000
	input := "P,\"Erik,Svensson\n" + strings.Repeat("P,Anna,Andersson\n", n)
	rec, emitted, err := parse(t, personSchema(), DefaultConfig(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(n+1), emitted)
	require.Len(t, rec.Errors(), 1)
	assert.Equal(t, int64(n+1), rec.Document().Line(n).LineNumber)
}

func TestDelimitedQuoteJoinIsBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxQuotedLines = 3

	rec, n, err := parse(t, personSchema(), cfg, "P,\"a\nb\",z\n")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, "a\nb", text(t, rec.Document().Line(0), "first"))
	assert.Empty(t, rec.Errors())

	rec, n, err = parse(t, personSchema(), cfg, "P,\"a\nb\nc\nd\"\nP,x,y\n")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "a", text(t, rec.Document().Line(0), "first"))
	assert.Equal(t, int64(5), rec.Document().Line(1).LineNumber)

	var kinds []model.ErrorKind
	for _, e := range rec.Errors() {
		var lerr *model.LineParseError
		require.ErrorAs(t, e.Err, &lerr)
		kinds = append(kinds, lerr.Kind)
	}
	assert.Equal(t, []model.ErrorKind{model.KindOpenQuote, model.KindNoMatch, model.KindNoMatch, model.KindNoMatch}, kinds)
}

func TestDelimitedInvalidUTF8(t *testing.T) {
	rec, n, err := parse(t, personSchema(), DefaultConfig(), "P,Er\xffk,Svensson\n")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	line := rec.Document().Line(0)
	c, _ := line.Cell("first")
	assert.True(t, c.IsEmpty())
	assert.Equal(t, "Svensson", text(t, line, "last"))
	require.Len(t, line.CellErrors(), 1)
	assert.Equal(t, "Er\xffk", line.CellErrors()[0].RawText)
}

func TestSplitCells(t *testing.T) {
	tests := []struct {
		raw   string
		sep   string
		quote rune
		want  []string
	}{
		{"a;b;c", ";", 0, []string{"a", "b", "c"}},
		{"a;;", ";", 0, []string{"a", "", ""}},
		{"", ";", 0, []string{""}},
		{`"a;b";c`, ";", '"', []string{"a;b", "c"}},
		{`"a;b";c`, ";", 0, []string{`"a`, `b"`, "c"}},
		{`x"y;z`, ";", '"', []string{`x"y`, "z"}},
		{`"unterminated;x`, ";", '"', []string{"unterminated;x"}},
		{"a::b::c", "::", 0, []string{"a", "b", "c"}},
		{`'it''s'|ok`, "|", '\'', []string{"it's", "ok"}},
		{"a\xff;b", ";", 0, []string{"a\xff", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, splitCells(tt.raw, tt.sep, tt.quote))
		})
	}
}

func TestQuoteStateMatchesSplit(t *testing.T) {
	tests := []struct {
		segments []string
		open     bool
	}{
		{[]string{`P,"a`}, true},
		{[]string{`P,"a`, "\nb\",c"}, false},
		{[]string{`P,"say ""hi`, "\n\"\"\""}, false},
		{[]string{`P,x"y`}, false},
		{[]string{`P,"a""`}, true},
	}
	for _, tt := range tests {
		st := quoteState{sep: ",", quote: '"', atStart: true}
		for _, seg := range tt.segments {
			st.scan(seg)
		}
		assert.Equal(t, tt.open, st.inQuotes, "%q", tt.segments)
	}
}
