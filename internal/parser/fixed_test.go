package parser

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flatcodec/internal/event"
	"flatcodec/internal/model"
	"flatcodec/internal/schema"
)

func flatSchema() *schema.Schema {
	header := schema.NewLine("Header", cell("id", 10, model.String, ""))
	header.Occurs = 1
	detail := schema.NewLine("Detail", cell("name", 5, model.String, ""))
	return &schema.Schema{Kind: schema.FixedWidth, Lines: []*schema.LineSchema{header, detail}}
}

func lineTypes(rec *event.Recorder) []string {
	var types []string
	for l := range rec.Document().Lines() {
		types = append(types, l.LineType)
	}
	return types
}

func TestFlatHeaderThenDetails(t *testing.T) {
	rec, n, err := parse(t, flatSchema(), DefaultConfig(), "HEADER0001"+"ALICE"+"BOB12")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, []string{"Header", "Detail", "Detail"}, lineTypes(rec))

	doc := rec.Document()
	assert.Equal(t, "HEADER0001", text(t, doc.Line(0), "id"))
	assert.Equal(t, "ALICE", text(t, doc.Line(1), "name"))
	assert.Equal(t, "BOB12", text(t, doc.Line(2), "name"))
	assert.Equal(t, int64(3), doc.Line(2).LineNumber)
}

func TestFlatBlankTailIsEndOfStream(t *testing.T) {
	rec, n, err := parse(t, flatSchema(), DefaultConfig(), "HEADER0001ALICE\n")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, rec.Errors())
}

func TestFlatTruncatedRecordIsFatal(t *testing.T) {
	rec, n, err := parse(t, flatSchema(), DefaultConfig(), "HEADER0001ALICEBO")
	assert.ErrorIs(t, err, ErrTruncatedRecord)
	assert.Equal(t, int64(2), n, "complete records before the break are emitted")
	require.Len(t, rec.Errors(), 1)
	assert.Equal(t, event.SeverityFatal, rec.Errors()[0].Severity)
}

func TestFlatReadFailureKeepsBufferedRecords(t *testing.T) {
	rec, n, err := parse(t, flatSchema(), DefaultConfig(), "HEADER0001ALICE\xff")
	assert.ErrorContains(t, err, "invalid UTF-8 at character 15")
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []string{"Header", "Detail"}, lineTypes(rec))
	assert.Equal(t, "ALICE", text(t, rec.Document().Line(1), "name"))

	boom := errors.New("disk gone")
	p, err := New(flatSchema(), DefaultConfig())
	require.NoError(t, err)
	rec = &event.Recorder{}
	r := io.MultiReader(strings.NewReader("HEADER0001ALICEBOB12BO"), iotest.ErrReader(boom))
	n, err = p.Parse(t.Context(), r, rec)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(3), n, "a partial record before the failure is not emitted")
	assert.Equal(t, []string{"Header", "Detail", "Detail"}, lineTypes(rec))
}

func TestFlatConditionalRecords(t *testing.T) {
	h := schema.NewLine("H", cell("kind", 1, model.String, ""), cell("date", 8, model.Date, "yyyyMMdd"))
	h.ControlCell, h.Condition = "kind", schema.Equals("H")
	h.Occurs = 1
	d := schema.NewLine("D", cell("kind", 1, model.String, ""), cell("qty", 3, model.Integer, ""))
	d.ControlCell, d.Condition = "kind", schema.Equals("D")
	s := &schema.Schema{Kind: schema.FixedWidth, Lines: []*schema.LineSchema{h, d}}

	rec, _, err := parse(t, s, DefaultConfig(), "H20240101D1  D22 ")
	require.NoError(t, err)
	assert.Equal(t, []string{"H", "D", "D"}, lineTypes(rec))
	assert.Equal(t, "22", text(t, rec.Document().Line(2), "qty"))

	_, _, err = parse(t, s, DefaultConfig(), "H20240101X1  ")
	assert.ErrorIs(t, err, ErrNoMatchingLineType, "an unmatched flat record cannot be skipped")
}

func TestFlatExhaustedWithLeftovers(t *testing.T) {
	only := schema.NewLine("Only", cell("v", 3, model.String, ""))
	only.Occurs = 1
	s := &schema.Schema{Kind: schema.FixedWidth, Lines: []*schema.LineSchema{only}}

	rec, n, err := parse(t, s, DefaultConfig(), "abcdef")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.Len(t, rec.Errors(), 1)
	assert.Equal(t, event.SeverityWarning, rec.Errors()[0].Severity)
}

func TestSeparatedControlCell(t *testing.T) {
	h := schema.NewLine("Header", cell("kind", 2, model.String, ""), cell("date", 8, model.Date, "yyyyMMdd"))
	h.ControlCell, h.Condition = "kind", schema.Equals("H")
	h.Occurs = 1
	d := schema.NewLine("Detail", cell("kind", 2, model.String, ""), cell("qty", 4, model.Integer, ""))
	d.ControlCell, d.Condition = "kind", schema.Equals("D")
	s := &schema.Schema{Kind: schema.FixedWidth, LineSeparator: "\r\n", Lines: []*schema.LineSchema{h, d}}

	input := "H 20240101\r\nD 0001\r\nH 20240102\r\nD 0002\r\n"
	rec, n, err := parse(t, s, DefaultConfig(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, []string{"Header", "Detail", "Detail"}, lineTypes(rec))

	require.Len(t, rec.Errors(), 1, "the second header exceeds occurs")
	var lerr *model.LineParseError
	require.ErrorAs(t, rec.Errors()[0].Err, &lerr)
	assert.Equal(t, model.KindNoMatch, lerr.Kind)
	assert.Equal(t, int64(3), lerr.LineNumber)
	assert.Equal(t, "H 20240102", lerr.RawText)
}

func TestNoMatchPolicies(t *testing.T) {
	d := schema.NewLine("Detail", cell("kind", 1, model.String, ""), cell("v", 2, model.String, ""))
	d.ControlCell, d.Condition = "kind", schema.Equals("D")
	s := &schema.Schema{Kind: schema.FixedWidth, LineSeparator: "\n", Lines: []*schema.LineSchema{d}}
	const input = "Dab\nXcd\nDef\n"

	tests := []struct {
		policy event.Policy
		lines  int64
		events int
		err    error
	}{
		{event.Ignore, 2, 0, nil},
		{event.Warn, 2, 1, nil},
		{event.Reject, 2, 1, nil},
		{event.Fatal, 1, 1, ErrNoMatchingLineType},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.OnNoMatch = tt.policy
			rec, n, err := parse(t, s, cfg, input)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.lines, n)
			assert.Len(t, rec.Errors(), tt.events)
		})
	}
}

func TestFormatterCacheStaysBounded(t *testing.T) {
	h := schema.NewLine("H", cell("kind", 1, model.String, ""), cell("date", 8, model.Date, "yyyyMMdd"))
	h.ControlCell, h.Condition = "kind", schema.Equals("H")
	d := schema.NewLine("D", cell("kind", 1, model.String, ""), cell("qty", 3, model.Integer, "000"))
	d.ControlCell, d.Condition = "kind", schema.Equals("D")
	s := &schema.Schema{Kind: schema.FixedWidth, LineSeparator: "\n", Lines: []*schema.LineSchema{h, d}}

	p, err := New(s, DefaultConfig())
	require.NoError(t, err)
	input := ""
	for range 50 {
		input += "H20240101\nD001\n"
	}
	rec := &event.Recorder{}
	_, err = p.Parse(t.Context(), strings.NewReader(input), rec)
	require.NoError(t, err)
	assert.Equal(t, 100, rec.Document().Len())
	assert.LessOrEqual(t, p.Formatters().Len(), 2)
}
