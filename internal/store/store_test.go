package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flatcodec/internal/event"
	"flatcodec/internal/model"
)

type fakeInserter struct {
	batches [][]*model.Line
	fail    error
}

func (f *fakeInserter) Insert(_ context.Context, _ string, lines []*model.Line) (int64, error) {
	if f.fail != nil {
		return 0, f.fail
	}
	f.batches = append(f.batches, lines)
	return int64(len(lines)), nil
}

func emit(l event.Listener, n int) {
	for i := range n {
		line := model.NewLine("Row", int64(i+1))
		l.LineParsed(event.LineParsedEvent{LineNumber: line.LineNumber, Line: line})
	}
}

func TestBatchListener(t *testing.T) {
	dst := &fakeInserter{}
	b := NewBatchListener(context.Background(), dst, "a.txt", 2)
	rec := &event.Recorder{}
	b.Next = rec

	emit(b, 5)
	b.ErrorOccurred(event.ErrorEvent{LineNumber: 3, Err: errors.New("x"), Severity: event.SeverityWarning})
	require.Len(t, dst.batches, 2)
	assert.Equal(t, int64(4), b.Stored())

	require.NoError(t, b.Flush())
	require.Len(t, dst.batches, 3)
	assert.Len(t, dst.batches[2], 1)
	assert.Equal(t, int64(5), dst.batches[2][0].LineNumber)
	assert.Equal(t, int64(5), b.Stored())
	assert.Len(t, rec.Errors(), 1)

	require.NoError(t, b.Flush(), "flushing nothing is a no-op")
	assert.Len(t, dst.batches, 3)
}

func TestBatchListenerKeepsFirstError(t *testing.T) {
	boom := errors.New("connection reset")
	dst := &fakeInserter{fail: boom}
	b := NewBatchListener(context.Background(), dst, "a.txt", 1)

	emit(b, 3)
	assert.ErrorIs(t, b.Err(), boom)
	assert.ErrorIs(t, b.Flush(), boom)
	assert.Zero(t, b.Stored())
}

func TestCreateTableSQLQuotesName(t *testing.T) {
	sql := createTableSQL(pgx.Identifier{`odd"name`})
	assert.Contains(t, sql, `"odd""name"`)
	assert.Contains(t, sql, "PRIMARY KEY (source, line_number)")
}

func TestRowEncoding(t *testing.T) {
	l := model.NewLine("Row", 4)
	require.NoError(t, l.AddCell(model.NewCell("n", model.IntegerValue(12))))
	values, err := row("a.txt", l)
	require.NoError(t, err)
	require.Len(t, values, len(columns))
	assert.Equal(t, "a.txt", values[0])
	assert.Equal(t, int64(4), values[1])
	assert.JSONEq(t, `[{"name":"n","type":"INTEGER","value":"12"}]`, string(values[3].([]byte)))
	assert.Nil(t, values[4].([]byte))

	back, err := decodeRow(4, "Row", values[3].([]byte), nil)
	require.NoError(t, err)
	assert.Equal(t, "12", back.CellAt(0).Text())
}

func TestStoreRoundTrip(t *testing.T) {
	url := os.Getenv("FLATCODEC_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("FLATCODEC_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	s := New(pool, "flat_lines_test")
	require.NoError(t, s.EnsureSchema(ctx))
	_, err = s.Delete(ctx, "t.txt")
	require.NoError(t, err)

	a := model.NewLine("Row", 2)
	require.NoError(t, a.AddCell(model.NewCell("n", model.IntegerValue(2))))
	b := model.NewLine("Row", 1)
	require.NoError(t, b.AddCell(model.EmptyCell("n", model.Integer)))
	b.AddCellError(&model.CellParseError{CellName: "n", LineNumber: 1, Kind: model.KindMandatory})

	n, err := s.Insert(ctx, "t.txt", []*model.Line{a, b})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	doc, err := s.Lines(ctx, "t.txt")
	require.NoError(t, err)
	require.Equal(t, 2, doc.Len())
	assert.Equal(t, int64(1), doc.Line(0).LineNumber)
	assert.True(t, doc.Line(0).CellAt(0).IsEmpty())
	require.Len(t, doc.Line(0).CellErrors(), 1)
	assert.Equal(t, "2", doc.Line(1).CellAt(0).Text())

	deleted, err := s.Delete(ctx, "t.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}
