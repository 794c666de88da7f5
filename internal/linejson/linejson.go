// Package linejson reads and writes lines as JSON, one object per text line.
// Values travel as their canonical text next to the cell type, so every kind
// survives a round trip without precision loss.
package linejson

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"flatcodec/internal/model"
)

// Cell is the JSON form of a model.Cell. Value is nil for an empty cell.
type Cell struct {
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Value *string `json:"value,omitempty"`
}

// CellError is the JSON form of a model.CellParseError. Errors of the whole
// line, a model.LineParseError, have no Cell.
type CellError struct {
	Cell    string `json:"cell,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Record is the JSON form of a model.Line.
type Record struct {
	LineType   string      `json:"line_type"`
	LineNumber int64       `json:"line_number"`
	Cells      []Cell      `json:"cells"`
	Errors     []CellError `json:"errors,omitempty"`
}

// FromLine converts l to its JSON form.
func FromLine(l *model.Line) Record {
	return Record{
		LineType:   l.LineType,
		LineNumber: l.LineNumber,
		Cells:      EncodeCells(l),
		Errors:     EncodeErrors(l),
	}
}

// EncodeCells returns the cells of l in order.
func EncodeCells(l *model.Line) []Cell {
	cells := make([]Cell, 0, l.Len())
	for _, c := range l.Cells() {
		jc := Cell{Name: c.Name, Type: c.Type.String()}
		if v, ok := c.Value(); ok {
			text := v.Text()
			jc.Value = &text
		}
		cells = append(cells, jc)
	}
	return cells
}

// EncodeErrors returns the line and cell errors of l, or nil when there are
// none.
func EncodeErrors(l *model.Line) []CellError {
	if !l.HasErrors() {
		return nil
	}
	out := make([]CellError, 0, len(l.LineErrors())+len(l.CellErrors()))
	for _, e := range l.LineErrors() {
		out = append(out, CellError{Kind: e.Kind.String(), Message: e.Message, Text: e.RawText})
	}
	for _, e := range l.CellErrors() {
		out = append(out, CellError{Cell: e.CellName, Kind: e.Kind.String(), Message: e.Message, Text: e.RawText})
	}
	return out
}

// Line rebuilds the model.Line described by r.
func (r Record) Line() (*model.Line, error) {
	l := model.NewLine(r.LineType, r.LineNumber)
	if err := DecodeCells(l, r.Cells); err != nil {
		return nil, err
	}
	if err := DecodeErrors(l, r.Errors); err != nil {
		return nil, err
	}
	return l, nil
}

// DecodeCells adds cells to l.
func DecodeCells(l *model.Line, cells []Cell) error {
	for _, jc := range cells {
		t, err := model.ParseCellType(jc.Type)
		if err != nil {
			return fmt.Errorf("cell %q: %w", jc.Name, err)
		}
		c := model.EmptyCell(jc.Name, t)
		if jc.Value != nil {
			v, err := model.ParseText(t, *jc.Value)
			if err != nil {
				return fmt.Errorf("cell %q: %w", jc.Name, err)
			}
			c = model.NewCell(jc.Name, v)
		}
		if err := l.AddCell(c); err != nil {
			return err
		}
	}
	return nil
}

// DecodeErrors attaches errs to l.
func DecodeErrors(l *model.Line, errs []CellError) error {
	for _, je := range errs {
		kind, err := model.ParseErrorKind(je.Kind)
		if err != nil {
			return fmt.Errorf("cell %q: %w", je.Cell, err)
		}
		if je.Cell == "" {
			l.AddLineError(&model.LineParseError{
				LineNumber: l.LineNumber,
				RawText:    je.Text,
				Message:    je.Message,
				Kind:       kind,
			})
			continue
		}
		l.AddCellError(&model.CellParseError{
			CellName:   je.Cell,
			LineNumber: l.LineNumber,
			RawText:    je.Text,
			Message:    je.Message,
			Kind:       kind,
		})
	}
	return nil
}

// Writer writes one JSON object per line.
type Writer struct {
	enc *json.Encoder
	n   int64
}

func NewWriter(w io.Writer) *Writer {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Writer{enc: enc}
}

func (w *Writer) Write(l *model.Line) error {
	if err := w.enc.Encode(FromLine(l)); err != nil {
		return fmt.Errorf("encode line %d: %w", l.LineNumber, err)
	}
	w.n++
	return nil
}

// Written returns the number of lines written.
func (w *Writer) Written() int64 { return w.n }

// Reader reads lines written by Writer.
type Reader struct {
	dec *json.Decoder
	n   int64
}

func NewReader(r io.Reader) *Reader {
	return &Reader{dec: json.NewDecoder(bufio.NewReader(r))}
}

// Read returns the next line, or io.EOF after the last one.
func (r *Reader) Read() (*model.Line, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode record %d: %w", r.n+1, err)
	}
	r.n++
	l, err := rec.Line()
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", r.n, err)
	}
	return l, nil
}

// ReadAll reads every line of r into a document.
func ReadAll(r io.Reader) (*model.Document, error) {
	doc := &model.Document{}
	jr := NewReader(r)
	for {
		l, err := jr.Read()
		if errors.Is(err, io.EOF) {
			return doc, nil
		}
		if err != nil {
			return doc, err
		}
		doc.Add(l)
	}
}
