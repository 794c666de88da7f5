// Package composer renders typed lines back into text under a schema.
package composer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/rs/zerolog/log"

	"flatcodec/internal/event"
	"flatcodec/internal/format"
	"flatcodec/internal/model"
	"flatcodec/internal/resolver"
	"flatcodec/internal/schema"
	"flatcodec/internal/textutil"
)

// ErrNoMatchingLineType is returned by Compose when an unmatched line is fatal.
var ErrNoMatchingLineType = errors.New("no matching line type")

// Config holds the per-session policies.
type Config struct {
	// OnNoMatch decides what Compose does with a line whose type is not in
	// the schema. ComposeLine always leaves that decision to the caller.
	OnNoMatch event.Policy
	Source    string
}

// DefaultConfig warns about lines of unknown type and skips them.
func DefaultConfig() Config {
	return Config{OnNoMatch: event.Warn}
}

// Composer writes lines of one schema to one sink. It is not safe for
// concurrent use; flushing and closing the sink is up to the caller.
type Composer struct {
	schema   *schema.Schema
	w        io.Writer
	cfg      Config
	formats  *format.Cache
	resolver *resolver.Resolver
	listener event.Listener

	headers map[*schema.LineSchema]bool
	written int64
	buf     strings.Builder
}

// New validates s and returns a composer writing to w.
func New(s *schema.Schema, w io.Writer, cfg Config, l event.Listener) (*Composer, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = event.Discard
	}
	return &Composer{
		schema:   s,
		w:        w,
		cfg:      cfg,
		formats:  format.NewCache(),
		resolver: resolver.New(s),
		listener: l,
		headers:  make(map[*schema.LineSchema]bool),
	}, nil
}

// Written returns the number of lines composed so far.
func (c *Composer) Written() int64 { return c.written }

// ComposeLine writes one line. It returns false without writing anything
// when no line schema declares the line's type. Cell problems are reported
// to the listener; only a failing sink returns an error.
func (c *Composer) ComposeLine(line *model.Line) (bool, error) {
	ls, ok := c.resolver.ForType(line.LineType)
	if !ok {
		return false, nil
	}

	c.buf.Reset()
	if ls.FirstLineAsSchema && !c.headers[ls] {
		c.writeHeader(ls)
		c.headers[ls] = true
	}
	if c.schema.Kind == schema.Delimited {
		c.delimited(ls, line)
	} else {
		c.fixed(ls, line)
	}
	c.buf.WriteString(c.schema.LineSeparatorFor(ls))

	if _, err := io.WriteString(c.w, c.buf.String()); err != nil {
		return false, fmt.Errorf("write line %d: %w", c.written+1, err)
	}
	c.written++
	return true, nil
}

// Compose writes every line of lines, applying OnNoMatch to lines of
// unknown type. ctx is checked between lines.
func (c *Composer) Compose(ctx context.Context, lines iter.Seq[*model.Line]) (int64, error) {
	start := c.written
	for line := range lines {
		if err := ctx.Err(); err != nil {
			return c.written - start, err
		}
		if err := c.WriteLine(line); err != nil {
			return c.written - start, err
		}
	}
	log.Debug().Str("source", c.cfg.Source).Int64("lines", c.written-start).Msg("Compose finished")
	return c.written - start, nil
}

// WriteLine writes one line, applying OnNoMatch when its type is unknown.
func (c *Composer) WriteLine(line *model.Line) error {
	ok, err := c.ComposeLine(line)
	if err != nil || ok {
		return err
	}
	return c.noMatch(line)
}

// ComposeDocument writes every line of doc.
func (c *Composer) ComposeDocument(ctx context.Context, doc *model.Document) (int64, error) {
	return c.Compose(ctx, doc.Lines())
}

func (c *Composer) noMatch(line *model.Line) error {
	lerr := &model.LineParseError{
		LineNumber: line.LineNumber,
		Message:    fmt.Sprintf("line type %q", line.LineType),
		Kind:       model.KindNoMatch,
	}
	switch c.cfg.OnNoMatch {
	case event.Ignore:
		return nil
	case event.Warn, event.Reject:
		c.report(line.LineNumber, lerr, c.cfg.OnNoMatch.Severity())
		return nil
	}
	c.report(line.LineNumber, lerr, event.SeverityFatal)
	return fmt.Errorf("%w: %w", ErrNoMatchingLineType, lerr)
}

func (c *Composer) report(lineNumber int64, err error, sev event.Severity) {
	c.listener.ErrorOccurred(event.ErrorEvent{Source: c.cfg.Source, LineNumber: lineNumber, Err: err, Severity: sev})
}

func (c *Composer) cellError(line *model.Line, cs *schema.CellSchema, kind model.ErrorKind, text string, err error) {
	c.report(line.LineNumber, &model.CellParseError{
		CellName:   cs.Name,
		LineNumber: line.LineNumber,
		RawText:    text,
		Message:    err.Error(),
		Kind:       kind,
		Err:        err,
	}, event.SeverityWarning)
}

// cellText formats the value of cs in line. Missing and empty cells use the
// cell default; a value that cannot be formatted is reported and written as
// the default too.
func (c *Composer) cellText(cs *schema.CellSchema, line *model.Line) string {
	fallback := ""
	if cs.Default != nil {
		fallback = *cs.Default
	}
	if cs.IgnoreWrite {
		return ""
	}
	cell, ok := line.Cell(cs.Name)
	if !ok {
		return fallback
	}
	v, ok := cell.Value()
	if !ok {
		return fallback
	}

	f := cs.Custom
	if f == nil {
		var err error
		if f, err = c.formats.Acquire(cs.Key(c.schema.Locale)); err != nil {
			c.cellError(line, cs, model.KindCompose, v.Text(), err)
			return fallback
		}
	}
	text, err := f.Format(v)
	if err != nil {
		c.cellError(line, cs, model.KindCompose, v.Text(), err)
		return fallback
	}
	return text
}

func (c *Composer) fixed(ls *schema.LineSchema, line *model.Line) {
	width := 0
	for _, cs := range ls.Cells {
		text := c.cellText(cs, line)
		if n := textutil.Width(text); n > cs.Length {
			c.cellError(line, cs, model.KindLength, text, fmt.Errorf("%d characters truncated to %d", n, cs.Length))
		}
		c.buf.WriteString(textutil.Fit(text, cs.Length, cs.Fill(), side(cs.Alignment)))
		width += cs.Length
	}
	if ls.MinLength > width {
		c.buf.WriteString(strings.Repeat(string(ls.Fill()), ls.MinLength-width))
	}
}

func (c *Composer) delimited(ls *schema.LineSchema, line *model.Line) {
	sep := ls.Separator()
	for i, cs := range ls.Cells {
		if i > 0 {
			c.buf.WriteString(sep)
		}
		text := c.cellText(cs, line)
		quoted, ok := c.escape(ls, text)
		if !ok {
			c.cellError(line, cs, model.KindCompose, text, errors.New("cell contains a separator and the line has no quote character"))
		}
		c.buf.WriteString(quoted)
	}
}

func (c *Composer) writeHeader(ls *schema.LineSchema) {
	sep := ls.Separator()
	for i, cs := range ls.Cells {
		if i > 0 {
			c.buf.WriteString(sep)
		}
		name, _ := c.escape(ls, cs.Name)
		c.buf.WriteString(name)
	}
	c.buf.WriteString(c.schema.LineSeparatorFor(ls))
}

// escape quotes text when it would otherwise not split back into the same
// cell. Without a quote character such text cannot be written and "" is
// returned with ok false.
func (c *Composer) escape(ls *schema.LineSchema, text string) (string, bool) {
	q := ls.QuoteChar
	needs := strings.Contains(text, ls.Separator()) ||
		strings.Contains(text, c.schema.LineSeparator) ||
		(q != 0 && strings.HasPrefix(text, string(q)))
	if !needs {
		return text, true
	}
	if q == 0 {
		return "", false
	}
	quote := string(q)
	return quote + strings.ReplaceAll(text, quote, quote+quote) + quote, true
}

func side(a schema.Alignment) textutil.Side {
	switch a {
	case schema.AlignRight:
		return textutil.Right
	case schema.AlignCenter:
		return textutil.Center
	}
	return textutil.Left
}
