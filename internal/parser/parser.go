// Package parser turns a text stream into typed lines under a schema.
//
// A Parser drives the resolver, slices or splits each record into cell
// texts and converts them with the session's formatter cache. Cell level
// problems are attached to the line and reported as events; only I/O
// failures, unrecoverable records and Fatal policies stop a session.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"flatcodec/internal/event"
	"flatcodec/internal/format"
	"flatcodec/internal/model"
	"flatcodec/internal/resolver"
	"flatcodec/internal/schema"
	"flatcodec/internal/textutil"
)

var (
	// ErrTruncatedRecord stops a flat stream that ends inside a record.
	ErrTruncatedRecord = errors.New("truncated record")
	// ErrNoMatchingLineType is returned when an unmatched line is fatal.
	ErrNoMatchingLineType = errors.New("no matching line type")
	// ErrTrailingCharacters is returned when trailing characters are fatal.
	ErrTrailingCharacters = errors.New("trailing characters")
	// ErrUnterminatedQuote is returned when an unclosed quoted cell is fatal.
	ErrUnterminatedQuote = errors.New("unterminated quote")
	// ErrLineRejected wraps the error event of a line dropped by policy.
	ErrLineRejected = errors.New("line rejected")

	errInvalidUTF8 = errors.New("invalid UTF-8")
)

// DefaultMaxQuotedLines bounds the physical lines one quoted cell may span.
const DefaultMaxQuotedLines = 1000

// Config holds the per-session policies.
type Config struct {
	OnNoMatch  event.Policy
	OnTrailing event.Policy
	// OnOpenQuote applies to a delimited line whose quoted cell is still
	// open at the end of the stream or after MaxQuotedLines lines. A kept
	// line is parsed from its first physical line alone.
	OnOpenQuote    event.Policy
	MaxQuotedLines int
	// SkipEmptyLines drops zero length lines of separated streams before
	// they reach the resolver.
	SkipEmptyLines bool
	// Source names the stream in error events.
	Source string
}

// DefaultConfig warns about unmatched lines, trailing characters and open
// quotes and skips empty lines.
func DefaultConfig() Config {
	return Config{
		OnNoMatch:      event.Warn,
		OnTrailing:     event.Warn,
		OnOpenQuote:    event.Warn,
		MaxQuotedLines: DefaultMaxQuotedLines,
		SkipEmptyLines: true,
	}
}

// Parser parses streams of one schema. A Parser owns its resolver state and
// formatter cache and must not be used by two goroutines at once; create one
// Parser per concurrent session.
type Parser struct {
	schema   *schema.Schema
	cfg      Config
	formats  *format.Cache
	resolver *resolver.Resolver

	listener event.Listener
	emitted  int64
	// headers maps columns of a FirstLineAsSchema line type to cell indexes.
	headers map[*schema.LineSchema][]int
}

// New validates s and returns a parser for it.
func New(s *schema.Schema, cfg Config) (*Parser, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Parser{
		schema:   s,
		cfg:      cfg,
		formats:  format.NewCache(),
		resolver: resolver.New(s),
	}, nil
}

// Parse reads r to the end and sends every line to l. It returns the number
// of lines emitted. ctx is checked between lines; a cancelled session
// returns ctx.Err() with everything before it already emitted.
func (p *Parser) Parse(ctx context.Context, r io.Reader, l event.Listener) (int64, error) {
	if l == nil {
		l = event.Discard
	}
	p.listener = l
	p.emitted = 0
	p.headers = make(map[*schema.LineSchema][]int)
	p.resolver.Reset()

	var err error
	switch {
	case p.schema.Kind == schema.Delimited:
		err = p.parseDelimited(ctx, r)
	case p.schema.Flat():
		err = p.parseFlat(ctx, r)
	default:
		err = p.parseSeparated(ctx, r)
	}

	log.Debug().Str("source", p.cfg.Source).Int64("lines", p.emitted).Err(err).Msg("Parse finished")
	return p.emitted, err
}

// Formatters exposes the session formatter cache.
func (p *Parser) Formatters() *format.Cache { return p.formats }

func (p *Parser) emit(line *model.Line) {
	p.emitted++
	p.listener.LineParsed(event.LineParsedEvent{LineNumber: line.LineNumber, Line: line})
}

func (p *Parser) report(lineNumber int64, err error, sev event.Severity) {
	p.listener.ErrorOccurred(event.ErrorEvent{
		Source:     p.cfg.Source,
		LineNumber: lineNumber,
		Err:        err,
		Severity:   sev,
	})
}

// apply reports lerr under policy. It reports whether the line is kept; a
// non-nil error ends the session.
func (p *Parser) apply(policy event.Policy, lerr *model.LineParseError, sentinel error) (bool, error) {
	switch policy {
	case event.Ignore:
		return true, nil
	case event.Warn:
		p.report(lerr.LineNumber, lerr, event.SeverityWarning)
		return true, nil
	case event.Reject:
		p.report(lerr.LineNumber, fmt.Errorf("%w: %w", ErrLineRejected, lerr), event.SeverityError)
		return false, nil
	}
	p.report(lerr.LineNumber, lerr, event.SeverityFatal)
	return false, fmt.Errorf("%w: %w", sentinel, lerr)
}

// noMatch applies OnNoMatch to an unmatched line. A non-nil error ends the
// session.
func (p *Parser) noMatch(lineNumber int64, raw string) error {
	log.Debug().Str("source", p.cfg.Source).Int64("line", lineNumber).Str("text", textutil.Truncate(raw, 40)).Msg("No line type matched")
	lerr := &model.LineParseError{LineNumber: lineNumber, RawText: raw, Kind: model.KindNoMatch}
	_, err := p.apply(p.cfg.OnNoMatch, lerr, ErrNoMatchingLineType)
	return err
}

// trailing applies OnTrailing to a line with unconsumed input. It reports
// whether the line is still emitted; a warning is also recorded on line.
func (p *Parser) trailing(line *model.Line, lineNumber int64, raw, extra string) (bool, error) {
	lerr := &model.LineParseError{
		LineNumber: lineNumber,
		RawText:    raw,
		Message:    fmt.Sprintf("%q not consumed", textutil.Truncate(extra, 40)),
		Kind:       model.KindTrailing,
	}
	keep, err := p.apply(p.cfg.OnTrailing, lerr, ErrTrailingCharacters)
	if keep && line != nil && p.cfg.OnTrailing == event.Warn {
		line.AddLineError(lerr)
	}
	return keep, err
}

// fatal reports a record that cannot be recovered and returns the session error.
func (p *Parser) fatal(lineNumber int64, raw string, kind model.ErrorKind, sentinel error) error {
	lerr := &model.LineParseError{LineNumber: lineNumber, RawText: raw, Kind: kind}
	p.report(lineNumber, lerr, event.SeverityFatal)
	return fmt.Errorf("%w: %w", sentinel, lerr)
}

// newLine converts the extracted cell texts of one record. texts[i] holds
// the text of ls.Cells[i] and present[i] whether the record reached it.
func (p *Parser) newLine(ls *schema.LineSchema, lineNumber int64, texts []string, present []bool) *model.Line {
	line := model.NewLine(ls.LineType, lineNumber)
	for i, cs := range ls.Cells {
		if cs.IgnoreRead {
			continue
		}
		cell, cerr := p.convert(cs, texts[i], present[i], lineNumber)
		if cerr != nil {
			line.AddCellError(cerr)
			p.report(lineNumber, cerr, event.SeverityWarning)
		}
		// Names are unique per validated line schema.
		_ = line.AddCell(cell)
	}
	return line
}

// convert turns one cell text into a cell. On any failure it returns an
// empty cell of the declared type together with the error.
func (p *Parser) convert(cs *schema.CellSchema, raw string, present bool, lineNumber int64) (model.Cell, *model.CellParseError) {
	empty := model.EmptyCell(cs.Name, cs.Format.Type)
	cellErr := func(kind model.ErrorKind, text string, err error) *model.CellParseError {
		e := &model.CellParseError{CellName: cs.Name, LineNumber: lineNumber, RawText: text, Kind: kind, Err: err}
		if err != nil {
			e.Message = err.Error()
		}
		return e
	}

	if present && !utf8.ValidString(raw) {
		return empty, cellErr(model.KindFormat, raw, errInvalidUTF8)
	}
	text := raw
	if present {
		text = trimCell(cs, raw)
	}
	if text == "" {
		if cs.Default == nil {
			if cs.Mandatory {
				return empty, cellErr(model.KindMandatory, raw, nil)
			}
			return empty, nil
		}
		text = *cs.Default
	}

	if err := cs.ValidateLength(text); err != nil {
		return empty, cellErr(model.KindLength, text, err)
	}
	f, err := p.formatter(cs)
	if err != nil {
		return empty, cellErr(model.KindFormat, text, err)
	}
	v, err := f.Parse(text)
	if err != nil {
		return empty, cellErr(model.KindFormat, text, err)
	}
	if err := cs.ValidateValue(v); err != nil {
		return empty, cellErr(model.KindRange, text, err)
	}
	return model.NewCell(cs.Name, v), nil
}

func (p *Parser) formatter(cs *schema.CellSchema) (format.Formatter, error) {
	if cs.Custom != nil {
		return cs.Custom, nil
	}
	return p.formats.Acquire(cs.Key(p.schema.Locale))
}

// trimCell strips fill characters from the padded side of a cell. A numeric
// cell filled with a digit keeps one fill character when nothing else is
// left, so "0000" still reads as zero.
func trimCell(cs *schema.CellSchema, raw string) string {
	if !cs.TrimFill || raw == "" {
		return raw
	}
	fill := cs.Fill()
	var text string
	switch cs.Alignment {
	case schema.AlignLeft:
		text = textutil.TrimFill(raw, fill, textutil.Left)
	case schema.AlignRight:
		text = textutil.TrimFill(raw, fill, textutil.Right)
	case schema.AlignCenter:
		text = textutil.TrimFill(raw, fill, textutil.Center)
	default:
		return raw
	}
	if text == "" && cs.Format.Type.IsNumeric() && unicode.IsDigit(fill) {
		return string(fill)
	}
	return text
}
