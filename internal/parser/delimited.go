package parser

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"flatcodec/internal/event"
	"flatcodec/internal/model"
	"flatcodec/internal/resolver"
	"flatcodec/internal/schema"
	"flatcodec/internal/textio"
)

type splitKey struct {
	sep   string
	quote rune
}

// record is one logical delimited line. Its cells are split lazily, once
// per separator and quote combination used by the candidate line schemas.
type record struct {
	raw    string
	splits map[splitKey][]string
}

func (r *record) cells(ls *schema.LineSchema) []string {
	k := splitKey{sep: ls.Separator(), quote: ls.QuoteChar}
	if cells, ok := r.splits[k]; ok {
		return cells
	}
	cells := splitCells(r.raw, k.sep, k.quote)
	if r.splits == nil {
		r.splits = make(map[splitKey][]string, 1)
	}
	r.splits[k] = cells
	return cells
}

// parseDelimited handles separator-split lines. A quoted cell may contain
// line separators, in which case the logical line spans several physical
// ones and is numbered by the first.
func (p *Parser) parseDelimited(ctx context.Context, r io.Reader) error {
	q := &lineQueue{lr: textio.NewLineReader(r, p.schema.LineSeparator)}
	join := p.joinRule()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		first, err := q.next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		lineNumber := first.number
		if first.text == "" && p.cfg.SkipEmptyLines {
			continue
		}

		raw := first.text
		var openErr *model.LineParseError
		if join.quote != 0 {
			var open bool
			raw, open, err = p.joinQuoted(q, first, join)
			if err != nil {
				return err
			}
			if open {
				openErr = &model.LineParseError{
					LineNumber: lineNumber,
					RawText:    first.text,
					Message:    "quoted cell is not closed",
					Kind:       model.KindOpenQuote,
				}
				keep, err := p.apply(p.cfg.OnOpenQuote, openErr, ErrUnterminatedQuote)
				if err != nil {
					return err
				}
				if !keep {
					continue
				}
			}
		}

		rec := &record{raw: raw}
		ls, res := p.resolver.Resolve(p.delimitedControl(rec))
		switch res {
		case resolver.EndOfStream:
			return nil
		case resolver.NotMatching:
			if err := p.noMatch(lineNumber, raw); err != nil {
				return err
			}
			continue
		}

		cols := rec.cells(ls)
		if ls.FirstLineAsSchema && p.headers[ls] == nil {
			p.resolver.Release(ls)
			p.headers[ls] = headerIndex(ls, cols)
			continue
		}

		texts := make([]string, len(ls.Cells))
		present := make([]bool, len(ls.Cells))
		width := len(ls.Cells)
		if hdr, ok := p.headers[ls]; ok {
			width = len(hdr)
			for col, idx := range hdr {
				if idx >= 0 && col < len(cols) {
					texts[idx], present[idx] = cols[col], true
				}
			}
		} else {
			for i := range ls.Cells {
				if i < len(cols) {
					texts[i], present[i] = cols[i], true
				}
			}
		}

		line := p.newLine(ls, lineNumber, texts, present)
		if openErr != nil && p.cfg.OnOpenQuote == event.Warn {
			line.AddLineError(openErr)
		}
		if len(cols) > width {
			keep, err := p.trailing(line, lineNumber, raw, strings.Join(cols[width:], ls.Separator()))
			if err != nil {
				return err
			}
			if !keep {
				continue
			}
		}
		p.emit(line)
	}
}

func (p *Parser) maxQuotedLines() int {
	if p.cfg.MaxQuotedLines > 0 {
		return p.cfg.MaxQuotedLines
	}
	return DefaultMaxQuotedLines
}

// joinQuoted extends first with the physical lines that continue an open
// quoted cell. Each line is scanned once. When the quote is still open at
// the end of the stream, after maxQuotedLines lines or past
// textio.MaxLineSize, the borrowed lines are put back and open is true.
func (p *Parser) joinQuoted(q *lineQueue, first physicalLine, rule splitKey) (raw string, open bool, err error) {
	st := quoteState{sep: rule.sep, quote: rule.quote, atStart: true}
	st.scan(first.text)
	if !st.inQuotes {
		return first.text, false, nil
	}

	var b strings.Builder
	b.WriteString(first.text)
	var borrowed []physicalLine
	for st.inQuotes {
		if len(borrowed)+1 >= p.maxQuotedLines() || b.Len() > textio.MaxLineSize {
			q.unread(borrowed)
			return first.text, true, nil
		}
		more, err := q.next()
		if errors.Is(err, io.EOF) {
			q.unread(borrowed)
			return first.text, true, nil
		}
		if err != nil {
			return "", false, err
		}
		borrowed = append(borrowed, more)
		seg := p.schema.LineSeparator + more.text
		st.scan(seg)
		b.WriteString(seg)
	}
	return b.String(), false, nil
}

type physicalLine struct {
	text   string
	number int64
}

// lineQueue serves physical lines and takes back the ones a failed join
// borrowed, keeping their line numbers.
type lineQueue struct {
	lr      *textio.LineReader
	pending []physicalLine
}

func (q *lineQueue) next() (physicalLine, error) {
	if len(q.pending) > 0 {
		l := q.pending[0]
		q.pending = q.pending[1:]
		return l, nil
	}
	text, err := q.lr.Read()
	if err != nil {
		return physicalLine{}, err
	}
	return physicalLine{text: text, number: q.lr.Lines()}, nil
}

func (q *lineQueue) unread(lines []physicalLine) {
	q.pending = append(slices.Clone(lines), q.pending...)
}

// quoteState follows whether a logical line is inside a quoted cell while
// its physical lines arrive. It applies the rules of splitCells.
type quoteState struct {
	sep      string
	quote    rune
	inQuotes bool
	atStart  bool
}

func (st *quoteState) scan(s string) {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case st.inQuotes:
			if r == st.quote {
				if next, n := utf8.DecodeRuneInString(s[i+size:]); n > 0 && next == st.quote {
					i += size + n
					continue
				}
				st.inQuotes = false
			}
			i += size
		case st.atStart && r == st.quote:
			st.inQuotes, st.atStart = true, false
			i += size
		case strings.HasPrefix(s[i:], st.sep):
			st.atStart = true
			i += len(st.sep)
		default:
			st.atStart = false
			i += size
		}
	}
}

// joinRule picks the separator and quote used to detect quoted cells that
// continue on the next physical line: those of the first quoting line schema.
func (p *Parser) joinRule() splitKey {
	for _, ls := range p.schema.Lines {
		if ls.QuoteChar != 0 {
			return splitKey{sep: ls.Separator(), quote: ls.QuoteChar}
		}
	}
	return splitKey{}
}

func (p *Parser) delimitedControl(rec *record) resolver.ControlReader {
	return func(ls *schema.LineSchema) (string, bool) {
		cellIdx := ls.CellIndex(ls.ControlCell)
		if cellIdx < 0 {
			return "", false
		}
		col := cellIdx
		if hdr, ok := p.headers[ls]; ok {
			col = -1
			for c, idx := range hdr {
				if idx == cellIdx {
					col = c
					break
				}
			}
		}
		cols := rec.cells(ls)
		if col < 0 || col >= len(cols) {
			return "", false
		}
		return trimCell(ls.Cells[cellIdx], cols[col]), true
	}
}

// headerIndex maps header columns to cell indexes of ls; unknown columns
// map to -1 and are skipped.
func headerIndex(ls *schema.LineSchema, cols []string) []int {
	idx := make([]int, len(cols))
	for i, name := range cols {
		idx[i] = ls.CellIndex(strings.TrimSpace(name))
		if idx[i] < 0 {
			log.Debug().Str("line_type", ls.LineType).Str("column", name).Msg("Header column has no cell")
		}
	}
	return idx
}

// splitCells splits raw at sep outside quoted cells. A cell is quoted when
// it starts with quote; inside it a doubled quote stands for one quote and
// sep has no meaning. An unterminated quoted cell runs to the end of raw.
// Bytes are copied unchanged so invalid UTF-8 reaches cell conversion.
func splitCells(raw, sep string, quote rune) []string {
	var (
		cells []string
		b     strings.Builder
	)
	inQuotes, atStart := false, true
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRuneInString(raw[i:])
		switch {
		case inQuotes:
			if r == quote {
				if next, n := utf8.DecodeRuneInString(raw[i+size:]); n > 0 && next == quote {
					b.WriteRune(quote)
					i += size + n
					continue
				}
				inQuotes = false
			} else {
				b.WriteString(raw[i : i+size])
			}
			i += size
		case atStart && quote != 0 && r == quote:
			inQuotes, atStart = true, false
			i += size
		case strings.HasPrefix(raw[i:], sep):
			cells = append(cells, b.String())
			b.Reset()
			atStart = true
			i += len(sep)
		default:
			b.WriteString(raw[i : i+size])
			atStart = false
			i += size
		}
	}
	return append(cells, b.String())
}
