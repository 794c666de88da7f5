package parser

import (
	"context"
	"errors"
	"fmt"
	"io"

	"flatcodec/internal/model"
	"flatcodec/internal/resolver"
	"flatcodec/internal/schema"
	"flatcodec/internal/textio"
	"flatcodec/internal/textutil"
)

// parseSeparated handles fixed width lines bounded by the line separator.
// Short lines leave their missing cells empty or defaulted.
func (p *Parser) parseSeparated(ctx context.Context, r io.Reader) error {
	lr := textio.NewLineReader(r, p.schema.LineSeparator)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := lr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		lineNumber := lr.Lines()
		if raw == "" && p.cfg.SkipEmptyLines {
			continue
		}

		rt := newRuneText(raw)
		ls, res := p.resolver.Resolve(fixedControl(rt))
		switch res {
		case resolver.EndOfStream:
			return nil
		case resolver.NotMatching:
			if err := p.noMatch(lineNumber, raw); err != nil {
				return err
			}
			continue
		}

		line, consumed := p.fixedLine(ls, rt, lineNumber)
		if consumed < rt.Len() {
			keep, err := p.trailing(line, lineNumber, raw, rt.from(consumed))
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

// parseFlat handles fixed width records that follow each other without a
// separator. Blank input at a record boundary ends the stream; any other
// short record is fatal since the stream cannot be resynchronised. After a
// read failure the records already buffered in full are still emitted.
func (p *Parser) parseFlat(ctx context.Context, r io.Reader) error {
	src := textio.NewRuneSource(r)
	maxWidth := 0
	for _, ls := range p.schema.Lines {
		maxWidth = max(maxWidth, ls.Width())
	}

	var record int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf, readErr := src.Peek(maxWidth)
		if readErr != nil {
			readErr = fmt.Errorf("read at character %d: %w", src.Offset()+int64(len(buf)), readErr)
		}
		if len(buf) == 0 {
			return readErr
		}
		record++

		ls, res := p.resolver.Resolve(fixedControl(newRuneText(string(buf))))
		if readErr != nil && (res != resolver.Success || len(buf) < ls.Width()) {
			return readErr
		}
		switch res {
		case resolver.EndOfStream:
			if !textutil.IsBlank(buf) {
				_, err := p.trailing(nil, record, string(buf), string(buf))
				return err
			}
			return nil
		case resolver.NotMatching:
			if textutil.IsBlank(buf) {
				return nil
			}
			return p.fatal(record, string(buf), model.KindNoMatch, ErrNoMatchingLineType)
		}

		width := ls.Width()
		if len(buf) < width {
			if textutil.IsBlank(buf) {
				return nil
			}
			return p.fatal(record, string(buf), model.KindTruncated, ErrTruncatedRecord)
		}

		line, _ := p.fixedLine(ls, newRuneText(string(buf[:width])), record)
		src.Discard(width)
		p.emit(line)
	}
}

// fixedControl reads the control cell of a candidate line schema from the
// pending record.
func fixedControl(rt runeText) resolver.ControlReader {
	return func(ls *schema.LineSchema) (string, bool) {
		off, n := ls.ControlSpan()
		if off < 0 {
			return "", false
		}
		raw, ok := rt.slice(off, n)
		if !ok {
			return "", false
		}
		cs := ls.Cells[ls.CellIndex(ls.ControlCell)]
		return trimCell(cs, raw), true
	}
}

// fixedLine slices rt by the cell lengths of ls and returns the line and
// the number of characters consumed.
func (p *Parser) fixedLine(ls *schema.LineSchema, rt runeText, lineNumber int64) (*model.Line, int) {
	texts := make([]string, len(ls.Cells))
	present := make([]bool, len(ls.Cells))
	pos := 0
	for i, cs := range ls.Cells {
		texts[i], present[i] = rt.slice(pos, cs.Length)
		pos += cs.Length
	}
	return p.newLine(ls, lineNumber, texts, present), min(pos, rt.Len())
}

// runeText indexes a string by character but slices its original bytes, so
// an invalid UTF-8 sequence counts as one character and reaches cell
// conversion unchanged.
type runeText struct {
	s    string
	offs []int
}

func newRuneText(s string) runeText {
	offs := make([]int, 0, len(s)+1)
	for i := range s {
		offs = append(offs, i)
	}
	return runeText{s: s, offs: append(offs, len(s))}
}

func (rt runeText) Len() int { return len(rt.offs) - 1 }

// slice returns the characters [from, from+n), clipped to the text. ok is
// false when nothing of the range is present.
func (rt runeText) slice(from, n int) (string, bool) {
	if from >= rt.Len() || n <= 0 {
		return "", false
	}
	return rt.s[rt.offs[from]:rt.offs[min(from+n, rt.Len())]], true
}

func (rt runeText) from(i int) string { return rt.s[rt.offs[i]:] }
