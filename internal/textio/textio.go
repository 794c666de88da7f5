// Package textio provides the character sources the parser pulls from:
// a LineReader for separated streams and a RuneSource for flat ones.
package textio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// MaxLineSize bounds a single physical line.
const MaxLineSize = 4 * 1024 * 1024

// LineReader splits a stream on an exact separator. The final line need not
// be terminated. Read returns io.EOF once the stream is exhausted and any
// other error as a read failure.
type LineReader struct {
	scanner *bufio.Scanner
	sep     []byte
	lines   int64
}

// NewLineReader returns a reader for lines ending in sep.
func NewLineReader(r io.Reader, sep string) *LineReader {
	lr := &LineReader{scanner: bufio.NewScanner(r), sep: []byte(sep)}
	lr.scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	lr.scanner.Split(lr.split)
	return lr
}

func (lr *LineReader) split(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, lr.sep); i >= 0 {
		return i + len(lr.sep), data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Read returns the next line without its separator.
func (lr *LineReader) Read() (string, error) {
	if !lr.scanner.Scan() {
		if err := lr.scanner.Err(); err != nil {
			return "", fmt.Errorf("read line %d: %w", lr.lines+1, err)
		}
		return "", io.EOF
	}
	lr.lines++
	return lr.scanner.Text(), nil
}

// Lines returns the number of physical lines read so far.
func (lr *LineReader) Lines() int64 { return lr.lines }

// RuneSource serves fixed-length runs of characters from a stream that has
// no line terminators.
type RuneSource struct {
	r       *bufio.Reader
	pending []rune
	err     error
	offset  int64
}

// NewRuneSource wraps r.
func NewRuneSource(r io.Reader) *RuneSource {
	return &RuneSource{r: bufio.NewReader(r)}
}

// Peek returns up to n characters without consuming them. Fewer are
// returned only at the end of the stream; a read failure is returned as
// the error once nothing more can be buffered.
func (s *RuneSource) Peek(n int) ([]rune, error) {
	for len(s.pending) < n && s.err == nil {
		r, size, err := s.r.ReadRune()
		if err != nil {
			s.err = err
			break
		}
		if r == utf8.RuneError && size == 1 {
			s.err = fmt.Errorf("invalid UTF-8 at character %d", s.offset+int64(len(s.pending)))
			break
		}
		s.pending = append(s.pending, r)
	}
	if len(s.pending) >= n {
		return s.pending[:n], nil
	}
	if s.err != nil && !errors.Is(s.err, io.EOF) {
		return s.pending, s.err
	}
	return s.pending, nil
}

// Discard consumes n characters previously returned by Peek.
func (s *RuneSource) Discard(n int) {
	n = min(n, len(s.pending))
	s.pending = s.pending[n:]
	s.offset += int64(n)
}

// Offset is the number of characters consumed so far.
func (s *RuneSource) Offset() int64 { return s.offset }

// Exhausted reports whether every character has been consumed.
func (s *RuneSource) Exhausted() bool {
	if len(s.pending) > 0 {
		return false
	}
	_, err := s.Peek(1)
	return err == nil && len(s.pending) == 0
}
