package model

import (
	"fmt"
	"strings"
)

// ErrorKind classifies cell and line errors.
type ErrorKind int

const (
	KindFormat ErrorKind = iota
	KindRange
	KindLength
	KindMandatory
	KindTrailing
	KindNoMatch
	KindTruncated
	KindCompose
	KindOpenQuote
)

var errorKindNames = [...]string{
	KindFormat:    "format",
	KindRange:     "range",
	KindLength:    "length",
	KindMandatory: "mandatory",
	KindTrailing:  "trailing characters",
	KindNoMatch:   "no matching line type",
	KindTruncated: "truncated record",
	KindCompose:   "compose",
	KindOpenQuote: "unterminated quote",
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(errorKindNames) {
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
	return errorKindNames[k]
}

// CellParseError describes a problem with a single cell. It is attached to
// the line and never stops a parse on its own.
type CellParseError struct {
	CellName   string
	LineNumber int64
	RawText    string
	Message    string
	Kind       ErrorKind
	Err        error
}

func (e *CellParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "line %d, cell %q: %s", e.LineNumber, e.CellName, e.Kind)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.RawText != "" {
		fmt.Fprintf(&b, " (text %q)", e.RawText)
	}
	return b.String()
}

func (e *CellParseError) Unwrap() error { return e.Err }

// LineParseError describes a problem with a whole line.
type LineParseError struct {
	LineNumber int64
	RawText    string
	Message    string
	Kind       ErrorKind
}

func (e *LineParseError) Error() string {
	msg := fmt.Sprintf("line %d: %s", e.LineNumber, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// ParseErrorKind resolves a name produced by ErrorKind.String.
func ParseErrorKind(name string) (ErrorKind, error) {
	for k, n := range errorKindNames {
		if n == name {
			return ErrorKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown error kind %q", name)
}
