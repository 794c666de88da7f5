// Package event carries parse and compose results to the caller.
//
// Engines push every emitted line and every error to a Listener supplied
// per session. Listeners are called synchronously from the session's own
// goroutine and must not retain a Line they do not own.
package event

import (
	"fmt"
	"strings"

	"flatcodec/internal/model"
)

// Severity grades an ErrorEvent.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "fatal"
}

// LineParsedEvent is sent once per emitted line, with or without cell errors.
type LineParsedEvent struct {
	LineNumber int64
	Line       *model.Line
}

// ErrorEvent reports a cell, line or stream level problem.
type ErrorEvent struct {
	// Source names the stream or session, e.g. a file path.
	Source     string
	LineNumber int64
	Err        error
	Severity   Severity
}

func (e ErrorEvent) String() string {
	return fmt.Sprintf("%s: %s line %d: %v", e.Severity, e.Source, e.LineNumber, e.Err)
}

// Listener receives session events.
type Listener interface {
	LineParsed(LineParsedEvent)
	ErrorOccurred(ErrorEvent)
}

// Funcs adapts plain functions to Listener. Nil fields ignore the event.
type Funcs struct {
	OnLine  func(LineParsedEvent)
	OnError func(ErrorEvent)
}

func (f Funcs) LineParsed(e LineParsedEvent) {
	if f.OnLine != nil {
		f.OnLine(e)
	}
}

func (f Funcs) ErrorOccurred(e ErrorEvent) {
	if f.OnError != nil {
		f.OnError(e)
	}
}

// Discard ignores every event.
var Discard Listener = Funcs{}

type multi []Listener

// Multi fans events out to every listener in order.
func Multi(listeners ...Listener) Listener { return multi(listeners) }

func (m multi) LineParsed(e LineParsedEvent) {
	for _, l := range m {
		l.LineParsed(e)
	}
}

func (m multi) ErrorOccurred(e ErrorEvent) {
	for _, l := range m {
		l.ErrorOccurred(e)
	}
}

// Policy decides what happens to a line with a recoverable line-level
// problem such as an unmatched line type or trailing characters.
type Policy int

const (
	// Ignore drops the problem silently.
	Ignore Policy = iota
	// Warn reports a warning and carries on.
	Warn
	// Reject reports an error and drops the line.
	Reject
	// Fatal reports the error and stops the session.
	Fatal
)

var policyNames = [...]string{Ignore: "ignore", Warn: "warn", Reject: "reject", Fatal: "fatal"}

func (p Policy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return fmt.Sprintf("Policy(%d)", int(p))
	}
	return policyNames[p]
}

// ParsePolicy reads a policy name. "error" is accepted for Reject and
// "skip" for Ignore.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ignore", "skip":
		return Ignore, nil
	case "warn", "warning":
		return Warn, nil
	case "reject", "error":
		return Reject, nil
	case "fatal", "abort":
		return Fatal, nil
	}
	return Ignore, fmt.Errorf("unknown policy %q", s)
}

// Severity is the severity of events reported under p.
func (p Policy) Severity() Severity {
	switch p {
	case Reject:
		return SeverityError
	case Fatal:
		return SeverityFatal
	}
	return SeverityWarning
}
