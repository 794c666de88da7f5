package event

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"flatcodec/internal/model"
)

// Recorder keeps every event in memory.
type Recorder struct {
	doc    model.Document
	errors []ErrorEvent
}

func (r *Recorder) LineParsed(e LineParsedEvent) { r.doc.Add(e.Line) }

func (r *Recorder) ErrorOccurred(e ErrorEvent) { r.errors = append(r.errors, e) }

// Document returns the recorded lines in emission order.
func (r *Recorder) Document() *model.Document { return &r.doc }

// Errors returns the recorded error events.
func (r *Recorder) Errors() []ErrorEvent { return r.errors }

// Count returns how many recorded errors have severity s.
func (r *Recorder) Count(s Severity) int {
	n := 0
	for _, e := range r.errors {
		if e.Severity == s {
			n++
		}
	}
	return n
}

// LogListener writes events to the global zerolog logger.
type LogListener struct {
	Source string
}

func (l LogListener) LineParsed(e LineParsedEvent) {
	log.Debug().
		Str("source", l.Source).
		Int64("line", e.LineNumber).
		Str("type", e.Line.LineType).
		Int("cell_errors", len(e.Line.CellErrors())).
		Msg("Line parsed")
}

func (l LogListener) ErrorOccurred(e ErrorEvent) {
	source := e.Source
	if source == "" {
		source = l.Source
	}
	log.WithLevel(level(e.Severity)).
		Str("source", source).
		Int64("line", e.LineNumber).
		Err(e.Err).
		Msg("Record problem")
}

func level(s Severity) zerolog.Level {
	if s == SeverityWarning {
		return zerolog.WarnLevel
	}
	return zerolog.ErrorLevel
}
