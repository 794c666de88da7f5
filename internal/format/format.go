// Package format converts between cell text and typed values. A Formatter is
// built from a cell type, a Java style pattern and a locale; a session keeps
// recently used formatters in a two-slot Cache.
package format

import (
	"errors"
	"fmt"

	"flatcodec/internal/model"
)

// ErrFormat is wrapped by every FormatError.
var ErrFormat = errors.New("invalid format")

// Formatter converts between text and a typed value.
type Formatter interface {
	CellType() model.CellType
	// Parse converts the whole text. Text that is only partly consumable is
	// rejected, never truncated.
	Parse(text string) (model.Value, error)
	// Format renders v. Values of another kind are converted first.
	Format(v model.Value) (string, error)
}

// Key identifies a formatter configuration.
type Key struct {
	Type    model.CellType
	Pattern string
	Locale  string
}

func (k Key) String() string {
	return fmt.Sprintf("%s[%q %s]", k.Type, k.Pattern, k.Locale)
}

// FormatError reports text that does not match a pattern.
type FormatError struct {
	Text    string
	Pattern string
	Reason  string
}

func (e *FormatError) Error() string {
	if e.Pattern == "" {
		return fmt.Sprintf("cannot parse %q: %s", e.Text, e.Reason)
	}
	return fmt.Sprintf("cannot parse %q with pattern %q: %s", e.Text, e.Pattern, e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

func formatErr(text, pattern, reason string, args ...any) error {
	return &FormatError{Text: text, Pattern: pattern, Reason: fmt.Sprintf(reason, args...)}
}

// New always constructs a fresh formatter for k.
func New(k Key) (Formatter, error) {
	loc, err := ResolveLocale(k.Locale)
	if err != nil {
		return nil, err
	}
	switch k.Type {
	case model.String:
		return newStringFormat(k.Pattern)
	case model.Integer, model.Float, model.Decimal:
		return newNumberFormat(k.Type, k.Pattern, loc)
	case model.Boolean:
		return newBooleanFormat(k.Pattern)
	case model.Date, model.DateTime:
		return newTimeFormat(k.Type, k.Pattern)
	case model.Custom:
		return customText{}, nil
	}
	return nil, fmt.Errorf("no formatter for cell type %s", k.Type)
}

// convertFor coerces v into the formatter's cell type before rendering.
func convertFor(t model.CellType, v model.Value) (model.Value, error) {
	out, err := model.Convert(v, t)
	if err != nil {
		return model.Value{}, fmt.Errorf("format %s as %s: %w", v.Kind(), t, err)
	}
	return out, nil
}
