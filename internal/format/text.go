package format

import (
	"regexp"

	"flatcodec/internal/model"
)

// stringFormat optionally checks text against a regular expression that
// must match the whole value.
type stringFormat struct {
	pattern string
	re      *regexp.Regexp
}

func newStringFormat(pattern string) (*stringFormat, error) {
	f := &stringFormat{pattern: pattern}
	if pattern != "" {
		re, err := regexp.Compile(`^(?:` + pattern + `)$`)
		if err != nil {
			return nil, formatErr(pattern, pattern, "%v", err)
		}
		f.re = re
	}
	return f, nil
}

func (f *stringFormat) CellType() model.CellType { return model.String }

func (f *stringFormat) Parse(text string) (model.Value, error) {
	if f.re != nil && !f.re.MatchString(text) {
		return model.Value{}, formatErr(text, f.pattern, "does not match")
	}
	return model.StringValue(text), nil
}

func (f *stringFormat) Format(v model.Value) (string, error) {
	return v.Text(), nil
}

// customText carries CUSTOM cells as opaque text when the schema supplies
// no formatter of its own.
type customText struct{}

func (customText) CellType() model.CellType { return model.Custom }

func (customText) Parse(text string) (model.Value, error) {
	return model.CustomValue(text), nil
}

func (customText) Format(v model.Value) (string, error) {
	return v.Text(), nil
}
