package format

import (
	"strings"

	"flatcodec/internal/model"
)

const defaultBooleanPattern = "true;false"

// booleanFormat uses a "trueText;falseText" pattern. Each side may list
// alternatives separated by '|'; the first one is written.
type booleanFormat struct {
	pattern    string
	trueTexts  []string
	falseTexts []string
}

func newBooleanFormat(pattern string) (*booleanFormat, error) {
	if pattern == "" {
		pattern = defaultBooleanPattern
	}
	t, f, ok := strings.Cut(pattern, ";")
	if !ok || t == "" || f == "" {
		return nil, formatErr(pattern, pattern, "boolean pattern must be \"true;false\"")
	}
	return &booleanFormat{
		pattern:    pattern,
		trueTexts:  strings.Split(t, "|"),
		falseTexts: strings.Split(f, "|"),
	}, nil
}

func (f *booleanFormat) CellType() model.CellType { return model.Boolean }

func (f *booleanFormat) Parse(text string) (model.Value, error) {
	for _, s := range f.trueTexts {
		if strings.EqualFold(s, text) {
			return model.BooleanValue(true), nil
		}
	}
	for _, s := range f.falseTexts {
		if strings.EqualFold(s, text) {
			return model.BooleanValue(false), nil
		}
	}
	return model.Value{}, formatErr(text, f.pattern, "not a boolean")
}

func (f *booleanFormat) Format(v model.Value) (string, error) {
	v, err := convertFor(model.Boolean, v)
	if err != nil {
		return "", err
	}
	b, _ := v.Bool()
	if b {
		return f.trueTexts[0], nil
	}
	return f.falseTexts[0], nil
}
