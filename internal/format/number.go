package format

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"flatcodec/internal/model"
)

// numberPattern is the supported subset of java.text.DecimalFormat:
// '0' mandatory digit, '#' optional digit, ',' grouping, '.' fraction.
type numberPattern struct {
	minInt   int
	grouping int
	minFrac  int
	maxFrac  int // -1 means unlimited
}

func parseNumberPattern(p string) (numberPattern, error) {
	if p == "" {
		return numberPattern{minInt: 1, maxFrac: -1}, nil
	}
	np := numberPattern{}
	intPart, fracPart, hasFrac := strings.Cut(p, ".")
	if strings.ContainsAny(fracPart, ".,") {
		return np, formatErr(p, p, "misplaced separator in number pattern")
	}

	digitsSinceGroup := -1
	for _, r := range intPart {
		switch r {
		case '0':
			np.minInt++
		case '#':
			if np.minInt > 0 {
				return np, formatErr(p, p, "'#' after '0' in number pattern")
			}
		case ',':
			digitsSinceGroup = 0
			continue
		default:
			return np, formatErr(p, p, "unsupported character %q in number pattern", r)
		}
		if digitsSinceGroup >= 0 {
			digitsSinceGroup++
		}
	}
	if digitsSinceGroup > 0 {
		np.grouping = digitsSinceGroup
	}

	if hasFrac {
		for _, r := range fracPart {
			switch r {
			case '0':
				if np.maxFrac > np.minFrac {
					return np, formatErr(p, p, "'0' after '#' in number pattern")
				}
				np.minFrac++
				np.maxFrac++
			case '#':
				np.maxFrac++
			default:
				return np, formatErr(p, p, "unsupported character %q in number pattern", r)
			}
		}
	}
	return np, nil
}

// normalize strips localised separators and returns a plain "-123.45"
// string. Any character that is not part of the number rejects the text.
func (np numberPattern) normalize(text, pattern string, loc Locale) (string, error) {
	if text == "" {
		return "", formatErr(text, pattern, "empty number")
	}
	var b strings.Builder
	b.Grow(len(text))
	digits, seenDecimal := 0, false
	for i, r := range text {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case i == 0 && (r == '-' || r == '+'):
			if r == '-' {
				b.WriteByte('-')
			}
		case r == loc.Decimal && !seenDecimal:
			b.WriteByte('.')
			seenDecimal = true
		case np.grouping > 0 && !seenDecimal && loc.isGroup(r):
		default:
			return "", formatErr(text, pattern, "unexpected character %q", r)
		}
	}
	if digits == 0 {
		return "", formatErr(text, pattern, "no digits")
	}
	return b.String(), nil
}

func (np numberPattern) format(d decimal.Decimal, loc Locale) string {
	if np.maxFrac >= 0 {
		d = d.Round(int32(np.maxFrac))
	}
	intPart, frac, _ := strings.Cut(d.Abs().String(), ".")
	for len(frac) < np.minFrac {
		frac += "0"
	}
	for len(intPart) < np.minInt {
		intPart = "0" + intPart
	}
	if np.minInt == 0 && intPart == "0" && frac != "" {
		intPart = ""
	}
	if np.grouping > 0 && len(intPart) > np.grouping {
		intPart = group(intPart, np.grouping, loc.groupRune())
	}

	var b strings.Builder
	if d.Sign() < 0 {
		b.WriteByte('-')
	}
	b.WriteString(intPart)
	if frac != "" {
		b.WriteRune(loc.Decimal)
		b.WriteString(frac)
	}
	return b.String()
}

func group(digits string, size int, sep rune) string {
	var b strings.Builder
	lead := len(digits) % size
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += size {
		if b.Len() > 0 {
			b.WriteRune(sep)
		}
		b.WriteString(digits[i : i+size])
	}
	return b.String()
}

type numberFormat struct {
	kind    model.CellType
	pattern string
	np      numberPattern
	loc     Locale
}

func newNumberFormat(kind model.CellType, pattern string, loc Locale) (*numberFormat, error) {
	np, err := parseNumberPattern(pattern)
	if err != nil {
		return nil, err
	}
	return &numberFormat{kind: kind, pattern: pattern, np: np, loc: loc}, nil
}

func (f *numberFormat) CellType() model.CellType { return f.kind }

func (f *numberFormat) Parse(text string) (model.Value, error) {
	plain, err := f.np.normalize(text, f.pattern, f.loc)
	if err != nil {
		return model.Value{}, err
	}
	switch f.kind {
	case model.Integer:
		d, err := decimal.NewFromString(plain)
		if err != nil {
			return model.Value{}, formatErr(text, f.pattern, "%v", err)
		}
		i, err := model.DecimalValue(d).Int64()
		if err != nil {
			return model.Value{}, formatErr(text, f.pattern, "not an integer")
		}
		return model.IntegerValue(i), nil
	case model.Float:
		v, err := strconv.ParseFloat(plain, 64)
		if err != nil {
			return model.Value{}, formatErr(text, f.pattern, "out of range")
		}
		return model.FloatValue(v), nil
	default:
		d, err := decimal.NewFromString(plain)
		if err != nil {
			return model.Value{}, formatErr(text, f.pattern, "%v", err)
		}
		return model.DecimalValue(d), nil
	}
}

func (f *numberFormat) Format(v model.Value) (string, error) {
	v, err := convertFor(f.kind, v)
	if err != nil {
		return "", err
	}
	if f.kind == model.Float {
		if x, _ := v.Float64(); math.IsNaN(x) || math.IsInf(x, 0) {
			return strconv.FormatFloat(x, 'g', -1, 64), nil
		}
	}
	d, err := v.Decimal()
	if err != nil {
		return "", err
	}
	return f.np.format(d, f.loc), nil
}
