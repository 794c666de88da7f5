package format

import (
	"strconv"
	"strings"
	"time"

	"github.com/vjeantet/jodaTime"

	"flatcodec/internal/model"
)

const (
	defaultDatePattern     = "yyyy-MM-dd"
	defaultDateTimePattern = "yyyy-MM-dd HH:mm:ss"
)

// dateLetters are the supported SimpleDateFormat pattern letters.
const dateLetters = "yMdDHkKhmsSaEZXz"

var (
	monthNames   = []string{"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"}
	weekdayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
)

// dateToken is one field of a date pattern, or a literal when letter is 0.
type dateToken struct {
	letter rune
	width  int
	lit    string
}

func (t dateToken) numeric() bool {
	switch t.letter {
	case 'y', 'd', 'D', 'H', 'k', 'K', 'h', 'm', 's', 'S':
		return true
	case 'M':
		return t.width < 3
	}
	return false
}

// tokenizeDate splits a java.text.SimpleDateFormat pattern into fields and
// literals. Text in single quotes is literal and '' is one quote.
func tokenizeDate(p string) ([]dateToken, error) {
	var toks []dateToken
	addLit := func(s string) {
		if n := len(toks); n > 0 && toks[n-1].letter == 0 {
			toks[n-1].lit += s
			return
		}
		toks = append(toks, dateToken{lit: s})
	}

	rs := []rune(p)
	for i := 0; i < len(rs); {
		r := rs[i]

		if r == '\'' {
			end := i + 1
			var lit strings.Builder
			for end < len(rs) {
				if rs[end] == '\'' {
					if end+1 < len(rs) && rs[end+1] == '\'' {
						lit.WriteRune('\'')
						end += 2
						continue
					}
					break
				}
				lit.WriteRune(rs[end])
				end++
			}
			if end >= len(rs) {
				return nil, formatErr(p, p, "unterminated quote")
			}
			if i+1 == end {
				lit.WriteRune('\'')
			}
			addLit(lit.String())
			i = end + 1
			continue
		}

		if !isASCIILetter(r) {
			addLit(string(r))
			i++
			continue
		}
		if !strings.ContainsRune(dateLetters, r) {
			return nil, formatErr(p, p, "unsupported date pattern letter %q", r)
		}
		n := 1
		for i+n < len(rs) && rs[i+n] == r {
			n++
		}
		toks = append(toks, dateToken{letter: r, width: n})
		i += n
	}
	return toks, nil
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

type timeFormat struct {
	kind    model.CellType
	pattern string
	tokens  []dateToken
}

func newTimeFormat(kind model.CellType, pattern string) (*timeFormat, error) {
	if pattern == "" {
		pattern = defaultDatePattern
		if kind == model.DateTime {
			pattern = defaultDateTimePattern
		}
	}
	toks, err := tokenizeDate(pattern)
	if err != nil {
		return nil, err
	}
	return &timeFormat{kind: kind, pattern: pattern, tokens: toks}, nil
}

func (f *timeFormat) CellType() model.CellType { return f.kind }

func (f *timeFormat) Parse(text string) (model.Value, error) {
	t, err := f.parseTime(text)
	if err != nil {
		return model.Value{}, err
	}
	if f.kind == model.Date {
		return model.DateValue(t), nil
	}
	return model.DateTimeValue(t), nil
}

func (f *timeFormat) Format(v model.Value) (string, error) {
	v, err := convertFor(f.kind, v)
	if err != nil {
		return "", err
	}
	t, _ := v.Time()

	var b strings.Builder
	for _, tok := range f.tokens {
		switch tok.letter {
		case 0:
			b.WriteString(tok.lit)
		case 'Z':
			b.WriteString(t.Format("-0700"))
		case 'X':
			b.WriteString(t.Format(isoZoneLayout(tok.width)))
		case 'z':
			b.WriteString(t.Format("MST"))
		default:
			b.WriteString(jodaTime.Format(strings.Repeat(string(tok.letter), tok.width), t))
		}
	}
	return b.String(), nil
}

func isoZoneLayout(width int) string {
	switch width {
	case 1:
		return "Z07"
	case 2:
		return "Z0700"
	}
	return "Z07:00"
}

// parseTime reads text field by field. A numeric field directly followed by
// another numeric field takes exactly its pattern width; otherwise it takes
// every digit present. The whole text must be consumed.
func (f *timeFormat) parseTime(text string) (time.Time, error) {
	var (
		year, month, day = 1970, 1, 1
		yearDay          int
		hour, minute     int
		sec, nsec        int
		halfDay, pm      bool
		weekday          = -1
		loc              = time.UTC
	)
	fail := func(reason string, args ...any) (time.Time, error) {
		return time.Time{}, formatErr(text, f.pattern, reason, args...)
	}

	pos := 0
	for i, tok := range f.tokens {
		rest := text[pos:]
		if tok.letter == 0 {
			if !strings.HasPrefix(rest, tok.lit) {
				return fail("expected %q at position %d", tok.lit, pos)
			}
			pos += len(tok.lit)
			continue
		}

		if tok.numeric() {
			width := 0
			if i+1 < len(f.tokens) && f.tokens[i+1].numeric() {
				width = tok.width
			}
			n, size, ok := leadingNumber(rest, width)
			if !ok {
				return fail("expected %d digits for %q at position %d", max(width, 1), tok.letter, pos)
			}
			pos += size
			var lo, hi int
			switch tok.letter {
			case 'y':
				year, lo, hi = n, 0, 9999
				if tok.width == 2 && size == 2 {
					year = pivotYear(n)
				}
			case 'M':
				month, lo, hi = n, 1, 12
			case 'd':
				day, lo, hi = n, 1, 31
			case 'D':
				yearDay, lo, hi = n, 1, 366
			case 'H':
				hour, lo, hi = n, 0, 23
			case 'k':
				hour, lo, hi = n%24, 1, 24
			case 'K':
				hour, halfDay, lo, hi = n, true, 0, 11
			case 'h':
				hour, halfDay, lo, hi = n%12, true, 1, 12
			case 'm':
				minute, lo, hi = n, 0, 59
			case 's':
				sec, lo, hi = n, 0, 59
			case 'S':
				nsec, lo, hi = n*int(time.Millisecond), 0, 999
			}
			if n < lo || n > hi {
				return fail("%q value %d out of range %d-%d", tok.letter, n, lo, hi)
			}
			continue
		}

		switch tok.letter {
		case 'M':
			idx, size := matchName(rest, monthNames)
			if size == 0 {
				return fail("expected month name at position %d", pos)
			}
			month, pos = idx+1, pos+size
		case 'E':
			idx, size := matchName(rest, weekdayNames)
			if size == 0 {
				return fail("expected day name at position %d", pos)
			}
			weekday, pos = idx, pos+size
		case 'a':
			idx, size := matchName(rest, []string{"AM", "PM"})
			if size == 0 {
				return fail("expected AM or PM at position %d", pos)
			}
			pm, pos = idx == 1, pos+size
		case 'Z', 'X':
			z, size, ok := parseOffset(rest, tok)
			if !ok {
				return fail("expected zone offset at position %d", pos)
			}
			loc, pos = z, pos+size
		case 'z':
			size := 0
			for size < len(rest) && isASCIILetter(rune(rest[size])) {
				size++
			}
			if size == 0 {
				return fail("expected zone name at position %d", pos)
			}
			if name := rest[:size]; name != "UTC" && name != "GMT" {
				loc = time.FixedZone(name, 0)
			}
			pos += size
		}
	}
	if pos != len(text) {
		return fail("unexpected %q after position %d", text[pos:], pos)
	}

	if halfDay && pm {
		hour += 12
	}
	t := time.Date(year, time.Month(month), day, hour, minute, sec, nsec, loc)
	if yearDay > 0 {
		t = time.Date(year, 1, yearDay, hour, minute, sec, nsec, loc)
		if t.Year() != year {
			return fail("day %d is not in %d", yearDay, year)
		}
	} else if t.Day() != day || int(t.Month()) != month {
		return fail("day %d is not in month %d", day, month)
	}
	if weekday >= 0 && int(t.Weekday()) != weekday {
		return fail("%s is not a %s", t.Format(time.DateOnly), weekdayNames[weekday])
	}
	return t, nil
}

// pivotYear places a two digit year like time.Parse does: 69-99 in the
// 1900s, 00-68 in the 2000s.
func pivotYear(n int) int {
	if n >= 69 {
		return 1900 + n
	}
	return 2000 + n
}

// leadingNumber reads the digits at the start of s. With width > 0 exactly
// width digits are required.
func leadingNumber(s string, width int) (n, size int, ok bool) {
	for size < len(s) && s[size] >= '0' && s[size] <= '9' && (width == 0 || size < width) {
		size++
	}
	if size == 0 || (width > 0 && size != width) {
		return 0, 0, false
	}
	n, err := strconv.Atoi(s[:size])
	if err != nil {
		return 0, 0, false
	}
	return n, size, true
}

// matchName matches the start of s against full names, then their three
// letter forms, ignoring case.
func matchName(s string, names []string) (idx, size int) {
	for i, name := range names {
		if len(s) >= len(name) && strings.EqualFold(s[:len(name)], name) {
			return i, len(name)
		}
	}
	for i, name := range names {
		if len(name) > 3 && len(s) >= 3 && strings.EqualFold(s[:3], name[:3]) {
			return i, 3
		}
	}
	return 0, 0
}

// parseOffset reads a zone offset: +hhmm for Z; Z, +hh, +hhmm or +hh:mm
// for X depending on its width.
func parseOffset(s string, tok dateToken) (*time.Location, int, bool) {
	if tok.letter == 'X' && strings.HasPrefix(s, "Z") {
		return time.UTC, 1, true
	}
	if len(s) < 3 || (s[0] != '+' && s[0] != '-') {
		return nil, 0, false
	}
	hh, _, ok := leadingNumber(s[1:], 2)
	if !ok {
		return nil, 0, false
	}
	size := 3
	mm := 0
	rest := s[size:]
	colon := tok.letter == 'X' && tok.width >= 3
	switch {
	case colon:
		if !strings.HasPrefix(rest, ":") {
			return nil, 0, false
		}
		if mm, _, ok = leadingNumber(rest[1:], 2); !ok {
			return nil, 0, false
		}
		size += 3
	case tok.letter == 'Z' || tok.width == 2:
		if mm, _, ok = leadingNumber(rest, 2); !ok {
			return nil, 0, false
		}
		size += 2
	default:
		if m, n, ok := leadingNumber(rest, 2); ok {
			mm, size = m, size+n
		}
	}
	if hh > 23 || mm > 59 {
		return nil, 0, false
	}
	offset := (hh*60 + mm) * 60
	if s[0] == '-' {
		offset = -offset
	}
	if offset == 0 {
		return time.UTC, size, true
	}
	return time.FixedZone("", offset), size, true
}
