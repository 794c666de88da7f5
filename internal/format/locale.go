package format

import (
	"fmt"
	"sync"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLocale is used when neither the schema nor the cell names one.
const DefaultLocale = "en"

// Locale carries the number symbols of a language tag.
type Locale struct {
	Tag     language.Tag
	Decimal rune
	Group   rune
}

// Symbols are immutable per tag, so they are shared by all sessions.
var locales sync.Map

// ResolveLocale parses a BCP 47 tag ("sv-SE", "de") and derives its decimal
// and grouping separators from the CLDR number formatting of x/text.
func ResolveLocale(name string) (Locale, error) {
	if name == "" {
		name = DefaultLocale
	}
	if v, ok := locales.Load(name); ok {
		return v.(Locale), nil
	}
	tag, err := language.Parse(name)
	if err != nil {
		return Locale{}, fmt.Errorf("locale %q: %w", name, err)
	}

	loc := Locale{Tag: tag, Decimal: '.', Group: ','}
	var seps []rune
	for _, r := range message.NewPrinter(tag).Sprintf("%.1f", 1234.5) {
		if !unicode.IsDigit(r) {
			seps = append(seps, r)
		}
	}
	switch {
	case len(seps) == 1:
		loc.Decimal, loc.Group = seps[0], 0
	case len(seps) >= 2:
		loc.Group, loc.Decimal = seps[0], seps[len(seps)-1]
	}

	locales.Store(name, loc)
	return loc, nil
}

// isGroup accepts the locale group separator, and a plain space wherever
// the locale groups with a no-break space.
func (l Locale) isGroup(r rune) bool {
	if l.Group == 0 {
		return r == ','
	}
	if r == l.Group {
		return true
	}
	return r == ' ' && (l.Group == '\u00a0' || l.Group == '\u202f')
}

func (l Locale) groupRune() rune {
	if l.Group == 0 {
		return ','
	}
	return l.Group
}
