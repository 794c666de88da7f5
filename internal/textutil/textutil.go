// Package textutil has character-counted string helpers for fixed width
// layouts. Widths are in runes, never bytes.
package textutil

import (
	"strings"
	"unicode/utf8"
)

// Side selects where padding goes or which end of a string is kept.
type Side int

const (
	// Left pads on the right, keeping text flush left.
	Left Side = iota
	// Right pads on the left, keeping text flush right.
	Right
	// Center splits padding, the extra character going right.
	Center
)

// Width returns the number of characters in s.
func Width(s string) int { return utf8.RuneCountInString(s) }

// Pad fills s with fill up to width characters. Longer strings are returned
// unchanged.
func Pad(s string, width int, fill rune, side Side) string {
	n := width - Width(s)
	if n <= 0 {
		return s
	}
	f := string(fill)
	switch side {
	case Right:
		return strings.Repeat(f, n) + s
	case Center:
		before := n / 2
		return strings.Repeat(f, before) + s + strings.Repeat(f, n-before)
	}
	return s + strings.Repeat(f, n)
}

// Fit pads or cuts s to exactly width characters. Right keeps the right
// end of an over-long string, the other sides keep the left end.
func Fit(s string, width int, fill rune, side Side) string {
	n := Width(s)
	if n <= width {
		return Pad(s, width, fill, side)
	}
	r := []rune(s)
	if side == Right {
		return string(r[n-width:])
	}
	return string(r[:width])
}

// TrimFill removes fill characters from the padded side of s.
func TrimFill(s string, fill rune, side Side) string {
	isFill := func(r rune) bool { return r == fill }
	switch side {
	case Right:
		return strings.TrimLeftFunc(s, isFill)
	case Center:
		return strings.TrimFunc(s, isFill)
	}
	return strings.TrimRightFunc(s, isFill)
}

// IsBlank reports whether r holds only whitespace.
func IsBlank(r []rune) bool {
	for _, c := range r {
		switch c {
		case ' ', '\t', '\r', '\n', '\f', '\v':
		default:
			return false
		}
	}
	return true
}

// Truncate shortens a string to maxLen characters, appending "..." if
// truncated. It is meant for log fields.
func Truncate(s string, maxLen int) string {
	if Width(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
