package schema

import (
	"fmt"
	"regexp"
)

// Condition is a predicate over the text of a line's control cell.
type Condition interface {
	Satisfied(text string) bool
	fmt.Stringer
}

type equalsCondition string

// Equals matches control text identical to s.
func Equals(s string) Condition { return equalsCondition(s) }

func (c equalsCondition) Satisfied(text string) bool { return text == string(c) }
func (c equalsCondition) String() string { return fmt.Sprintf("equals %q", string(c)) }

type matchCondition struct{ re *regexp.Regexp }

// Matches matches control text accepted by the regular expression.
func Matches(pattern string) (Condition, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("line condition %q: %w", pattern, err)
	}
	return matchCondition{re: re}, nil
}

func (c matchCondition) Satisfied(text string) bool { return c.re.MatchString(text) }
func (c matchCondition) String() string { return "matches " + c.re.String() }

type emptyCondition struct{}

// Empty matches an empty control cell.
func Empty() Condition { return emptyCondition{} }

func (emptyCondition) Satisfied(text string) bool { return text == "" }
func (emptyCondition) String() string { return "empty" }
