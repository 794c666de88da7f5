package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrPrecisionLoss is returned when a numeric conversion would change the value.
	ErrPrecisionLoss = errors.New("conversion loses precision")
	// ErrIncomparable is returned when two values have no common ordering.
	ErrIncomparable = errors.New("values are not comparable")
	// ErrWrongType is returned by accessors called on a value of another kind.
	ErrWrongType = errors.New("value has a different cell type")
)

const (
	canonicalDate     = "2006-01-02"
	canonicalDateTime = "2006-01-02T15:04:05.999999999Z07:00"
	maxExactFloatInt  = 1 << 53
)

// Value is a typed cell value. The zero Value is an empty STRING.
type Value struct {
	kind   CellType
	str    string
	i      int64
	f      float64
	dec    decimal.Decimal
	b      bool
	t      time.Time
	custom any
}

func StringValue(s string) Value { return Value{kind: String, str: s} }
func IntegerValue(i int64) Value { return Value{kind: Integer, i: i} }
func FloatValue(f float64) Value { return Value{kind: Float, f: f} }
func DecimalValue(d decimal.Decimal) Value { return Value{kind: Decimal, dec: d} }
func BooleanValue(b bool) Value { return Value{kind: Boolean, b: b} }
func DateValue(t time.Time) Value { return Value{kind: Date, t: t} }
func DateTimeValue(t time.Time) Value { return Value{kind: DateTime, t: t} }

// CustomValue wraps an opaque value produced by a caller supplied formatter.
func CustomValue(v any) Value { return Value{kind: Custom, custom: v} }

// Kind returns the cell type of the value.
func (v Value) Kind() CellType { return v.kind }

func (v Value) Str() (string, error) {
	if v.kind != String {
		return "", fmt.Errorf("%w: want STRING, have %s", ErrWrongType, v.kind)
	}
	return v.str, nil
}

func (v Value) Bool() (bool, error) {
	if v.kind != Boolean {
		return false, fmt.Errorf("%w: want BOOLEAN, have %s", ErrWrongType, v.kind)
	}
	return v.b, nil
}

func (v Value) Time() (time.Time, error) {
	if !v.kind.IsTemporal() {
		return time.Time{}, fmt.Errorf("%w: want DATE or DATE_TIME, have %s", ErrWrongType, v.kind)
	}
	return v.t, nil
}

func (v Value) Custom() (any, error) {
	if v.kind != Custom {
		return nil, fmt.Errorf("%w: want CUSTOM, have %s", ErrWrongType, v.kind)
	}
	return v.custom, nil
}

// Int64 returns the value as an integer. Floats and decimals with a
// fractional part, or outside the int64 range, fail with ErrPrecisionLoss.
func (v Value) Int64() (int64, error) {
	switch v.kind {
	case Integer:
		return v.i, nil
	case Float:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) || math.Trunc(v.f) != v.f ||
			v.f < math.MinInt64 || v.f >= math.MaxInt64 {
			return 0, fmt.Errorf("%w: %v to INTEGER", ErrPrecisionLoss, v.f)
		}
		return int64(v.f), nil
	case Decimal:
		if !v.dec.IsInteger() ||
			v.dec.Cmp(decimal.NewFromInt(math.MaxInt64)) > 0 ||
			v.dec.Cmp(decimal.NewFromInt(math.MinInt64)) < 0 {
			return 0, fmt.Errorf("%w: %s to INTEGER", ErrPrecisionLoss, v.dec)
		}
		return v.dec.IntPart(), nil
	}
	return 0, fmt.Errorf("%w: want a number, have %s", ErrWrongType, v.kind)
}

// Int32 narrows Int64 further, failing when the value does not fit.
func (v Value) Int32() (int32, error) {
	i, err := v.Int64()
	if err != nil {
		return 0, err
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d does not fit in 32 bits", ErrPrecisionLoss, i)
	}
	return int32(i), nil
}

// Float64 returns the value as a float. Integers beyond 2^53 and decimals
// that do not survive the round trip fail with ErrPrecisionLoss.
func (v Value) Float64() (float64, error) {
	switch v.kind {
	case Float:
		return v.f, nil
	case Integer:
		if v.i > maxExactFloatInt || v.i < -maxExactFloatInt {
			return 0, fmt.Errorf("%w: %d to FLOAT", ErrPrecisionLoss, v.i)
		}
		return float64(v.i), nil
	case Decimal:
		f := v.dec.InexactFloat64()
		if math.IsInf(f, 0) || !decimal.NewFromFloat(f).Equal(v.dec) {
			return 0, fmt.Errorf("%w: %s to FLOAT", ErrPrecisionLoss, v.dec)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: want a number, have %s", ErrWrongType, v.kind)
}

// Decimal returns the value as a decimal. Every finite number widens exactly.
func (v Value) Decimal() (decimal.Decimal, error) {
	switch v.kind {
	case Decimal:
		return v.dec, nil
	case Integer:
		return decimal.NewFromInt(v.i), nil
	case Float:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return decimal.Decimal{}, fmt.Errorf("%w: %v has no decimal form", ErrPrecisionLoss, v.f)
		}
		return decimal.NewFromFloat(v.f), nil
	}
	return decimal.Decimal{}, fmt.Errorf("%w: want a number, have %s", ErrWrongType, v.kind)
}

// Text returns the canonical text of the value. It is independent of any
// schema pattern or locale and is the inverse of ParseText.
func (v Value) Text() string {
	switch v.kind {
	case String:
		return v.str
	case Integer:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Decimal:
		return v.dec.String()
	case Boolean:
		return strconv.FormatBool(v.b)
	case Date:
		return v.t.Format(canonicalDate)
	case DateTime:
		return v.t.Format(canonicalDateTime)
	case Custom:
		if s, ok := v.custom.(fmt.Stringer); ok {
			return s.String()
		}
		if v.custom == nil {
			return ""
		}
		return fmt.Sprint(v.custom)
	}
	return ""
}

func (v Value) String() string { return v.Text() }

// ParseText reads the canonical text produced by Value.Text.
func ParseText(kind CellType, s string) (Value, error) {
	switch kind {
	case String:
		return StringValue(s), nil
	case Integer:
		i, err := strconv.ParseInt(strings.TrimPrefix(s, "+"), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse INTEGER %q: %w", s, err)
		}
		return IntegerValue(i), nil
	case Float:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse FLOAT %q: %w", s, err)
		}
		return FloatValue(f), nil
	case Decimal:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Value{}, fmt.Errorf("parse DECIMAL %q: %w", s, err)
		}
		return DecimalValue(d), nil
	case Boolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("parse BOOLEAN %q: %w", s, err)
		}
		return BooleanValue(b), nil
	case Date:
		t, err := time.Parse(canonicalDate, s)
		if err != nil {
			return Value{}, fmt.Errorf("parse DATE %q: %w", s, err)
		}
		return DateValue(t), nil
	case DateTime:
		t, err := time.Parse(canonicalDateTime, s)
		if err != nil {
			return Value{}, fmt.Errorf("parse DATE_TIME %q: %w", s, err)
		}
		return DateTimeValue(t), nil
	case Custom:
		return CustomValue(s), nil
	}
	return Value{}, fmt.Errorf("parse %q: unknown cell type %s", s, kind)
}

// Convert returns v as a value of the target kind. Numeric widening is
// implicit, lossy narrowing fails with ErrPrecisionLoss. Anything converts to
// STRING through its canonical text and STRING converts through ParseText.
func Convert(v Value, to CellType) (Value, error) {
	if v.kind == to {
		return v, nil
	}
	if v.kind.IsNumeric() && to.IsNumeric() {
		switch to {
		case Integer:
			i, err := v.Int64()
			return IntegerValue(i), err
		case Float:
			f, err := v.Float64()
			return FloatValue(f), err
		case Decimal:
			d, err := v.Decimal()
			return DecimalValue(d), err
		}
	}
	if v.kind.IsTemporal() && to.IsTemporal() {
		return Value{kind: to, t: v.t}, nil
	}
	switch {
	case to == String:
		return StringValue(v.Text()), nil
	case to == Custom:
		return CustomValue(v.Text()), nil
	case v.kind == String, v.kind == Custom:
		return ParseText(to, v.Text())
	}
	return Value{}, fmt.Errorf("convert %s to %s: %w", v.kind, to, ErrIncomparable)
}

// Compare orders two values. Numbers compare by value regardless of their
// subtype, dates chronologically, strings lexically and false before true.
func Compare(a, b Value) (int, error) {
	switch {
	case a.kind.IsNumeric() && b.kind.IsNumeric():
		return compareNumbers(a, b)
	case a.kind.IsTemporal() && b.kind.IsTemporal():
		return a.t.Compare(b.t), nil
	case a.kind == String && b.kind == String:
		return strings.Compare(a.str, b.str), nil
	case a.kind == Boolean && b.kind == Boolean:
		switch {
		case a.b == b.b:
			return 0, nil
		case !a.b:
			return -1, nil
		}
		return 1, nil
	case a.kind == Custom && b.kind == Custom:
		return strings.Compare(a.Text(), b.Text()), nil
	}
	return 0, fmt.Errorf("%w: %s and %s", ErrIncomparable, a.kind, b.kind)
}

func compareNumbers(a, b Value) (int, error) {
	if a.kind == Integer && b.kind == Integer {
		return cmpInt(a.i, b.i), nil
	}
	if isNonFinite(a) || isNonFinite(b) {
		af, _ := a.asInexactFloat()
		bf, _ := b.asInexactFloat()
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		case af == bf:
			return 0, nil
		}
		return 0, fmt.Errorf("%w: NaN", ErrIncomparable)
	}
	ad, err := a.Decimal()
	if err != nil {
		return 0, err
	}
	bd, err := b.Decimal()
	if err != nil {
		return 0, err
	}
	return ad.Cmp(bd), nil
}

// Equal reports whether a and b compare as equal.
func Equal(a, b Value) bool {
	c, err := Compare(a, b)
	return err == nil && c == 0
}

func isNonFinite(v Value) bool {
	return v.kind == Float && (math.IsNaN(v.f) || math.IsInf(v.f, 0))
}

func (v Value) asInexactFloat() (float64, bool) {
	switch v.kind {
	case Float:
		return v.f, true
	case Integer:
		return float64(v.i), true
	case Decimal:
		return v.dec.InexactFloat64(), true
	}
	return 0, false
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
