package model

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareMixedNumbers(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"int vs int", IntegerValue(7), IntegerValue(12), -1},
		{"int vs decimal equal", IntegerValue(42), DecimalValue(decimal.RequireFromString("42.00")), 0},
		{"float vs int", FloatValue(2.5), IntegerValue(2), 1},
		{"decimal vs float", DecimalValue(decimal.RequireFromString("0.1")), FloatValue(0.1), 0},
		{"negative", IntegerValue(-3), FloatValue(-2.9), -1},
		{"numeric not lexical", IntegerValue(9), IntegerValue(10), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareOtherKinds(t *testing.T) {
	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	c, err := Compare(DateValue(d1), DateTimeValue(d2))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = Compare(BooleanValue(false), BooleanValue(true))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = Compare(StringValue("b"), StringValue("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	_, err = Compare(StringValue("1"), IntegerValue(1))
	assert.ErrorIs(t, err, ErrIncomparable)

	_, err = Compare(FloatValue(math.NaN()), IntegerValue(1))
	assert.ErrorIs(t, err, ErrIncomparable)
}

func TestNarrowingReportsPrecisionLoss(t *testing.T) {
	_, err := FloatValue(2.5).Int64()
	assert.ErrorIs(t, err, ErrPrecisionLoss)

	_, err = DecimalValue(decimal.RequireFromString("1.01")).Int64()
	assert.ErrorIs(t, err, ErrPrecisionLoss)

	_, err = IntegerValue(math.MaxInt32 + 1).Int32()
	assert.ErrorIs(t, err, ErrPrecisionLoss)

	_, err = IntegerValue(1<<53 + 1).Float64()
	assert.ErrorIs(t, err, ErrPrecisionLoss)

	i, err := DecimalValue(decimal.RequireFromString("12.000")).Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(12), i)

	f, err := IntegerValue(3).Float64()
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	_, err = StringValue("3").Int64()
	assert.True(t, errors.Is(err, ErrWrongType))
}

func TestConvert(t *testing.T) {
	v, err := Convert(IntegerValue(5), Decimal)
	require.NoError(t, err)
	assert.Equal(t, Decimal, v.Kind())
	assert.Equal(t, "5", v.Text())

	v, err = Convert(StringValue("17"), Integer)
	require.NoError(t, err)
	assert.True(t, Equal(v, IntegerValue(17)))

	v, err = Convert(FloatValue(1.5), String)
	require.NoError(t, err)
	assert.Equal(t, "1.5", v.Text())

	_, err = Convert(FloatValue(1.5), Integer)
	assert.ErrorIs(t, err, ErrPrecisionLoss)

	_, err = Convert(BooleanValue(true), Date)
	assert.Error(t, err)
}

func TestTextRoundTrip(t *testing.T) {
	when := time.Date(2007, 7, 7, 13, 45, 0, 120, time.UTC)
	values := []Value{
		StringValue("Erik"),
		IntegerValue(-42),
		FloatValue(3.25),
		DecimalValue(decimal.RequireFromString("1234.50")),
		BooleanValue(true),
		DateValue(time.Date(2007, 7, 7, 0, 0, 0, 0, time.UTC)),
		DateTimeValue(when),
	}
	for _, v := range values {
		t.Run(v.Kind().String(), func(t *testing.T) {
			back, err := ParseText(v.Kind(), v.Text())
			require.NoError(t, err)
			assert.True(t, Equal(v, back), "%s != %s", v.Text(), back.Text())
		})
	}
}

func TestParseCellType(t *testing.T) {
	ct, err := ParseCellType("datetime")
	require.NoError(t, err)
	assert.Equal(t, DateTime, ct)

	ct, err = ParseCellType("")
	require.NoError(t, err)
	assert.Equal(t, String, ct)

	_, err = ParseCellType("money")
	assert.Error(t, err)
	assert.Equal(t, "DATE_TIME", DateTime.String())
}
