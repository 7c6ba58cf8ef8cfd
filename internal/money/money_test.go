package money

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundingApply(t *testing.T) {
	tests := []struct {
		mode RoundingMode
		in   string
		want string
	}{
		{HalfUp, "33.335", "33.34"},
		{HalfUp, "33.334", "33.33"},
		{HalfUp, "0.005", "0.01"},
		{HalfEven, "33.335", "33.34"},
		{HalfEven, "33.345", "33.34"},
		{Down, "33.339", "33.33"},
		{Up, "33.331", "33.34"},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode)+"/"+tt.in, func(t *testing.T) {
			r := Rounding{Mode: tt.mode, Places: Scale}
			got := r.Apply(decimal.RequireFromString(tt.in))
			assert.Equal(t, tt.want, Format(got))
		})
	}
}

func TestParseRounding(t *testing.T) {
	r, err := ParseRounding("half_even")
	require.NoError(t, err)
	assert.Equal(t, HalfEven, r.Mode)
	assert.Equal(t, Scale, r.Places)

	r, err = ParseRounding("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRounding, r)

	_, err = ParseRounding("CEILING")
	assert.Error(t, err)
}

func TestCentsRoundTrip(t *testing.T) {
	cents, err := ToCents(decimal.RequireFromString("54.10"))
	require.NoError(t, err)
	assert.Equal(t, int64(5410), cents)
	assert.Equal(t, "54.10", Format(FromCents(cents)))

	_, err = ToCents(decimal.RequireFromString("1.005"))
	assert.Error(t, err)
}

func TestToCentsRange(t *testing.T) {
	hi, err := ToCents(decimal.RequireFromString("92233720368547758.07"))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), hi)

	lo, err := ToCents(decimal.RequireFromString("-92233720368547758.08"))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), lo)

	for _, in := range []string{"92233720368547758.08", "-92233720368547758.09", "100000000000000000000.00"} {
		_, err := ToCents(decimal.RequireFromString(in))
		assert.Error(t, err, in)
	}
}

func TestParse(t *testing.T) {
	d, err := Parse(" 90 ")
	require.NoError(t, err)
	assert.Equal(t, "90.00", Format(d))

	_, err = Parse("abc")
	assert.Error(t, err)

	_, err = Parse("10.001")
	assert.Error(t, err)

	d, err = Parse("999999999999.99")
	require.NoError(t, err)
	assert.True(t, d.Equal(MaxAmount))

	for _, in := range []string{"1000000000000", "-1000000000000.00", "100000000000000000000.00"} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}
