package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormalizesCurrency(t *testing.T) {
	m, err := New(1_500, "rub")
	require.NoError(t, err)
	assert.Equal(t, "RUB", m.Currency)

	_, err = New(100, "ruble")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestArithmetic(t *testing.T) {
	a := Must(1_000, "RUB")
	b := Must(250, "RUB")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1_250), sum.Amount)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(750), diff.Amount)

	_, err = a.Add(Must(100, "USD"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	assert.Equal(t, int64(3_000), a.Multiply(3).Amount)
}

func TestPercentTruncates(t *testing.T) {
	m := Must(101, "RUB")

	assert.Equal(t, int64(30), m.Percent(30).Amount) // 30.3 truncated
	assert.Equal(t, int64(101), m.Percent(100).Amount)
	assert.True(t, m.Percent(0).IsZero())
	assert.True(t, m.Percent(-5).IsZero())
}
