package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBRL_CommaDecimalSeparator(t *testing.T) {
	a, err := ParseBRL("1.234,56")
	require.NoError(t, err)
	assert.Equal(t, int64(123456), a.Minor)
	assert.Equal(t, "1234.56", a.String())
}

func TestParseBRL_Empty(t *testing.T) {
	a, err := ParseBRL("")
	require.NoError(t, err)
	assert.Equal(t, int64(0), a.Minor)
}

func TestAmount_MulRat_IncomeAdjustment(t *testing.T) {
	a, err := ParseBRL("1000,00")
	require.NoError(t, err)
	adjusted := a.MulRat(19, 10)
	assert.Equal(t, "1900.00", adjusted.String())
}
