package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail_Valid(t *testing.T) {
	n, ok := ValidateEmail(" Ana@Example.com ")
	assert.True(t, ok)
	assert.Equal(t, "ana@example.com", n)
}

func TestValidateEmail_RejectsFakeDigitRun(t *testing.T) {
	_, ok := ValidateEmail("111111@example.com")
	assert.False(t, ok)
}

func TestValidateEmail_RejectsSequentialPlaceholder(t *testing.T) {
	_, ok := ValidateEmail("123456789@example.com")
	assert.False(t, ok)
}

func TestValidateEmail_RejectsMalformed(t *testing.T) {
	_, ok := ValidateEmail("not-an-email")
	assert.False(t, ok)
}

func TestValidatePhone_AcceptsMobileWithFormatting(t *testing.T) {
	digits, ok := ValidatePhone("+55 11 98888-7777")
	assert.True(t, ok)
	assert.Equal(t, "11988887777", digits)
	assert.Equal(t, "+5511988887777", E164(digits))
}

func TestValidatePhone_RejectsShortNumber(t *testing.T) {
	_, ok := ValidatePhone("1234567")
	assert.False(t, ok)
}

func TestValidatePhone_RejectsInvalidAreaCode(t *testing.T) {
	_, ok := ValidatePhone("0912345678")
	assert.False(t, ok)
}
