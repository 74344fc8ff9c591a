// Package identity validates and normalizes the two identifier channels
// the enrichment pipeline accepts: email and Brazilian phone numbers.
package identity

import (
	"regexp"
	"strconv"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// hasFakeDigitRun reports whether s contains six or more identical
// consecutive digits.
func hasFakeDigitRun(s string) bool {
	run := 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] < '0' || s[i] > '9':
			run = 0
		case i > 0 && s[i] == s[i-1]:
			run++
		default:
			run = 1
		}
		if run >= 6 {
			return true
		}
	}
	return false
}

const fakeSequential = "123456789"

// ValidateEmail reports whether raw is a well-formed email that is not a
// fake-number placeholder (six or more identical consecutive digits, or
// the literal sequence "123456789" anywhere in the local part).
func ValidateEmail(raw string) (normalized string, ok bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || !emailPattern.MatchString(raw) {
		return "", false
	}
	local := strings.SplitN(raw, "@", 2)[0]
	if hasFakeDigitRun(local) || strings.Contains(local, fakeSequential) {
		return "", false
	}
	return raw, true
}

var nonDigit = regexp.MustCompile(`\D`)

// ValidatePhone strips raw to digits and validates it as a Brazilian
// mobile or landline number: 10 or 11 digits total, with a leading area
// code in [11, 99]. Returns the stripped digits for lookup use.
func ValidatePhone(raw string) (digits string, ok bool) {
	digits = nonDigit.ReplaceAllString(raw, "")
	if len(digits) > 11 {
		digits = strings.TrimPrefix(digits, "55") // tolerate a leading country code
	}
	if len(digits) < 10 || len(digits) > 11 {
		return "", false
	}
	areaCode, err := strconv.Atoi(digits[:2])
	if err != nil || areaCode < 11 || areaCode > 99 {
		return "", false
	}
	return digits, true
}

// E164 renders validated Brazilian phone digits in E.164 form for
// storage (+55 followed by the national digits).
func E164(digits string) string {
	return "+55" + digits
}

// DigitsOnly strips every non-digit rune from raw, used for normalizing
// a tax_id (CPF/CNPJ) supplied as a free-form query parameter.
func DigitsOnly(raw string) string {
	return nonDigit.ReplaceAllString(raw, "")
}
