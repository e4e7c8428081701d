// Package phone validates and formats the phone numbers accepted by the
// enrollment flow. Patterns are supplied by configuration; the package holds
// no defaults beyond what the caller passes in.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidNumber      = errors.New("phone number does not match the configured format")
	ErrInvalidCountryCode = errors.New("country code does not match the configured format")
)

// Validator checks numbers and country codes against compiled patterns.
type Validator struct {
	number      *regexp.Regexp
	countryCode *regexp.Regexp
}

// NewValidator compiles the given patterns. Both are anchored by the caller.
func NewValidator(numberPattern, countryCodePattern string) (*Validator, error) {
	n, err := regexp.Compile(numberPattern)
	if err != nil {
		return nil, err
	}
	c, err := regexp.Compile(countryCodePattern)
	if err != nil {
		return nil, err
	}
	return &Validator{number: n, countryCode: c}, nil
}

// Validate reports whether number and countryCode are both acceptable.
// The number is matched as given: no trimming or digit stripping.
func (v *Validator) Validate(number, countryCode string) error {
	if v == nil {
		return errors.New("phone validator not configured")
	}
	if !v.number.MatchString(number) {
		return ErrInvalidNumber
	}
	if !v.countryCode.MatchString(countryCode) {
		return ErrInvalidCountryCode
	}
	return nil
}

// Format renders "<countryCode> <digits>", dropping any non-digit from number.
func Format(countryCode, number string) string {
	return countryCode + " " + StripNonDigits(number)
}

// StripNonDigits removes every rune that is not an ASCII digit.
func StripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Mask keeps the last four digits visible, e.g. "******4567". Used in logs and
// audit metadata.
func Mask(number string) string {
	digits := StripNonDigits(number)
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
