package phone

import (
	"errors"
	"testing"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(`^\d{10}$`, `^\+\d{1,4}$`)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestValidateTenDigitRule(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name   string
		number string
		want   error
	}{
		{"ten digits", "5551234567", nil},
		{"nine digits", "555123456", ErrInvalidNumber},
		{"eleven digits", "55512345678", ErrInvalidNumber},
		{"dashes", "555-123-4567", ErrInvalidNumber},
		{"letters", "55512345ab", ErrInvalidNumber},
		{"surrounding space", " 5551234567", ErrInvalidNumber},
		{"empty", "", ErrInvalidNumber},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.number, "+1")
			if !errors.Is(err, tc.want) && !(err == nil && tc.want == nil) {
				t.Fatalf("Validate(%q) = %v, want %v", tc.number, err, tc.want)
			}
		})
	}
}

func TestValidateCountryCode(t *testing.T) {
	v := newTestValidator(t)

	for _, cc := range []string{"+1", "+44", "+1242"} {
		if err := v.Validate("5551234567", cc); err != nil {
			t.Fatalf("Validate(cc=%q) = %v", cc, err)
		}
	}
	for _, cc := range []string{"", "1", "+", "+12345", "+1a"} {
		if err := v.Validate("5551234567", cc); !errors.Is(err, ErrInvalidCountryCode) {
			t.Fatalf("Validate(cc=%q) = %v, want ErrInvalidCountryCode", cc, err)
		}
	}
}

func TestNewValidatorRejectsBadPattern(t *testing.T) {
	if _, err := NewValidator(`^(\d{10}$`, `^\+\d$`); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestFormat(t *testing.T) {
	if got := Format("+1", "(555) 123-4567"); got != "+1 5551234567" {
		t.Fatalf("Format = %q", got)
	}
}

func TestMask(t *testing.T) {
	if got := Mask("5551234567"); got != "******4567" {
		t.Fatalf("Mask = %q", got)
	}
	if got := Mask("123"); got != "***" {
		t.Fatalf("Mask short = %q", got)
	}
}
