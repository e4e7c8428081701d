package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	// MinCodeDigits and MaxCodeDigits bound the configurable code length.
	MinCodeDigits = 4
	MaxCodeDigits = 10
)

var errInvalidCodeDigits = errors.New("invalid code digits")

// NewCode returns a numeric code of exactly digits characters, drawn
// uniformly from [0, 10^digits). Leading zeros are kept.
func NewCode(digits int) (string, error) {
	if digits < MinCodeDigits || digits > MaxCodeDigits {
		return "", errInvalidCodeDigits
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	code := b.String()
	if len(code) != digits {
		return "", fmt.Errorf("invalid code generation length")
	}
	return code, nil
}

// HashCode returns the SHA-256 digest of a code. Sessions keep only the digest.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// CodeEqual compares a candidate against a stored digest in constant time.
// Empty candidates never match.
func CodeEqual(candidate string, stored [32]byte) bool {
	if candidate == "" {
		return false
	}
	provided := HashCode(candidate)
	return subtle.ConstantTimeCompare(provided[:], stored[:]) == 1
}

// IsDigits reports whether s is non-empty and made only of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
