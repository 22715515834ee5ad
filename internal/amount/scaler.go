// Package amount converts between human-readable decimal amounts and
// integer base-unit amounts. All scaling is exact integer arithmetic on
// math/big; binary floating point never touches an on-chain magnitude.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalidAmount is returned when an input is not a non-negative finite
// decimal number.
var ErrInvalidAmount = errors.New("invalid amount")

// ToBaseUnits converts a human decimal string to base units by scaling with
// 10^decimals. Fractional digits beyond the token's precision are rounded
// half-up to the nearest base unit. The input must be a plain non-negative
// decimal ("12", "0.5", ".5"); signs other than a leading '+', exponents
// and hex forms are rejected with ErrInvalidAmount.
func ToBaseUnits(human string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(human)
	if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, human)
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, human)
	}
	if intPart == "" {
		intPart = "0"
	}

	d := int(decimals)
	roundUp := false
	if len(fracPart) > d {
		// Round half-up on the first digit past the token's precision.
		roundUp = fracPart[d] >= '5'
		fracPart = fracPart[:d]
	}
	fracPart += strings.Repeat("0", d-len(fracPart))

	v, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, human)
	}
	if roundUp {
		v.Add(v, big.NewInt(1))
	}
	return v, nil
}

// ToHumanUnits renders a base-unit amount as a decimal string. The
// conversion is exact (full precision, no rounding); trailing fractional
// zeros are trimmed. A nil or zero amount renders as "0".
func ToHumanUnits(scaled *big.Int, decimals uint8) string {
	if scaled == nil || scaled.Sign() == 0 {
		return "0"
	}
	s := scaled.String()
	d := int(decimals)
	if d == 0 {
		return s
	}
	if len(s) <= d {
		s = strings.Repeat("0", d-len(s)+1) + s
	}
	intPart, fracPart := s[:len(s)-d], s[len(s)-d:]
	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

// isDigits reports whether s consists only of ASCII digits.
// The empty string counts as valid (absent part).
func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
