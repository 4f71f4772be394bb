// Package domain holds the identifier value types shared across modules.
//
// Identifiers are validated at the boundary via ParseX and passed around as
// typed values so services never have to re-check format.
package domain

import "fmt"

// NIP is a normalized 10-digit Polish tax identifier.
type NIP string

// nipWeights is the checksum weight vector applied to the first 9 digits.
var nipWeights = [9]int{6, 5, 7, 2, 3, 4, 5, 6, 7}

// ParseNIP strips non-digit characters and validates the checksum. The
// returned NIP is always the 10-digit normalized form, so parsing is
// idempotent: ParseNIP(string(nip)) yields the same value.
func ParseNIP(raw string) (NIP, error) {
	clean := digitsOnly(raw)
	if !validNIPDigits(clean) {
		return "", fmt.Errorf("invalid NIP %q", raw)
	}
	return NIP(clean), nil
}

// ValidNIP reports whether raw normalizes to a checksum-valid NIP.
func ValidNIP(raw string) bool {
	_, err := ParseNIP(raw)
	return err == nil
}

func (n NIP) String() string { return string(n) }

func validNIPDigits(clean string) bool {
	if len(clean) != 10 {
		return false
	}
	if allSameDigit(clean) {
		return false
	}
	sum := 0
	for i, w := range nipWeights {
		sum += int(clean[i]-'0') * w
	}
	// A checksum of 10 has no matching digit, so such numbers are never valid.
	return sum%11 == int(clean[9]-'0')
}

// REGON is a normalized 9- or 14-digit statistical business identifier.
type REGON string

var (
	regon9Weights  = [8]int{8, 9, 2, 3, 4, 5, 6, 7}
	regon14Weights = [13]int{2, 4, 8, 5, 0, 9, 7, 3, 6, 1, 2, 4, 8}
)

// ParseREGON strips non-digit characters and validates the checksum. A
// 14-digit REGON must also carry a valid 9-digit prefix.
func ParseREGON(raw string) (REGON, error) {
	clean := digitsOnly(raw)
	if !validREGONDigits(clean) {
		return "", fmt.Errorf("invalid REGON %q", raw)
	}
	return REGON(clean), nil
}

// ValidREGON reports whether raw normalizes to a checksum-valid REGON.
func ValidREGON(raw string) bool {
	_, err := ParseREGON(raw)
	return err == nil
}

func (r REGON) String() string { return string(r) }

func validREGONDigits(clean string) bool {
	switch len(clean) {
	case 9:
		sum := 0
		for i, w := range regon9Weights {
			sum += int(clean[i]-'0') * w
		}
		return (sum%11)%10 == int(clean[8]-'0')
	case 14:
		if !validREGONDigits(clean[:9]) {
			return false
		}
		sum := 0
		for i, w := range regon14Weights {
			sum += int(clean[i]-'0') * w
		}
		return (sum%11)%10 == int(clean[13]-'0')
	default:
		return false
	}
}

func digitsOnly(raw string) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			out = append(out, raw[i])
		}
	}
	return string(out)
}

func allSameDigit(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
