package types

import (
	"regexp"
	"strings"
)

// Address is the postal snapshot stored on orders and return pickups.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
}

var (
	nonDigits  = regexp.MustCompile(`\D`)
	pincodeRex = regexp.MustCompile(`^[1-9][0-9]{5}$`)
)

// NormalizePhone strips formatting and the Indian country/trunk prefix so
// "+91 98765-43210" and "098765 43210" both become "9876543210".
func NormalizePhone(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		digits = digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	}
	return digits
}

// ValidPostalCode reports whether code is a six digit Indian PIN code.
func ValidPostalCode(code string) bool {
	return pincodeRex.MatchString(strings.TrimSpace(code))
}
