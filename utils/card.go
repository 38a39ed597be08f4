package utils

import (
	"strconv"
	"strings"
	"unicode"
)

// DigitsOnly strips everything but 0-9. Phone numbers, tax ids and card
// numbers are normalized with this before they touch the gateway.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CardBIN returns the bank identification number prefix (first 6 digits).
func CardBIN(number string) string {
	digits := DigitsOnly(number)
	if len(digits) < 6 {
		return digits
	}
	return digits[:6]
}

// DetectCardBrand classifies a card number by its leading digits.
func DetectCardBrand(number string) string {
	digits := DigitsOnly(number)
	switch {
	// elo shares leading digits with visa and mastercard, so it goes first.
	case strings.HasPrefix(digits, "4011"), strings.HasPrefix(digits, "4389"),
		strings.HasPrefix(digits, "4514"), strings.HasPrefix(digits, "5041"),
		strings.HasPrefix(digits, "6362"):
		return "elo"
	case strings.HasPrefix(digits, "606282"):
		return "hipercard"
	case strings.HasPrefix(digits, "4"):
		return "visa"
	case hasPrefixInRange(digits, 51, 55), hasPrefixInRange(digits, 2221, 2720):
		return "mastercard"
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return "amex"
	case strings.HasPrefix(digits, "6011"), strings.HasPrefix(digits, "65"):
		return "discover"
	case strings.HasPrefix(digits, "35"):
		return "jcb"
	default:
		return "unknown"
	}
}

// MaskCardNumber keeps the BIN and the last four digits visible.
func MaskCardNumber(number string) string {
	digits := DigitsOnly(number)
	if len(digits) <= 10 {
		return strings.Repeat("*", len(digits))
	}
	return digits[:6] + strings.Repeat("*", len(digits)-10) + digits[len(digits)-4:]
}

func hasPrefixInRange(digits string, lo, hi int) bool {
	width := len(strconv.Itoa(lo))
	if len(digits) < width {
		return false
	}
	prefix, err := strconv.Atoi(digits[:width])
	if err != nil {
		return false
	}
	return prefix >= lo && prefix <= hi
}
