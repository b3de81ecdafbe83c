// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer centavos. User input may use either a decimal
// comma (12,34) or a dot (12.34).
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. Signed, malformed and zero
// amounts are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseDecimalToCents("4,99")  -> 499, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
//	ParseDecimalToCents("0,00")  -> 0, ErrInvalidAmount
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if strings.Contains(fracPart, ".") {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return 0, ErrInvalidAmount
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}

	var fracCents int64
	for i := 0; i < len(fracPart) && i < 2; i++ {
		fracCents = fracCents*10 + int64(fracPart[i]-'0')
	}
	if len(fracPart) == 1 {
		fracCents *= 10
	}
	if len(fracPart) > 2 && fracPart[2] >= '5' {
		fracCents++
	}

	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseQuantity reads a quantity typed by the user. Blank, unparsable or
// non-positive input yields 1.
func ParseQuantity(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	q, err := strconv.ParseFloat(s, 64)
	if err != nil || q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		return 1
	}
	return q
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Reais returns the value as a float64 for display and wire encoding.
// Use Cents for arithmetic.
func (m Money) Reais() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount the Brazilian way, e.g. "R$ 1.234,56".
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), cents%100)
}
