// Package core provides amount parsing and handling utilities.
//
// This file contains functions for parsing signed penalty/bonus amounts from
// form input and for coercing loosely typed backend values into numbers.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts a decimal string into a signed amount.
//
// It accepts both dot (12.5) and comma (12,5) decimal separators and an
// optional leading sign. Zero is a valid amount. Returns ErrInvalidAmount for
// empty input, multiple separators, stray characters or non-finite values.
//
// Examples:
//
//	ParseAmount("-5")   -> -5, nil
//	ParseAmount("+2,5") -> 2.5, nil
//	ParseAmount("0")    -> 0, nil
//	ParseAmount("abc")  -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")

	sign := 1.0
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	if parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return 0, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return 0, ErrInvalidAmount
			}
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, ErrInvalidAmount
	}
	return sign * v, nil
}

// CoerceAmount turns a loosely typed value into a finite number.
// Non-numeric, missing or non-finite values contribute 0.
func CoerceAmount(v any) float64 {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case string:
		parsed, err := ParseAmount(val)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// FormatAmount renders an amount with the shortest exact decimal representation.
// Zero and non-finite values render as "0".
func FormatAmount(v float64) string {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
