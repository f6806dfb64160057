package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// DefaultPortionGrams is used when a parsed food item carries no amount.
const DefaultPortionGrams = 100

// ParseGrams converts user input to a positive gram amount.
//
// Both dot (12.5) and comma (12,5) decimal separators are accepted, as is a
// trailing unit ("150g", "150 g", "200ml"). Returns a *ValidationError for
// empty, malformed, zero or negative input.
//
// Examples:
//
//	ParseGrams("150")   -> 150, nil
//	ParseGrams("12,5")  -> 12.5, nil
//	ParseGrams("80 g")  -> 80, nil
//	ParseGrams("0")     -> 0, error
func ParseGrams(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, unit := range []string{"ml", "gr", "g"} {
		if strings.HasSuffix(s, unit) {
			s = strings.TrimSpace(strings.TrimSuffix(s, unit))
			break
		}
	}
	if s == "" {
		return 0, &ValidationError{Field: "grams", Reason: "required"}
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, &ValidationError{Field: "grams", Reason: "must be greater than zero"}
	}
	if strings.Count(s, ".") > 1 {
		return 0, &ValidationError{Field: "grams", Reason: "not a number"}
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return 0, &ValidationError{Field: "grams", Reason: "not a number"}
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ValidationError{Field: "grams", Reason: "not a number"}
	}
	return v, ValidateGrams(v)
}

// ValidateGrams rejects zero, negative and non-finite amounts.
func ValidateGrams(g float64) error {
	if math.IsNaN(g) || math.IsInf(g, 0) || g <= 0 {
		return &ValidationError{Field: "grams", Reason: "must be greater than zero"}
	}
	return nil
}

// FormatGrams renders an amount without trailing zeros, e.g. 80 or 12.5.
func FormatGrams(g float64) string {
	return strconv.FormatFloat(g, 'f', -1, 64)
}
