// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampLimit parses a list "limit" parameter. Missing, malformed or
// non-positive values mean "no limit" (0); anything above ceiling is capped.
func ClampLimit(s string, ceiling int) int {
	n := AtoiDefault(s, 0)
	if n <= 0 {
		return 0
	}
	if ceiling > 0 && n > ceiling {
		return ceiling
	}
	return n
}
