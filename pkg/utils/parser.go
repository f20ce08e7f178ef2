// Package utils provides common helper functions for string manipulation,
// data parsing, and request handling used across the application.
package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// sizeRegex matches a number followed optionally by a unit string.
// It allows flexible spacing between the number and the unit.
var sizeRegex = regexp.MustCompile(`^(\d+)\s*([a-zA-Z]*)$`)

// unitMultipliers maps data size units to their byte values using binary prefixes (IEC standard).
// 1 KB = 1024 Bytes, 1 MB = 1024 * 1024 Bytes, etc.
var unitMultipliers = map[string]int64{
	"":   1,       // Bytes (default)
	"B":  1,       // Bytes
	"KB": 1 << 10, // Kibibyte (1024)
	"MB": 1 << 20, // Mebibyte (1024^2)
	"GB": 1 << 30, // Gibibyte (1024^3)
}

// ParseSize parses a human-readable data size string ("10MB", "512 kb", "2048")
// into bytes. Units are binary (1KB = 1024 Bytes) and case-insensitive.
func ParseSize(sizeStr string) (int64, error) {
	rawStr := strings.TrimSpace(strings.ToUpper(sizeStr))
	if rawStr == "" {
		return 0, fmt.Errorf("empty size")
	}

	matches := sizeRegex.FindStringSubmatch(rawStr)
	if len(matches) != 3 {
		return 0, fmt.Errorf("invalid size format '%s'", sizeStr)
	}

	value, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid numeric value in '%s'", sizeStr)
	}

	multiplier, exists := unitMultipliers[matches[2]]
	if !exists {
		return 0, fmt.Errorf("unsupported unit '%s' in '%s'", matches[2], sizeStr)
	}

	return value * multiplier, nil
}

// SizeToBytes is ParseSize with a fallback for unparsable input.
func SizeToBytes(sizeStr string, defaultValue int64) int64 {
	n, err := ParseSize(sizeStr)
	if err != nil {
		return defaultValue
	}
	return n
}

// ParseInt safely parses a string to int with bounds checking.
// Usage: ParseInt("500", 50, 1, 1000) -> Returns 500
// Usage: ParseInt("abc", 50, 1, 1000) -> Returns 50 (Default)
// Usage: ParseInt("9999", 50, 1, 1000) -> Returns 1000 (Max)
func ParseInt(value string, def int, min int, max int) int {
	if value == "" {
		return def
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	if i < min {
		return min
	}
	if i > max {
		return max
	}
	return i
}

// ParseBool parses an optional boolean query/form value.
// Returns nil when the value is empty or not a boolean.
func ParseBool(value string) *bool {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return nil
	}
	return &b
}

// SplitCSV splits a comma separated list, trimming entries and dropping blanks.
func SplitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
