package query

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Converter normalizes driver-returned values into JSON-safe types. The
// source database stores fixed-width padded text, so strings are always
// trimmed. With CoerceNumerics set, padded text that looks numeric is turned
// into a number: the ODBC driver reports some numeric columns as CHAR.
type Converter struct {
	CoerceNumerics bool
}

// Convert maps a single raw driver value to its transport representation.
func (c Converter) Convert(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		if utf8.Valid(val) {
			return c.convertString(string(val))
		}
		return hex.EncodeToString(val)
	case string:
		return c.convertString(val)
	default:
		// int, float, bool, time.Time pass through unchanged.
		return v
	}
}

// ConvertRow converts every value of a fetched row in place and returns it.
func (c Converter) ConvertRow(row []any) []any {
	for i, v := range row {
		row[i] = c.Convert(v)
	}
	return row
}

func (c Converter) convertString(s string) any {
	s = strings.TrimSpace(s)
	if !c.CoerceNumerics {
		return s
	}
	if isIntegerLiteral(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	if isDecimalLiteral(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// isIntegerLiteral reports whether s is all digits with an optional leading
// minus sign.
func isIntegerLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// isDecimalLiteral reports whether s is digits with exactly one decimal point
// and an optional leading minus sign.
func isDecimalLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	whole, frac, ok := strings.Cut(s, ".")
	if !ok || whole == "" && frac == "" {
		return false
	}
	for _, part := range []string{whole, frac} {
		for _, c := range part {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}
