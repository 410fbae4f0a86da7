package query

import (
	"strings"
)

// Substrings that are never allowed inside an identifier, checked against the
// uppercased name. This is a heuristic screen, not a SQL grammar: the table
// allowlist is the primary control and this blocklist is defense in depth.
var identifierBlocklist = []string{
	";", "--", "/*", "*/",
	"DROP ", "DELETE ", "INSERT ", "UPDATE ", "TRUNCATE ",
}

const quoteChars = "\"'`[]"

// ValidateIdentifier sanitizes a user-supplied identifier (table, column or
// alias). Surrounding quote characters are stripped, the blocklist is applied
// in every mode, and unless allowExpressions is set every character must be
// alphanumeric, underscore or dot. Expression mode exists only for SELECT
// column lists, where function-call syntax like COUNT(*) is legitimate.
func ValidateIdentifier(name string, allowExpressions bool) (string, error) {
	name = strings.Trim(name, quoteChars)

	upper := strings.ToUpper(name)
	for _, bad := range identifierBlocklist {
		if strings.Contains(upper, bad) {
			return "", validationErrorf("Invalid identifier: %s", name)
		}
	}

	if !allowExpressions {
		for _, c := range name {
			if !isIdentChar(c) {
				return "", validationErrorf("Invalid identifier: %s", name)
			}
		}
	}

	return name, nil
}

func isIdentChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '.':
		return true
	}
	return false
}

// Allowlist is the externally configured set of table names the compiler may
// reference. Membership is case-insensitive.
type Allowlist []string

// Check returns nil when table is on the allowlist. The error enumerates the
// current allowlist so operators can see what to extend.
func (a Allowlist) Check(table string) error {
	lower := strings.ToLower(table)
	for _, t := range a {
		if strings.ToLower(t) == lower {
			return nil
		}
	}
	return validationErrorf("Table '%s' is not in allowed tables: [%s]", table, strings.Join(a, ", "))
}
