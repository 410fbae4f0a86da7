package query

import (
	"errors"
	"strings"
)

// ErrorClass is the closed classification of an execution failure. The
// executor retries once on Transient, surfaces Permanent as a database error,
// and returns Validation without ever touching the connection.
type ErrorClass int

const (
	ClassPermanent ErrorClass = iota
	ClassTransient
	ClassValidation
)

// Substrings in driver error text that indicate a connection-level failure
// worth one reconnect-and-retry. ODBC drivers expose no structured error
// codes worth relying on across vendors, so the production system keys off
// the human-readable text; kept here as a single pure function.
var transientKeywords = []string{
	"connection",
	"communication link",
	"network",
	"timeout",
	"closed",
	"disconnected",
	"broken pipe",
}

// Classify maps an execution error to its ErrorClass.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassPermanent
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return ClassValidation
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range transientKeywords {
		if strings.Contains(msg, kw) {
			return ClassTransient
		}
	}
	return ClassPermanent
}
