// Package query implements the declarative query engine behind the agent:
// request validation, SQL compilation for the TOP-only Pervasive dialect,
// single-connection management with recycling, and result conversion.
package query

import "fmt"

// Filter operators accepted in a FilterCondition.
const (
	OpEqual        = "="
	OpNotEqual     = "!="
	OpLessThan     = "<"
	OpGreaterThan  = ">"
	OpLessEqual    = "<="
	OpGreaterEqual = ">="
	OpLike         = "LIKE"
	OpIn           = "IN"
	OpNotIn        = "NOT IN"
	OpIsNull       = "IS NULL"
	OpIsNotNull    = "IS NOT NULL"
)

// MaxLimit is the largest row limit a single request may ask for.
const MaxLimit = 10000

// MaxOffset bounds the row skip. TOP-based pagination fetches offset+limit
// rows before discarding, so an unbounded offset would both hammer the
// database and risk overflowing the TOP count.
const MaxOffset = 1000000

var validOperators = map[string]bool{
	OpEqual: true, OpNotEqual: true,
	OpLessThan: true, OpGreaterThan: true,
	OpLessEqual: true, OpGreaterEqual: true,
	OpLike: true, OpIn: true, OpNotIn: true,
	OpIsNull: true, OpIsNotNull: true,
}

var validJoinTypes = map[string]bool{
	"INNER": true, "LEFT": true, "RIGHT": true,
}

// FilterCondition is a single WHERE clause condition. Conditions on a request
// are AND-ed together.
type FilterCondition struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// JoinClause describes a join against another allowlisted table.
type JoinClause struct {
	Table    string `json:"table"`
	Alias    string `json:"alias,omitempty"`
	JoinType string `json:"join_type,omitempty"`
	OnLeft   string `json:"on_left"`
	OnRight  string `json:"on_right"`
}

// OrderBy is a single ORDER BY term.
type OrderBy struct {
	Column    string `json:"column"`
	Direction string `json:"direction,omitempty"`
}

// QueryRequest is the declarative description of a SELECT query. A zero
// Limit means no limit; a zero Offset means no rows are skipped.
type QueryRequest struct {
	Table   string            `json:"table"`
	Alias   string            `json:"alias,omitempty"`
	Columns []string          `json:"columns,omitempty"`
	Filters []FilterCondition `json:"filters,omitempty"`
	Joins   []JoinClause      `json:"joins,omitempty"`
	OrderBy []OrderBy         `json:"order_by,omitempty"`
	Limit   int               `json:"limit,omitempty"`
	Offset  int               `json:"offset,omitempty"`
}

// Validate checks the structural invariants of the request: table presence,
// limit/offset bounds, and recognised operators, join types and directions.
// Identifier and allowlist checks happen later in the compiler.
func (r *QueryRequest) Validate() error {
	if r.Table == "" {
		return validationErrorf("table is required")
	}
	if r.Limit < 0 || r.Limit > MaxLimit {
		return validationErrorf("limit must be between 1 and %d", MaxLimit)
	}
	if r.Offset < 0 || r.Offset > MaxOffset {
		return validationErrorf("offset must be between 0 and %d", MaxOffset)
	}
	for _, f := range r.Filters {
		if !validOperators[f.Operator] {
			return validationErrorf("unsupported operator: %s", f.Operator)
		}
		switch f.Operator {
		case OpIsNull, OpIsNotNull:
			// no value
		case OpIn, OpNotIn:
			vals, ok := f.Value.([]any)
			if !ok || len(vals) == 0 {
				return validationErrorf("%s operator requires a non-empty list value", f.Operator)
			}
		default:
			if f.Value == nil {
				return validationErrorf("%s operator requires a value", f.Operator)
			}
		}
	}
	for _, j := range r.Joins {
		if j.JoinType != "" && !validJoinTypes[j.JoinType] {
			return validationErrorf("unsupported join type: %s", j.JoinType)
		}
	}
	for _, o := range r.OrderBy {
		if o.Direction != "" && o.Direction != "ASC" && o.Direction != "DESC" {
			return validationErrorf("unsupported sort direction: %s", o.Direction)
		}
	}
	return nil
}

// QueryResponse carries either a result set or an error message, selected by
// Success. Rows are positional arrays matching Columns for compact transfer.
type QueryResponse struct {
	Success  bool     `json:"success"`
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`
	Error    string   `json:"error,omitempty"`
}

// FailureResponse builds an error response. Columns and Rows are empty
// slices rather than nil so the JSON body always carries [] for both,
// whatever the outcome.
func FailureResponse(message string) QueryResponse {
	return QueryResponse{
		Success: false,
		Columns: []string{},
		Rows:    [][]any{},
		Error:   message,
	}
}

// ValidationError marks a request that was rejected before touching the
// database: bad identifiers, disallowed tables, malformed filter values.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
