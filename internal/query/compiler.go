package query

import (
	"fmt"
	"strings"
)

// Compiler turns a validated QueryRequest into a parameterized SQL string for
// the Pervasive engine. The dialect supports SELECT TOP n but no OFFSET, so
// when a limit is set the compiler asks for limit+offset rows and leaves the
// skip to the executor.
type Compiler struct {
	Tables Allowlist
}

// BuildQuery compiles the request into SQL text and a positional parameter
// list. Join-clause parameters precede where-clause parameters; joins never
// produce parameters today, so the former slice stays empty.
func (c *Compiler) BuildQuery(req *QueryRequest) (string, []any, error) {
	if err := req.Validate(); err != nil {
		return "", nil, err
	}

	selectClause, err := c.buildSelect(req)
	if err != nil {
		return "", nil, err
	}
	fromClause, err := c.buildFrom(req)
	if err != nil {
		return "", nil, err
	}
	joins, joinParams, err := c.buildJoins(req)
	if err != nil {
		return "", nil, err
	}
	where, whereParams, err := c.buildWhere(req)
	if err != nil {
		return "", nil, err
	}
	orderBy, err := c.buildOrderBy(req)
	if err != nil {
		return "", nil, err
	}

	// TOP-based pagination: fetch limit+offset rows, the executor discards
	// the first offset rows after the fetch.
	if req.Limit > 0 {
		fetchCount := req.Limit + req.Offset
		selectClause = strings.Replace(selectClause, "SELECT", fmt.Sprintf("SELECT TOP %d", fetchCount), 1)
	}

	parts := []string{selectClause, fromClause}
	if joins != "" {
		parts = append(parts, joins)
	}
	if where != "" {
		parts = append(parts, where)
	}
	if orderBy != "" {
		parts = append(parts, orderBy)
	}

	params := make([]any, 0, len(joinParams)+len(whereParams))
	params = append(params, joinParams...)
	params = append(params, whereParams...)

	return strings.Join(parts, " "), params, nil
}

func (c *Compiler) buildSelect(req *QueryRequest) (string, error) {
	if len(req.Columns) > 0 {
		cols := make([]string, 0, len(req.Columns))
		for _, col := range req.Columns {
			// Expression mode: column lists may contain COUNT(*) and friends.
			validated, err := ValidateIdentifier(col, true)
			if err != nil {
				return "", err
			}
			cols = append(cols, validated)
		}
		return "SELECT " + strings.Join(cols, ", "), nil
	}

	// Historical quirk carried over from the production agent: with no alias
	// configured, select through the first character of the table name.
	alias := req.Alias
	if alias == "" {
		alias = req.Table[:1]
	}
	return fmt.Sprintf("SELECT %s.*", alias), nil
}

func (c *Compiler) buildFrom(req *QueryRequest) (string, error) {
	table, err := ValidateIdentifier(req.Table, false)
	if err != nil {
		return "", err
	}
	if err := c.Tables.Check(table); err != nil {
		return "", err
	}

	if req.Alias != "" {
		alias, err := ValidateIdentifier(req.Alias, false)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("FROM %s %s", table, alias), nil
	}
	return "FROM " + table, nil
}

func (c *Compiler) buildJoins(req *QueryRequest) (string, []any, error) {
	if len(req.Joins) == 0 {
		return "", nil, nil
	}

	parts := make([]string, 0, len(req.Joins))
	for _, join := range req.Joins {
		table, err := ValidateIdentifier(join.Table, false)
		if err != nil {
			return "", nil, err
		}
		if err := c.Tables.Check(table); err != nil {
			return "", nil, err
		}

		onLeft, err := ValidateIdentifier(join.OnLeft, false)
		if err != nil {
			return "", nil, err
		}
		onRight, err := ValidateIdentifier(join.OnRight, false)
		if err != nil {
			return "", nil, err
		}

		joinType := join.JoinType
		if joinType == "" {
			joinType = "LEFT"
		}

		clause := fmt.Sprintf("%s JOIN %s", joinType, table)
		if join.Alias != "" {
			alias, err := ValidateIdentifier(join.Alias, false)
			if err != nil {
				return "", nil, err
			}
			clause += " " + alias
		}
		clause += fmt.Sprintf(" ON %s = %s", onLeft, onRight)
		parts = append(parts, clause)
	}

	return strings.Join(parts, " "), nil, nil
}

func (c *Compiler) buildWhere(req *QueryRequest) (string, []any, error) {
	if len(req.Filters) == 0 {
		return "", nil, nil
	}

	conditions := make([]string, 0, len(req.Filters))
	var params []any

	for _, f := range req.Filters {
		col, err := ValidateIdentifier(f.Column, false)
		if err != nil {
			return "", nil, err
		}

		switch f.Operator {
		case OpIsNull, OpIsNotNull:
			conditions = append(conditions, fmt.Sprintf("%s %s", col, f.Operator))
		case OpIn, OpNotIn:
			values, ok := f.Value.([]any)
			if !ok || len(values) == 0 {
				return "", nil, validationErrorf("%s operator requires a non-empty list value", f.Operator)
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
			conditions = append(conditions, fmt.Sprintf("%s %s (%s)", col, f.Operator, placeholders))
			params = append(params, values...)
		default:
			conditions = append(conditions, fmt.Sprintf("%s %s ?", col, f.Operator))
			params = append(params, f.Value)
		}
	}

	return "WHERE " + strings.Join(conditions, " AND "), params, nil
}

func (c *Compiler) buildOrderBy(req *QueryRequest) (string, error) {
	if len(req.OrderBy) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(req.OrderBy))
	for _, o := range req.OrderBy {
		col, err := ValidateIdentifier(o.Column, false)
		if err != nil {
			return "", err
		}
		direction := o.Direction
		if direction == "" {
			direction = "ASC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", col, direction))
	}

	return "ORDER BY " + strings.Join(parts, ", "), nil
}
