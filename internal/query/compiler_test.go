package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCompiler() *Compiler {
	return &Compiler{Tables: Allowlist{
		"customer", "customer_contacts", "delivery_routes", "sales_orders_headers",
	}}
}

func TestBuildQueryMinimal(t *testing.T) {
	t.Parallel()
	c := testCompiler()

	sql, params, err := c.BuildQuery(&QueryRequest{Table: "customer"})
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM customer")
	assert.Empty(t, params)
	// Default alias is the first character of the table name.
	assert.Contains(t, sql, "SELECT c.*")
}

func TestBuildQueryExplicitAlias(t *testing.T) {
	t.Parallel()
	c := testCompiler()

	sql, _, err := c.BuildQuery(&QueryRequest{Table: "customer", Alias: "cu"})
	require.NoError(t, err)

	assert.Contains(t, sql, "SELECT cu.*")
	assert.Contains(t, sql, "FROM customer cu")
}

func TestBuildQueryColumns(t *testing.T) {
	t.Parallel()
	c := testCompiler()

	sql, _, err := c.BuildQuery(&QueryRequest{
		Table:   "customer",
		Columns: []string{"customer_id", "customer_name"},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "SELECT customer_id, customer_name")
}

func TestBuildQueryExpressionColumns(t *testing.T) {
	t.Parallel()
	c := testCompiler()

	sql, _, err := c.BuildQuery(&QueryRequest{
		Table:   "customer",
		Columns: []string{"COUNT(*)"},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "SELECT COUNT(*)")
}

func TestBuildQueryFilters(t *testing.T) {
	t.Parallel()
	c := testCompiler()

	t.Run("IN emits one placeholder per value", func(t *testing.T) {
		t.Parallel()
		sql, params, err := c.BuildQuery(&QueryRequest{
			Table: "customer",
			Filters: []FilterCondition{
				{Column: "main_state", Operator: OpIn, Value: []any{"MA", "NY", "CT"}},
			},
		})
		require.NoError(t, err)

		assert.Contains(t, sql, "main_state IN (?, ?, ?)")
		assert.Equal(t, []any{"MA", "NY", "CT"}, params)
	})

	t.Run("NOT IN requires a list", func(t *testing.T) {
		t.Parallel()
		_, _, err := c.BuildQuery(&QueryRequest{
			Table: "customer",
			Filters: []FilterCondition{
				{Column: "main_state", Operator: OpNotIn, Value: "MA"},
			},
		})
		require.Error(t, err)
		assert.IsType(t, &ValidationError{}, err)
	})

	t.Run("NULL checks take no parameter", func(t *testing.T) {
		t.Parallel()
		sql, params, err := c.BuildQuery(&QueryRequest{
			Table: "customer",
			Filters: []FilterCondition{
				{Column: "fax_no", Operator: OpIsNull},
				{Column: "phone_no", Operator: OpIsNotNull},
			},
		})
		require.NoError(t, err)

		assert.Contains(t, sql, "WHERE fax_no IS NULL AND phone_no IS NOT NULL")
		assert.Empty(t, params)
	})

	t.Run("comparison operators bind one parameter", func(t *testing.T) {
		t.Parallel()
		sql, params, err := c.BuildQuery(&QueryRequest{
			Table: "customer",
			Filters: []FilterCondition{
				{Column: "customer_type", Operator: OpEqual, Value: "RETAIL"},
				{Column: "credit_limit", Operator: OpGreaterEqual, Value: 1000},
			},
		})
		require.NoError(t, err)

		assert.Contains(t, sql, "WHERE customer_type = ? AND credit_limit >= ?")
		assert.Equal(t, []any{"RETAIL", 1000}, params)
	})
}

func TestBuildQueryJoins(t *testing.T) {
	t.Parallel()
	c := testCompiler()

	sql, params, err := c.BuildQuery(&QueryRequest{
		Table: "customer",
		Alias: "c",
		Joins: []JoinClause{
			{Table: "delivery_routes", Alias: "r", JoinType: "INNER", OnLeft: "c.route_id", OnRight: "r.route_id"},
			{Table: "customer_contacts", OnLeft: "c.customer_id", OnRight: "customer_contacts.customer_id"},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "INNER JOIN delivery_routes r ON c.route_id = r.route_id")
	// Join type defaults to LEFT.
	assert.Contains(t, sql, "LEFT JOIN customer_contacts ON c.customer_id = customer_contacts.customer_id")
	assert.Empty(t, params)
}

func TestBuildQueryJoinTableMustBeAllowed(t *testing.T) {
	t.Parallel()
	c := testCompiler()

	_, _, err := c.BuildQuery(&QueryRequest{
		Table: "customer",
		Joins: []JoinClause{
			{Table: "secret_ledger", OnLeft: "a", OnRight: "b"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret_ledger")
}

func TestBuildQueryOrderBy(t *testing.T) {
	t.Parallel()
	c := testCompiler()

	sql, _, err := c.BuildQuery(&QueryRequest{
		Table: "customer",
		OrderBy: []OrderBy{
			{Column: "customer_name", Direction: "DESC"},
			{Column: "customer_id"},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "ORDER BY customer_name DESC, customer_id ASC")
}

func TestBuildQueryTopPagination(t *testing.T) {
	t.Parallel()
	c := testCompiler()

	t.Run("limit plus offset becomes TOP", func(t *testing.T) {
		t.Parallel()
		sql, _, err := c.BuildQuery(&QueryRequest{Table: "customer", Limit: 10, Offset: 20})
		require.NoError(t, err)
		assert.Contains(t, sql, "SELECT TOP 30")
	})

	t.Run("limit alone", func(t *testing.T) {
		t.Parallel()
		sql, _, err := c.BuildQuery(&QueryRequest{Table: "customer", Limit: 5})
		require.NoError(t, err)
		assert.Contains(t, sql, "SELECT TOP 5")
	})

	t.Run("no limit means no TOP", func(t *testing.T) {
		t.Parallel()
		sql, _, err := c.BuildQuery(&QueryRequest{Table: "customer", Offset: 20})
		require.NoError(t, err)
		assert.NotContains(t, sql, "TOP")
	})
}

func TestBuildQueryValidation(t *testing.T) {
	t.Parallel()
	c := testCompiler()

	cases := []struct {
		name string
		req  QueryRequest
	}{
		{"missing table", QueryRequest{}},
		{"table not allowed", QueryRequest{Table: "forbidden_table"}},
		{"limit too large", QueryRequest{Table: "customer", Limit: MaxLimit + 1}},
		{"negative offset", QueryRequest{Table: "customer", Offset: -1}},
		{"offset too large", QueryRequest{Table: "customer", Limit: 10, Offset: MaxOffset + 1}},
		{"bad operator", QueryRequest{Table: "customer", Filters: []FilterCondition{{Column: "a", Operator: "MATCHES", Value: 1}}}},
		{"bad join type", QueryRequest{Table: "customer", Joins: []JoinClause{{Table: "customer", JoinType: "CROSS", OnLeft: "a", OnRight: "b"}}}},
		{"bad direction", QueryRequest{Table: "customer", OrderBy: []OrderBy{{Column: "a", Direction: "SIDEWAYS"}}}},
		{"injection in column", QueryRequest{Table: "customer", Columns: []string{"name; DROP TABLE x"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := c.BuildQuery(&tc.req)
			require.Error(t, err)
			assert.IsType(t, &ValidationError{}, err)
		})
	}
}

func TestBuildQueryClauseOrder(t *testing.T) {
	t.Parallel()
	c := testCompiler()

	sql, params, err := c.BuildQuery(&QueryRequest{
		Table: "customer",
		Alias: "c",
		Joins: []JoinClause{
			{Table: "delivery_routes", Alias: "r", JoinType: "INNER", OnLeft: "c.route_id", OnRight: "r.route_id"},
		},
		Filters: []FilterCondition{
			{Column: "c.main_state", Operator: OpEqual, Value: "MA"},
		},
		OrderBy: []OrderBy{{Column: "c.customer_name"}},
		Limit:   100,
	})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT TOP 100 c.* FROM customer c "+
			"INNER JOIN delivery_routes r ON c.route_id = r.route_id "+
			"WHERE c.main_state = ? "+
			"ORDER BY c.customer_name ASC",
		sql)
	assert.Equal(t, []any{"MA"}, params)
}
