// Package agentclient is the typed HTTP client for the GlassTrax Bridge
// agent. It mirrors the agent's declarative query DSL so callers build
// requests against plain structs and never hand-write SQL.
package agentclient

// FilterCondition is a single WHERE clause condition. Conditions are AND-ed
// together by the agent.
type FilterCondition struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// JoinClause joins another allowlisted table into the query.
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

// QueryRequest describes a SELECT query for the agent to compile and run.
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

// QueryResponse is the agent's answer. Exactly one of Rows and Error carries
// meaning, selected by Success.
type QueryResponse struct {
	Success  bool     `json:"success"`
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`
	Error    string   `json:"error,omitempty"`
}

// HealthResponse is the agent's GET /health body.
type HealthResponse struct {
	Status            string `json:"status"`
	Version           string `json:"version"`
	DriverReady       bool   `json:"driver_ready"`
	DatabaseConnected bool   `json:"database_connected"`
	DSN               string `json:"dsn"`
	TestQuery         string `json:"test_query"`
	Message           string `json:"message,omitempty"`
}
