package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultProbeQuery is run by TestConnection when no probe is configured.
const DefaultProbeQuery = "SELECT 1"

// ServiceConfig wires a Service. It is supplied once and never mutated.
type ServiceConfig struct {
	Conn           ConnConfig
	AllowedTables  []string
	ProbeQuery     string        // health-check query, defaults to DefaultProbeQuery
	QueryTimeout   time.Duration // per-statement bound passed to the driver
	CoerceNumerics bool
	Logger         *slog.Logger
}

// Service is the query executor: it compiles a request, runs it over the
// managed connection, and converts the result. All database access is
// serialized through an internal mutex because the single ODBC connection
// cannot be shared across concurrent callers.
type Service struct {
	compiler Compiler
	convert  Converter
	probe    string
	timeout  time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	conn *Conn
}

// NewService builds a Service from its configuration.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	probe := cfg.ProbeQuery
	if probe == "" {
		probe = DefaultProbeQuery
	}
	return &Service{
		compiler: Compiler{Tables: Allowlist(cfg.AllowedTables)},
		convert:  Converter{CoerceNumerics: cfg.CoerceNumerics},
		probe:    probe,
		timeout:  cfg.QueryTimeout,
		logger:   logger,
		conn:     NewConn(cfg.Conn),
	}
}

// Execute runs a declarative query and always returns a response: validation
// and database failures are reported through QueryResponse.Error, never as a
// Go error. Driver failures classified as transient are retried once against
// a fresh connection.
func (s *Service) Execute(ctx context.Context, req *QueryRequest) (resp QueryResponse) {
	var table string
	if req != nil {
		table = req.Table
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("query panicked", "table", table, "panic", r)
			resp = FailureResponse(fmt.Sprintf("Unexpected error: %v", r))
		}
	}()

	sqlText, params, err := s.compiler.BuildQuery(req)
	if err != nil {
		// Validation failures never touch the connection or its error streak.
		return FailureResponse(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	retryRemaining := 1
	for {
		columns, rows, err := s.runQuery(ctx, sqlText, params)
		if err == nil {
			s.conn.RecordSuccess()
			return s.buildResponse(req, columns, rows)
		}

		s.conn.RecordFailure()
		if retryRemaining > 0 && Classify(err) == ClassTransient {
			retryRemaining--
			s.logger.Warn("transient database error, retrying",
				"table", table, "error", err)
			continue
		}

		s.logger.Error("query failed", "table", table, "error", err)
		return FailureResponse("Database error: " + err.Error())
	}
}

// runQuery acquires the connection, executes the statement and fetches every
// row. Callers hold s.mu.
func (s *Service) runQuery(ctx context.Context, sqlText string, params []any) ([]string, [][]any, error) {
	db, err := s.conn.Acquire(ctx, false)
	if err != nil {
		return nil, nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rows, err := db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close() //nolint:errcheck

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var fetched [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		fetched = append(fetched, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return columns, fetched, nil
}

// buildResponse applies the offset skip that TOP cannot express, caps the row
// count at the requested limit, and converts the retained values.
func (s *Service) buildResponse(req *QueryRequest, columns []string, fetched [][]any) QueryResponse {
	if columns == nil {
		columns = []string{}
	}

	rows := make([][]any, 0)
	for i, row := range fetched {
		if i < req.Offset {
			continue
		}
		if req.Limit > 0 && len(rows) >= req.Limit {
			break
		}
		rows = append(rows, s.convert.ConvertRow(row))
	}

	return QueryResponse{
		Success:  true,
		Columns:  columns,
		Rows:     rows,
		RowCount: len(rows),
	}
}

// TestConnection runs the configured probe query through the same
// acquire/execute path as real queries. It never returns an error: any
// failure invalidates the connection and reports false.
func (s *Service) TestConnection(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, err := s.runQuery(ctx, s.probe, nil); err != nil {
		s.conn.RecordFailure()
		return false
	}
	s.conn.RecordSuccess()
	return true
}

// ProbeQuery reports the health-check query in use.
func (s *Service) ProbeQuery() string {
	return s.probe
}

// Close releases the database connection on an orderly shutdown.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
