// Package testutil provides a scriptable in-memory database/sql driver used
// by tests in place of a real ODBC data source.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
)

// FakeResult is one scripted outcome for a statement: either a result set or
// an error.
type FakeResult struct {
	Columns []string
	Rows    [][]driver.Value
	Err     error
}

// FakeDB hands out scripted results to every statement executed through a
// handle it opened. Results are consumed in FIFO order; once the script is
// exhausted the default result is served.
type FakeDB struct {
	mu         sync.Mutex
	script     []FakeResult
	defaultRes FakeResult

	opens      int
	statements []string
	args       [][]driver.Value
}

// Enqueue appends a scripted result.
func (f *FakeDB) Enqueue(r FakeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = append(f.script, r)
}

// SetDefault sets the result served after the script runs out.
func (f *FakeDB) SetDefault(r FakeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultRes = r
}

// Open satisfies the query engine's OpenFunc. Each call yields a distinct
// *sql.DB backed by this script.
func (f *FakeDB) Open(connStr string) (*sql.DB, error) {
	f.mu.Lock()
	f.opens++
	f.mu.Unlock()
	return sql.OpenDB(&fakeConnector{db: f}), nil
}

// Opens reports how many handles were opened.
func (f *FakeDB) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// Statements returns every statement text received, in execution order.
func (f *FakeDB) Statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.statements))
	copy(out, f.statements)
	return out
}

// Args returns the parameter list of each executed statement.
func (f *FakeDB) Args() [][]driver.Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]driver.Value, len(f.args))
	copy(out, f.args)
	return out
}

func (f *FakeDB) next(query string, args []driver.Value) FakeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statements = append(f.statements, query)
	f.args = append(f.args, args)
	if len(f.script) == 0 {
		return f.defaultRes
	}
	r := f.script[0]
	f.script = f.script[1:]
	return r
}

type fakeConnector struct {
	db *FakeDB
}

func (c *fakeConnector) Connect(context.Context) (driver.Conn, error) {
	return &fakeConn{db: c.db}, nil
}

func (c *fakeConnector) Driver() driver.Driver { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("use the connector")
}

type fakeConn struct {
	db *FakeDB
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare is not supported by the fake driver")
}

func (c *fakeConn) Close() error              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return nil, errors.New("read-only") }

func (c *fakeConn) QueryContext(_ context.Context, query string, named []driver.NamedValue) (driver.Rows, error) {
	args := make([]driver.Value, len(named))
	for i, nv := range named {
		args[i] = nv.Value
	}
	res := c.db.next(query, args)
	if res.Err != nil {
		return nil, res.Err
	}
	return &fakeRows{columns: res.Columns, rows: res.Rows}, nil
}

type fakeRows struct {
	columns []string
	rows    [][]driver.Value
	pos     int
}

func (r *fakeRows) Columns() []string { return r.columns }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}
