// Package doubles provides test doubles for the rxsql interfaces: a fake
// resource provider that records every statement together with the goroutine
// and resource it executed on, plus logger and metrics spies.
package doubles

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/streamtx/rx-sql-go/rxsql"
)

// StatementRecord captures one statement execution observed by the fake
// provider. Goroutine identifies the worker the statement ran on, ResourceID
// the acquired resource it ran against; together they let tests assert the
// "same worker, same connection" transaction property and the "fresh
// connection per statement" non-transactional property.
type StatementRecord struct {
	Statement  string
	Args       []any
	ResourceID int
	Goroutine  uint64
}

// FakeResourceProvider is an rxsql.ResourceProvider that fabricates resources
// and records everything executed through them. Behavior is programmable per
// statement via the exported function fields; all fields must be set before
// the provider is handed to a Database.
type FakeResourceProvider struct {
	mu           sync.Mutex
	records      []StatementRecord
	acquireCount int
	releaseCount int
	closed       bool

	// AcquireErr, when set, makes every Acquire fail.
	AcquireErr error

	// ExecErrFor, when set, is consulted per statement; a non-nil return
	// fails that Exec call.
	ExecErrFor func(statement string) error

	// RowsAffectedFor, when set, supplies the rows-affected count per
	// statement. Unset, every Exec reports 1.
	RowsAffectedFor func(statement string) int64

	// QueryColumns and QueryRows back every Query call.
	QueryColumns []string
	QueryRows    [][]any

	// QueryErr, when set, makes every Query fail.
	QueryErr error
}

// NewFakeResourceProvider creates an empty fake provider.
func NewFakeResourceProvider() *FakeResourceProvider {
	return &FakeResourceProvider{}
}

// Acquire fabricates the next resource. Each call yields a distinct resource
// id, so a test can tell a pinned resource from a stream of fresh ones.
func (p *FakeResourceProvider) Acquire(_ context.Context) (rxsql.Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.AcquireErr != nil {
		return nil, p.AcquireErr
	}

	p.acquireCount++

	return &FakeResource{provider: p, id: p.acquireCount}, nil
}

// Release counts the return of a resource.
func (p *FakeResourceProvider) Release(_ rxsql.Resource) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.releaseCount++

	return nil
}

// Close marks the provider closed.
func (p *FakeResourceProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	return nil
}

// Closed reports whether Close was called.
func (p *FakeResourceProvider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

// AcquireCount returns how many resources were handed out.
func (p *FakeResourceProvider) AcquireCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.acquireCount
}

// ReleaseCount returns how many resources were returned.
func (p *FakeResourceProvider) ReleaseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.releaseCount
}

// Records returns a copy of all captured statement records in execution order.
func (p *FakeResourceProvider) Records() []StatementRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	records := make([]StatementRecord, len(p.records))
	copy(records, p.records)

	return records
}

// Statements returns just the statement texts in execution order.
func (p *FakeResourceProvider) Statements() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	statements := make([]string, len(p.records))
	for i, record := range p.records {
		statements[i] = record.Statement
	}

	return statements
}

func (p *FakeResourceProvider) record(resourceID int, statement string, args []any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.records = append(p.records, StatementRecord{
		Statement:  statement,
		Args:       args,
		ResourceID: resourceID,
		Goroutine:  CurrentGoroutineID(),
	})
}

// FakeResource is one fabricated resource handed out by the fake provider.
type FakeResource struct {
	provider *FakeResourceProvider
	id       int
}

// ID returns the resource's sequence number, 1 for the first acquired.
func (r *FakeResource) ID() int {
	return r.id
}

// Query records the statement and returns the provider's canned rows.
func (r *FakeResource) Query(_ context.Context, statement string, args ...any) (rxsql.Rows, error) {
	r.provider.record(r.id, statement, args)

	r.provider.mu.Lock()
	queryErr := r.provider.QueryErr
	columns := r.provider.QueryColumns
	rows := r.provider.QueryRows
	r.provider.mu.Unlock()

	if queryErr != nil {
		return nil, queryErr
	}

	return &fakeRows{columns: columns, rows: rows, cursor: -1}, nil
}

// Exec records the statement and returns the programmed result.
func (r *FakeResource) Exec(_ context.Context, statement string, args ...any) (rxsql.Result, error) {
	r.provider.record(r.id, statement, args)

	r.provider.mu.Lock()
	execErrFor := r.provider.ExecErrFor
	rowsAffectedFor := r.provider.RowsAffectedFor
	r.provider.mu.Unlock()

	if execErrFor != nil {
		if err := execErrFor(statement); err != nil {
			return nil, err
		}
	}

	rowsAffected := int64(1)
	if rowsAffectedFor != nil {
		rowsAffected = rowsAffectedFor(statement)
	}

	return fakeResult{rowsAffected: rowsAffected}, nil
}

// Close is a no-op; the fake provider tracks lifecycle through Release.
func (r *FakeResource) Close() error {
	return nil
}

type fakeResult struct {
	rowsAffected int64
}

func (r fakeResult) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// fakeRows iterates the provider's canned row values.
type fakeRows struct {
	columns []string
	rows    [][]any
	cursor  int
	closed  bool
}

func (r *fakeRows) Next() bool {
	if r.closed {
		return false
	}

	r.cursor++

	return r.cursor < len(r.rows)
}

func (r *fakeRows) Columns() ([]string, error) {
	return r.columns, nil
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.cursor < 0 || r.cursor >= len(r.rows) {
		return errors.New("scan called without a current row")
	}

	row := r.rows[r.cursor]
	if len(dest) > len(row) {
		return fmt.Errorf("scan expects at most %d destinations, got %d", len(row), len(dest))
	}

	for i, d := range dest {
		if err := assignValue(d, row[i]); err != nil {
			return err
		}
	}

	return nil
}

func (r *fakeRows) Close() error {
	r.closed = true

	return nil
}

func assignValue(dest any, value any) error {
	switch d := dest.(type) {
	case *any:
		*d = value
	case *[]byte:
		switch v := value.(type) {
		case []byte:
			*d = v
		case string:
			*d = []byte(v)
		default:
			return fmt.Errorf("cannot scan %T into *[]byte", value)
		}
	case *string:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("cannot scan %T into *string", value)
		}
		*d = s
	case *int64:
		n, ok := value.(int64)
		if !ok {
			return fmt.Errorf("cannot scan %T into *int64", value)
		}
		*d = n
	case *bool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("cannot scan %T into *bool", value)
		}
		*d = b
	default:
		return fmt.Errorf("unsupported scan destination %T", dest)
	}

	return nil
}

// Ensure the doubles satisfy the rxsql interfaces.
var (
	_ rxsql.ResourceProvider = (*FakeResourceProvider)(nil)
	_ rxsql.Resource         = (*FakeResource)(nil)
	_ rxsql.Rows             = (*fakeRows)(nil)
	_ rxsql.Result           = (fakeResult{})
)
