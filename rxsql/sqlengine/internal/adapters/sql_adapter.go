package adapters

import (
	"context"
	"database/sql"

	"github.com/streamtx/rx-sql-go/rxsql"
)

// SQLProvider implements rxsql.ResourceProvider over a sql.DB.
// Acquire pins one connection from the pool via sql.DB.Conn.
type SQLProvider struct {
	db *sql.DB
}

// NewSQLProvider creates a resource provider backed by the given sql.DB.
func NewSQLProvider(db *sql.DB) *SQLProvider {
	return &SQLProvider{db: db}
}

// Acquire pins a connection and wraps it as a resource.
func (p *SQLProvider) Acquire(ctx context.Context) (rxsql.Resource, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	return &sqlResource{conn: conn}, nil
}

// Release returns the resource's connection to the pool.
func (p *SQLProvider) Release(resource rxsql.Resource) error {
	return resource.Close()
}

// Close closes the underlying sql.DB.
func (p *SQLProvider) Close() error {
	return p.db.Close()
}

// sqlResource wraps one pinned sql.Conn.
type sqlResource struct {
	conn *sql.Conn
}

func (r *sqlResource) Query(ctx context.Context, statement string, args ...any) (rxsql.Rows, error) {
	rows, err := r.conn.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, err
	}

	return &stdRows{rows: rows}, nil
}

func (r *sqlResource) Exec(ctx context.Context, statement string, args ...any) (rxsql.Result, error) {
	result, err := r.conn.ExecContext(ctx, statement, args...)
	if err != nil {
		return nil, err
	}

	return &stdResult{result: result}, nil
}

func (r *sqlResource) Close() error {
	return r.conn.Close()
}
