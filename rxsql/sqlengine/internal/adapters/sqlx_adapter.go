package adapters

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/streamtx/rx-sql-go/rxsql"
)

// SQLXProvider implements rxsql.ResourceProvider over a sqlx.DB.
type SQLXProvider struct {
	db *sqlx.DB
}

// NewSQLXProvider creates a resource provider backed by the given sqlx.DB.
func NewSQLXProvider(db *sqlx.DB) *SQLXProvider {
	return &SQLXProvider{db: db}
}

// Acquire pins a connection and wraps it as a resource.
func (p *SQLXProvider) Acquire(ctx context.Context) (rxsql.Resource, error) {
	conn, err := p.db.Connx(ctx)
	if err != nil {
		return nil, err
	}

	return &sqlxResource{conn: conn}, nil
}

// Release returns the resource's connection to the pool.
func (p *SQLXProvider) Release(resource rxsql.Resource) error {
	return resource.Close()
}

// Close closes the underlying sqlx.DB.
func (p *SQLXProvider) Close() error {
	return p.db.Close()
}

// sqlxResource wraps one pinned sqlx.Conn.
type sqlxResource struct {
	conn *sqlx.Conn
}

func (r *sqlxResource) Query(ctx context.Context, statement string, args ...any) (rxsql.Rows, error) {
	rows, err := r.conn.QueryxContext(ctx, statement, args...)
	if err != nil {
		return nil, err
	}

	return &stdRows{rows: rows.Rows}, nil
}

func (r *sqlxResource) Exec(ctx context.Context, statement string, args ...any) (rxsql.Result, error) {
	result, err := r.conn.ExecContext(ctx, statement, args...)
	if err != nil {
		return nil, err
	}

	return &stdResult{result: result}, nil
}

func (r *sqlxResource) Close() error {
	return r.conn.Close()
}
