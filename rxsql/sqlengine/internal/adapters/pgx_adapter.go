package adapters

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamtx/rx-sql-go/rxsql"
)

// PGXProvider implements rxsql.ResourceProvider over a pgxpool.Pool.
// Acquire checks one connection out of the pool; Release returns it.
type PGXProvider struct {
	pool *pgxpool.Pool
}

// NewPGXProvider creates a resource provider backed by the given pool.
func NewPGXProvider(pool *pgxpool.Pool) *PGXProvider {
	return &PGXProvider{pool: pool}
}

// Acquire checks a connection out of the pool and wraps it as a resource.
func (p *PGXProvider) Acquire(ctx context.Context) (rxsql.Resource, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	return &pgxResource{conn: conn}, nil
}

// Release returns the resource's connection to the pool.
func (p *PGXProvider) Release(resource rxsql.Resource) error {
	return resource.Close()
}

// Close closes the underlying pool.
func (p *PGXProvider) Close() error {
	p.pool.Close()

	return nil
}

// pgxResource wraps one checked-out pool connection.
type pgxResource struct {
	conn *pgxpool.Conn
}

// Query executes a query on this connection and returns wrapped rows.
func (r *pgxResource) Query(ctx context.Context, statement string, args ...any) (rxsql.Rows, error) {
	rows, err := r.conn.Query(ctx, statement, args...)
	if err != nil {
		return nil, err
	}

	return &pgxRows{rows: rows}, nil
}

// Exec executes a statement on this connection and returns the wrapped result.
func (r *pgxResource) Exec(ctx context.Context, statement string, args ...any) (rxsql.Result, error) {
	tag, err := r.conn.Exec(ctx, statement, args...)
	if err != nil {
		return nil, err
	}

	return &pgxResult{tag: tag}, nil
}

// Close returns the connection to its pool.
func (r *pgxResource) Close() error {
	r.conn.Release()

	return nil
}

// pgxRows wraps pgx.Rows to implement the rxsql.Rows interface.
type pgxRows struct {
	rows pgx.Rows
}

func (p *pgxRows) Next() bool {
	return p.rows.Next()
}

func (p *pgxRows) Scan(dest ...any) error {
	return p.rows.Scan(dest...)
}

func (p *pgxRows) Columns() ([]string, error) {
	fields := p.rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = field.Name
	}

	return names, nil
}

func (p *pgxRows) Close() error {
	p.rows.Close()

	return nil
}

// pgxResult wraps pgconn.CommandTag to implement the rxsql.Result interface.
type pgxResult struct {
	tag pgconn.CommandTag
}

func (p *pgxResult) RowsAffected() (int64, error) {
	return p.tag.RowsAffected(), nil
}
