package rxsql

import (
	"context"
	"sync"
)

// Resource is a connection-like object against which statements execute.
type Resource interface {
	Query(ctx context.Context, statement string, args ...any) (Rows, error)
	Exec(ctx context.Context, statement string, args ...any) (Result, error)
	Close() error
}

// Rows is the iterator over a query's result set.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close() error
}

// Result reports the effect of an executed statement.
type Result interface {
	RowsAffected() (int64, error)
}

// ResourceProvider supplies and reclaims resources. The default variant hands
// out a fresh resource per Acquire; the transactional variant pins one.
type ResourceProvider interface {
	Acquire(ctx context.Context) (Resource, error)
	Release(resource Resource) error
	Close() error
}

// TransactionalResourceProvider wraps a base provider and pins exactly one
// resource for its whole lifetime, so every statement between begin and
// commit/rollback observes the same underlying connection and statement
// effects accumulate until the finishing statement runs against it.
//
// Release is a no-op: the pinned resource is only returned to the base
// provider when the wrapping provider itself is closed at the end of the
// transaction's observe phase.
type TransactionalResourceProvider struct {
	mu       sync.Mutex
	base     ResourceProvider
	resource Resource
}

func NewTransactionalResourceProvider(base ResourceProvider) *TransactionalResourceProvider {
	return &TransactionalResourceProvider{base: base}
}

// Acquire pins a resource from the base provider on first call and returns
// the same resource on every later call.
func (p *TransactionalResourceProvider) Acquire(ctx context.Context) (Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.resource != nil {
		return p.resource, nil
	}

	resource, err := p.base.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	p.resource = resource

	return resource, nil
}

// Release does nothing; the transaction holds its resource until Close.
func (p *TransactionalResourceProvider) Release(_ Resource) error {
	return nil
}

// Close returns the pinned resource, if any, to the base provider.
func (p *TransactionalResourceProvider) Close() error {
	p.mu.Lock()
	resource := p.resource
	p.resource = nil
	p.mu.Unlock()

	if resource == nil {
		return nil
	}

	return p.base.Release(resource)
}
