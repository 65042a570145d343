package doubles

import (
	"sync"

	"github.com/streamtx/rx-sql-go/rxsql"
)

// SchedulerFactorySpy is an rxsql.SchedulerFactory implementation that counts
// Create calls while delegating to an inner factory, so tests can assert
// which factory an execution context resolved a statement through.
type SchedulerFactorySpy struct {
	mu      sync.Mutex
	inner   rxsql.SchedulerFactory
	created int
}

// NewSchedulerFactorySpy creates a spy delegating to the caller-inline
// factory, which keeps test statements on the test goroutine.
func NewSchedulerFactorySpy() *SchedulerFactorySpy {
	return &SchedulerFactorySpy{inner: rxsql.NewCallerSchedulerFactory()}
}

// NewSchedulerFactorySpyWrapping creates a spy delegating to inner.
func NewSchedulerFactorySpyWrapping(inner rxsql.SchedulerFactory) *SchedulerFactorySpy {
	return &SchedulerFactorySpy{inner: inner}
}

// Create counts the call and delegates to the inner factory.
func (s *SchedulerFactorySpy) Create() rxsql.Scheduler {
	s.mu.Lock()
	s.created++
	s.mu.Unlock()

	return s.inner.Create()
}

// CreateCount returns how many schedulers have been created.
func (s *SchedulerFactorySpy) CreateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.created
}
