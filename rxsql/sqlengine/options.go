package sqlengine

import (
	"github.com/streamtx/rx-sql-go/rxsql"
)

// Option defines a functional option for configuring a Database.
type Option func(*Database) error

// WithLogger sets the plain logger for the Database.
// The logger will receive messages at different levels:
//
// Debug level: SQL statements with execution timing and transaction
// lifecycle transitions (development use)
// Info level: statement and transaction summaries (production-safe)
// Warn level: non-critical issues like cleanup failures
// Error level: failures that cause an operation to fail.
func WithLogger(logger rxsql.Logger) Option {
	return func(db *Database) error {
		db.logger = logger
		return nil
	}
}

// WithContextualLogger sets the context-aware logger for the Database.
// When set it takes precedence over the plain logger and receives the
// statement's context for automatic trace correlation.
func WithContextualLogger(logger rxsql.ContextualLogger) Option {
	return func(db *Database) error {
		db.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Database. The collector
// receives statement durations, error counters, and transaction outcomes.
func WithMetrics(collector rxsql.MetricsCollector) Option {
	return func(db *Database) error {
		db.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Database. The collector
// receives one span per executed statement.
func WithTracing(collector rxsql.TracingCollector) Option {
	return func(db *Database) error {
		db.tracingCollector = collector
		return nil
	}
}

// WithNonTransactionalSchedulerFactory overrides the strategy used for
// statements that run outside a transaction. The default is the elastic
// strategy.
func WithNonTransactionalSchedulerFactory(factory rxsql.SchedulerFactory) Option {
	return func(db *Database) error {
		if factory == nil {
			return rxsql.ErrNilSchedulerFactory
		}

		db.nonTransactionalSchedulers = factory

		return nil
	}
}

// WithTransactionalSchedulerFactory overrides the strategy used to create the
// dedicated worker a transaction runs on. The default is the single-worker
// strategy.
func WithTransactionalSchedulerFactory(factory rxsql.SchedulerFactory) Option {
	return func(db *Database) error {
		if factory == nil {
			return rxsql.ErrNilSchedulerFactory
		}

		db.transactionalSchedulers = factory

		return nil
	}
}

// WithNonTransactionalSchedulingOnCaller makes non-transactional statements
// run synchronously on the goroutine that triggers them.
func WithNonTransactionalSchedulingOnCaller() Option {
	return WithNonTransactionalSchedulerFactory(rxsql.NewCallerSchedulerFactory())
}

// WithTransactionalSchedulingOnCaller makes the begin statement, and with it
// the whole transaction chain, run synchronously on the goroutine that
// triggers it.
func WithTransactionalSchedulingOnCaller() Option {
	return WithTransactionalSchedulerFactory(rxsql.NewCallerSchedulerFactory())
}
