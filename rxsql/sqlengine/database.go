package sqlengine

import (
	"context"
	"database/sql"
	"math"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/streamtx/rx-sql-go/rxsql"
	"github.com/streamtx/rx-sql-go/rxsql/sqlengine/internal/adapters"
)

const (
	logMsgBuildStatementFailed  = "failed to build sql statement"
	logMsgAcquireResourceFailed = "failed to acquire resource"
	logMsgReleaseResourceFailed = "failed to release resource"
	logMsgStatementExecFailed   = "statement execution failed"
	logMsgRowsAffectedFailed    = "failed to get rows affected count"
	logMsgCloseRowsFailed       = "failed to close database rows"
	logMsgScanRowFailed         = "failed to scan database row"
	logMsgStatementCompleted    = "statement completed"
	logMsgTransactionFinished   = "transaction finished"
	logMsgNestedBeginRejected   = "begin rejected, a transaction is already open on this context"
	logMsgFinishWithoutBegin    = "commit/rollback rejected, no transaction is open on this context"
	logMsgSQLExecuted           = "executed sql for: "
	logAttrError                = "error"
	logAttrStatement            = "statement"
	logAttrStatementID          = "statement_id"
	logAttrStatementKind        = "statement_kind"
	logAttrDurationMS           = "duration_ms"
	logAttrRowsAffected         = "rows_affected"
	logAttrRowCount             = "row_count"
	logAttrCommitted            = "committed"
	metricStatementDuration     = "rxsql_statement_duration_seconds"
	metricStatementErrorsTotal  = "rxsql_statement_errors_total"
	metricTransactionsTotal     = "rxsql_transactions_finished_total"
	labelStatementKind          = "statement_kind"
	labelOutcome                = "outcome"
	spanNamePrefix              = "rxsql."
	spanStatusOK                = "ok"
	spanStatusError             = "error"
)

// Database is the logical handle for one database. It owns the default
// resource provider and the default scheduler factories, both immutable after
// construction and safely shared by any number of execution contexts. The
// only cross-context mutable state is the closed flag.
type Database struct {
	provider                   rxsql.ResourceProvider
	nonTransactionalSchedulers rxsql.SchedulerFactory
	transactionalSchedulers    rxsql.SchedulerFactory
	logger                     rxsql.Logger
	contextualLogger           rxsql.ContextualLogger
	metricsCollector           rxsql.MetricsCollector
	tracingCollector           rxsql.TracingCollector
	closed                     atomic.Bool
}

// NewDatabaseFromPGXPool creates a Database using a pgx pool with optional configuration.
func NewDatabaseFromPGXPool(pool *pgxpool.Pool, options ...Option) (*Database, error) {
	if pool == nil {
		return nil, rxsql.ErrNilDatabaseConnection
	}

	return newDatabase(adapters.NewPGXProvider(pool), options)
}

// NewDatabaseFromSQLDB creates a Database using a sql.DB with optional configuration.
func NewDatabaseFromSQLDB(db *sql.DB, options ...Option) (*Database, error) {
	if db == nil {
		return nil, rxsql.ErrNilDatabaseConnection
	}

	return newDatabase(adapters.NewSQLProvider(db), options)
}

// NewDatabaseFromSQLX creates a Database using a sqlx.DB with optional configuration.
func NewDatabaseFromSQLX(db *sqlx.DB, options ...Option) (*Database, error) {
	if db == nil {
		return nil, rxsql.ErrNilDatabaseConnection
	}

	return newDatabase(adapters.NewSQLXProvider(db), options)
}

// NewDatabaseFromResourceProvider creates a Database over a caller-supplied
// provider. This is the seam for custom backends and for tests.
func NewDatabaseFromResourceProvider(provider rxsql.ResourceProvider, options ...Option) (*Database, error) {
	if provider == nil {
		return nil, rxsql.ErrNilResourceProvider
	}

	return newDatabase(provider, options)
}

func newDatabase(provider rxsql.ResourceProvider, options []Option) (*Database, error) {
	db := &Database{
		provider:                   provider,
		nonTransactionalSchedulers: rxsql.NewElasticSchedulerFactory(),
		transactionalSchedulers:    rxsql.NewSingleWorkerSchedulerFactory(),
	}

	for _, option := range options {
		if err := option(db); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// NewContext mints an independent execution context for one logical thread of
// work. Contexts must not be shared between concurrent callers; each caller
// that wants its own transaction state obtains its own context.
func (db *Database) NewContext() *rxsql.ExecContext {
	return rxsql.NewExecContext(
		db.provider,
		db.nonTransactionalSchedulers,
		db.transactionalSchedulers,
		db.logger,
	)
}

// Close marks the handle closed and closes the default resource provider.
// Pending queries started afterwards fail with rxsql.ErrDatabaseClosed.
func (db *Database) Close() error {
	if db.closed.Swap(true) {
		return nil
	}

	return db.provider.Close()
}

/***** logging, metrics, tracing plumbing *****/

func (db *Database) logDebug(ctx context.Context, msg string, args ...any) {
	if db.contextualLogger != nil {
		db.contextualLogger.DebugContext(ctx, msg, args...)

		return
	}

	if db.logger != nil {
		db.logger.Debug(msg, args...)
	}
}

func (db *Database) logInfo(ctx context.Context, msg string, args ...any) {
	if db.contextualLogger != nil {
		db.contextualLogger.InfoContext(ctx, msg, args...)

		return
	}

	if db.logger != nil {
		db.logger.Info(msg, args...)
	}
}

func (db *Database) logWarn(ctx context.Context, msg string, args ...any) {
	if db.contextualLogger != nil {
		db.contextualLogger.WarnContext(ctx, msg, args...)

		return
	}

	if db.logger != nil {
		db.logger.Warn(msg, args...)
	}
}

func (db *Database) logError(ctx context.Context, msg string, args ...any) {
	if db.contextualLogger != nil {
		db.contextualLogger.ErrorContext(ctx, msg, args...)

		return
	}

	if db.logger != nil {
		db.logger.Error(msg, args...)
	}
}

func (db *Database) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if db.metricsCollector == nil {
		return
	}

	if contextual, ok := db.metricsCollector.(rxsql.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)

		return
	}

	db.metricsCollector.RecordDuration(metric, duration, labels)
}

func (db *Database) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if db.metricsCollector == nil {
		return
	}

	if contextual, ok := db.metricsCollector.(rxsql.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)

		return
	}

	db.metricsCollector.IncrementCounter(metric, labels)
}

func (db *Database) startSpan(ctx context.Context, q *PendingQuery) (context.Context, rxsql.SpanContext) {
	if db.tracingCollector == nil {
		return ctx, nil
	}

	return db.tracingCollector.StartSpan(ctx, spanNamePrefix+string(q.kind), map[string]string{
		logAttrStatementKind: string(q.kind),
		logAttrStatementID:   q.id.String(),
	})
}

func (db *Database) finishSpan(span rxsql.SpanContext, status string) {
	if db.tracingCollector == nil || span == nil {
		return
	}

	db.tracingCollector.FinishSpan(span, status, nil)
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
