package sqlengine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/streamtx/rx-sql-go/rxsql"
)

type statementKind string

const (
	kindSelect   statementKind = "select"
	kindUpdate   statementKind = "update"
	kindBegin    statementKind = "begin"
	kindCommit   statementKind = "commit"
	kindRollback statementKind = "rollback"
)

// SQLStatement is any statement builder that can render itself to SQL with
// bound parameters. goqu's select/insert/update/delete datasets satisfy it.
type SQLStatement interface {
	ToSQL() (sql string, params []any, err error)
}

// PendingQuery is the immutable description of one unit of database work. It
// captures the handle reference and the statement, but resolves scheduler and
// resource provider only when it executes. A pending query is consumed
// exactly once; running it a second time fails.
type PendingQuery struct {
	db       *Database
	id       uuid.UUID
	kind     statementKind
	sql      string
	args     []any
	buildErr error
	deps     []rxsql.Dependency
	consumed atomic.Bool
}

func (db *Database) newPendingQuery(kind statementKind, sqlText string, args []any) *PendingQuery {
	return &PendingQuery{
		db:   db,
		id:   uuid.Must(uuid.NewV7()),
		kind: kind,
		sql:  sqlText,
		args: args,
	}
}

func (q *PendingQuery) consume() bool {
	return q.consumed.CompareAndSwap(false, true)
}

/***** UpdateBuilder *****/

// UpdateBuilder builds a pending update/insert/delete statement. Builders are
// cheap and context-free: they capture only the handle and resolve everything
// else at run time.
type UpdateBuilder struct {
	q *PendingQuery
}

// Update returns an update builder for the given statement sql.
func (db *Database) Update(sqlText string, args ...any) *UpdateBuilder {
	return &UpdateBuilder{q: db.newPendingQuery(kindUpdate, sqlText, args)}
}

// UpdateStmt returns an update builder rendered from a statement builder such
// as a goqu insert/update/delete dataset. A render failure surfaces when the
// pending query runs.
func (db *Database) UpdateStmt(stmt SQLStatement) *UpdateBuilder {
	sqlText, params, err := stmt.ToSQL()
	builder := db.Update(sqlText, params...)
	if err != nil {
		builder.q.buildErr = errors.Join(rxsql.ErrBuildingStatementFailed, err)
	}

	return builder
}

// DependsOn declares upstream pending computations that must complete before
// this statement executes.
func (b *UpdateBuilder) DependsOn(deps ...rxsql.Dependency) *UpdateBuilder {
	b.q.deps = append(b.q.deps, deps...)

	return b
}

// Run hands the pending query off for execution against the given execution
// context and returns its completion signal.
func (b *UpdateBuilder) Run(ctx context.Context, ec *rxsql.ExecContext) *rxsql.Signal {
	return b.q.db.runUpdate(ctx, ec, b.q)
}

/***** SelectBuilder *****/

// RowMapper converts the current row of a result set into one item. The
// mapper must only Scan; iteration and cleanup belong to the engine.
type RowMapper func(row rxsql.Rows) (any, error)

// SelectBuilder builds a pending select statement.
type SelectBuilder struct {
	q      *PendingQuery
	mapper RowMapper
}

// Select returns a select builder for the given statement sql. Without an
// explicit mapper each row is scanned positionally into a []any.
func (db *Database) Select(sqlText string, args ...any) *SelectBuilder {
	return &SelectBuilder{q: db.newPendingQuery(kindSelect, sqlText, args)}
}

// SelectStmt returns a select builder rendered from a statement builder such
// as a goqu select dataset.
func (db *Database) SelectStmt(stmt SQLStatement) *SelectBuilder {
	sqlText, params, err := stmt.ToSQL()
	builder := db.Select(sqlText, params...)
	if err != nil {
		builder.q.buildErr = errors.Join(rxsql.ErrBuildingStatementFailed, err)
	}

	return builder
}

// DependsOn declares upstream pending computations that must complete before
// this statement executes.
func (b *SelectBuilder) DependsOn(deps ...rxsql.Dependency) *SelectBuilder {
	b.q.deps = append(b.q.deps, deps...)

	return b
}

// Map sets a custom row mapper.
func (b *SelectBuilder) Map(mapper RowMapper) *SelectBuilder {
	b.mapper = mapper

	return b
}

// MapJSON maps each row by scanning a single JSON column and unmarshaling it
// into a fresh value produced by prototype.
func (b *SelectBuilder) MapJSON(prototype func() any) *SelectBuilder {
	return b.Map(func(row rxsql.Rows) (any, error) {
		var raw []byte
		if err := row.Scan(&raw); err != nil {
			return nil, err
		}

		item := prototype()
		if err := jsoniter.ConfigFastest.Unmarshal(raw, item); err != nil {
			return nil, err
		}

		return item, nil
	})
}

// Run hands the pending query off for execution against the given execution
// context and returns the mapped items' completion signal.
func (b *SelectBuilder) Run(ctx context.Context, ec *rxsql.ExecContext) *rxsql.ItemsSignal {
	return b.q.db.runSelect(ctx, ec, b.q, b.mapper)
}

/***** execution engine *****/

// precheck validates a pending query before its dependencies are wired up.
// It returns a non-nil error to fail the signal immediately.
func (db *Database) precheck(ctx context.Context, q *PendingQuery) error {
	if db.closed.Load() {
		return rxsql.ErrDatabaseClosed
	}

	if !q.consume() {
		return rxsql.ErrPendingQueryConsumed
	}

	if q.buildErr != nil {
		db.logError(ctx, logMsgBuildStatementFailed, logAttrError, q.buildErr.Error(), logAttrStatementID, q.id.String())

		return q.buildErr
	}

	return nil
}

// dispatch waits for the query's dependencies and hands the unit to the
// scheduler resolved at that moment. A failed dependency or an already
// cancelled context aborts without executing; nothing is acquired.
func (db *Database) dispatch(ctx context.Context, ec *rxsql.ExecContext, q *PendingQuery, fail func(error), execute func()) {
	rxsql.WhenAll(q.deps, func(depErr error) {
		if depErr != nil {
			fail(depErr)

			return
		}

		if err := ctx.Err(); err != nil {
			fail(err)

			return
		}

		db.schedulerFor(ec, q).Schedule(execute)
	})
}

// schedulerFor resolves the worker strategy for the query. The begin
// statement installs the transactional scheduler override and is dispatched
// onto the dedicated worker created from it; every other statement resolves
// through the context's current strategy.
func (db *Database) schedulerFor(ec *rxsql.ExecContext, q *PendingQuery) rxsql.Scheduler {
	if q.kind == kindBegin {
		ec.BeginTransactionSubscribe()

		return ec.TransactionScheduler()
	}

	return ec.CurrentScheduler()
}

func (db *Database) runUpdate(ctx context.Context, ec *rxsql.ExecContext, q *PendingQuery) *rxsql.Signal {
	signal := rxsql.NewSignal()

	if err := db.precheck(ctx, q); err != nil {
		signal.Fail(err)

		return signal
	}

	db.dispatch(ctx, ec, q, signal.Fail, func() {
		db.executeUpdate(ctx, ec, q, signal)
	})

	return signal
}

func (db *Database) runSelect(ctx context.Context, ec *rxsql.ExecContext, q *PendingQuery, mapper RowMapper) *rxsql.ItemsSignal {
	signal := rxsql.NewItemsSignal()

	if err := db.precheck(ctx, q); err != nil {
		signal.Fail(err)

		return signal
	}

	if mapper == nil {
		mapper = scanRowPositionally
	}

	db.dispatch(ctx, ec, q, signal.Fail, func() {
		db.executeSelect(ctx, ec, q, mapper, signal)
	})

	return signal
}

// executeUpdate runs an update-kind statement on the worker it was scheduled
// onto and settles the signal last, after the resource has been released and
// any transaction state reverted: subscribers chaining off the completion
// must observe the statement's full effect on the context.
func (db *Database) executeUpdate(ctx context.Context, ec *rxsql.ExecContext, q *PendingQuery, signal *rxsql.Signal) {
	rowsAffected, err := db.performUpdate(ctx, ec, q)
	if err != nil {
		signal.Fail(err)

		return
	}

	signal.Complete(rowsAffected)
}

// performUpdate holds the whole execution of one update-kind statement. For
// begin it installs the transactional resource provider before acquiring; for
// commit/rollback it publishes the transaction result and reverts the context
// whether the statement succeeded or not, so the caller always observes the
// transaction as closed afterwards.
func (db *Database) performUpdate(ctx context.Context, ec *rxsql.ExecContext, q *PendingQuery) (int64, error) {
	if q.kind == kindBegin {
		ec.BeginTransactionObserve()
	}

	spanCtx, span := db.startSpan(ctx, q)

	provider := ec.CurrentResourceProvider()
	resource, acquireErr := provider.Acquire(spanCtx)
	if acquireErr != nil {
		// the transaction, if open, stays open: nothing executed
		db.logError(spanCtx, logMsgAcquireResourceFailed, logAttrError, acquireErr.Error(), logAttrStatementID, q.id.String())
		db.finishSpan(span, spanStatusError)

		return 0, errors.Join(rxsql.ErrAcquiringResourceFailed, acquireErr)
	}
	defer db.releaseResource(spanCtx, provider, resource)

	result, execErr := db.timedExec(spanCtx, resource, q)
	if execErr != nil {
		db.incrementCounter(spanCtx, metricStatementErrorsTotal, map[string]string{labelStatementKind: string(q.kind)})
		db.finishTransactionState(spanCtx, ec, q, false)
		db.finishSpan(span, spanStatusError)

		return 0, errors.Join(rxsql.ErrStatementExecutionFailed, execErr)
	}

	rowsAffected, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		db.logError(spanCtx, logMsgRowsAffectedFailed, logAttrError, rowsErr.Error(), logAttrStatementID, q.id.String())
		db.finishTransactionState(spanCtx, ec, q, false)
		db.finishSpan(span, spanStatusError)

		return 0, errors.Join(rxsql.ErrGettingRowsAffectedFailed, rowsErr)
	}

	if q.kind == kindCommit || q.kind == kindRollback {
		ec.RecordTransactionResult(rowsAffected != 0)
		db.finishTransactionState(spanCtx, ec, q, rowsAffected != 0)
	}

	db.finishSpan(span, spanStatusOK)
	db.logInfo(spanCtx, logMsgStatementCompleted,
		logAttrStatementKind, string(q.kind),
		logAttrRowsAffected, rowsAffected)

	return rowsAffected, nil
}

// executeSelect runs a select statement on the worker it was scheduled onto.
// Like executeUpdate it settles the signal only after rows are closed and the
// resource is released.
func (db *Database) executeSelect(ctx context.Context, ec *rxsql.ExecContext, q *PendingQuery, mapper RowMapper, signal *rxsql.ItemsSignal) {
	items, err := db.performSelect(ctx, ec, q, mapper)
	if err != nil {
		signal.Fail(err)

		return
	}

	signal.Complete(items)
}

// performSelect executes the statement and maps every row in result-set order.
func (db *Database) performSelect(ctx context.Context, ec *rxsql.ExecContext, q *PendingQuery, mapper RowMapper) ([]any, error) {
	spanCtx, span := db.startSpan(ctx, q)

	provider := ec.CurrentResourceProvider()
	resource, acquireErr := provider.Acquire(spanCtx)
	if acquireErr != nil {
		db.logError(spanCtx, logMsgAcquireResourceFailed, logAttrError, acquireErr.Error(), logAttrStatementID, q.id.String())
		db.finishSpan(span, spanStatusError)

		return nil, errors.Join(rxsql.ErrAcquiringResourceFailed, acquireErr)
	}
	defer db.releaseResource(spanCtx, provider, resource)

	start := time.Now()
	rows, queryErr := resource.Query(spanCtx, q.sql, q.args...)
	duration := time.Since(start)
	db.logStatementWithDuration(spanCtx, q, duration)
	db.recordDuration(spanCtx, metricStatementDuration, duration, map[string]string{labelStatementKind: string(q.kind)})

	if queryErr != nil {
		db.incrementCounter(spanCtx, metricStatementErrorsTotal, map[string]string{labelStatementKind: string(q.kind)})
		db.logError(spanCtx, logMsgStatementExecFailed, logAttrError, queryErr.Error(), logAttrStatement, q.sql)
		db.finishSpan(span, spanStatusError)

		return nil, errors.Join(rxsql.ErrStatementExecutionFailed, queryErr)
	}
	defer db.closeRows(spanCtx, rows)

	items := make([]any, 0)
	for rows.Next() {
		item, mapErr := mapper(rows)
		if mapErr != nil {
			db.logError(spanCtx, logMsgScanRowFailed, logAttrError, mapErr.Error(), logAttrStatementID, q.id.String())
			db.finishSpan(span, spanStatusError)

			return nil, errors.Join(rxsql.ErrScanningRowFailed, mapErr)
		}

		items = append(items, item)
	}

	db.finishSpan(span, spanStatusOK)
	db.logInfo(spanCtx, logMsgStatementCompleted,
		logAttrStatementKind, string(q.kind),
		logAttrRowCount, len(items))

	return items, nil
}

// timedExec executes the statement and reports its timing to the debug log
// and the metrics collector.
func (db *Database) timedExec(ctx context.Context, resource rxsql.Resource, q *PendingQuery) (rxsql.Result, error) {
	start := time.Now()
	result, execErr := resource.Exec(ctx, q.sql, q.args...)
	duration := time.Since(start)

	db.logStatementWithDuration(ctx, q, duration)
	db.recordDuration(ctx, metricStatementDuration, duration, map[string]string{labelStatementKind: string(q.kind)})

	if execErr != nil {
		db.logError(ctx, logMsgStatementExecFailed, logAttrError, execErr.Error(), logAttrStatement, q.sql)
	}

	return result, execErr
}

// finishTransactionState reverts the context after a commit/rollback
// statement has run. It runs whether the statement succeeded or failed: a
// failed commit still clears the transaction-open flag and both overrides,
// an asymmetry callers must be aware of. It does not run when the statement
// never executed (failed dependency or failed resource acquisition).
func (db *Database) finishTransactionState(ctx context.Context, ec *rxsql.ExecContext, q *PendingQuery, committed bool) {
	if q.kind != kindCommit && q.kind != kindRollback {
		return
	}

	ec.EndTransactionSubscribe()
	ec.EndTransactionObserve()

	db.incrementCounter(ctx, metricTransactionsTotal, map[string]string{labelOutcome: string(q.kind)})
	db.logInfo(ctx, logMsgTransactionFinished,
		logAttrStatementKind, string(q.kind),
		logAttrCommitted, committed)
}

func (db *Database) releaseResource(ctx context.Context, provider rxsql.ResourceProvider, resource rxsql.Resource) {
	if err := provider.Release(resource); err != nil {
		db.logWarn(ctx, logMsgReleaseResourceFailed, logAttrError, err.Error())
	}
}

func (db *Database) closeRows(ctx context.Context, rows rxsql.Rows) {
	if err := rows.Close(); err != nil {
		db.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, err.Error())
	}
}

// logStatementWithDuration logs the SQL with execution time at debug level.
func (db *Database) logStatementWithDuration(ctx context.Context, q *PendingQuery, duration time.Duration) {
	db.logDebug(ctx, logMsgSQLExecuted+string(q.kind),
		logAttrDurationMS, durationToMilliseconds(duration),
		logAttrStatement, q.sql,
		logAttrStatementID, q.id.String())
}

// scanRowPositionally is the default row mapper: every column into a []any.
func scanRowPositionally(row rxsql.Rows) (any, error) {
	columns, err := row.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	if err := row.Scan(pointers...); err != nil {
		return nil, err
	}

	return values, nil
}
