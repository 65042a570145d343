package sqlengine

import (
	"context"

	"github.com/streamtx/rx-sql-go/rxsql"
)

// The transaction lifecycle statements are executed as plain updates so they
// travel the exact same path as any other statement: dependency wait,
// scheduler resolution, resource acquisition. Postgres accepts them verbatim;
// other backends can rewrite them through a custom resource provider.
const (
	stmtBegin    = "begin"
	stmtCommit   = "commit"
	stmtRollback = "rollback"
)

// BeginTransaction opens a transaction on the given execution context. The
// begin statement is dispatched onto a dedicated worker created from the
// transactional scheduler factory; every statement issued afterwards on the
// same context chains onto that worker and shares the pinned connection,
// until Commit or Rollback completes.
//
// A begin while a transaction is already open on the context fails with
// rxsql.ErrTransactionAlreadyOpen and leaves the open transaction untouched.
// The returned signal completes with true once the transaction is open.
func (db *Database) BeginTransaction(ctx context.Context, ec *rxsql.ExecContext, deps ...rxsql.Dependency) *rxsql.BoolSignal {
	if ec.TransactionIsOpen() {
		db.logWarn(ctx, logMsgNestedBeginRejected)

		return rxsql.NewFailedBoolSignal(rxsql.ErrTransactionAlreadyOpen)
	}

	q := db.newPendingQuery(kindBegin, stmtBegin, nil)
	q.deps = deps

	return runToBool(db.runUpdate(ctx, ec, q), func(int64) bool { return true })
}

// Commit finishes the open transaction on the given execution context. It
// waits for deps first, so the statements of the transaction are passed here
// to guarantee they have executed before the commit statement runs.
//
// The returned signal completes with true when the database reported work
// committed (the commit statement affected at least one row) and false
// otherwise. The same value is published as the context's last transaction
// result. A commit without an open transaction fails with
// rxsql.ErrNoTransactionOpen.
func (db *Database) Commit(ctx context.Context, ec *rxsql.ExecContext, deps ...rxsql.Dependency) *rxsql.BoolSignal {
	return db.finishTransaction(ctx, ec, kindCommit, stmtCommit, deps)
}

// Rollback discards the open transaction on the given execution context.
// Like Commit it waits for deps first, and like Commit a failed dependency
// aborts the statement: the failure propagates, the transaction stays open
// and no result is recorded. To roll back after a failed statement, call
// Rollback again without the failed dependency. The returned signal mirrors
// Commit's.
func (db *Database) Rollback(ctx context.Context, ec *rxsql.ExecContext, deps ...rxsql.Dependency) *rxsql.BoolSignal {
	return db.finishTransaction(ctx, ec, kindRollback, stmtRollback, deps)
}

func (db *Database) finishTransaction(
	ctx context.Context,
	ec *rxsql.ExecContext,
	kind statementKind,
	sqlText string,
	deps []rxsql.Dependency,
) *rxsql.BoolSignal {

	if !ec.TransactionIsOpen() {
		db.logWarn(ctx, logMsgFinishWithoutBegin, logAttrStatementKind, string(kind))

		return rxsql.NewFailedBoolSignal(rxsql.ErrNoTransactionOpen)
	}

	q := db.newPendingQuery(kind, sqlText, nil)
	q.deps = deps

	return runToBool(db.runUpdate(ctx, ec, q), func(rows int64) bool { return rows != 0 })
}

// LastTransactionResult returns the outcome of the most recent transaction
// finished on the context: true for committed, false for rolled back, or a
// completed signal without a value when no transaction has finished yet.
func (db *Database) LastTransactionResult(ec *rxsql.ExecContext) *rxsql.BoolSignal {
	return ec.LastTransactionResult()
}

// runToBool adapts an update signal into a boolean one via mapper.
func runToBool(signal *rxsql.Signal, mapper func(rowsAffected int64) bool) *rxsql.BoolSignal {
	out := rxsql.NewBoolSignal()

	signal.Subscribe(func() {
		if err := signal.Err(); err != nil {
			out.Fail(err)

			return
		}

		out.Complete(mapper(signal.RowsAffected()))
	})

	return out
}

/***** composable transaction operators *****/

// TxOperator turns one upstream dependency into a transaction-finishing
// signal. It is the composition form of Commit/Rollback for pipelines that
// thread a single dependency through.
type TxOperator func(dep rxsql.Dependency) *rxsql.BoolSignal

// Apply runs the operator on dep.
func (op TxOperator) Apply(dep rxsql.Dependency) *rxsql.BoolSignal {
	return op(dep)
}

// CommitOperator returns an operator that commits the context's open
// transaction once the dependency it is applied to has completed.
func (db *Database) CommitOperator(ctx context.Context, ec *rxsql.ExecContext) TxOperator {
	return func(dep rxsql.Dependency) *rxsql.BoolSignal {
		return db.Commit(ctx, ec, dep)
	}
}

// RollbackOperator returns an operator that rolls the context's open
// transaction back once the dependency it is applied to has completed.
func (db *Database) RollbackOperator(ctx context.Context, ec *rxsql.ExecContext) TxOperator {
	return func(dep rxsql.Dependency) *rxsql.BoolSignal {
		return db.Rollback(ctx, ec, dep)
	}
}
