package rxsql

import (
	"errors"
)

var ErrNilDatabaseConnection = errors.New("nil database connection supplied")
var ErrNilResourceProvider = errors.New("nil resource provider supplied")
var ErrNilSchedulerFactory = errors.New("nil scheduler factory supplied")
var ErrDatabaseClosed = errors.New("database handle is closed")
var ErrTransactionAlreadyOpen = errors.New("a transaction is already open on this execution context")
var ErrNoTransactionOpen = errors.New("no transaction is open on this execution context")
var ErrPendingQueryConsumed = errors.New("pending query was already consumed")
var ErrBuildingStatementFailed = errors.New("building sql statement failed")
var ErrAcquiringResourceFailed = errors.New("acquiring resource failed")
var ErrStatementExecutionFailed = errors.New("statement execution failed")
var ErrGettingRowsAffectedFailed = errors.New("failed to get rows affected count")
var ErrScanningRowFailed = errors.New("failed to scan database row")
