package sqlengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamtx/rx-sql-go/rxsql"
	"github.com/streamtx/rx-sql-go/rxsql/sqlengine"
	"github.com/streamtx/rx-sql-go/testutil/config"
	"github.com/streamtx/rx-sql-go/testutil/doubles"
)

// newFakeDatabase builds a Database over a fake provider. The returned
// provider records every statement with the goroutine and resource it
// executed on.
func newFakeDatabase(t *testing.T, options ...sqlengine.Option) (*sqlengine.Database, *doubles.FakeResourceProvider) {
	t.Helper()

	provider := doubles.NewFakeResourceProvider()

	db, err := sqlengine.NewDatabaseFromResourceProvider(provider, options...)
	require.NoError(t, err)

	return db, provider
}

// newDatabaseWithMetrics builds a Database over the given provider with a
// metrics spy attached.
func newDatabaseWithMetrics(t *testing.T, provider *doubles.FakeResourceProvider, metrics *doubles.MetricsCollectorSpy) *sqlengine.Database {
	t.Helper()

	db, err := sqlengine.NewDatabaseFromResourceProvider(provider, sqlengine.WithMetrics(metrics))
	require.NoError(t, err)

	return db
}

func Test_NewDatabaseFromPGXPool_WithNilPool(t *testing.T) {
	_, err := sqlengine.NewDatabaseFromPGXPool(nil)
	assert.ErrorIs(t, err, rxsql.ErrNilDatabaseConnection)
}

func Test_NewDatabaseFromSQLDB_WithNilDB(t *testing.T) {
	_, err := sqlengine.NewDatabaseFromSQLDB(nil)
	assert.ErrorIs(t, err, rxsql.ErrNilDatabaseConnection)
}

func Test_NewDatabaseFromSQLX_WithNilDB(t *testing.T) {
	_, err := sqlengine.NewDatabaseFromSQLX(nil)
	assert.ErrorIs(t, err, rxsql.ErrNilDatabaseConnection)
}

func Test_NewDatabaseFromResourceProvider_WithNilProvider(t *testing.T) {
	_, err := sqlengine.NewDatabaseFromResourceProvider(nil)
	assert.ErrorIs(t, err, rxsql.ErrNilResourceProvider)
}

func Test_NewDatabaseFromPGXPool_Construction(t *testing.T) {
	pool := config.PostgresPGXPoolTest()
	defer pool.Close()

	db, err := sqlengine.NewDatabaseFromPGXPool(pool)
	require.NoError(t, err)
	assert.NotNil(t, db)
}

func Test_NewDatabaseFromSQLDB_Construction(t *testing.T) {
	sqlDB := config.PostgresSQLDBTestConfig()

	db, err := sqlengine.NewDatabaseFromSQLDB(sqlDB)
	require.NoError(t, err)
	require.NotNil(t, db)

	assert.NoError(t, db.Close())
}

func Test_NewDatabaseFromSQLX_Construction(t *testing.T) {
	sqlxDB := config.PostgresSQLXTestConfig()

	db, err := sqlengine.NewDatabaseFromSQLX(sqlxDB)
	require.NoError(t, err)
	require.NotNil(t, db)

	assert.NoError(t, db.Close())
}

func Test_Options_NilSchedulerFactoriesAreRejected(t *testing.T) {
	provider := doubles.NewFakeResourceProvider()

	_, err := sqlengine.NewDatabaseFromResourceProvider(provider, sqlengine.WithNonTransactionalSchedulerFactory(nil))
	assert.ErrorIs(t, err, rxsql.ErrNilSchedulerFactory)

	_, err = sqlengine.NewDatabaseFromResourceProvider(provider, sqlengine.WithTransactionalSchedulerFactory(nil))
	assert.ErrorIs(t, err, rxsql.ErrNilSchedulerFactory)
}

func Test_Options_CustomSchedulerFactoriesAreUsed(t *testing.T) {
	nonTransactional := doubles.NewSchedulerFactorySpy()
	transactional := doubles.NewSchedulerFactorySpyWrapping(rxsql.NewSingleWorkerSchedulerFactory())

	db, _ := newFakeDatabase(t,
		sqlengine.WithNonTransactionalSchedulerFactory(nonTransactional),
		sqlengine.WithTransactionalSchedulerFactory(transactional),
	)

	ctx := context.Background()
	ec := db.NewContext()

	_, err := db.Update("insert into accounts (name) values ('a')").Run(ctx, ec).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, nonTransactional.CreateCount())
	assert.Equal(t, 0, transactional.CreateCount())

	begin := db.BeginTransaction(ctx, ec)
	_, _, err = db.Commit(ctx, ec, begin).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, transactional.CreateCount(), "a transaction creates exactly one dedicated worker")
	assert.Equal(t, 1, nonTransactional.CreateCount(), "transactional statements bypass the default factory")
}

func Test_Database_CloseIsIdempotentAndClosesTheProvider(t *testing.T) {
	db, provider := newFakeDatabase(t)

	require.NoError(t, db.Close())
	assert.True(t, provider.Closed())

	assert.NoError(t, db.Close(), "closing again should be a no-op")
}

func Test_Database_StatementAfterCloseFails(t *testing.T) {
	db, _ := newFakeDatabase(t)
	require.NoError(t, db.Close())

	ctx := context.Background()

	_, err := db.Update("update accounts set active = false").Run(ctx, db.NewContext()).Await(ctx)
	assert.ErrorIs(t, err, rxsql.ErrDatabaseClosed)
}

func Test_Database_NewContextsAreIndependent(t *testing.T) {
	db, _ := newFakeDatabase(t)

	first := db.NewContext()
	second := db.NewContext()

	assert.NotSame(t, first, second)
	assert.False(t, first.TransactionIsOpen())
	assert.False(t, second.TransactionIsOpen())
}
