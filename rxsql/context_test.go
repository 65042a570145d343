package rxsql_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamtx/rx-sql-go/rxsql"
	"github.com/streamtx/rx-sql-go/testutil/doubles"
)

func newTestContext(base *doubles.FakeResourceProvider) *rxsql.ExecContext {
	return rxsql.NewExecContext(base, nil, nil, doubles.NewLoggerSpy())
}

func Test_ExecContext_DefaultsResolve(t *testing.T) {
	base := doubles.NewFakeResourceProvider()
	ec := newTestContext(base)

	assert.False(t, ec.TransactionIsOpen())
	assert.NotNil(t, ec.CurrentScheduler())
	assert.Equal(t, rxsql.ResourceProvider(base), ec.CurrentResourceProvider())
}

func Test_ExecContext_SchedulerOverrideApplies(t *testing.T) {
	base := doubles.NewFakeResourceProvider()
	ec := rxsql.NewExecContext(base, rxsql.NewCallerSchedulerFactory(), nil, nil)

	callerID := doubles.CurrentGoroutineID()

	var unitID uint64
	ec.CurrentScheduler().Schedule(func() { unitID = doubles.CurrentGoroutineID() })

	assert.Equal(t, callerID, unitID)
}

func Test_ExecContext_BeginInstallsTransactionalState(t *testing.T) {
	base := doubles.NewFakeResourceProvider()
	ec := newTestContext(base)

	ec.BeginTransactionSubscribe()
	assert.True(t, ec.TransactionIsOpen())

	ec.BeginTransactionObserve()

	provider := ec.CurrentResourceProvider()
	require.IsType(t, &rxsql.TransactionalResourceProvider{}, provider)

	first, err := provider.Acquire(context.Background())
	require.NoError(t, err)
	second, err := provider.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second, "the transactional provider should pin one resource")
}

func Test_ExecContext_CurrentSchedulerIsTheDedicatedWorkerWhileTransactionOpen(t *testing.T) {
	base := doubles.NewFakeResourceProvider()
	ec := newTestContext(base)

	ec.BeginTransactionSubscribe()
	defer ec.EndTransactionSubscribe()

	scheduler := ec.CurrentScheduler()
	assert.Same(t, ec.TransactionScheduler(), scheduler, "resolution must yield the retained worker, not a fresh one")

	callerID := doubles.CurrentGoroutineID()

	unitID := make(chan uint64, 1)
	scheduler.Schedule(func() { unitID <- doubles.CurrentGoroutineID() })

	assert.NotEqual(t, callerID, <-unitID, "statements inside a transaction must run on the dedicated worker")
}

func Test_ExecContext_TransactionSchedulerIsRetained(t *testing.T) {
	base := doubles.NewFakeResourceProvider()
	ec := newTestContext(base)

	ec.BeginTransactionSubscribe()

	first := ec.TransactionScheduler()
	second := ec.TransactionScheduler()
	assert.Same(t, first, second, "one dedicated worker per transaction")

	ec.EndTransactionSubscribe()
}

func Test_ExecContext_EndRevertsTransactionalState(t *testing.T) {
	base := doubles.NewFakeResourceProvider()
	ec := newTestContext(base)

	ec.BeginTransactionSubscribe()
	ec.BeginTransactionObserve()

	_ = ec.TransactionScheduler()

	provider := ec.CurrentResourceProvider()
	_, err := provider.Acquire(context.Background())
	require.NoError(t, err)

	ec.EndTransactionSubscribe()
	ec.EndTransactionObserve()

	assert.False(t, ec.TransactionIsOpen())
	assert.Equal(t, rxsql.ResourceProvider(base), ec.CurrentResourceProvider(), "default provider should be restored")
	assert.Equal(t, 1, base.ReleaseCount(), "the pinned resource should be returned on end")
}

func Test_ExecContext_LastTransactionResult_EmptyBeforeAnyTransaction(t *testing.T) {
	ec := newTestContext(doubles.NewFakeResourceProvider())

	_, ok, err := ec.LastTransactionResult().Await(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_ExecContext_LastTransactionResult_RecordsAndOverwrites(t *testing.T) {
	ec := newTestContext(doubles.NewFakeResourceProvider())

	ec.RecordTransactionResult(true)

	value, ok, err := ec.LastTransactionResult().Await(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, value)

	ec.RecordTransactionResult(false)

	value, ok, err = ec.LastTransactionResult().Await(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, value)
}

func Test_ExecContext_TwoContextsAreIndependent(t *testing.T) {
	base := doubles.NewFakeResourceProvider()
	first := newTestContext(base)
	second := newTestContext(base)

	first.BeginTransactionSubscribe()

	assert.True(t, first.TransactionIsOpen())
	assert.False(t, second.TransactionIsOpen(), "a transaction on one context must not leak into another")

	first.EndTransactionSubscribe()
}
