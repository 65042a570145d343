package rxsql_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamtx/rx-sql-go/rxsql"
	"github.com/streamtx/rx-sql-go/testutil/doubles"
)

func Test_TransactionalResourceProvider_PinsOneResource(t *testing.T) {
	base := doubles.NewFakeResourceProvider()
	provider := rxsql.NewTransactionalResourceProvider(base)

	first, err := provider.Acquire(context.Background())
	require.NoError(t, err)

	second, err := provider.Acquire(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second, "every acquire should return the pinned resource")
	assert.Equal(t, 1, base.AcquireCount())
}

func Test_TransactionalResourceProvider_ReleaseIsANoOp(t *testing.T) {
	base := doubles.NewFakeResourceProvider()
	provider := rxsql.NewTransactionalResourceProvider(base)

	resource, err := provider.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, provider.Release(resource))
	assert.Equal(t, 0, base.ReleaseCount(), "the pinned resource must survive per-statement release")
}

func Test_TransactionalResourceProvider_CloseReturnsThePinnedResource(t *testing.T) {
	base := doubles.NewFakeResourceProvider()
	provider := rxsql.NewTransactionalResourceProvider(base)

	_, err := provider.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, provider.Close())
	assert.Equal(t, 1, base.ReleaseCount())

	require.NoError(t, provider.Close(), "closing again should be a no-op")
	assert.Equal(t, 1, base.ReleaseCount())
}

func Test_TransactionalResourceProvider_CloseWithoutAcquireIsANoOp(t *testing.T) {
	base := doubles.NewFakeResourceProvider()
	provider := rxsql.NewTransactionalResourceProvider(base)

	require.NoError(t, provider.Close())
	assert.Equal(t, 0, base.ReleaseCount())
}

func Test_TransactionalResourceProvider_AcquireErrorPropagates(t *testing.T) {
	boom := errors.New("pool exhausted")
	base := doubles.NewFakeResourceProvider()
	base.AcquireErr = boom

	provider := rxsql.NewTransactionalResourceProvider(base)

	_, err := provider.Acquire(context.Background())
	assert.ErrorIs(t, err, boom)
}
