package sqlengine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamtx/rx-sql-go/rxsql"
)

// brokenStatement is an SQLStatement whose rendering fails.
type brokenStatement struct {
	err error
}

func (b brokenStatement) ToSQL() (string, []any, error) {
	return "", nil, b.err
}

func Test_Update_ReportsRowsAffected(t *testing.T) {
	db, provider := newFakeDatabase(t)
	provider.RowsAffectedFor = func(string) int64 { return 3 }

	ctx := context.Background()

	rows, err := db.Update("update accounts set active = false where name = $1", "alice").
		Run(ctx, db.NewContext()).
		Await(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)

	records := provider.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "update accounts set active = false where name = $1", records[0].Statement)
	assert.Equal(t, []any{"alice"}, records[0].Args)
}

func Test_NonTransactionalStatements_UseFreshResources(t *testing.T) {
	db, provider := newFakeDatabase(t)
	ctx := context.Background()

	ec := db.NewContext()

	_, err := db.Update("insert into accounts (name) values ('a')").Run(ctx, ec).Await(ctx)
	require.NoError(t, err)

	_, err = db.Update("insert into accounts (name) values ('b')").Run(ctx, ec).Await(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, provider.AcquireCount(), "each statement should acquire its own resource")
	assert.Equal(t, 2, provider.ReleaseCount(), "each resource should be released after its statement")

	records := provider.Records()
	require.Len(t, records, 2)
	assert.NotEqual(t, records[0].ResourceID, records[1].ResourceID)
}

func Test_Update_DependsOnOrdersExecution(t *testing.T) {
	db, provider := newFakeDatabase(t)
	ctx := context.Background()
	ec := db.NewContext()

	first := db.Update("first").Run(ctx, ec)
	second := db.Update("second").DependsOn(first).Run(ctx, ec)
	third := db.Update("third").DependsOn(second).Run(ctx, ec)

	_, err := third.Await(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third"}, provider.Statements())
}

func Test_PendingQuery_CannotRunTwice(t *testing.T) {
	db, _ := newFakeDatabase(t)
	ctx := context.Background()
	ec := db.NewContext()

	builder := db.Update("insert into accounts (name) values ('a')")

	_, err := builder.Run(ctx, ec).Await(ctx)
	require.NoError(t, err)

	_, err = builder.Run(ctx, ec).Await(ctx)
	assert.ErrorIs(t, err, rxsql.ErrPendingQueryConsumed)
}

func Test_UpdateStmt_BuildErrorSurfacesOnRun(t *testing.T) {
	db, provider := newFakeDatabase(t)
	ctx := context.Background()

	boom := errors.New("unrenderable")

	_, err := db.UpdateStmt(brokenStatement{err: boom}).Run(ctx, db.NewContext()).Await(ctx)
	assert.ErrorIs(t, err, rxsql.ErrBuildingStatementFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, provider.AcquireCount(), "nothing should be acquired for a broken statement")
}

func Test_UpdateStmt_RendersStatementBuilders(t *testing.T) {
	db, provider := newFakeDatabase(t)
	ctx := context.Background()

	stmt := goqu.Dialect("postgres").
		Insert("accounts").
		Cols("name").
		Vals(goqu.Vals{"alice"}).
		Prepared(true)

	_, err := db.UpdateStmt(stmt).Run(ctx, db.NewContext()).Await(ctx)
	require.NoError(t, err)

	records := provider.Records()
	require.Len(t, records, 1)
	assert.Equal(t, `INSERT INTO "accounts" ("name") VALUES ($1)`, records[0].Statement)
	assert.Equal(t, []any{"alice"}, records[0].Args)
}

func Test_SelectStmt_RendersStatementBuilders(t *testing.T) {
	db, provider := newFakeDatabase(t)
	provider.QueryColumns = []string{"name"}
	provider.QueryRows = [][]any{{"alice"}}

	ctx := context.Background()

	stmt := goqu.Dialect("postgres").
		From("accounts").
		Select("name").
		Where(goqu.C("active").IsTrue()).
		Prepared(true)

	items, err := db.SelectStmt(stmt).Run(ctx, db.NewContext()).Await(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	records := provider.Records()
	require.Len(t, records, 1)
	assert.Equal(t, `SELECT "name" FROM "accounts" WHERE ("active" IS TRUE)`, records[0].Statement)
}

func Test_Update_FailedDependencyAbortsExecution(t *testing.T) {
	db, provider := newFakeDatabase(t)
	ctx := context.Background()

	boom := errors.New("upstream failed")
	failed := rxsql.NewFailedSignal(boom)

	_, err := db.Update("never runs").DependsOn(failed).Run(ctx, db.NewContext()).Await(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, provider.Records())
	assert.Equal(t, 0, provider.AcquireCount())
}

func Test_Update_CancelledContextAbortsBeforeExecution(t *testing.T) {
	db, provider := newFakeDatabase(t)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.Update("never runs").Run(cancelled, db.NewContext()).Await(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, provider.Records())
}

func Test_Update_AcquireErrorFailsTheSignal(t *testing.T) {
	db, provider := newFakeDatabase(t)
	provider.AcquireErr = errors.New("pool exhausted")

	ctx := context.Background()

	_, err := db.Update("insert into accounts (name) values ('a')").Run(ctx, db.NewContext()).Await(ctx)
	assert.ErrorIs(t, err, rxsql.ErrAcquiringResourceFailed)
}

func Test_Update_ExecErrorFailsTheSignalAndReleasesTheResource(t *testing.T) {
	db, provider := newFakeDatabase(t)
	provider.ExecErrFor = func(string) error { return errors.New("syntax error") }

	ctx := context.Background()

	_, err := db.Update("broken sql").Run(ctx, db.NewContext()).Await(ctx)
	assert.ErrorIs(t, err, rxsql.ErrStatementExecutionFailed)
	assert.Equal(t, 1, provider.ReleaseCount(), "the resource must be released on failure too")
}

func Test_Select_DefaultMapperScansPositionally(t *testing.T) {
	db, provider := newFakeDatabase(t)
	provider.QueryColumns = []string{"id", "name"}
	provider.QueryRows = [][]any{
		{int64(1), "alice"},
		{int64(2), "bob"},
	}

	ctx := context.Background()

	items, err := db.Select("select id, name from accounts").Run(ctx, db.NewContext()).Await(ctx)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, []any{int64(1), "alice"}, items[0])
	assert.Equal(t, []any{int64(2), "bob"}, items[1])
}

func Test_Select_CustomMapper(t *testing.T) {
	db, provider := newFakeDatabase(t)
	provider.QueryColumns = []string{"name"}
	provider.QueryRows = [][]any{{"alice"}, {"bob"}}

	ctx := context.Background()

	items, err := db.Select("select name from accounts").
		Map(func(row rxsql.Rows) (any, error) {
			var name string
			if err := row.Scan(&name); err != nil {
				return nil, err
			}

			return name, nil
		}).
		Run(ctx, db.NewContext()).
		Await(ctx)

	require.NoError(t, err)
	assert.Equal(t, []any{"alice", "bob"}, items)
}

func Test_Select_MapJSON(t *testing.T) {
	type account struct {
		Name   string `json:"name"`
		Active bool   `json:"active"`
	}

	db, provider := newFakeDatabase(t)
	provider.QueryColumns = []string{"payload"}
	provider.QueryRows = [][]any{
		{`{"name":"alice","active":true}`},
		{`{"name":"bob","active":false}`},
	}

	ctx := context.Background()

	items, err := db.Select("select payload from accounts").
		MapJSON(func() any { return &account{} }).
		Run(ctx, db.NewContext()).
		Await(ctx)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, &account{Name: "alice", Active: true}, items[0])
	assert.Equal(t, &account{Name: "bob", Active: false}, items[1])
}

func Test_Select_QueryErrorFailsTheSignal(t *testing.T) {
	db, provider := newFakeDatabase(t)
	provider.QueryErr = errors.New("relation does not exist")

	ctx := context.Background()

	_, err := db.Select("select * from missing").Run(ctx, db.NewContext()).Await(ctx)
	assert.ErrorIs(t, err, rxsql.ErrStatementExecutionFailed)
	assert.Equal(t, 1, provider.ReleaseCount())
}

func Test_Select_MapperErrorFailsWithScanError(t *testing.T) {
	db, provider := newFakeDatabase(t)
	provider.QueryColumns = []string{"name"}
	provider.QueryRows = [][]any{{"alice"}}

	ctx := context.Background()

	boom := errors.New("bad row")

	_, err := db.Select("select name from accounts").
		Map(func(rxsql.Rows) (any, error) { return nil, boom }).
		Run(ctx, db.NewContext()).
		Await(ctx)

	assert.ErrorIs(t, err, rxsql.ErrScanningRowFailed)
	assert.ErrorIs(t, err, boom)
}

func Test_Select_EmptyResultCompletesWithNoItems(t *testing.T) {
	db, provider := newFakeDatabase(t)
	provider.QueryColumns = []string{"name"}

	ctx := context.Background()

	items, err := db.Select("select name from accounts where 1 = 0").Run(ctx, db.NewContext()).Await(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}
