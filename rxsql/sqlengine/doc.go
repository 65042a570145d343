// Package sqlengine provides the logical database handle that multiplexes
// transactional and non-transactional execution over pgx, database/sql, or
// sqlx backends.
//
// A Database owns a default resource provider and the default scheduler
// factories. Callers mint an independent rxsql.ExecContext per logical thread
// of work, build cheap Select/Update pending queries against the handle, and
// run them against a context; each statement resolves its worker strategy and
// resource provider lazily, at execution time.
//
// Usage:
//
//	pool, _ := pgxpool.New(context.Background(), dsn)
//	db, _ := sqlengine.NewDatabaseFromPGXPool(pool)
//	ec := db.NewContext()
//
//	// non-transactional: elastic workers, fresh connection per statement
//	rows := db.Select("select name from accounts where active = $1", true).Run(ctx, ec)
//
//	// transactional: one dedicated worker, one pinned connection
//	begin := db.BeginTransaction(ctx, ec)
//	insert := db.Update("insert into accounts (name) values ($1)", "a").
//		DependsOn(begin).
//		Run(ctx, ec)
//	committed := db.Commit(ctx, ec, insert)
package sqlengine
