// Package adapters binds the rxsql resource-provider contracts to concrete
// database backends: pgxpool, database/sql, and sqlx. Each provider acquires
// one dedicated connection per resource so a pinned transactional resource
// maps onto a single physical connection.
package adapters
