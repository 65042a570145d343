// Package rxsql provides the coordination core for switching a logical
// database handle between asynchronous and transactional execution.
//
// The central type is ExecContext: a per-caller state machine that resolves,
// at the moment a pending query actually runs, which worker strategy executes
// it and which resource provider backs it. Outside a transaction every
// statement may run on an elastic worker and acquire its own resource; between
// BeginTransactionObserve/Subscribe and the matching end calls, all work
// collapses onto one dedicated worker and one pinned resource.
//
// The package defines the collaborator contracts (ResourceProvider, Resource,
// Scheduler, SchedulerFactory), the pending-computation signals used to chain
// statements, and the transactional resource provider that pins exactly one
// resource for a transaction's lifetime. Concrete database bindings live in
// the sqlengine package.
package rxsql
