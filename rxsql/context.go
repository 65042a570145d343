package rxsql

import (
	"io"
	"sync"
)

const (
	logMsgBeginTransactionObserve   = "beginTransactionObserve"
	logMsgBeginTransactionSubscribe = "beginTransactionSubscribe"
	logMsgEndTransactionSubscribe   = "endTransactionSubscribe"
	logMsgEndTransactionObserve     = "endTransactionObserve"
	logMsgCloseWorkerFailed         = "failed to close transaction worker"
	logMsgCloseProviderFailed       = "failed to close transactional resource provider"
	logAttrError                    = "error"
)

// ExecContext is the per-caller state machine that resolves which scheduler
// and which resource provider apply to a statement at the moment it runs.
//
// Each context is independent: a transaction opened on one context is never
// visible to another, and two contexts on the same logical handle can run
// interleaved transactions without coordination. Callers obtain one context
// per logical thread of work and pass it to every Run call.
//
// The transition methods never fail; they are pure state changes. Misuse
// (commit without begin, nested begin) is rejected by the transaction
// controller before any transition runs.
type ExecContext struct {
	// mu guards the override slots. The owning caller and the transaction
	// worker both touch them: begin/end hooks fire on the worker while the
	// owner may call the resolution methods concurrently.
	mu sync.Mutex

	defaultProvider            ResourceProvider
	nonTransactionalSchedulers SchedulerFactory
	transactionalSchedulers    SchedulerFactory
	logger                     Logger

	schedulerOverride   SchedulerFactory
	providerOverride    ResourceProvider
	transactionOpen     bool
	transactionWorker   Scheduler
	transactionProvider *TransactionalResourceProvider

	lastTransactionResult *BoolSignal
}

// NewExecContext creates an independent execution context over the given
// defaults. A nil nonTransactional factory defaults to the elastic strategy,
// a nil transactional factory to the single dedicated worker strategy.
// logger may be nil.
func NewExecContext(
	provider ResourceProvider,
	nonTransactional SchedulerFactory,
	transactional SchedulerFactory,
	logger Logger,
) *ExecContext {

	if nonTransactional == nil {
		nonTransactional = NewElasticSchedulerFactory()
	}

	if transactional == nil {
		transactional = NewSingleWorkerSchedulerFactory()
	}

	return &ExecContext{
		defaultProvider:            provider,
		nonTransactionalSchedulers: nonTransactional,
		transactionalSchedulers:    transactional,
		logger:                     logger,
	}
}

// CurrentScheduler resolves the strategy for a statement about to run.
// While a transaction is open it always returns the transaction's dedicated
// worker, regardless of any override: statements enqueue onto that worker
// whether their dependencies settle on it or have already settled by the
// time the statement is handed off, so no statement can end up on another
// goroutine. Otherwise the override applies if set, else the default
// non-transactional factory.
func (c *ExecContext) CurrentScheduler() Scheduler {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transactionOpen {
		return c.transactionSchedulerLocked()
	}

	if c.schedulerOverride != nil {
		return c.schedulerOverride.Create()
	}

	return c.nonTransactionalSchedulers.Create()
}

// CurrentResourceProvider resolves the provider for a statement about to run:
// the override if set, else the handle's default provider.
func (c *ExecContext) CurrentResourceProvider() ResourceProvider {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.providerOverride != nil {
		return c.providerOverride
	}

	return c.defaultProvider
}

// TransactionIsOpen reports whether a begin has been issued on this context
// without a matching commit/rollback having completed its cleanup.
func (c *ExecContext) TransactionIsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transactionOpen
}

// BeginTransactionObserve installs a fresh transactional resource provider
// wrapping the default one. It runs on the begin statement's execution path,
// immediately before the statement acquires its resource.
func (c *ExecContext) BeginTransactionObserve() {
	c.mu.Lock()
	provider := NewTransactionalResourceProvider(c.defaultProvider)
	c.transactionProvider = provider
	c.providerOverride = provider
	c.transactionOpen = true
	c.mu.Unlock()

	c.logDebug(logMsgBeginTransactionObserve)
}

// BeginTransactionSubscribe installs the transactional scheduler factory as
// the override. It runs when the begin statement is handed off for execution,
// before the statement is dispatched onto the dedicated worker.
func (c *ExecContext) BeginTransactionSubscribe() {
	c.mu.Lock()
	c.schedulerOverride = c.transactionalSchedulers
	c.transactionOpen = true
	c.mu.Unlock()

	c.logDebug(logMsgBeginTransactionSubscribe)
}

// EndTransactionSubscribe clears the scheduler override and shuts down the
// transaction's dedicated worker.
func (c *ExecContext) EndTransactionSubscribe() {
	c.mu.Lock()
	c.schedulerOverride = nil
	c.transactionOpen = false
	worker := c.transactionWorker
	c.transactionWorker = nil
	c.mu.Unlock()

	if closer, ok := worker.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logWarn(logMsgCloseWorkerFailed, logAttrError, err.Error())
		}
	}

	c.logDebug(logMsgEndTransactionSubscribe)
}

// EndTransactionObserve restores the default resource provider and discards
// the transactional one, returning its pinned resource to the default
// provider.
func (c *ExecContext) EndTransactionObserve() {
	c.mu.Lock()
	provider := c.transactionProvider
	c.transactionProvider = nil
	c.providerOverride = nil
	c.transactionOpen = false
	c.mu.Unlock()

	if provider != nil {
		if err := provider.Close(); err != nil {
			c.logWarn(logMsgCloseProviderFailed, logAttrError, err.Error())
		}
	}

	c.logDebug(logMsgEndTransactionObserve)
}

// TransactionScheduler returns the dedicated worker for the transaction that
// is being opened, creating it from the installed transactional factory on
// first call. The begin statement is dispatched through it; the worker is
// retained until EndTransactionSubscribe closes it.
func (c *ExecContext) TransactionScheduler() Scheduler {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transactionSchedulerLocked()
}

// transactionSchedulerLocked lazily creates the retained worker. Callers
// must hold mu.
func (c *ExecContext) transactionSchedulerLocked() Scheduler {
	if c.transactionWorker == nil {
		factory := c.schedulerOverride
		if factory == nil {
			factory = c.transactionalSchedulers
		}
		c.transactionWorker = factory.Create()
	}

	return c.transactionWorker
}

// RecordTransactionResult publishes the outcome of the transaction that just
// finished on this context, overwriting any previous one.
func (c *ExecContext) RecordTransactionResult(committed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastTransactionResult = NewCompletedBoolSignal(committed)
}

// LastTransactionResult returns the most recent result recorded on this
// context, or an empty completed signal when no transaction has finished yet.
func (c *ExecContext) LastTransactionResult() *BoolSignal {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastTransactionResult == nil {
		return NewEmptyBoolSignal()
	}

	return c.lastTransactionResult
}

func (c *ExecContext) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *ExecContext) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
