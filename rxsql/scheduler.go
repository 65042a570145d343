package rxsql

import (
	"sync"
)

// Scheduler executes units of work under one of the worker strategies.
type Scheduler interface {
	Schedule(unit func())
}

// SchedulerFactory produces a work-execution strategy. Factories are resolved
// lazily: an execution context asks its factory for a scheduler at the moment
// a pending query is handed off, never earlier.
type SchedulerFactory interface {
	Create() Scheduler
}

// SchedulerFactoryFunc adapts a plain function to a SchedulerFactory, for
// caller-supplied strategies.
type SchedulerFactoryFunc func() Scheduler

func (f SchedulerFactoryFunc) Create() Scheduler {
	return f()
}

/***** elastic strategy *****/

// elasticScheduler runs every unit on its own goroutine. This is the default
// strategy for non-transactional statements: each one may block on its own
// resource without holding up any other.
type elasticScheduler struct{}

func (elasticScheduler) Schedule(unit func()) {
	go unit()
}

var sharedElasticScheduler Scheduler = elasticScheduler{}

type elasticSchedulerFactory struct{}

func (elasticSchedulerFactory) Create() Scheduler {
	return sharedElasticScheduler
}

// NewElasticSchedulerFactory returns the factory for the elastic strategy.
// Create always resolves to the same scheduler; the strategy is stateless.
func NewElasticSchedulerFactory() SchedulerFactory {
	return elasticSchedulerFactory{}
}

/***** caller-inline strategy *****/

// callerScheduler runs the unit synchronously on whichever goroutine
// schedules it. Callers opt in through NewCallerSchedulerFactory when they
// want statements to execute inline instead of hopping to a worker, which
// also keeps test statements on the test goroutine.
type callerScheduler struct{}

func (callerScheduler) Schedule(unit func()) {
	unit()
}

var sharedCallerScheduler Scheduler = callerScheduler{}

type callerSchedulerFactory struct{}

func (callerSchedulerFactory) Create() Scheduler {
	return sharedCallerScheduler
}

// NewCallerSchedulerFactory returns the factory for the synchronous
// caller-inline strategy.
func NewCallerSchedulerFactory() SchedulerFactory {
	return callerSchedulerFactory{}
}

/***** single dedicated worker strategy *****/

const singleWorkerQueueCapacity = 128

// SingleWorkerScheduler executes all units in FIFO order on one dedicated
// goroutine. A transaction gets a fresh instance at begin and closes it at
// end; every statement of the transaction enqueues onto it, whether handed
// off from the worker itself or from the owning caller, so all of them
// execute serially on the same goroutine.
type SingleWorkerScheduler struct {
	units chan func()
	quit  chan struct{}
	once  sync.Once
}

func NewSingleWorkerScheduler() *SingleWorkerScheduler {
	s := &SingleWorkerScheduler{
		units: make(chan func(), singleWorkerQueueCapacity),
		quit:  make(chan struct{}),
	}

	go s.loop()

	return s
}

func (s *SingleWorkerScheduler) loop() {
	for {
		select {
		case unit := <-s.units:
			unit()
		case <-s.quit:
			s.drain()

			return
		}
	}
}

func (s *SingleWorkerScheduler) drain() {
	for {
		select {
		case unit := <-s.units:
			unit()
		default:
			return
		}
	}
}

// Schedule enqueues the unit for the worker goroutine. After Close the unit
// runs inline on the caller instead of being dropped.
func (s *SingleWorkerScheduler) Schedule(unit func()) {
	select {
	case <-s.quit:
		unit()
	default:
		select {
		case s.units <- unit:
		case <-s.quit:
			unit()
		}
	}
}

// Close stops the worker goroutine after it drains already-queued units.
func (s *SingleWorkerScheduler) Close() error {
	s.once.Do(func() { close(s.quit) })

	return nil
}

type singleWorkerSchedulerFactory struct{}

func (singleWorkerSchedulerFactory) Create() Scheduler {
	return NewSingleWorkerScheduler()
}

// NewSingleWorkerSchedulerFactory returns the factory for the dedicated
// single-worker strategy. Create starts a new worker per call; the execution
// context retains one instance per open transaction and closes it when the
// transaction ends.
func NewSingleWorkerSchedulerFactory() SchedulerFactory {
	return singleWorkerSchedulerFactory{}
}
