package rxsql

import (
	"context"
	"sync"
	"sync/atomic"
)

// Dependency is one upstream pending computation that another unit of work
// can wait on before it executes.
type Dependency interface {
	// Done is closed once the computation has completed or failed.
	Done() <-chan struct{}

	// Err returns the failure cause, or nil. Only stable after Done is closed.
	Err() error

	// Subscribe registers fn to run when the computation completes.
	// fn runs inline on the completing goroutine, or immediately on the
	// calling goroutine if the computation has already completed. This
	// inline execution is what hands dependent statements off in
	// dependency order without an extra dispatch hop.
	Subscribe(fn func())
}

// completion is the shared one-shot settle machinery behind all signal types.
type completion struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	err     error
	subs    []func()
}

func newCompletion() completion {
	return completion{done: make(chan struct{})}
}

func (c *completion) Done() <-chan struct{} {
	return c.done
}

func (c *completion) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

func (c *completion) Subscribe(fn func()) {
	c.mu.Lock()
	if c.settled {
		c.mu.Unlock()
		fn()

		return
	}

	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// settle completes the signal exactly once. assign runs under the lock before
// Done is closed so values are visible to every observer. Subscribers run
// inline on the settling goroutine after the lock is released.
func (c *completion) settle(err error, assign func()) {
	c.mu.Lock()
	if c.settled {
		c.mu.Unlock()

		return
	}

	c.settled = true
	if assign != nil {
		assign()
	}
	c.err = err
	subs := c.subs
	c.subs = nil
	close(c.done)
	c.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

/***** Signal *****/

// Signal is the pending result of one update-style statement. It completes
// with the number of rows affected, or fails with an error.
type Signal struct {
	completion
	rows int64
}

func NewSignal() *Signal {
	return &Signal{completion: newCompletion()}
}

// NewFailedSignal returns a signal that has already failed with err.
func NewFailedSignal(err error) *Signal {
	s := NewSignal()
	s.Fail(err)

	return s
}

func (s *Signal) Complete(rowsAffected int64) {
	s.settle(nil, func() { s.rows = rowsAffected })
}

func (s *Signal) Fail(err error) {
	s.settle(err, nil)
}

// RowsAffected is only meaningful after Done is closed without error.
func (s *Signal) RowsAffected() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rows
}

// Await blocks until the signal completes or ctx is done.
func (s *Signal) Await(ctx context.Context) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.done:
	}

	if err := s.Err(); err != nil {
		return 0, err
	}

	return s.RowsAffected(), nil
}

/***** BoolSignal *****/

// BoolSignal is the pending boolean outcome of a transaction statement
// (committed / rolled back). An empty BoolSignal completes without a value,
// mirroring "no transaction has finished yet on this context".
type BoolSignal struct {
	completion
	value    bool
	hasValue bool
}

func NewBoolSignal() *BoolSignal {
	return &BoolSignal{completion: newCompletion()}
}

// NewEmptyBoolSignal returns a completed signal carrying no value.
func NewEmptyBoolSignal() *BoolSignal {
	b := NewBoolSignal()
	b.settle(nil, nil)

	return b
}

// NewCompletedBoolSignal returns a signal already completed with value.
func NewCompletedBoolSignal(value bool) *BoolSignal {
	b := NewBoolSignal()
	b.Complete(value)

	return b
}

// NewFailedBoolSignal returns a signal that has already failed with err.
func NewFailedBoolSignal(err error) *BoolSignal {
	b := NewBoolSignal()
	b.Fail(err)

	return b
}

func (b *BoolSignal) Complete(value bool) {
	b.settle(nil, func() {
		b.value = value
		b.hasValue = true
	})
}

func (b *BoolSignal) Fail(err error) {
	b.settle(err, nil)
}

// Value reports the outcome and whether one was published.
// Only meaningful after Done is closed.
func (b *BoolSignal) Value() (value bool, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.value, b.hasValue
}

// Await blocks until the signal completes or ctx is done. ok is false when
// the signal completed empty.
func (b *BoolSignal) Await(ctx context.Context) (value bool, ok bool, err error) {
	select {
	case <-ctx.Done():
		return false, false, ctx.Err()
	case <-b.done:
	}

	if err := b.Err(); err != nil {
		return false, false, err
	}

	value, ok = b.Value()

	return value, ok, nil
}

/***** ItemsSignal *****/

// ItemsSignal is the pending result of one select statement: the mapped rows
// in result-set order.
type ItemsSignal struct {
	completion
	items []any
}

func NewItemsSignal() *ItemsSignal {
	return &ItemsSignal{completion: newCompletion()}
}

// NewFailedItemsSignal returns a signal that has already failed with err.
func NewFailedItemsSignal(err error) *ItemsSignal {
	s := NewItemsSignal()
	s.Fail(err)

	return s
}

func (s *ItemsSignal) Complete(items []any) {
	s.settle(nil, func() { s.items = items })
}

func (s *ItemsSignal) Fail(err error) {
	s.settle(err, nil)
}

// Items is only meaningful after Done is closed without error.
func (s *ItemsSignal) Items() []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.items
}

// Await blocks until the signal completes or ctx is done.
func (s *ItemsSignal) Await(ctx context.Context) ([]any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
	}

	if err := s.Err(); err != nil {
		return nil, err
	}

	return s.Items(), nil
}

/***** WhenAll *****/

// WhenAll invokes fn exactly once: with nil once every dependency has
// completed successfully, or with the first observed error as soon as any
// dependency fails. With no dependencies fn runs immediately on the calling
// goroutine; otherwise it runs on the goroutine that settles the deciding
// dependency.
func WhenAll(deps []Dependency, fn func(error)) {
	if len(deps) == 0 {
		fn(nil)

		return
	}

	var once sync.Once
	remaining := int64(len(deps))

	for _, dep := range deps {
		d := dep
		d.Subscribe(func() {
			if err := d.Err(); err != nil {
				once.Do(func() { fn(err) })

				return
			}

			if atomic.AddInt64(&remaining, -1) == 0 {
				once.Do(func() { fn(nil) })
			}
		})
	}
}
