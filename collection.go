package sqlrepo

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"sync"
)

// Collection is a result set drained from its source by a background
// goroutine. Rows are buffered in arrival order and can be read as soon as
// they are buffered; reads past the buffer wait for the loader. The source
// is invoked at most once, so every enumeration replays the same values.
//
//	users, err := repo.GetAll(ctx)
//	first, ok, err := users.First(ctx) // does not wait for the rest
//	all, err := users.Slice(ctx)       // waits for the loader to finish
type Collection[T any] struct {
	mu      sync.Mutex
	items   []T
	started bool
	done    bool
	err     error
	// changed is closed and replaced whenever items, done or err change.
	changed chan struct{}
}

// NewCollection returns a collection that starts draining source immediately.
func NewCollection[T any](source iter.Seq2[T, error]) *Collection[T] {
	c := &Collection[T]{}
	c.load(source)
	return c
}

func (c *Collection[T]) load(source iter.Seq2[T, error]) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		panic("sqlrepo: collection loaded twice")
	}
	c.started = true
	c.changed = make(chan struct{})
	c.mu.Unlock()
	go c.drain(source)
}

func (c *Collection[T]) drain(source iter.Seq2[T, error]) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sqlrepo: collection source panicked: %v", r)
		}
		c.finish(err)
	}()
	for v, serr := range source {
		if serr != nil {
			err = serr
			return
		}
		c.mu.Lock()
		c.items = append(c.items, v)
		c.notify()
		c.mu.Unlock()
	}
}

func (c *Collection[T]) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = true
	if err != nil {
		c.err = &BackgroundLoadError{Index: len(c.items), Err: err}
	}
	c.notify()
}

// notify must be called with mu held.
func (c *Collection[T]) notify() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// At returns the i-th row, waiting until it is buffered. It returns false
// when the source completed with fewer rows, and the background failure when
// the source failed before producing row i.
func (c *Collection[T]) At(ctx context.Context, i int) (T, bool, error) {
	var zero T
	if i < 0 {
		return zero, false, nil
	}
	for {
		c.mu.Lock()
		switch {
		case !c.started:
			c.mu.Unlock()
			return zero, false, nil
		case i < len(c.items):
			v := c.items[i]
			c.mu.Unlock()
			return v, true, nil
		case c.done:
			err := c.err
			c.mu.Unlock()
			return zero, false, err
		}
		ch := c.changed
		c.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return zero, false, ctx.Err()
		}
	}
}

// First returns the first row without waiting for the rest of the source.
func (c *Collection[T]) First(ctx context.Context) (T, bool, error) {
	return c.At(ctx, 0)
}

// All returns an iterator over the rows. Each iteration replays the
// buffered rows and then follows the loader.
func (c *Collection[T]) All() iter.Seq2[T, error] {
	return c.AllContext(context.Background())
}

// AllContext is like All but stops waiting for rows when ctx is done.
func (c *Collection[T]) AllContext(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for i := 0; ; i++ {
			v, ok, err := c.At(ctx, i)
			if err != nil {
				yield(v, err)
				return
			}
			if !ok || !yield(v, nil) {
				return
			}
		}
	}
}

// Wait blocks until the source is fully drained and returns its failure, if any.
func (c *Collection[T]) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		if !c.started || c.done {
			err := c.err
			c.mu.Unlock()
			return err
		}
		ch := c.changed
		c.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Slice waits for the loader and returns a copy of all rows. On failure the
// rows buffered before it are returned together with the error.
func (c *Collection[T]) Slice(ctx context.Context) ([]T, error) {
	err := c.Wait(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...), err
}

// Len returns the number of rows buffered so far.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Done reports if the loader has finished.
func (c *Collection[T]) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// collection is implemented by every *Collection[T]. It lets the runtime
// populate collections whose element type is only known reflectively.
type collection interface {
	loadAny(iter.Seq2[any, error])
	elemType() reflect.Type
}

func (c *Collection[T]) loadAny(source iter.Seq2[any, error]) {
	c.load(func(yield func(T, error) bool) {
		for v, err := range source {
			var t T
			if err == nil {
				var ok bool
				if t, ok = v.(T); !ok && v != nil {
					err = fmt.Errorf("sqlrepo: collection of %T received %T", t, v)
				}
			}
			if !yield(t, err) || err != nil {
				return
			}
		}
	})
}

func (*Collection[T]) elemType() reflect.Type {
	return reflect.TypeFor[T]()
}

var collectionType = reflect.TypeFor[collection]()

// CollectionElem reports if t is a *Collection[T] and returns T.
func CollectionElem(t reflect.Type) (reflect.Type, bool) {
	if t == nil || t.Kind() != reflect.Pointer || !t.Implements(collectionType) {
		return nil, false
	}
	c := reflect.New(t.Elem()).Interface().(collection)
	return c.elemType(), true
}

// LoadInto starts draining source into dst, which must be a new *Collection[T]
// whose element type matches the values produced by source.
func LoadInto(dst any, source iter.Seq2[any, error]) error {
	c, ok := dst.(collection)
	if !ok || reflect.ValueOf(dst).IsNil() {
		return fmt.Errorf("sqlrepo: LoadInto: %T is not a collection", dst)
	}
	c.loadAny(source)
	return nil
}
