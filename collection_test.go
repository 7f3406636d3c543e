package sqlrepo_test

import (
	"context"
	"errors"
	"iter"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlrepo"
)

// delayed yields 1 immediately and 2 after delay, counting invocations.
func delayed(calls *atomic.Int32, delay time.Duration) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		calls.Add(1)
		if !yield(1, nil) {
			return
		}
		time.Sleep(delay)
		yield(2, nil)
	}
}

func TestCollectionTiming(t *testing.T) {
	const delay = 300 * time.Millisecond
	var calls atomic.Int32
	c := sqlrepo.NewCollection(delayed(&calls, delay))
	ctx := context.Background()

	start := time.Now()
	v, ok, err := c.First(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Less(t, time.Since(start), delay/2, "first row must not wait for the second")

	all, err := c.Slice(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, all)
	assert.GreaterOrEqual(t, time.Since(start), delay)
	assert.True(t, c.Done())

	for range 3 {
		var got []int
		for v, err := range c.All() {
			require.NoError(t, err)
			got = append(got, v)
		}
		assert.Equal(t, []int{1, 2}, got)
	}
	assert.EqualValues(t, 1, calls.Load(), "source must be drained once")
}

func TestCollectionError(t *testing.T) {
	cause := errors.New("boom")
	c := sqlrepo.NewCollection(func(yield func(string, error) bool) {
		if !yield("a", nil) || !yield("b", nil) {
			return
		}
		yield("", cause)
	})
	ctx := context.Background()

	v, ok, err := c.At(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok, err = c.At(ctx, 2)
	assert.False(t, ok)
	assert.ErrorIs(t, err, cause)
	assert.True(t, sqlrepo.IsBackgroundLoadError(err))

	var got []string
	var iterErr error
	for v, err := range c.All() {
		if err != nil {
			iterErr = err
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "b"}, got, "buffered rows stay readable")
	assert.ErrorIs(t, iterErr, cause)

	rows, err := c.Slice(ctx)
	assert.Equal(t, []string{"a", "b"}, rows)
	var bg *sqlrepo.BackgroundLoadError
	require.ErrorAs(t, err, &bg)
	assert.Equal(t, 2, bg.Index)
}

func TestCollectionPanic(t *testing.T) {
	c := sqlrepo.NewCollection(func(yield func(int, error) bool) {
		yield(1, nil)
		panic("bad source")
	})
	err := c.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad source")
	assert.Equal(t, 1, c.Len())
}

func TestCollectionContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := sqlrepo.NewCollection(func(yield func(int, error) bool) {
		<-release
		yield(1, nil)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := c.First(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)
	assert.False(t, c.Done())
}

func TestCollectionEmpty(t *testing.T) {
	c := sqlrepo.NewCollection(func(func(int, error) bool) {})
	_, ok, err := c.First(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = c.At(context.Background(), -1)
	require.NoError(t, err)
	assert.False(t, ok)

	var zero sqlrepo.Collection[int]
	assert.NoError(t, zero.Wait(context.Background()))
	assert.Equal(t, 0, zero.Len())
}

type row struct{ ID int }

func TestLoadInto(t *testing.T) {
	typ := reflect.TypeOf((*sqlrepo.Collection[*row])(nil))
	elem, ok := sqlrepo.CollectionElem(typ)
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf((*row)(nil)), elem)

	_, ok = sqlrepo.CollectionElem(reflect.TypeOf([]row{}))
	assert.False(t, ok)
	_, ok = sqlrepo.CollectionElem(reflect.TypeFor[sqlrepo.Collection[int]]())
	assert.False(t, ok)

	dst := reflect.New(typ.Elem()).Interface()
	err := sqlrepo.LoadInto(dst, func(yield func(any, error) bool) {
		_ = yield(&row{ID: 1}, nil) && yield(&row{ID: 2}, nil)
	})
	require.NoError(t, err)
	rows, err := dst.(*sqlrepo.Collection[*row]).Slice(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[1].ID)

	require.Error(t, sqlrepo.LoadInto(&row{}, nil))
	require.Error(t, sqlrepo.LoadInto((*sqlrepo.Collection[int])(nil), nil))
}

func TestLoadIntoWrongType(t *testing.T) {
	c := new(sqlrepo.Collection[int])
	require.NoError(t, sqlrepo.LoadInto(c, func(yield func(any, error) bool) {
		yield("x", nil)
	}))
	err := c.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}
