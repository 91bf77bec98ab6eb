package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_ResolveOnce(t *testing.T) {
	f := NewFuture[int]()
	assert.False(t, f.Ready())

	f.Resolve(1, nil)
	f.Resolve(2, errors.New("ignored"))

	v, err, ok := f.Result()
	require.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFuture_AwaitCancelled(t *testing.T) {
	f := NewFuture[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmit_RunsOnExecutor(t *testing.T) {
	e := NewExecutor(2, 8)
	defer e.Stop()

	f := Submit(e, func() (int, error) { return 42, nil })
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := f.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestSubmit_RecoversPanic(t *testing.T) {
	f := Submit[int](nil, func() (int, error) { panic("boom") })
	_, err, ok := f.Result()
	require.True(t, ok)
	assert.ErrorContains(t, err, "boom")
}

func TestSubmit_AfterStop(t *testing.T) {
	e := NewExecutor(1, 1)
	e.Stop()

	f := Submit(e, func() (int, error) { return 1, nil })
	_, err, ok := f.Result()
	require.True(t, ok)
	assert.ErrorIs(t, err, ErrExecutorStopped)
}
