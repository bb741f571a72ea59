package run

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunnerWaitAggregates(t *testing.T) {
	errBoom := errors.New("boom")
	r := NewRunner()
	r.Go(
		RunFunc(func(context.Context) error { return nil }),
		RunFunc(func(context.Context) error { return errBoom }),
		RunFunc(func(context.Context) error { return context.Canceled }),
	)
	err := r.Wait()
	require.Error(t, err)
	require.True(t, errors.Is(err, errBoom))
	require.Equal(t, "boom", err.Error())
}

func TestRunnerWaitCleanExit(t *testing.T) {
	r := NewRunner()
	r.Go(RunFunc(func(context.Context) error { return nil }))
	require.NoError(t, r.Wait())
}

func TestRunWithContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	canceled := false
	cancel()
	err := RunWithContextCancel(ctx, func() {
		canceled = true
		close(release)
	}, func() error {
		<-release
		return nil
	})
	require.Equal(t, context.Canceled, err)
	require.True(t, canceled)
}

func TestRunWithContextPassesResult(t *testing.T) {
	errBoom := errors.New("boom")
	err := RunWithContext(context.Background(), func() error { return errBoom })
	require.Equal(t, errBoom, err)
}

// chanCloser mimics a blocking read loop whose Close unblocks it.
type chanCloser struct {
	done   chan struct{}
	closes int
}

func newChanCloser() *chanCloser {
	return &chanCloser{done: make(chan struct{})}
}

func (c *chanCloser) Close() error {
	c.closes++
	if c.closes == 1 {
		close(c.done)
	}
	return nil
}

func TestRunWithContextCloser(t *testing.T) {
	// on plain exit the closer is still closed, exactly once
	c := newChanCloser()
	err := RunWithContextCloser(context.Background(), c, func() error { return nil })
	require.NoError(t, err)
	require.Equal(t, 1, c.closes)

	// on cancel, Close unblocks fn and is not called again
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c2 := newChanCloser()
	err = RunWithContextCloser(ctx, c2, func() error {
		<-c2.done
		return nil
	})
	require.Equal(t, context.Canceled, err)
	require.Equal(t, 1, c2.closes)
}

func TestAggregatedError(t *testing.T) {
	var e AggregatedError
	require.NoError(t, e.Aggregate())

	e.Add(nil, errors.New("one"), nil)
	require.Equal(t, "one", e.Aggregate().Error())

	e.Add(errors.New("two"))
	require.Equal(t, "2 errors:\none\ntwo", e.Aggregate().Error())
}
