package driver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zigbee-lumi/internal/driver"
	"zigbee-lumi/internal/health"
)

func TestLoopRunsInOrder(t *testing.T) {
	l := driver.NewLoop(8)
	defer l.Stop()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoopStop(t *testing.T) {
	l := driver.NewLoop(1)
	l.Stop()
	l.Stop()
	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Do(context.Background(), func() {}), driver.ErrStopped)
}

func TestLoopDoContext(t *testing.T) {
	l := driver.NewLoop(1)
	defer l.Stop()

	block := make(chan struct{})
	require.True(t, l.Post(func() { <-block }))
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Do(ctx, func() {}), context.DeadlineExceeded)
}

func TestLoopSchedulerPostsFirings(t *testing.T) {
	l := driver.NewLoop(1)
	defer l.Stop()

	fired := make(chan struct{})
	sched := health.NewLoopScheduler(l.Post)
	sched.AfterFunc(time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never ran on the loop")
	}
}
