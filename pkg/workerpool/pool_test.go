package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Submit(t *testing.T) {
	p := New(&Config{MaxWorkers: 2, QueueSize: 4}, nil)
	defer p.Shutdown(context.Background())

	err := p.Submit(context.Background(), "ok", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)

	want := errors.New("boom")
	err = p.Submit(context.Background(), "fail", func(ctx context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestPool_PanicIsRecovered(t *testing.T) {
	p := New(&Config{MaxWorkers: 1, QueueSize: 1}, nil)
	defer p.Shutdown(context.Background())

	err := p.Submit(context.Background(), "panic", func(ctx context.Context) error { panic("bad config") })
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "bad config", pe.Value)

	// worker 仍然可用
	assert.NoError(t, p.Submit(context.Background(), "after", func(ctx context.Context) error { return nil }))
	assert.Equal(t, int64(1), p.GetMetrics().PanicCount)
}

func TestPool_SubmitAsyncAndShutdown(t *testing.T) {
	p := New(&Config{MaxWorkers: 2, QueueSize: 8}, nil)

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.SubmitAsync(context.Background(), "async", func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			count.Add(1)
			return nil
		}))
	}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(5), count.Load())
	assert.ErrorIs(t, p.SubmitAsync(context.Background(), "late", func(ctx context.Context) error { return nil }), ErrWorkerPoolClosed)
}

func TestPool_QueueFull(t *testing.T) {
	p := New(&Config{MaxWorkers: 1, QueueSize: 1}, nil)
	release := make(chan struct{})
	defer func() {
		close(release)
		p.Shutdown(context.Background())
	}()

	started := make(chan struct{})
	require.NoError(t, p.SubmitAsync(context.Background(), "block", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, p.SubmitAsync(context.Background(), "queued", func(ctx context.Context) error { return nil }))

	err := p.SubmitAsync(context.Background(), "overflow", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrWorkerPoolFull)
}
