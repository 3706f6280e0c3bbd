package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diwenne/smashspeed-rn/internal/trimmer"
)

func TestDispatcherSerializesPerSource(t *testing.T) {
	var active, peak int32
	r := NewRegistry()
	require.NoError(t, r.Register("Slow", "run", func(ctx context.Context, args Args, p *Promise) {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		p.Resolve("ok")
	}))
	d := NewDispatcher(r, nil)

	var jobs []*Job
	for i := 0; i < 4; i++ {
		job, err := d.Dispatch(context.Background(), "Slow.run", Args{"uri": "/tmp/same.mp4"})
		require.NoError(t, err)
		jobs = append(jobs, job)
	}
	d.Wait()

	ids := map[string]bool{}
	for _, job := range jobs {
		v, err := job.Promise.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Equal(t, "/tmp/same.mp4", job.Key)
		assert.False(t, ids[job.ID])
		ids[job.ID] = true
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}

func TestDispatcherKeysOnResolvedPath(t *testing.T) {
	var active, peak int32
	r := NewRegistry()
	require.NoError(t, r.Register("Slow", "run", func(ctx context.Context, args Args, p *Promise) {
		n := atomic.AddInt32(&active, 1)
		if n > atomic.LoadInt32(&peak) {
			atomic.StoreInt32(&peak, n)
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		p.Resolve("ok")
	}))
	d := NewDispatcher(r, nil)

	uris := []string{"/tmp/same.mp4", "file:///tmp/same.mp4", "/tmp/./same.mp4", "file://localhost/tmp/same.mp4"}
	for _, uri := range uris {
		job, err := d.Dispatch(context.Background(), "Slow.run", Args{"uri": uri})
		require.NoError(t, err)
		assert.Equal(t, "/tmp/same.mp4", job.Key, uri)
	}
	d.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak), "spellings of one file share a lock")

	job, err := d.Dispatch(context.Background(), "Slow.run", Args{"uri": "http://host/clip.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "http://host/clip.mp4", job.Key)
	d.Wait()
}

func TestDispatcherRelease(t *testing.T) {
	r := NewRegistry()
	release := make(chan struct{})
	require.NoError(t, r.Register("Gate", "wait", func(ctx context.Context, args Args, p *Promise) {
		<-release
		p.Resolve(true)
	}))
	d := NewDispatcher(r, nil)

	job, err := d.Dispatch(context.Background(), "Gate.wait", nil)
	require.NoError(t, err)
	d.Release(job.ID)
	_, ok := d.Job(job.ID)
	assert.True(t, ok, "running jobs are kept")

	close(release)
	assert.Eventually(t, func() bool {
		_, ok := d.Job(job.ID)
		return !ok
	}, time.Second, 5*time.Millisecond)
	d.Release("unknown")
}

func TestDispatcherJobs(t *testing.T) {
	r := NewRegistry()
	release := make(chan struct{})
	require.NoError(t, r.Register("Gate", "wait", func(ctx context.Context, args Args, p *Promise) {
		<-release
		p.Resolve(true)
	}))
	require.NoError(t, r.Register("Gate", "panic", func(ctx context.Context, args Args, p *Promise) {
		panic("bad input")
	}))
	d := NewDispatcher(r, nil)

	_, err := d.Dispatch(context.Background(), "Gate.nothing", nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	job, err := d.Dispatch(ctx, "Gate.wait", nil)
	require.NoError(t, err)
	cancel()

	got, ok := d.Job(job.ID)
	require.True(t, ok)
	assert.Same(t, job, got)
	assert.False(t, job.Promise.Settled())
	d.Forget(job.ID)
	_, ok = d.Job(job.ID)
	assert.True(t, ok, "running jobs are kept")

	close(release)
	v, err := job.Promise.Wait(context.Background())
	require.NoError(t, err, "a cancelled caller does not cancel the job")
	assert.Equal(t, true, v)

	failed, err := d.Dispatch(context.Background(), "Gate.panic", nil)
	require.NoError(t, err)
	_, err = failed.Promise.Wait(context.Background())
	assert.Equal(t, trimmer.CodeTrimFailed, trimmer.CodeOf(err))

	d.Wait()
	d.Forget(job.ID)
	_, ok = d.Job(job.ID)
	assert.False(t, ok)
}

func TestDispatcherConcurrentDispatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Echo", "id", func(ctx context.Context, args Args, p *Promise) {
		p.Resolve(args["uri"])
	}))
	d := NewDispatcher(r, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Dispatch(context.Background(), "Echo.id", Args{"uri": "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	d.Wait()
}
