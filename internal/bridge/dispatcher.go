package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/keymutex"

	"github.com/diwenne/smashspeed-rn/internal/util"
)

// Job is one dispatched call.
type Job struct {
	ID      string    `json:"id"`
	Method  string    `json:"method"`
	Key     string    `json:"key"`
	Started time.Time `json:"started"`
	Promise *Promise  `json:"-"`
}

// Dispatcher runs calls off the caller's goroutine. Calls on the same source
// locator run one at a time; calls on different sources run concurrently.
type Dispatcher struct {
	registry *Registry
	locks    keymutex.KeyMutex
	log      *slog.Logger

	wg   sync.WaitGroup
	mu   sync.Mutex
	jobs map[string]*Job
}

func NewDispatcher(registry *Registry, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = util.GetLogger()
	}
	return &Dispatcher{
		registry: registry,
		locks:    keymutex.NewHashed(64),
		log:      log.With("component", "dispatcher"),
		jobs:     make(map[string]*Job),
	}
}

// Registry returns the registry calls are resolved against.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch starts name on its own goroutine and returns immediately. The
// job keeps running after ctx is cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args Args) (*Job, error) {
	fn, ok := d.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("no method registered as %s", name)
	}

	key := name
	if uri, err := args.String("uri"); err == nil && uri != "" {
		key = uri
		if path, err := ResolveURI(uri); err == nil {
			key = path
		}
	}
	job := &Job{
		ID:      uuid.NewString(),
		Method:  name,
		Key:     key,
		Started: time.Now(),
		Promise: NewPromise(),
	}
	d.mu.Lock()
	d.jobs[job.ID] = job
	d.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.locks.LockKey(key)
		defer d.locks.UnlockKey(key)

		d.log.Debug("job started", "id", job.ID, "method", name, "key", key)
		call(runCtx, fn, args, job.Promise)
		if _, err := job.Promise.Wait(runCtx); err != nil {
			d.log.Warn("job failed", "id", job.ID, "method", name, "error", err, "elapsed", time.Since(job.Started))
			return
		}
		d.log.Debug("job finished", "id", job.ID, "method", name, "elapsed", time.Since(job.Started))
	}()
	return job, nil
}

// Job returns a dispatched job by id.
func (d *Dispatcher) Job(id string) (*Job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.jobs[id]
	return job, ok
}

// Len returns the number of jobs in the table.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

// Forget drops a settled job from the table.
func (d *Dispatcher) Forget(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if job, ok := d.jobs[id]; ok && job.Promise.Settled() {
		delete(d.jobs, id)
	}
}

// Release forgets the job once it settles, for callers that will never
// collect its result.
func (d *Dispatcher) Release(id string) {
	job, ok := d.Job(id)
	if !ok {
		return
	}
	go func() {
		<-job.Promise.Done()
		d.Forget(id)
	}()
}

// Wait blocks until every dispatched job has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
