package bridge

import (
	"context"
	"sync"

	"github.com/diwenne/smashspeed-rn/internal/trimmer"
)

// Promise is a single-shot completion: it is either resolved with a value or
// rejected with a coded error, exactly once. Later settlements are ignored.
type Promise struct {
	once  sync.Once
	done  chan struct{}
	value interface{}
	err   *trimmer.Error
}

func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolve settles the promise with v. It reports whether this call settled it.
func (p *Promise) Resolve(v interface{}) bool {
	settled := false
	p.once.Do(func() {
		p.value = v
		settled = true
		close(p.done)
	})
	return settled
}

// Reject settles the promise with a coded failure. It reports whether this call settled it.
func (p *Promise) Reject(code, message string, err error) bool {
	return p.RejectError(trimmer.NewError(code, message, err))
}

// RejectError settles the promise with e.
func (p *Promise) RejectError(e *trimmer.Error) bool {
	settled := false
	p.once.Do(func() {
		p.err = e
		settled = true
		close(p.done)
	})
	return settled
}

// Done is closed once the promise settles.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether the promise has settled.
func (p *Promise) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until settlement or ctx ends. A rejection is returned as *trimmer.Error.
func (p *Promise) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.value, nil
}
