package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diwenne/smashspeed-rn/internal/trimmer"
)

func TestPromiseSettlesOnce(t *testing.T) {
	p := NewPromise()
	assert.False(t, p.Settled())
	assert.True(t, p.Resolve("file:///tmp/a.mp4"))
	assert.False(t, p.Resolve("other"))
	assert.False(t, p.Reject(trimmer.CodeTrimFailed, "late", nil))

	v, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file:///tmp/a.mp4", v)
}

func TestPromiseRejectWins(t *testing.T) {
	p := NewPromise()
	cause := errors.New("boom")
	assert.True(t, p.Reject(trimmer.CodeFileNotFound, "missing", cause))
	assert.False(t, p.Resolve("x"))

	_, err := p.Wait(context.Background())
	var te *trimmer.Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, trimmer.CodeFileNotFound, te.Code)
	assert.Equal(t, "missing", te.Message)
	assert.Same(t, cause, te.Err)
}

func TestPromiseConcurrentSettlement(t *testing.T) {
	p := NewPromise()
	var wg sync.WaitGroup
	wins := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				wins <- p.Resolve(i)
			} else {
				wins <- p.Reject(trimmer.CodeTrimFailed, "x", nil)
			}
		}(i)
	}
	wg.Wait()
	close(wins)
	n := 0
	for w := range wins {
		if w {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestPromiseWaitHonoursContext(t *testing.T) {
	p := NewPromise()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
