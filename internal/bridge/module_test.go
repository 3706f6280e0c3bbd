package bridge

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diwenne/smashspeed-rn/internal/container"
	"github.com/diwenne/smashspeed-rn/internal/container/containertest"
	"github.com/diwenne/smashspeed-rn/internal/trimmer"
)

type countingTrimmer struct {
	inner trimmer.Trimmer
	calls int
}

func (c *countingTrimmer) Trim(ctx context.Context, source string, start, end float64) (string, error) {
	c.calls++
	return c.inner.Trim(ctx, source, start, end)
}

func newModuleRegistry(t *testing.T, maxClip float64) (*Registry, *countingTrimmer, string) {
	t.Helper()
	src := filepath.Join(t.TempDir(), "smash.mp4")
	require.NoError(t, containertest.Write(src, containertest.Video(90), containertest.Audio(150)))

	ct := &countingTrimmer{inner: trimmer.NewRemuxer(trimmer.Options{CacheDir: t.TempDir()})}
	r := NewRegistry()
	require.NoError(t, NewVideoTrimmerModule(ct, ModuleOptions{MaxClipSeconds: maxClip}).Register(r))
	return r, ct, src
}

func TestVideoTrimmerModuleTrim(t *testing.T) {
	r, ct, src := newModuleRegistry(t, 0.8)
	assert.Equal(t, []string{"VideoTrimmer.probe", "VideoTrimmer.trim"}, r.Names())

	v, err := r.Invoke(context.Background(), "VideoTrimmer.trim", Args{
		"uri":       FileURI(src),
		"startTime": 2.3,
		"endTime":   2.55,
	}).Wait(context.Background())
	require.NoError(t, err)
	uri, ok := v.(string)
	require.True(t, ok)
	assert.Contains(t, uri, "file://")

	out, err := ResolveURI(uri)
	require.NoError(t, err)
	info, err := container.Inspect(out)
	require.NoError(t, err)
	assert.Len(t, info.Tracks, 2)
	assert.Equal(t, 1, ct.calls)
}

func TestVideoTrimmerModuleRejects(t *testing.T) {
	r, ct, src := newModuleRegistry(t, 0.8)
	ctx := context.Background()

	cases := []struct {
		name string
		args Args
		code string
	}{
		{"clip too long", Args{"uri": src, "startTime": 0.5, "endTime": 1.5}, trimmer.CodeTrimFailed},
		{"past the end", Args{"uri": src, "startTime": 2.9, "endTime": 3.2}, trimmer.CodeTrimFailed},
		{"missing file", Args{"uri": src + ".gone", "startTime": 0.0, "endTime": 0.5}, trimmer.CodeFileNotFound},
		{"foreign scheme", Args{"uri": "content://media/1", "startTime": 0.0, "endTime": 0.5}, trimmer.CodeFileNotFound},
		{"no uri", Args{"startTime": 0.0, "endTime": 0.5}, trimmer.CodeFileNotFound},
		{"bad time", Args{"uri": src, "startTime": "soon", "endTime": 0.5}, trimmer.CodeTrimFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Invoke(ctx, "VideoTrimmer.trim", tc.args).Wait(ctx)
			assert.Equal(t, tc.code, trimmer.CodeOf(err))
		})
	}
	assert.Equal(t, 0, ct.calls, "rejected before the trimmer runs")
}

func TestVideoTrimmerModuleProbe(t *testing.T) {
	r, _, src := newModuleRegistry(t, 0.8)

	v, err := r.Invoke(context.Background(), "VideoTrimmer.probe", Args{"uri": src}).Wait(context.Background())
	require.NoError(t, err)
	info, ok := v.(*container.MediaInfo)
	require.True(t, ok)
	assert.InDelta(t, 3.0, info.Duration(), 1e-9)
}
