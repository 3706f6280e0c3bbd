package trimmer

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	opts := Options{CacheDir: t.TempDir()}

	for _, name := range []string{"", "auto", "remux", "REMUX"} {
		b, err := NewBackend(name, opts, "")
		require.NoError(t, err, name)
		_, ok := b.(*Remuxer)
		assert.True(t, ok, name)
	}

	_, err := NewBackend("ffmpeg", opts, filepath.Join(t.TempDir(), "no-such-ffmpeg"))
	assert.Error(t, err)

	_, err = NewBackend("avfoundation", opts, "")
	assert.Error(t, err)
}

func TestFFmpegArgsCopyStreams(t *testing.T) {
	f := NewFFmpegTrimmer("", t.TempDir(), nil)
	assert.Equal(t, "ffmpeg", f.Binary)

	args := f.Args("in.mp4", "out.mp4", TimeWindow{Start: 2.3, End: 2.55})
	assert.Subset(t, args, []string{"-c", "copy", "-ss", "2.300000", "-t", "0.250000", "-i", "in.mp4"})
	assert.Equal(t, "out.mp4", args[len(args)-1])
	assert.NotContains(t, args, "libx264")
}

func TestFFmpegTrimErrors(t *testing.T) {
	f := NewFFmpegTrimmer(filepath.Join(t.TempDir(), "no-such-ffmpeg"), t.TempDir(), nil)
	assert.False(t, f.Available())

	_, err := f.Trim(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), 0, 0.5)
	assert.Equal(t, CodeFileNotFound, CodeOf(err))

	_, err = f.Trim(context.Background(), "whatever.mp4", 1, 0.5)
	assert.Equal(t, CodeTrimFailed, CodeOf(err))
}

func fakeFFmpeg(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a unix shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestFFmpegTrimRunsBinary(t *testing.T) {
	src := filepath.Join(t.TempDir(), "smash.mp4")
	require.NoError(t, os.WriteFile(src, []byte("source"), 0o644))
	cacheDir := t.TempDir()

	ok := NewFFmpegTrimmer(fakeFFmpeg(t, `for last; do :; done; printf clip > "$last"`), cacheDir, nil)
	out, err := ok.Trim(context.Background(), src, 2.3, 2.55)
	require.NoError(t, err)
	assert.Equal(t, cacheDir, filepath.Dir(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "clip", string(data))

	failing := NewFFmpegTrimmer(fakeFFmpeg(t, "echo 'moov atom not found' >&2; exit 1"), cacheDir, nil)
	_, err = failing.Trim(context.Background(), src, 2.3, 2.55)
	assert.Equal(t, CodeTrimFailed, CodeOf(err))
	assert.ErrorContains(t, err, "moov atom not found")

	silent := NewFFmpegTrimmer(fakeFFmpeg(t, "exit 0"), cacheDir, nil)
	_, err = silent.Trim(context.Background(), src, 2.3, 2.55)
	assert.ErrorIs(t, err, ErrEmptyResult)

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed runs leave nothing behind")
}
