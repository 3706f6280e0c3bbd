package bridge

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diwenne/smashspeed-rn/internal/media"
)

func TestResolveURI(t *testing.T) {
	ok := map[string]string{
		"/tmp/clip.mp4":                "/tmp/clip.mp4",
		"file:///tmp/clip.mp4":         "/tmp/clip.mp4",
		"file://localhost/tmp/a.mp4":   "/tmp/a.mp4",
		"file:///tmp/with%20space.mp4": "/tmp/with space.mp4",
		" /tmp/./x.mp4 ":               "/tmp/x.mp4",
	}
	for in, want := range ok {
		got, err := ResolveURI(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "content://media/external/video/1", "https://example.com/a.mp4", "file://remote/a.mp4"} {
		_, err := ResolveURI(in)
		assert.True(t, errors.Is(err, media.ErrSourceOpen), in)
	}
}

func TestFileURI(t *testing.T) {
	dir := t.TempDir()
	uri := FileURI(filepath.Join(dir, "trimmed-1.mp4"))
	assert.Contains(t, uri, "file://")
	back, err := ResolveURI(uri)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "trimmed-1.mp4"), back)
}
