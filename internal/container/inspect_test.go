package container_test

import (
	"testing"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diwenne/smashspeed-rn/internal/container"
	"github.com/diwenne/smashspeed-rn/internal/container/containertest"
)

func TestInspect(t *testing.T) {
	path := writeSource(t, containertest.Video(90), containertest.Audio(100), containertest.Data(10))

	info, err := container.Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, path, info.Path)
	assert.Greater(t, info.Size, int64(0))
	assert.InDelta(t, 3.0, info.Duration(), 1e-9)
	assert.True(t, info.HasVideo())
	require.Len(t, info.Tracks, 3)

	video := info.Tracks[0]
	assert.Equal(t, "video", video.Kind)
	assert.Equal(t, "avc1", video.Codec)
	assert.Equal(t, 90, video.SampleCount)
	assert.Equal(t, 3, video.SyncCount)
	h264, ok := video.Params.(*mp4.CodecH264)
	require.True(t, ok)
	assert.Equal(t, containertest.SPS, h264.SPS)
	assert.Equal(t, containertest.PPS, h264.PPS)
	assert.Contains(t, video.String(), "video/avc")

	audio := info.Tracks[1]
	assert.Equal(t, "audio", audio.Kind)
	assert.Equal(t, 100, audio.SyncCount)
	assert.Equal(t, 44100, audio.SampleRate)
	assert.Equal(t, 2, audio.Channels)
	assert.Empty(t, audio.Error)
	_, ok = audio.Params.(*mp4.CodecMPEG4Audio)
	assert.True(t, ok)
	assert.Equal(t, int64(2_000_000), audio.DurationUs)

	data := info.Tracks[2]
	assert.Equal(t, "other", data.Kind)
	assert.Nil(t, data.Params)
}

func TestInspectMissingFile(t *testing.T) {
	_, err := container.Inspect("/nonexistent/clip.mp4")
	assert.Error(t, err)
}
