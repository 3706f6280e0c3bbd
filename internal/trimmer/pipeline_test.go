package trimmer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diwenne/smashspeed-rn/internal/container"
	"github.com/diwenne/smashspeed-rn/internal/container/containertest"
	"github.com/diwenne/smashspeed-rn/internal/media"
)

type emitted struct {
	track    int
	srcIndex int
	info     media.SampleInfo
}

// recordingWriter forwards to a real Muxer and keeps every emitted sample.
type recordingWriter struct {
	*container.Muxer
	emitted []emitted
	started bool
}

func (w *recordingWriter) Start() error {
	w.started = true
	return w.Muxer.Start()
}

func (w *recordingWriter) WriteSampleData(track int, buf []byte, info media.SampleInfo) error {
	_, idx := containertest.PayloadIndex(buf)
	w.emitted = append(w.emitted, emitted{track: track, srcIndex: idx, info: info})
	return w.Muxer.WriteSampleData(track, buf, info)
}

func (w *recordingWriter) byTrack(track int) []emitted {
	var out []emitted
	for _, e := range w.emitted {
		if e.track == track {
			out = append(out, e)
		}
	}
	return out
}

// countingReader tracks Close calls on the real extractor.
type countingReader struct {
	*container.Extractor
	closed int
}

func (r *countingReader) Close() error {
	r.closed++
	return r.Extractor.Close()
}

type harness struct {
	cacheDir string
	writers  []*recordingWriter
	readers  []*countingReader
	remuxer  *Remuxer
}

func newHarness(t *testing.T, bufferSize int) *harness {
	t.Helper()
	h := &harness{cacheDir: filepath.Join(t.TempDir(), "cache")}
	h.remuxer = NewRemuxer(Options{
		CacheDir:   h.cacheDir,
		BufferSize: bufferSize,
		OpenReader: func(path string) (SampleReader, error) {
			ex, err := container.OpenExtractor(path)
			if err != nil {
				return nil, err
			}
			r := &countingReader{Extractor: ex}
			h.readers = append(h.readers, r)
			return r, nil
		},
		NewWriter: func(path string) SampleWriter {
			w := &recordingWriter{Muxer: container.NewMuxer(path)}
			h.writers = append(h.writers, w)
			return w
		},
	})
	return h
}

func (h *harness) lastWriter() *recordingWriter {
	return h.writers[len(h.writers)-1]
}

func (h *harness) cacheFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.cacheDir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func source(t *testing.T, tracks ...containertest.Track) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.mp4")
	require.NoError(t, containertest.Write(path, tracks...))
	return path
}

func TestTrimScenario(t *testing.T) {
	video, audio := containertest.Video(90), containertest.Audio(150)
	src := source(t, video, audio)
	h := newHarness(t, 0)

	rep, err := h.remuxer.TrimWithReport(context.Background(), Request{Source: src, Window: TimeWindow{Start: 2.3, End: 2.55}})
	require.NoError(t, err)
	assert.Equal(t, h.cacheDir, filepath.Dir(rep.Output))

	require.Len(t, rep.Tracks, 2)
	v, a := rep.Tracks[0], rep.Tracks[1]
	assert.Equal(t, 8, v.Samples, "frames 69..76")
	assert.Equal(t, 9, v.Skipped, "seek lands on the keyframe at 2.0s")
	assert.Equal(t, int64(0), v.FirstUs)
	assert.Equal(t, int64(233_333), v.LastUs)
	assert.Equal(t, 13, a.Samples, "audio 2.30s..2.54s")
	assert.Equal(t, 0, a.Skipped)
	assert.Equal(t, int64(240_000), a.LastUs)
	assert.Equal(t, int64(240_000), rep.DurationUs, "last audio sample is presented at 240ms")

	w := h.lastWriter()
	vs := w.byTrack(0)
	require.Len(t, vs, 8)
	assert.Equal(t, 69, vs[0].srcIndex)
	assert.Equal(t, 76, vs[7].srcIndex)

	ex, err := container.OpenExtractor(rep.Output)
	require.NoError(t, err)
	defer ex.Close()
	require.Equal(t, 2, ex.TrackCount())
	vf, err := ex.TrackFormat(0)
	require.NoError(t, err)
	assert.Equal(t, media.KindVideo, vf.Kind)
	assert.Equal(t, 8, vf.SampleCount)
	af, err := ex.TrackFormat(1)
	require.NoError(t, err)
	assert.Equal(t, media.KindAudio, af.Kind)
	assert.Equal(t, 13, af.SampleCount)

	for _, r := range h.readers {
		assert.Equal(t, 1, r.closed)
	}
}

func TestTrimTimestampsAreRebasedAndWindowed(t *testing.T) {
	video, audio := containertest.Video(120), containertest.Audio(200)
	src := source(t, video, audio)
	h := newHarness(t, 0)

	start, end := 1.1, 2.7
	_, err := h.remuxer.Trim(context.Background(), src, start, end)
	require.NoError(t, err)

	startUs, endUs := media.SecondsToUs(start), media.SecondsToUs(end)
	tracks := []containertest.Track{video, audio}
	minAdjusted := int64(-1)
	for dst, tr := range tracks {
		last := int64(-1)
		for _, e := range h.lastWriter().byTrack(dst) {
			orig := tr.TimeUs(e.srcIndex)
			assert.Equal(t, orig-startUs, e.info.TimeUs, "rebased time")
			assert.GreaterOrEqual(t, orig, startUs)
			assert.LessOrEqual(t, orig, endUs)
			assert.GreaterOrEqual(t, e.info.TimeUs, last, "non-decreasing per track")
			last = e.info.TimeUs
			if minAdjusted < 0 || e.info.TimeUs < minAdjusted {
				minAdjusted = e.info.TimeUs
			}
		}
	}
	assert.GreaterOrEqual(t, minAdjusted, int64(0))
}

func TestTrimWindowsByPresentationTime(t *testing.T) {
	video := containertest.Video(90)
	video.CTO = 2000 // frames are presented 66667us after they decode
	src := source(t, video)
	h := newHarness(t, 0)

	rep, err := h.remuxer.TrimWithReport(context.Background(), Request{Source: src, Window: TimeWindow{Start: 2.3, End: 2.55}})
	require.NoError(t, err)
	startUs, endUs := media.SecondsToUs(2.3), media.SecondsToUs(2.55)
	cto := media.TicksToUs(int64(video.CTO), video.Timescale)

	v := rep.Tracks[0]
	assert.Equal(t, 8, v.Samples, "frames 67..74 are presented in 2.3s..2.53s")
	assert.Equal(t, 9, v.Skipped, "frames 60..66 before the window, 75 and 76 after it")
	assert.Equal(t, int64(0), v.FirstUs)
	assert.Equal(t, video.TimeUs(74)+cto-startUs, v.LastUs)
	vs := h.lastWriter().byTrack(0)
	require.Len(t, vs, 8)
	assert.Equal(t, 67, vs[0].srcIndex)
	assert.Equal(t, 74, vs[7].srcIndex)
	for _, e := range vs {
		pts := video.TimeUs(e.srcIndex) + cto
		assert.GreaterOrEqual(t, pts, startUs)
		assert.LessOrEqual(t, pts, endUs)
		assert.Equal(t, pts-startUs, e.info.PresentationUs())
		assert.GreaterOrEqual(t, e.info.TimeUs, int64(0))
	}

	ex, err := container.OpenExtractor(rep.Output)
	require.NoError(t, err)
	defer ex.Close()
	require.NoError(t, ex.SelectTrack(0))
	info, ok := ex.SampleInfo()
	require.True(t, ok)
	assert.Equal(t, int64(0), info.PresentationUs())
	assert.False(t, info.Flags.IsSync(), "frame 67 is not a keyframe")
}

func TestTrimCorruptSampleTable(t *testing.T) {
	src := source(t, containertest.Video(30))
	require.NoError(t, containertest.PatchSampleCount(src, 0xFFFFFFFF))
	h := newHarness(t, 0)

	_, err := h.remuxer.Trim(context.Background(), src, 0, 0.5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, media.ErrSourceFormat))
	assert.Equal(t, CodeTrimFailed, CodeOf(err))

	assert.Empty(t, h.writers, "no writer is created")
	_, statErr := os.Stat(h.cacheDir)
	assert.True(t, os.IsNotExist(statErr), "no output location is touched")
	assert.Equal(t, 1, h.readers[0].closed)
}

func TestTrimEndIsInclusive(t *testing.T) {
	src := source(t, containertest.Video(90), containertest.Audio(150))
	h := newHarness(t, 0)

	rep, err := h.remuxer.TrimWithReport(context.Background(), Request{Source: src, Window: TimeWindow{Start: 2.3, End: 2.5}})
	require.NoError(t, err)
	assert.Equal(t, 7, rep.Tracks[0].Samples, "frame at exactly 2.5s is kept")
	assert.Equal(t, int64(200_000), rep.Tracks[0].LastUs)

	rep, err = h.remuxer.TrimWithReport(context.Background(), Request{Source: src, Window: TimeWindow{Start: 2.3, End: 2.56}})
	require.NoError(t, err)
	assert.Equal(t, 14, rep.Tracks[1].Samples, "audio sample at exactly 2.56s is kept")
}

func TestTrimWithoutVideoTrack(t *testing.T) {
	src := source(t, containertest.Audio(100))
	h := newHarness(t, 0)

	_, err := h.remuxer.Trim(context.Background(), src, 0.5, 1.0)
	require.Error(t, err)
	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, CodeTrimFailed, te.Code)
	assert.True(t, errors.Is(err, ErrNoVideoTrack))

	assert.Empty(t, h.writers, "no writer is created")
	_, statErr := os.Stat(h.cacheDir)
	assert.True(t, os.IsNotExist(statErr), "no output location is touched")
	assert.Equal(t, 1, h.readers[0].closed)
}

func TestTrimVideoOnlyAndSkippedTracks(t *testing.T) {
	src := source(t, containertest.Data(30), containertest.Video(60))
	h := newHarness(t, 0)

	out, err := h.remuxer.Trim(context.Background(), src, 0.5, 1.0)
	require.NoError(t, err)

	ex, err := container.OpenExtractor(out)
	require.NoError(t, err)
	defer ex.Close()
	require.Equal(t, 1, ex.TrackCount())
	d, err := ex.TrackFormat(0)
	require.NoError(t, err)
	assert.Equal(t, media.KindVideo, d.Kind)
	assert.Equal(t, 16, d.SampleCount, "frames 15..30")
}

func TestTrimStartPastVideoEnd(t *testing.T) {
	src := source(t, containertest.Video(60), containertest.Audio(150))
	h := newHarness(t, 0)

	_, err := h.remuxer.Trim(context.Background(), src, 2.5, 2.7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyResult))
	assert.Equal(t, CodeTrimFailed, CodeOf(err))
	assert.Empty(t, h.cacheFiles(t), "the partial output is removed")
	assert.Equal(t, 1, h.readers[0].closed)
}

func TestTrimAudioShorterThanWindow(t *testing.T) {
	src := source(t, containertest.Video(90), containertest.Audio(50))
	h := newHarness(t, 0)

	rep, err := h.remuxer.TrimWithReport(context.Background(), Request{Source: src, Window: TimeWindow{Start: 2.0, End: 2.5}})
	require.NoError(t, err)
	require.Len(t, rep.Tracks, 2)
	assert.Equal(t, 16, rep.Tracks[0].Samples)
	assert.Equal(t, 0, rep.Tracks[1].Samples, "audio ends at 1s")
}

func TestTrimIsRepeatable(t *testing.T) {
	src := source(t, containertest.Video(90), containertest.Audio(150))
	h := newHarness(t, 0)

	first, err := h.remuxer.Trim(context.Background(), src, 1.2, 1.9)
	require.NoError(t, err)
	second, err := h.remuxer.Trim(context.Background(), src, 1.2, 1.9)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.Len(t, h.writers, 2)
	a, b := h.writers[0].emitted, h.writers[1].emitted
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i])
	}

	ia, err := container.Inspect(first)
	require.NoError(t, err)
	ib, err := container.Inspect(second)
	require.NoError(t, err)
	assert.Equal(t, ia.DurationUs, ib.DurationUs)
	assert.Equal(t, ia.Size, ib.Size)
}

func TestTrimMissingSource(t *testing.T) {
	h := newHarness(t, 0)
	_, err := h.remuxer.Trim(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), 0, 0.5)
	assert.Equal(t, CodeFileNotFound, CodeOf(err))
	assert.True(t, errors.Is(err, media.ErrSourceOpen))
}

func TestTrimSampleLargerThanBuffer(t *testing.T) {
	src := source(t, containertest.Video(30))
	h := newHarness(t, 16)

	_, err := h.remuxer.Trim(context.Background(), src, 0, 0.5)
	assert.True(t, errors.Is(err, media.ErrSampleTooLarge))
	assert.Equal(t, CodeTrimFailed, CodeOf(err))
	assert.Empty(t, h.cacheFiles(t))
	assert.Equal(t, 1, h.readers[0].closed)
}

func TestTrimRejectsMalformedWindow(t *testing.T) {
	src := source(t, containertest.Video(30))
	h := newHarness(t, 0)

	_, err := h.remuxer.Trim(context.Background(), src, 0.5, 0.5)
	assert.True(t, errors.Is(err, ErrInvalidWindow))
	assert.Empty(t, h.readers)
}

func TestTrimToExplicitOutput(t *testing.T) {
	src := source(t, containertest.Video(30))
	h := newHarness(t, 0)
	out := filepath.Join(t.TempDir(), "clip.mp4")

	rep, err := h.remuxer.TrimWithReport(context.Background(), Request{Source: src, Output: out, Window: TimeWindow{Start: 0, End: 0.5}})
	require.NoError(t, err)
	assert.Equal(t, out, rep.Output)
	assert.FileExists(t, out)
}
