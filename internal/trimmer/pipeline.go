package trimmer

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/diwenne/smashspeed-rn/internal/container"
	"github.com/diwenne/smashspeed-rn/internal/media"
	"github.com/diwenne/smashspeed-rn/internal/util"
)

// Options configures a Remuxer.
type Options struct {
	// CacheDir receives generated clips. Defaults to os.TempDir().
	CacheDir string
	// BufferSize is the transfer buffer size. Defaults to media.DefaultBufferSize.
	BufferSize int
	Logger     *slog.Logger

	// OpenReader and NewWriter replace the MP4 reader and writer.
	OpenReader func(path string) (SampleReader, error)
	NewWriter  func(path string) SampleWriter
}

// Request is a trim of Source to Output. An empty Output picks a unique
// name in the cache dir.
type Request struct {
	Source string
	Output string
	Window TimeWindow
}

// Report describes a finished trim.
type Report struct {
	Source     string        `json:"source"`
	Output     string        `json:"output"`
	Window     TimeWindow    `json:"window"`
	Tracks     []TrackStats  `json:"tracks"`
	DurationUs int64         `json:"durationUs"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Samples returns the total number of samples written.
func (r *Report) Samples() int {
	n := 0
	for _, t := range r.Tracks {
		n += t.Samples
	}
	return n
}

// Remuxer trims by copying compressed samples into a new container without
// re-encoding. Each call uses its own reader and writer.
type Remuxer struct {
	opts Options
	log  *slog.Logger
}

func NewRemuxer(opts Options) *Remuxer {
	if opts.CacheDir == "" {
		opts.CacheDir = os.TempDir()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = media.DefaultBufferSize
	}
	if opts.OpenReader == nil {
		opts.OpenReader = func(path string) (SampleReader, error) {
			return container.OpenExtractor(path)
		}
	}
	if opts.NewWriter == nil {
		opts.NewWriter = func(path string) SampleWriter {
			return container.NewMuxer(path)
		}
	}
	log := opts.Logger
	if log == nil {
		log = util.GetLogger()
	}
	return &Remuxer{opts: opts, log: log.With("component", "remuxer")}
}

// Name identifies the backend.
func (r *Remuxer) Name() string {
	return BackendRemux
}

// Trim writes source[start, end] to a new clip in the cache dir and returns its path.
func (r *Remuxer) Trim(ctx context.Context, source string, start, end float64) (string, error) {
	rep, err := r.TrimWithReport(ctx, Request{Source: source, Window: TimeWindow{Start: start, End: end}})
	if err != nil {
		return "", err
	}
	return rep.Output, nil
}

// TrimWithReport runs the pipeline and reports per track statistics.
// Errors are always *Error.
func (r *Remuxer) TrimWithReport(ctx context.Context, req Request) (*Report, error) {
	began := time.Now()
	rep, err := r.run(ctx, req)
	if err != nil {
		te := Fail(err)
		r.log.Warn("trim failed", "source", req.Source, "code", te.Code, "error", err)
		return nil, te
	}
	rep.Elapsed = time.Since(began)
	r.log.Info("trim finished", "source", req.Source, "output", rep.Output,
		"tracks", len(rep.Tracks), "samples", rep.Samples(), "duration_us", rep.DurationUs, "elapsed", rep.Elapsed)
	return rep, nil
}

func (r *Remuxer) run(ctx context.Context, req Request) (*Report, error) {
	if err := req.Window.checkShape(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	startUs := media.SecondsToUs(req.Window.Start)
	endUs := media.SecondsToUs(req.Window.End)

	rd, err := r.opts.OpenReader(req.Source)
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	descs := make([]media.TrackDescriptor, rd.TrackCount())
	for i := range descs {
		if descs[i], err = rd.TrackFormat(i); err != nil {
			return nil, err
		}
	}
	mapping, err := SelectTracks(descs)
	if err != nil {
		return nil, err
	}

	output := req.Output
	if output == "" {
		if err := os.MkdirAll(r.opts.CacheDir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create cache dir %s", r.opts.CacheDir)
		}
		output = util.UniqueClipPath(r.opts.CacheDir)
	}
	r.log.Debug("trimming", "source", req.Source, "output", output,
		"start_us", startUs, "end_us", endUs, "tracks", mapping.Len())

	w := r.opts.NewWriter(output)
	defer w.Close()

	for _, e := range mapping.Entries() {
		dst, err := w.AddTrack(descs[e.Source])
		if err != nil {
			return nil, err
		}
		if dst != e.Destination {
			return nil, errors.Wrapf(media.ErrWriterState, "track %d declared as %d, mapped to %d", e.Source, dst, e.Destination)
		}
	}
	if err := w.Start(); err != nil {
		return nil, err
	}

	buf := make([]byte, r.opts.BufferSize)
	rep := &Report{Source: req.Source, Window: req.Window}
	for _, e := range mapping.Entries() {
		stats, err := copyTrack(rd, w, e, startUs, endUs, buf, r.log)
		if err != nil {
			return nil, err
		}
		rep.Tracks = append(rep.Tracks, stats)
	}

	if err := w.Stop(); err != nil {
		return nil, err
	}
	rep.Output = output
	if d, ok := w.(interface{ DurationUs() int64 }); ok {
		rep.DurationUs = d.DurationUs()
	}
	return rep, nil
}
