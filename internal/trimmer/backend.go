package trimmer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/diwenne/smashspeed-rn/internal/media"
	"github.com/diwenne/smashspeed-rn/internal/procgroup"
	"github.com/diwenne/smashspeed-rn/internal/util"
)

// Trimmer cuts source[start, end] (seconds) into a new clip and returns its path.
// Failures are *Error.
type Trimmer interface {
	Trim(ctx context.Context, source string, start, end float64) (string, error)
}

// Backend names.
const (
	BackendRemux  = "remux"
	BackendFFmpeg = "ffmpeg"
	BackendAuto   = "auto"
)

// NewBackend returns the trimmer called name. "auto" always picks the remuxer.
func NewBackend(name string, opts Options, ffmpegPath string) (Trimmer, error) {
	switch strings.ToLower(name) {
	case "", BackendAuto, BackendRemux:
		return NewRemuxer(opts), nil
	case BackendFFmpeg:
		f := NewFFmpegTrimmer(ffmpegPath, opts.CacheDir, opts.Logger)
		if !f.Available() {
			return nil, errors.Errorf("ffmpeg backend selected but %q was not found", f.Binary)
		}
		return f, nil
	default:
		return nil, errors.Errorf("unknown trim backend %q (want remux, ffmpeg or auto)", name)
	}
}

// FFmpegTrimmer delegates the cut to an ffmpeg binary with stream copy.
type FFmpegTrimmer struct {
	Binary   string
	CacheDir string
	log      *slog.Logger
}

func NewFFmpegTrimmer(binary, cacheDir string, log *slog.Logger) *FFmpegTrimmer {
	if binary == "" {
		binary = "ffmpeg"
	}
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}
	if log == nil {
		log = util.GetLogger()
	}
	return &FFmpegTrimmer{Binary: binary, CacheDir: cacheDir, log: log.With("component", "ffmpeg")}
}

// Available reports whether the binary resolves.
func (f *FFmpegTrimmer) Available() bool {
	_, err := exec.LookPath(f.Binary)
	return err == nil
}

func (f *FFmpegTrimmer) Name() string {
	return BackendFFmpeg
}

// Args returns the ffmpeg command line for one trim.
func (f *FFmpegTrimmer) Args(source, output string, w TimeWindow) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-ss", fmt.Sprintf("%.6f", w.Start),
		"-i", source,
		"-t", fmt.Sprintf("%.6f", w.Duration()),
		"-map", "0:v",
		"-map", "0:a?",
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		"-movflags", "+faststart",
		output,
	}
}

func (f *FFmpegTrimmer) Trim(ctx context.Context, source string, start, end float64) (string, error) {
	w := TimeWindow{Start: start, End: end}
	if err := w.checkShape(); err != nil {
		return "", Fail(err)
	}
	if _, err := os.Stat(source); err != nil {
		return "", Fail(errors.Wrapf(media.ErrSourceOpen, "%s: %v", source, err))
	}
	if err := os.MkdirAll(f.CacheDir, 0o755); err != nil {
		return "", Fail(errors.Wrapf(err, "create cache dir %s", f.CacheDir))
	}
	output := util.UniqueClipPath(f.CacheDir)

	cmd := exec.CommandContext(ctx, f.Binary, f.Args(source, output, w)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	procgroup.Detach(cmd)
	f.log.Debug("running ffmpeg", "args", cmd.Args)

	if err := cmd.Run(); err != nil {
		os.Remove(output)
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", NewError(CodeTrimFailed, "ffmpeg failed: "+msg, err)
	}
	if st, err := os.Stat(output); err != nil || st.Size() == 0 {
		os.Remove(output)
		return "", Fail(errors.Wrap(ErrEmptyResult, "ffmpeg produced no output"))
	}
	f.log.Info("trim finished", "source", source, "output", output)
	return output, nil
}
