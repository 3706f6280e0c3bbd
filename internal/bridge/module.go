package bridge

import (
	"context"
	"log/slog"

	"github.com/diwenne/smashspeed-rn/internal/container"
	"github.com/diwenne/smashspeed-rn/internal/trimmer"
	"github.com/diwenne/smashspeed-rn/internal/util"
)

// VideoTrimmerModuleName is the module the trim operations register under.
const VideoTrimmerModuleName = "VideoTrimmer"

// ModuleOptions tunes the checks the module applies before trimming.
type ModuleOptions struct {
	// MaxClipSeconds bounds the requested window; 0 disables the bound.
	MaxClipSeconds float64
	Logger         *slog.Logger
}

// VideoTrimmerModule exposes trim and probe to bridged callers.
type VideoTrimmerModule struct {
	trimmer trimmer.Trimmer
	opts    ModuleOptions
	log     *slog.Logger
}

func NewVideoTrimmerModule(t trimmer.Trimmer, opts ModuleOptions) *VideoTrimmerModule {
	log := opts.Logger
	if log == nil {
		log = util.GetLogger()
	}
	return &VideoTrimmerModule{trimmer: t, opts: opts, log: log.With("module", VideoTrimmerModuleName)}
}

// Register adds VideoTrimmer.trim and VideoTrimmer.probe to r.
func (m *VideoTrimmerModule) Register(r *Registry) error {
	if err := r.Register(VideoTrimmerModuleName, "trim", m.trim); err != nil {
		return err
	}
	return r.Register(VideoTrimmerModuleName, "probe", m.probe)
}

// trim takes uri, startTime and endTime and resolves with the file:// URI of the clip.
func (m *VideoTrimmerModule) trim(ctx context.Context, args Args, p *Promise) {
	uri, err := args.String("uri")
	if err != nil {
		p.Reject(trimmer.CodeFileNotFound, err.Error(), err)
		return
	}
	path, err := ResolveURI(uri)
	if err != nil {
		p.RejectError(trimmer.Fail(err))
		return
	}

	var w trimmer.TimeWindow
	if w.Start, err = args.Float("startTime"); err == nil {
		w.End, err = args.Float("endTime")
	}
	if err != nil {
		p.Reject(trimmer.CodeTrimFailed, err.Error(), err)
		return
	}

	info, err := container.Inspect(path)
	if err != nil {
		p.RejectError(trimmer.Fail(err))
		return
	}
	if err := trimmer.ValidateWindow(w, info.Duration(), m.opts.MaxClipSeconds); err != nil {
		p.RejectError(trimmer.Fail(err))
		return
	}

	m.log.Debug("trim requested", "path", path, "start", w.Start, "end", w.End)
	out, err := m.trimmer.Trim(ctx, path, w.Start, w.End)
	if err != nil {
		p.RejectError(trimmer.Fail(err))
		return
	}
	p.Resolve(FileURI(out))
}

// probe takes uri and resolves with the container description.
func (m *VideoTrimmerModule) probe(ctx context.Context, args Args, p *Promise) {
	uri, err := args.String("uri")
	if err != nil {
		p.Reject(trimmer.CodeFileNotFound, err.Error(), err)
		return
	}
	path, err := ResolveURI(uri)
	if err != nil {
		p.RejectError(trimmer.Fail(err))
		return
	}
	info, err := container.Inspect(path)
	if err != nil {
		p.RejectError(trimmer.Fail(err))
		return
	}
	p.Resolve(info)
}
