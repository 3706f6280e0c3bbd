package container

import (
	"io"
	"os"
	"sync"

	gomp4 "github.com/abema/go-mp4"
	"github.com/pkg/errors"

	"github.com/diwenne/smashspeed-rn/internal/media"
)

type muxerState int

const (
	muxerCreated muxerState = iota
	muxerStarted
	muxerFinalized
	muxerFailed
)

func (s muxerState) String() string {
	switch s {
	case muxerCreated:
		return "created"
	case muxerStarted:
		return "started"
	case muxerFinalized:
		return "finalized"
	default:
		return "failed"
	}
}

// movieTimescale is the time base of mvhd and tkhd durations.
const movieTimescale = 1000

type writtenSample struct {
	offset   int64
	size     uint32
	dts      int64 // track ticks
	duration int64 // track ticks, 0 when unknown
	cto      int64 // track ticks
	sync     bool
}

type muxerTrack struct {
	desc    media.TrackDescriptor
	samples []writtenSample
}

// Muxer writes a progressive MP4 file: ftyp, one mdat holding the sample
// payloads in arrival order, then moov.
//
// The lifecycle is Created -> AddTrack* -> Start -> WriteSampleData* -> Stop.
// Nothing touches the disk before Start. Close must be called on every path;
// it removes the file unless Stop succeeded.
type Muxer struct {
	path   string
	mu     sync.Mutex
	state  muxerState
	tracks []*muxerTrack

	file *os.File
	w    *gomp4.Writer

	durationUs int64
}

// NewMuxer prepares a muxer that will write to path once started.
func NewMuxer(path string) *Muxer {
	return &Muxer{path: path}
}

// Path returns the destination path.
func (m *Muxer) Path() string {
	return m.path
}

func (m *Muxer) stateErr(op string) error {
	return errors.Wrapf(media.ErrWriterState, "%s in state %s", op, m.state)
}

// AddTrack declares a destination track and returns its index.
func (m *Muxer) AddTrack(desc media.TrackDescriptor) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != muxerCreated {
		return -1, m.stateErr("add track")
	}
	if desc.Timescale == 0 {
		return -1, errors.Wrapf(media.ErrSourceFormat, "track %q has no timescale", desc.MIME)
	}
	if len(desc.SampleEntry) == 0 {
		return -1, errors.Wrapf(media.ErrSourceFormat, "track %q has no sample description", desc.MIME)
	}
	m.tracks = append(m.tracks, &muxerTrack{desc: desc})
	return len(m.tracks) - 1, nil
}

// Start creates the output file and opens the media data box.
func (m *Muxer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != muxerCreated {
		return m.stateErr("start")
	}
	if len(m.tracks) == 0 {
		return errors.Wrap(media.ErrWriterState, "start without tracks")
	}

	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		m.state = muxerFailed
		return errors.Wrapf(err, "create %s", m.path)
	}
	m.file = f
	m.w = gomp4.NewWriter(f)

	if err := m.writeFtyp(); err != nil {
		m.state = muxerFailed
		return errors.Wrap(err, "write ftyp")
	}
	if _, err := m.w.StartBox(&gomp4.BoxInfo{Type: gomp4.BoxTypeMdat()}); err != nil {
		m.state = muxerFailed
		return errors.Wrap(err, "start mdat")
	}
	m.state = muxerStarted
	return nil
}

// WriteSampleData appends one sample to a declared track. Samples of a track
// must arrive in non-decreasing time order.
func (m *Muxer) WriteSampleData(track int, buf []byte, info media.SampleInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != muxerStarted {
		return m.stateErr("write sample")
	}
	if track < 0 || track >= len(m.tracks) {
		return errors.Wrapf(media.ErrWriterState, "write sample to undeclared track %d", track)
	}
	if info.Size < 0 || info.Size > len(buf) {
		return errors.Wrapf(media.ErrWriterState, "sample size %d outside buffer of %d", info.Size, len(buf))
	}
	if info.TimeUs < 0 {
		return errors.Wrapf(media.ErrWriterState, "negative sample time %d", info.TimeUs)
	}

	t := m.tracks[track]
	ts := t.desc.Timescale
	dts := media.UsToTicks(info.TimeUs, ts)
	if n := len(t.samples); n > 0 && dts < t.samples[n-1].dts {
		return errors.Wrapf(media.ErrWriterState, "track %d: sample time %d before previous sample", track, info.TimeUs)
	}

	offset, err := m.w.Seek(0, io.SeekCurrent)
	if err != nil {
		m.state = muxerFailed
		return errors.Wrap(err, "locate sample offset")
	}
	if _, err := m.w.Write(buf[:info.Size]); err != nil {
		m.state = muxerFailed
		return errors.Wrap(err, "write sample payload")
	}

	t.samples = append(t.samples, writtenSample{
		offset:   offset,
		size:     uint32(info.Size),
		dts:      dts,
		duration: media.UsToTicks(info.DurationUs, ts),
		cto:      media.UsToTicks(info.CompositionOffsetUs, ts),
		sync:     info.Flags.IsSync(),
	})
	return nil
}

// Stop closes the media data box, writes the movie box and closes the file.
func (m *Muxer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != muxerStarted {
		return m.stateErr("stop")
	}
	if _, err := m.w.EndBox(); err != nil {
		m.state = muxerFailed
		return errors.Wrap(err, "end mdat")
	}
	if err := m.writeMoov(); err != nil {
		m.state = muxerFailed
		return errors.Wrap(err, "write moov")
	}
	err := m.file.Close()
	m.file = nil
	if err != nil {
		m.state = muxerFailed
		return errors.Wrapf(err, "close %s", m.path)
	}
	m.state = muxerFinalized
	return nil
}

// Close releases the output file. Unless Stop succeeded the partial file is removed.
func (m *Muxer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.file != nil {
		err = m.file.Close()
		m.file = nil
	}
	if m.state == muxerStarted || m.state == muxerFailed {
		if rmErr := os.Remove(m.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = rmErr
		}
	}
	if m.state != muxerFinalized {
		m.state = muxerFailed
	}
	return err
}

// DurationUs returns the movie duration computed by Stop.
func (m *Muxer) DurationUs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.durationUs
}

// SampleCount returns the number of samples written to track.
func (m *Muxer) SampleCount(track int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if track < 0 || track >= len(m.tracks) {
		return 0
	}
	return len(m.tracks[track].samples)
}
