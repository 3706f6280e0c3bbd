package trimmer

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/diwenne/smashspeed-rn/internal/media"
)

// SampleReader is the demultiplexing side of a trim.
type SampleReader interface {
	TrackCount() int
	TrackFormat(i int) (media.TrackDescriptor, error)
	SelectTrack(i int) error
	UnselectTrack(i int) error
	SeekTo(timeUs int64, mode media.SeekMode) error
	ReadSampleData(buf []byte) (int, error)
	SampleInfo() (media.SampleInfo, bool)
	Advance() bool
	Close() error
}

// SampleWriter is the multiplexing side of a trim.
type SampleWriter interface {
	AddTrack(desc media.TrackDescriptor) (int, error)
	Start() error
	WriteSampleData(track int, buf []byte, info media.SampleInfo) error
	Stop() error
	Close() error
}

// TrackStats summarizes the copy of one track.
type TrackStats struct {
	Source      int        `json:"source"`
	Destination int        `json:"destination"`
	Kind        media.Kind `json:"-"`
	KindName    string     `json:"kind"`
	Samples     int        `json:"samples"`
	Bytes       int64      `json:"bytes"`
	Skipped     int        `json:"skipped"`
	FirstUs     int64      `json:"firstUs"`
	LastUs      int64      `json:"lastUs"`
}

// copyTrack copies the samples of one mapped track presented in
// [startUs, endUs], rebased so the window start is presented at zero. The end
// bound is inclusive. Decode order is kept; when a kept sample decodes before
// startUs the decode times are shifted forward and the composition offsets
// back by the same amount.
func copyTrack(r SampleReader, w SampleWriter, e MappingEntry, startUs, endUs int64, buf []byte, log *slog.Logger) (TrackStats, error) {
	stats := TrackStats{
		Source:      e.Source,
		Destination: e.Destination,
		Kind:        e.Kind,
		KindName:    e.Kind.String(),
		FirstUs:     -1,
		LastUs:      -1,
	}

	if err := r.SelectTrack(e.Source); err != nil {
		return stats, err
	}
	defer r.UnselectTrack(e.Source)

	if err := r.SeekTo(startUs, media.SeekPreviousSync); err != nil {
		return stats, errors.Wrapf(err, "seek track %d", e.Source)
	}

	var shift int64
	for {
		n, err := r.ReadSampleData(buf)
		if err != nil {
			return stats, errors.WithMessagef(err, "read track %d", e.Source)
		}
		if n < 0 {
			break
		}
		info, ok := r.SampleInfo()
		if !ok {
			break
		}
		dts, pts := info.TimeUs, info.PresentationUs()
		if dts > endUs && pts > endUs {
			break
		}
		if pts < startUs || pts > endUs {
			stats.Skipped++
			r.Advance()
			continue
		}

		if stats.Samples == 0 && dts < startUs {
			shift = startUs - dts
		}
		info.Size = n
		info.TimeUs = dts - startUs + shift
		info.CompositionOffsetUs -= shift
		if err := w.WriteSampleData(e.Destination, buf[:n], info); err != nil {
			return stats, errors.WithMessagef(err, "write track %d sample at %dus", e.Destination, pts)
		}
		out := pts - startUs
		if stats.FirstUs < 0 || out < stats.FirstUs {
			stats.FirstUs = out
		}
		if out > stats.LastUs {
			stats.LastUs = out
		}
		stats.Samples++
		stats.Bytes += int64(n)

		if !r.Advance() {
			break
		}
	}

	log.Debug("track copied", "source", e.Source, "destination", e.Destination, "kind", e.Kind.String(),
		"samples", stats.Samples, "skipped", stats.Skipped, "bytes", stats.Bytes)

	if stats.Samples == 0 && e.Kind == media.KindVideo {
		return stats, errors.Wrapf(ErrEmptyResult, "video track %d has no samples in [%dus, %dus]", e.Source, startUs, endUs)
	}
	return stats, nil
}
