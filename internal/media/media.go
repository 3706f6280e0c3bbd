package media

import (
	"math"
	"strings"
)

// DefaultBufferSize is the size of the transfer buffer used to copy one sample at a time.
const DefaultBufferSize = 1 << 20

// Kind classifies an elementary stream.
type Kind int

const (
	KindOther Kind = iota
	KindVideo
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "other"
	}
}

// KindFromMIME infers the track kind from a MIME-like tag such as "video/avc".
func KindFromMIME(mime string) Kind {
	switch {
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	case strings.HasPrefix(mime, "audio/"):
		return KindAudio
	default:
		return KindOther
	}
}

// TrackDescriptor is the declared format of one source track.
type TrackDescriptor struct {
	MIME        string // e.g. "video/avc", "audio/mp4a-latm"
	Kind        Kind
	TrackID     uint32 // container track id
	HandlerType string // "vide", "soun", "text", ...
	Codec       string // sample entry fourcc, e.g. "avc1"
	Timescale   uint32 // ticks per second of the media time base
	DurationUs  int64
	Width       uint16
	Height      uint16
	Language    string
	SampleCount int

	// SampleEntry is the opaque codec description (the complete stsd box).
	// Writers copy it verbatim.
	SampleEntry []byte
}

// SampleFlags carries per-sample container flags.
type SampleFlags uint32

const (
	// SampleFlagSync marks a sample decodable without reference to prior samples.
	SampleFlagSync SampleFlags = 1 << iota
)

// IsSync reports whether the sync bit is set.
func (f SampleFlags) IsSync() bool {
	return f&SampleFlagSync != 0
}

// SampleInfo describes one sample handed to a writer.
type SampleInfo struct {
	Size                int
	TimeUs              int64 // decode timestamp
	Flags               SampleFlags
	DurationUs          int64
	CompositionOffsetUs int64 // presentation minus decode time
}

// PresentationUs returns the presentation timestamp of the sample.
func (i SampleInfo) PresentationUs() int64 {
	return i.TimeUs + i.CompositionOffsetUs
}

// SeekMode selects where a seek lands relative to sync samples.
type SeekMode int

const (
	SeekPreviousSync SeekMode = iota
	SeekNextSync
	SeekClosestSync
)

func (m SeekMode) String() string {
	switch m {
	case SeekNextSync:
		return "next-sync"
	case SeekClosestSync:
		return "closest-sync"
	default:
		return "previous-sync"
	}
}

// SecondsToUs converts seconds to microseconds, rounding to the nearest microsecond.
func SecondsToUs(sec float64) int64 {
	return int64(math.Round(sec * 1e6))
}

// UsToSeconds converts microseconds to seconds.
func UsToSeconds(us int64) float64 {
	return float64(us) / 1e6
}

// TicksToUs converts a timestamp in the given timescale to microseconds.
func TicksToUs(ticks int64, timescale uint32) int64 {
	if timescale == 0 {
		return 0
	}
	ts := int64(timescale)
	if ticks < 0 {
		return -((-ticks*1_000_000 + ts/2) / ts)
	}
	return (ticks*1_000_000 + ts/2) / ts
}

// UsToTicks converts microseconds to the given timescale.
func UsToTicks(us int64, timescale uint32) int64 {
	if us < 0 {
		return -UsToTicks(-us, timescale)
	}
	return (us*int64(timescale) + 500_000) / 1_000_000
}
