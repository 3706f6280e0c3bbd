// Package containertest builds small synthetic MP4 files for tests.
package containertest

import (
	"bytes"
	"encoding/binary"
	"os"
	"sort"

	gomp4 "github.com/abema/go-mp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4/seekablebuffer"
	"github.com/pkg/errors"

	"github.com/diwenne/smashspeed-rn/internal/container"
	"github.com/diwenne/smashspeed-rn/internal/media"
)

// SPS and PPS are the parameter sets placed in the avcC of video tracks.
var (
	SPS = []byte{0x67, 0x42, 0xc0, 0x1e, 0xd9, 0x00, 0xa0, 0x47, 0xfe, 0xc8}
	PPS = []byte{0x68, 0xce, 0x3c, 0x80}
)

// AudioConfig is AAC-LC, 44100 Hz, stereo.
var AudioConfig = []byte{0x12, 0x10}

// Track describes one synthetic track.
type Track struct {
	Kind      media.Kind
	Timescale uint32
	Delta     uint32 // ticks between samples
	Count     int
	SyncEvery int // 0 marks every sample sync
	Size      int
	// CTO is a constant composition offset in ticks applied to every sample.
	CTO uint32
}

// Video returns a 30 fps track in a 30000 timescale with a keyframe every 30 frames.
func Video(count int) Track {
	return Track{Kind: media.KindVideo, Timescale: 30000, Delta: 1000, Count: count, SyncEvery: 30, Size: 64}
}

// Audio returns a track with 20 ms samples in a 1000 timescale, all sync.
func Audio(count int) Track {
	return Track{Kind: media.KindAudio, Timescale: 1000, Delta: 20, Count: count, Size: 32}
}

// Data returns a timed metadata track with 100 ms samples.
func Data(count int) Track {
	return Track{Kind: media.KindOther, Timescale: 1000, Delta: 100, Count: count, Size: 8}
}

// TimeUs returns the decode time of sample i in microseconds.
func (t Track) TimeUs(i int) int64 {
	return media.TicksToUs(int64(i)*int64(t.Delta), t.Timescale)
}

// IsSync reports whether sample i is a sync sample.
func (t Track) IsSync(i int) bool {
	return t.SyncEvery == 0 || i%t.SyncEvery == 0
}

// Payload returns the bytes of sample i of track index track. The first four
// bytes hold the sample index and the fifth the track index.
func Payload(track, i, size int) []byte {
	if size < 5 {
		size = 5
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf, uint32(i))
	buf[4] = byte(track)
	for j := 5; j < size; j++ {
		buf[j] = byte(i + j)
	}
	return buf
}

// PayloadIndex decodes the sample index written by Payload.
func PayloadIndex(buf []byte) (track, i int) {
	return int(buf[4]), int(binary.BigEndian.Uint32(buf))
}

// Descriptor returns a track descriptor carrying a complete sample description.
func Descriptor(t Track) (media.TrackDescriptor, error) {
	d := media.TrackDescriptor{
		Kind:      t.Kind,
		Timescale: t.Timescale,
		Language:  "und",
	}
	var err error
	switch t.Kind {
	case media.KindVideo:
		d.MIME, d.HandlerType, d.Codec = "video/avc", "vide", "avc1"
		d.Width, d.Height = 320, 240
		d.SampleEntry, err = avcSampleDescription(320, 240)
	case media.KindAudio:
		d.MIME, d.HandlerType, d.Codec = "audio/mp4a-latm", "soun", "mp4a"
		d.SampleEntry, err = aacSampleDescription()
	default:
		d.MIME, d.HandlerType, d.Codec = "application/x-meta", "meta", "mett"
		d.SampleEntry = metaSampleDescription()
	}
	return d, err
}

type pending struct {
	track, index int
	timeUs       int64
}

// Write creates an MP4 at path holding tracks, with samples interleaved by time.
func Write(path string, tracks ...Track) error {
	mux := container.NewMuxer(path)
	defer mux.Close()

	for _, t := range tracks {
		d, err := Descriptor(t)
		if err != nil {
			return err
		}
		if _, err := mux.AddTrack(d); err != nil {
			return err
		}
	}
	if err := mux.Start(); err != nil {
		return err
	}

	var order []pending
	for ti, t := range tracks {
		for i := 0; i < t.Count; i++ {
			order = append(order, pending{track: ti, index: i, timeUs: t.TimeUs(i)})
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return order[a].timeUs < order[b].timeUs })

	for _, p := range order {
		t := tracks[p.track]
		buf := Payload(p.track, p.index, t.Size)
		info := media.SampleInfo{
			Size:                len(buf),
			TimeUs:              p.timeUs,
			DurationUs:          media.TicksToUs(int64(t.Delta), t.Timescale),
			CompositionOffsetUs: media.TicksToUs(int64(t.CTO), t.Timescale),
		}
		if t.IsSync(p.index) {
			info.Flags = media.SampleFlagSync
		}
		if err := mux.WriteSampleData(p.track, buf, info); err != nil {
			return errors.Wrapf(err, "track %d sample %d", p.track, p.index)
		}
	}
	return mux.Stop()
}

// PatchSampleCount overwrites the sample count of the first stsz box in the
// file at path, leaving every other table as written.
func PatchSampleCount(path string, count uint32) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// type (4) + version and flags (4) + sample_size (4)
	i := bytes.Index(data, []byte("stsz"))
	if i < 0 || i+16 > len(data) {
		return errors.Errorf("%s: no stsz box", path)
	}
	binary.BigEndian.PutUint32(data[i+12:], count)
	return os.WriteFile(path, data, 0o644)
}

type boxWriter struct {
	w   *gomp4.Writer
	err error
}

func (bw *boxWriter) start(bt gomp4.BoxType) {
	if bw.err == nil {
		_, bw.err = bw.w.StartBox(&gomp4.BoxInfo{Type: bt})
	}
}

func (bw *boxWriter) end() {
	if bw.err == nil {
		_, bw.err = bw.w.EndBox()
	}
}

func (bw *boxWriter) marshal(b gomp4.IImmutableBox) {
	if bw.err == nil {
		_, bw.err = gomp4.Marshal(bw.w, b, gomp4.Context{})
	}
}

func (bw *boxWriter) raw(p []byte) {
	if bw.err == nil {
		_, bw.err = bw.w.Write(p)
	}
}

func sampleDescription(entry gomp4.BoxType, body func(bw *boxWriter)) ([]byte, error) {
	var buf seekablebuffer.Buffer
	bw := &boxWriter{w: gomp4.NewWriter(&buf)}
	bw.start(gomp4.BoxTypeStsd())
	bw.marshal(&gomp4.Stsd{EntryCount: 1})
	bw.start(entry)
	body(bw)
	bw.end()
	bw.end()
	if bw.err != nil {
		return nil, errors.Wrap(bw.err, "build sample description")
	}
	return buf.Bytes(), nil
}

func avcSampleDescription(width, height uint16) ([]byte, error) {
	return sampleDescription(gomp4.BoxTypeAvc1(), func(bw *boxWriter) {
		bw.marshal(&gomp4.VisualSampleEntry{
			SampleEntry: gomp4.SampleEntry{
				AnyTypeBox:         gomp4.AnyTypeBox{Type: gomp4.BoxTypeAvc1()},
				DataReferenceIndex: 1,
			},
			Width:           width,
			Height:          height,
			Horizresolution: 0x00480000,
			Vertresolution:  0x00480000,
			FrameCount:      1,
			Depth:           0x0018,
			PreDefined3:     -1,
		})
		bw.start(gomp4.BoxTypeAvcC())
		bw.marshal(&gomp4.AVCDecoderConfiguration{
			AnyTypeBox:                 gomp4.AnyTypeBox{Type: gomp4.BoxTypeAvcC()},
			ConfigurationVersion:       1,
			Profile:                    SPS[1],
			ProfileCompatibility:       SPS[2],
			Level:                      SPS[3],
			Reserved:                   0x3f,
			LengthSizeMinusOne:         3,
			Reserved2:                  0x7,
			NumOfSequenceParameterSets: 1,
			SequenceParameterSets:      []gomp4.AVCParameterSet{{Length: uint16(len(SPS)), NALUnit: SPS}},
			NumOfPictureParameterSets:  1,
			PictureParameterSets:       []gomp4.AVCParameterSet{{Length: uint16(len(PPS)), NALUnit: PPS}},
		})
		bw.end()
	})
}

func aacSampleDescription() ([]byte, error) {
	return sampleDescription(gomp4.BoxTypeMp4a(), func(bw *boxWriter) {
		bw.marshal(&gomp4.AudioSampleEntry{
			SampleEntry: gomp4.SampleEntry{
				AnyTypeBox:         gomp4.AnyTypeBox{Type: gomp4.BoxTypeMp4a()},
				DataReferenceIndex: 1,
			},
			ChannelCount: 2,
			SampleSize:   16,
			SampleRate:   44100 << 16,
		})
		bw.raw(esdsBox(AudioConfig))
	})
}

// esdsBox encodes an ES descriptor for AAC with single byte descriptor lengths.
func esdsBox(asc []byte) []byte {
	decSpecific := append([]byte{0x05, byte(len(asc))}, asc...)
	slConfig := []byte{0x06, 0x01, 0x02}
	decConfig := []byte{0x04, byte(13 + len(decSpecific)),
		0x40,             // MPEG-4 audio
		0x15,             // audio stream
		0x00, 0x00, 0x00, // buffer size
		0x00, 0x00, 0x00, 0x00, // max bitrate
		0x00, 0x00, 0x00, 0x00, // average bitrate
	}
	decConfig = append(decConfig, decSpecific...)
	esBody := append([]byte{0x00, 0x01, 0x00}, decConfig...)
	esBody = append(esBody, slConfig...)
	es := append([]byte{0x03, byte(len(esBody))}, esBody...)

	size := 12 + len(es)
	box := []byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size), 'e', 's', 'd', 's', 0, 0, 0, 0}
	return append(box, es...)
}

func metaSampleDescription() []byte {
	entry := []byte{0, 0, 0, 0, 'm', 'e', 't', 't', 0, 0, 0, 0, 0, 0, 0, 1}
	entry = append(entry, 0)
	entry = append(entry, "text/plain"...)
	entry = append(entry, 0)
	binary.BigEndian.PutUint32(entry, uint32(len(entry)))

	stsd := []byte{0, 0, 0, 0, 's', 't', 's', 'd', 0, 0, 0, 0, 0, 0, 0, 1}
	stsd = append(stsd, entry...)
	binary.BigEndian.PutUint32(stsd, uint32(len(stsd)))
	return stsd
}
