package container

import (
	"bytes"
	"fmt"
	"os"

	gomp4 "github.com/abema/go-mp4"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"
	"github.com/pkg/errors"

	"github.com/diwenne/smashspeed-rn/internal/media"
)

// MediaInfo summarizes a container file.
type MediaInfo struct {
	Path       string      `json:"path"`
	Size       int64       `json:"size"`
	DurationUs int64       `json:"durationUs"`
	Tracks     []TrackInfo `json:"tracks"`
}

// Duration returns the container duration in seconds.
func (mi MediaInfo) Duration() float64 {
	return media.UsToSeconds(mi.DurationUs)
}

// HasVideo reports whether any readable track is video.
func (mi MediaInfo) HasVideo() bool {
	for _, t := range mi.Tracks {
		if t.Kind == media.KindVideo.String() {
			return true
		}
	}
	return false
}

// TrackInfo describes one track of a container file.
type TrackInfo struct {
	Index       int     `json:"index"`
	MIME        string  `json:"mime"`
	Kind        string  `json:"kind"`
	Codec       string  `json:"codec"`
	Timescale   uint32  `json:"timescale"`
	DurationUs  int64   `json:"durationUs"`
	SampleCount int     `json:"sampleCount"`
	SyncCount   int     `json:"syncCount"`
	Language    string  `json:"language,omitempty"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	FPS         float64 `json:"fps,omitempty"`
	SampleRate  int     `json:"sampleRate,omitempty"`
	Channels    int     `json:"channels,omitempty"`
	Error       string  `json:"error,omitempty"`

	// Params holds the decoder configuration when the codec is understood.
	Params mp4.Codec `json:"-"`
}

// Inspect opens path and describes its tracks.
func Inspect(path string) (*MediaInfo, error) {
	ex, err := OpenExtractor(path)
	if err != nil {
		return nil, err
	}
	defer ex.Close()

	info := &MediaInfo{Path: path, DurationUs: ex.DurationUs()}
	if st, err := os.Stat(path); err == nil {
		info.Size = st.Size()
	}

	for i, t := range ex.tracks {
		ti := TrackInfo{Index: i}
		if t.err != nil {
			ti.Kind = media.KindOther.String()
			ti.Error = t.err.Error()
			info.Tracks = append(info.Tracks, ti)
			continue
		}
		d := t.desc
		ti.MIME = d.MIME
		ti.Kind = d.Kind.String()
		ti.Codec = d.Codec
		ti.Timescale = d.Timescale
		ti.DurationUs = d.DurationUs
		ti.SampleCount = d.SampleCount
		ti.Language = d.Language
		ti.Width = int(d.Width)
		ti.Height = int(d.Height)
		for _, s := range t.samples {
			if s.sync {
				ti.SyncCount++
			}
		}
		if err := describeCodec(d, &ti); err != nil {
			ti.Error = err.Error()
		}
		info.Tracks = append(info.Tracks, ti)
	}
	return info, nil
}

// describeCodec fills codec specific fields from the raw sample description.
func describeCodec(d media.TrackDescriptor, ti *TrackInfo) error {
	r := bytes.NewReader(d.SampleEntry)
	entry := gomp4.StrToBoxType(d.Codec)
	under := func(child gomp4.BoxType) gomp4.BoxPath {
		return gomp4.BoxPath{gomp4.BoxTypeStsd(), entry, child}
	}

	switch d.Codec {
	case "avc1", "avc3":
		boxes, err := gomp4.ExtractBoxWithPayload(r, nil, under(gomp4.BoxTypeAvcC()))
		if err != nil || len(boxes) == 0 {
			return errors.Errorf("%s: no avcC", d.Codec)
		}
		avcc := boxes[0].Payload.(*gomp4.AVCDecoderConfiguration)
		sps, pps := firstParameterSet(avcc.SequenceParameterSets), firstParameterSet(avcc.PictureParameterSets)
		if sps == nil {
			return errors.New("avcC without SPS")
		}
		ti.Params = &mp4.CodecH264{SPS: sps, PPS: pps}
		var s h264.SPS
		if err := s.Unmarshal(sps); err != nil {
			return errors.Wrap(err, "parse H.264 SPS")
		}
		ti.Width, ti.Height, ti.FPS = s.Width(), s.Height(), s.FPS()

	case "hvc1", "hev1":
		boxes, err := gomp4.ExtractBoxWithPayload(r, nil, under(gomp4.BoxTypeHvcC()))
		if err != nil || len(boxes) == 0 {
			return errors.Errorf("%s: no hvcC", d.Codec)
		}
		hvcc := boxes[0].Payload.(*gomp4.HvcC)
		var vps, sps, pps []byte
		for _, arr := range hvcc.NaluArrays {
			if len(arr.Nalus) == 0 {
				continue
			}
			switch h265.NALUType(arr.NaluType) {
			case h265.NALUType_VPS_NUT:
				vps = arr.Nalus[0].NALUnit
			case h265.NALUType_SPS_NUT:
				sps = arr.Nalus[0].NALUnit
			case h265.NALUType_PPS_NUT:
				pps = arr.Nalus[0].NALUnit
			}
		}
		if sps == nil {
			return errors.New("hvcC without SPS")
		}
		ti.Params = &mp4.CodecH265{VPS: vps, SPS: sps, PPS: pps}
		var s h265.SPS
		if err := s.Unmarshal(sps); err != nil {
			return errors.Wrap(err, "parse H.265 SPS")
		}
		ti.Width, ti.Height, ti.FPS = s.Width(), s.Height(), s.FPS()

	case "mp4a":
		boxes, err := gomp4.ExtractBoxWithPayload(r, nil, gomp4.BoxPath{gomp4.BoxTypeStsd(), entry})
		if err == nil && len(boxes) > 0 {
			if ase, ok := boxes[0].Payload.(*gomp4.AudioSampleEntry); ok {
				ti.Channels = int(ase.ChannelCount)
				ti.SampleRate = int(ase.SampleRate >> 16)
			}
		}
		r.Reset(d.SampleEntry)
		boxes, err = gomp4.ExtractBoxWithPayload(r, nil, under(gomp4.BoxTypeEsds()))
		if err != nil || len(boxes) == 0 {
			return errors.New("mp4a: no esds")
		}
		esds := boxes[0].Payload.(*gomp4.Esds)
		for _, desc := range esds.Descriptors {
			if desc.Tag != gomp4.DecSpecificInfoTag {
				continue
			}
			var asc mpeg4audio.AudioSpecificConfig
			if err := asc.Unmarshal(desc.Data); err != nil {
				return errors.Wrap(err, "parse AudioSpecificConfig")
			}
			ti.Params = &mp4.CodecMPEG4Audio{Config: asc}
			ti.SampleRate, ti.Channels = asc.SampleRate, asc.ChannelCount
			return nil
		}
		return errors.New("esds without decoder specific info")
	}
	return nil
}

func firstParameterSet(sets []gomp4.AVCParameterSet) []byte {
	for _, ps := range sets {
		if len(ps.NALUnit) > 0 {
			return ps.NALUnit
		}
	}
	return nil
}

// String renders a one line summary of the track.
func (ti TrackInfo) String() string {
	switch {
	case ti.Error != "" && ti.MIME == "":
		return fmt.Sprintf("#%d unreadable: %s", ti.Index, ti.Error)
	case ti.Kind == media.KindVideo.String():
		return fmt.Sprintf("#%d %s %dx%d %.2ffps %d samples (%d sync) %.3fs",
			ti.Index, ti.MIME, ti.Width, ti.Height, ti.FPS, ti.SampleCount, ti.SyncCount, media.UsToSeconds(ti.DurationUs))
	case ti.Kind == media.KindAudio.String():
		return fmt.Sprintf("#%d %s %dHz %dch %d samples %.3fs",
			ti.Index, ti.MIME, ti.SampleRate, ti.Channels, ti.SampleCount, media.UsToSeconds(ti.DurationUs))
	default:
		return fmt.Sprintf("#%d %s %d samples %.3fs", ti.Index, ti.MIME, ti.SampleCount, media.UsToSeconds(ti.DurationUs))
	}
}
