package container

import (
	"math"

	gomp4 "github.com/abema/go-mp4"
	"github.com/pkg/errors"

	"github.com/diwenne/smashspeed-rn/internal/media"
)

var identityMatrix = [9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000}

// dinf with a single self-contained url entry
var dataInformationBox = []byte{
	0, 0, 0, 36, 'd', 'i', 'n', 'f',
	0, 0, 0, 28, 'd', 'r', 'e', 'f', 0, 0, 0, 0, 0, 0, 0, 1,
	0, 0, 0, 12, 'u', 'r', 'l', ' ', 0, 0, 0, 1,
}

var nullMediaHeaderBox = []byte{0, 0, 0, 12, 'n', 'm', 'h', 'd', 0, 0, 0, 0}

func brand(s string) [4]byte {
	var b [4]byte
	copy(b[:], s)
	return b
}

func (m *Muxer) writeBox(boxType gomp4.BoxType, payload gomp4.IImmutableBox) error {
	if _, err := m.w.StartBox(&gomp4.BoxInfo{Type: boxType}); err != nil {
		return err
	}
	if _, err := gomp4.Marshal(m.w, payload, gomp4.Context{}); err != nil {
		return errors.Wrapf(err, "marshal %s", boxType)
	}
	_, err := m.w.EndBox()
	return err
}

// container opens a box, runs body and closes it.
func (m *Muxer) container(boxType gomp4.BoxType, body func() error) error {
	if _, err := m.w.StartBox(&gomp4.BoxInfo{Type: boxType}); err != nil {
		return err
	}
	if err := body(); err != nil {
		return err
	}
	_, err := m.w.EndBox()
	return err
}

func (m *Muxer) writeFtyp() error {
	return m.writeBox(gomp4.BoxTypeFtyp(), &gomp4.Ftyp{
		MajorBrand:   brand("isom"),
		MinorVersion: 0x200,
		CompatibleBrands: []gomp4.CompatibleBrandElem{
			{CompatibleBrand: brand("isom")},
			{CompatibleBrand: brand("iso2")},
			{CompatibleBrand: brand("mp41")},
		},
	})
}

// trackLayout is the sample table of one destination track in its own timescale.
type trackLayout struct {
	durationTicks int64 // sum of the sample durations
	lastTicks     int64 // latest presentation time of any sample
	stts          []gomp4.SttsEntry
	ctts          []gomp4.CttsEntry
	cttsVersion   uint8
	stss          []uint32
	stsc          []gomp4.StscEntry
	sizes         []uint32
	chunkOffsets  []uint64
}

func layoutTrack(t *muxerTrack) trackLayout {
	var l trackLayout
	samples := t.samples
	n := len(samples)
	if n == 0 {
		return l
	}

	// durations: distance to the next sample, the last keeps its own
	deltas := make([]int64, n)
	for i := 0; i < n-1; i++ {
		deltas[i] = samples[i+1].dts - samples[i].dts
	}
	switch {
	case samples[n-1].duration > 0:
		deltas[n-1] = samples[n-1].duration
	case n > 1:
		deltas[n-1] = deltas[n-2]
	}
	l.durationTicks = samples[n-1].dts + deltas[n-1]
	for _, s := range samples {
		if pts := s.dts + s.cto; pts > l.lastTicks {
			l.lastTicks = pts
		}
	}

	for _, d := range deltas {
		if k := len(l.stts); k > 0 && int64(l.stts[k-1].SampleDelta) == d {
			l.stts[k-1].SampleCount++
			continue
		}
		l.stts = append(l.stts, gomp4.SttsEntry{SampleCount: 1, SampleDelta: uint32(d)})
	}

	hasCTO, negativeCTO, allSync := false, false, true
	for _, s := range samples {
		hasCTO = hasCTO || s.cto != 0
		negativeCTO = negativeCTO || s.cto < 0
		allSync = allSync && s.sync
	}
	if hasCTO {
		if negativeCTO {
			l.cttsVersion = 1
		}
		for _, s := range samples {
			if k := len(l.ctts); k > 0 && cttsOffset(l.ctts[k-1], l.cttsVersion) == s.cto {
				l.ctts[k-1].SampleCount++
				continue
			}
			e := gomp4.CttsEntry{SampleCount: 1}
			if l.cttsVersion == 1 {
				e.SampleOffsetV1 = int32(s.cto)
			} else {
				e.SampleOffsetV0 = uint32(s.cto)
			}
			l.ctts = append(l.ctts, e)
		}
	}
	if !allSync {
		l.stss = []uint32{}
		for i, s := range samples {
			if s.sync {
				l.stss = append(l.stss, uint32(i+1))
			}
		}
	}

	// a chunk is a run of samples stored back to back
	l.sizes = make([]uint32, n)
	perChunk := uint32(0)
	for i, s := range samples {
		l.sizes[i] = s.size
		if i == 0 || s.offset != samples[i-1].offset+int64(samples[i-1].size) {
			if perChunk > 0 {
				l.appendStsc(perChunk)
			}
			l.chunkOffsets = append(l.chunkOffsets, uint64(s.offset))
			perChunk = 0
		}
		perChunk++
	}
	l.appendStsc(perChunk)
	return l
}

// appendStsc records that the chunk just closed holds count samples.
func (l *trackLayout) appendStsc(count uint32) {
	chunk := uint32(len(l.chunkOffsets))
	if k := len(l.stsc); k > 0 && l.stsc[k-1].SamplesPerChunk == count {
		return
	}
	l.stsc = append(l.stsc, gomp4.StscEntry{
		FirstChunk:             chunk,
		SamplesPerChunk:        count,
		SampleDescriptionIndex: 1,
	})
}

func cttsOffset(e gomp4.CttsEntry, version uint8) int64 {
	if version == 1 {
		return int64(e.SampleOffsetV1)
	}
	return int64(e.SampleOffsetV0)
}

// writeMoov writes the movie header and every track. The movie and track
// headers carry the last presentation timestamp; mdhd keeps the summed
// sample durations.
func (m *Muxer) writeMoov() error {
	layouts := make([]trackLayout, len(m.tracks))
	var movieUs int64
	for i, t := range m.tracks {
		layouts[i] = layoutTrack(t)
		if us := media.TicksToUs(layouts[i].lastTicks, t.desc.Timescale); us > movieUs {
			movieUs = us
		}
	}
	m.durationUs = movieUs
	movieTicks := media.UsToTicks(movieUs, movieTimescale)

	return m.container(gomp4.BoxTypeMoov(), func() error {
		mvhd := &gomp4.Mvhd{
			Timescale:   movieTimescale,
			Rate:        0x00010000,
			Volume:      0x0100,
			Matrix:      identityMatrix,
			NextTrackID: uint32(len(m.tracks) + 1),
		}
		if movieTicks > math.MaxUint32 {
			mvhd.SetVersion(1)
			mvhd.DurationV1 = uint64(movieTicks)
		} else {
			mvhd.DurationV0 = uint32(movieTicks)
		}
		if err := m.writeBox(gomp4.BoxTypeMvhd(), mvhd); err != nil {
			return err
		}
		for i, t := range m.tracks {
			if err := m.writeTrak(uint32(i+1), t, &layouts[i]); err != nil {
				return errors.Wrapf(err, "track %d", i)
			}
		}
		return nil
	})
}

func (m *Muxer) writeTrak(trackID uint32, t *muxerTrack, l *trackLayout) error {
	desc := t.desc
	trackUs := media.TicksToUs(l.lastTicks, desc.Timescale)
	movieTicks := media.UsToTicks(trackUs, movieTimescale)

	return m.container(gomp4.BoxTypeTrak(), func() error {
		tkhd := &gomp4.Tkhd{
			FullBox: gomp4.FullBox{Flags: [3]byte{0, 0, 3}},
			TrackID: trackID,
			Matrix:  identityMatrix,
		}
		if movieTicks > math.MaxUint32 {
			tkhd.SetVersion(1)
			tkhd.DurationV1 = uint64(movieTicks)
		} else {
			tkhd.DurationV0 = uint32(movieTicks)
		}
		switch desc.Kind {
		case media.KindVideo:
			tkhd.Width = uint32(desc.Width) << 16
			tkhd.Height = uint32(desc.Height) << 16
		case media.KindAudio:
			tkhd.Volume = 0x0100
		}
		if err := m.writeBox(gomp4.BoxTypeTkhd(), tkhd); err != nil {
			return err
		}
		return m.container(gomp4.BoxTypeMdia(), func() error {
			return m.writeMdia(t, l)
		})
	})
}

func (m *Muxer) writeMdia(t *muxerTrack, l *trackLayout) error {
	desc := t.desc
	mdhd := &gomp4.Mdhd{
		Timescale: desc.Timescale,
		Language:  encodeLanguage(desc.Language),
	}
	if l.durationTicks > math.MaxUint32 {
		mdhd.SetVersion(1)
		mdhd.DurationV1 = uint64(l.durationTicks)
	} else {
		mdhd.DurationV0 = uint32(l.durationTicks)
	}
	if err := m.writeBox(gomp4.BoxTypeMdhd(), mdhd); err != nil {
		return err
	}

	handler := desc.HandlerType
	if len(handler) != 4 {
		handler = handlerForKind(desc.Kind)
	}
	if err := m.writeBox(gomp4.BoxTypeHdlr(), &gomp4.Hdlr{
		HandlerType: brand(handler),
		Name:        handlerName(desc.Kind),
	}); err != nil {
		return err
	}

	return m.container(gomp4.BoxTypeMinf(), func() error {
		var err error
		switch handler {
		case "vide":
			err = m.writeBox(gomp4.BoxTypeVmhd(), &gomp4.Vmhd{FullBox: gomp4.FullBox{Flags: [3]byte{0, 0, 1}}})
		case "soun":
			err = m.writeBox(gomp4.BoxTypeSmhd(), &gomp4.Smhd{})
		default:
			_, err = m.w.Write(nullMediaHeaderBox)
		}
		if err != nil {
			return err
		}
		if _, err := m.w.Write(dataInformationBox); err != nil {
			return err
		}
		return m.container(gomp4.BoxTypeStbl(), func() error {
			return m.writeStbl(t, l)
		})
	})
}

func (m *Muxer) writeStbl(t *muxerTrack, l *trackLayout) error {
	// the source sample description is carried over byte for byte
	if _, err := m.w.Write(t.desc.SampleEntry); err != nil {
		return errors.Wrap(err, "write stsd")
	}

	if err := m.writeBox(gomp4.BoxTypeStts(), &gomp4.Stts{
		EntryCount: uint32(len(l.stts)),
		Entries:    l.stts,
	}); err != nil {
		return err
	}
	if l.stss != nil {
		if err := m.writeBox(gomp4.BoxTypeStss(), &gomp4.Stss{
			EntryCount:   uint32(len(l.stss)),
			SampleNumber: l.stss,
		}); err != nil {
			return err
		}
	}
	if l.ctts != nil {
		ctts := &gomp4.Ctts{
			EntryCount: uint32(len(l.ctts)),
			Entries:    l.ctts,
		}
		ctts.SetVersion(l.cttsVersion)
		if err := m.writeBox(gomp4.BoxTypeCtts(), ctts); err != nil {
			return err
		}
	}
	if err := m.writeBox(gomp4.BoxTypeStsc(), &gomp4.Stsc{
		EntryCount: uint32(len(l.stsc)),
		Entries:    l.stsc,
	}); err != nil {
		return err
	}

	stsz := &gomp4.Stsz{SampleCount: uint32(len(l.sizes))}
	if uniform(l.sizes) {
		stsz.SampleSize = l.sizes[0]
	} else {
		stsz.EntrySize = l.sizes
	}
	if err := m.writeBox(gomp4.BoxTypeStsz(), stsz); err != nil {
		return err
	}

	large := false
	for _, off := range l.chunkOffsets {
		large = large || off > math.MaxUint32
	}
	if large {
		return m.writeBox(gomp4.BoxTypeCo64(), &gomp4.Co64{
			EntryCount:  uint32(len(l.chunkOffsets)),
			ChunkOffset: l.chunkOffsets,
		})
	}
	offsets := make([]uint32, len(l.chunkOffsets))
	for i, off := range l.chunkOffsets {
		offsets[i] = uint32(off)
	}
	return m.writeBox(gomp4.BoxTypeStco(), &gomp4.Stco{
		EntryCount:  uint32(len(offsets)),
		ChunkOffset: offsets,
	})
}

// uniform reports whether sizes is non-empty and holds a single non-zero value.
func uniform(sizes []uint32) bool {
	if len(sizes) == 0 || sizes[0] == 0 {
		return false
	}
	for _, s := range sizes[1:] {
		if s != sizes[0] {
			return false
		}
	}
	return true
}

func encodeLanguage(lang string) [3]byte {
	var out [3]byte
	if len(lang) != 3 {
		lang = "und"
	}
	for i := 0; i < 3; i++ {
		c := lang[i]
		if c < 0x60 || c > 0x7f {
			return encodeLanguage("und")
		}
		out[i] = c - 0x60
	}
	return out
}

func handlerForKind(k media.Kind) string {
	switch k {
	case media.KindVideo:
		return "vide"
	case media.KindAudio:
		return "soun"
	default:
		return "meta"
	}
}

func handlerName(k media.Kind) string {
	switch k {
	case media.KindVideo:
		return "VideoHandler"
	case media.KindAudio:
		return "SoundHandler"
	default:
		return "DataHandler"
	}
}
