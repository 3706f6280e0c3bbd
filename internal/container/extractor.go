package container

import (
	"io"
	"os"
	"sort"

	gomp4 "github.com/abema/go-mp4"
	"github.com/pkg/errors"

	"github.com/diwenne/smashspeed-rn/internal/media"
)

// sampleEntry is one row of a track's expanded sample table.
type sampleEntry struct {
	offset   int64  // absolute file offset
	size     uint32 // payload size in bytes
	dts      int64  // decode time in track ticks
	duration uint32 // in track ticks
	cto      int64  // composition offset in track ticks
	sync     bool
}

type extractorTrack struct {
	desc    media.TrackDescriptor
	err     error
	samples []sampleEntry
	cursor  int
}

func (s *sampleEntry) pts() int64 {
	return s.dts + s.cto
}

func (t *extractorTrack) current() (*sampleEntry, bool) {
	if t.cursor < 0 || t.cursor >= len(t.samples) {
		return nil, false
	}
	return &t.samples[t.cursor], true
}

// Extractor demultiplexes an MP4 file into per-track sample cursors.
//
// Every track of the source is parsed up front into a sample table. Reading
// only touches the tracks selected with SelectTrack; with more than one
// selected track samples are returned in file order.
type Extractor struct {
	path       string
	file       *os.File
	tracks     []*extractorTrack
	selected   []bool
	durationUs int64
}

// OpenExtractor opens the container at path and parses its track tables.
func OpenExtractor(path string) (*Extractor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(media.ErrSourceOpen, "%s: %v", path, err)
	}

	e := &Extractor{path: path, file: f}
	if err := e.parse(); err != nil {
		f.Close()
		return nil, err
	}
	return e, nil
}

func (e *Extractor) parse() error {
	moovs, err := gomp4.ExtractBox(e.file, nil, gomp4.BoxPath{gomp4.BoxTypeMoov()})
	if err != nil {
		return errors.Wrapf(media.ErrSourceOpen, "%s: %v", e.path, err)
	}
	if len(moovs) == 0 {
		return errors.Wrapf(media.ErrSourceOpen, "%s: no movie box", e.path)
	}

	traks, err := gomp4.ExtractBox(e.file, moovs[0], gomp4.BoxPath{gomp4.BoxTypeTrak()})
	if err != nil {
		return errors.Wrapf(media.ErrSourceOpen, "%s: %v", e.path, err)
	}
	fi, err := e.file.Stat()
	if err != nil {
		return errors.Wrapf(media.ErrSourceOpen, "%s: %v", e.path, err)
	}

	for i, trak := range traks {
		t := &extractorTrack{}
		if err := parseTrack(e.file, fi.Size(), trak, t); err != nil {
			t.err = errors.Wrapf(media.ErrSourceFormat, "track %d: %v", i, err)
		}
		if end := t.endUs(); end > e.durationUs {
			e.durationUs = end
		}
		e.tracks = append(e.tracks, t)
	}
	e.selected = make([]bool, len(e.tracks))
	return nil
}

func (t *extractorTrack) endUs() int64 {
	if t.err != nil || len(t.samples) == 0 {
		return 0
	}
	last := t.samples[len(t.samples)-1]
	return media.TicksToUs(last.dts+int64(last.duration), t.desc.Timescale)
}

func parseTrack(r io.ReadSeeker, fileSize int64, trak *gomp4.BoxInfo, t *extractorTrack) error {
	stbl := []gomp4.BoxType{gomp4.BoxTypeMdia(), gomp4.BoxTypeMinf(), gomp4.BoxTypeStbl()}
	under := func(bt gomp4.BoxType) gomp4.BoxPath {
		p := append(gomp4.BoxPath{}, stbl...)
		return append(p, bt)
	}

	boxes, err := gomp4.ExtractBoxesWithPayload(r, trak, []gomp4.BoxPath{
		{gomp4.BoxTypeTkhd()},
		{gomp4.BoxTypeMdia(), gomp4.BoxTypeMdhd()},
		{gomp4.BoxTypeMdia(), gomp4.BoxTypeHdlr()},
		under(gomp4.BoxTypeStts()),
		under(gomp4.BoxTypeCtts()),
		under(gomp4.BoxTypeStss()),
		under(gomp4.BoxTypeStsc()),
		under(gomp4.BoxTypeStsz()),
		under(gomp4.BoxTypeStco()),
		under(gomp4.BoxTypeCo64()),
	})
	if err != nil {
		return err
	}

	var (
		tkhd *gomp4.Tkhd
		mdhd *gomp4.Mdhd
		hdlr *gomp4.Hdlr
		tbl  sampleTables
	)
	for _, b := range boxes {
		switch p := b.Payload.(type) {
		case *gomp4.Tkhd:
			tkhd = p
		case *gomp4.Mdhd:
			mdhd = p
		case *gomp4.Hdlr:
			hdlr = p
		case *gomp4.Stts:
			tbl.stts = p
		case *gomp4.Ctts:
			tbl.ctts = p
		case *gomp4.Stss:
			tbl.stss = p
		case *gomp4.Stsc:
			tbl.stsc = p
		case *gomp4.Stsz:
			tbl.stsz = p
		case *gomp4.Stco:
			tbl.stco = p
		case *gomp4.Co64:
			tbl.co64 = p
		}
	}
	switch {
	case tkhd == nil:
		return errors.New("missing tkhd")
	case mdhd == nil:
		return errors.New("missing mdhd")
	case hdlr == nil:
		return errors.New("missing hdlr")
	case mdhd.Timescale == 0:
		return errors.New("zero media timescale")
	}

	stsds, err := gomp4.ExtractBox(r, trak, under(gomp4.BoxTypeStsd()))
	if err != nil {
		return err
	}
	if len(stsds) == 0 {
		return errors.New("missing stsd")
	}
	entry, err := readRawBox(r, stsds[0])
	if err != nil {
		return errors.Wrap(err, "read stsd")
	}
	codec, err := sampleEntryType(entry, stsds[0].HeaderSize)
	if err != nil {
		return err
	}

	handler := string(hdlr.HandlerType[:])
	mime := mimeFor(handler, codec)
	t.desc = media.TrackDescriptor{
		MIME:        mime,
		Kind:        media.KindFromMIME(mime),
		TrackID:     tkhd.TrackID,
		HandlerType: handler,
		Codec:       codec,
		Timescale:   mdhd.Timescale,
		Width:       uint16(tkhd.Width >> 16),
		Height:      uint16(tkhd.Height >> 16),
		Language:    decodeLanguage(mdhd.Language),
		SampleEntry: entry,
	}

	samples, err := tbl.expand(fileSize)
	if err != nil {
		return err
	}
	t.samples = samples
	t.desc.SampleCount = len(samples)
	t.desc.DurationUs = t.endUs()
	return nil
}

// readRawBox returns the complete bytes (header included) of the box described by bi.
func readRawBox(r io.ReadSeeker, bi *gomp4.BoxInfo) ([]byte, error) {
	if _, err := r.Seek(int64(bi.Offset), io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, bi.Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// sampleEntryType returns the fourcc of the first entry of a raw stsd box.
func sampleEntryType(stsd []byte, headerSize uint64) (string, error) {
	// full box header (4) + entry_count (4) + entry size (4) + entry type (4)
	at := int(headerSize) + 12
	if len(stsd) < at+4 {
		return "", errors.New("empty sample description")
	}
	return string(stsd[at : at+4]), nil
}

func decodeLanguage(lang [3]byte) string {
	if lang == [3]byte{} {
		return "und"
	}
	out := make([]byte, 3)
	for i, c := range lang {
		out[i] = c + 0x60
	}
	return string(out)
}

// TrackCount returns the number of tracks declared by the source.
func (e *Extractor) TrackCount() int {
	return len(e.tracks)
}

// TrackFormat returns the descriptor of track i.
func (e *Extractor) TrackFormat(i int) (media.TrackDescriptor, error) {
	if i < 0 || i >= len(e.tracks) {
		return media.TrackDescriptor{}, errors.Wrapf(media.ErrSourceFormat, "track index %d out of range", i)
	}
	t := e.tracks[i]
	if t.err != nil {
		return media.TrackDescriptor{}, t.err
	}
	return t.desc, nil
}

// DurationUs returns the end of the longest track in microseconds.
func (e *Extractor) DurationUs() int64 {
	return e.durationUs
}

// SelectTrack adds track i to the set of tracks read by ReadSampleData.
func (e *Extractor) SelectTrack(i int) error {
	if _, err := e.TrackFormat(i); err != nil {
		return err
	}
	e.selected[i] = true
	e.tracks[i].cursor = 0
	return nil
}

// UnselectTrack removes track i from the read set.
func (e *Extractor) UnselectTrack(i int) error {
	if i < 0 || i >= len(e.tracks) {
		return errors.Wrapf(media.ErrSourceFormat, "track index %d out of range", i)
	}
	e.selected[i] = false
	return nil
}

// SeekTo positions every selected track at the sync sample chosen by mode
// relative to the presentation time timeUs.
func (e *Extractor) SeekTo(timeUs int64, mode media.SeekMode) error {
	for i, sel := range e.selected {
		if !sel {
			continue
		}
		t := e.tracks[i]
		t.cursor = seekIndex(t.samples, media.UsToTicks(timeUs, t.desc.Timescale), mode)
	}
	return nil
}

// seekIndex finds the sample index a seek to target (in ticks) lands on.
func seekIndex(samples []sampleEntry, target int64, mode media.SeekMode) int {
	if len(samples) == 0 {
		return 0
	}
	// first sample with dts > target
	after := sort.Search(len(samples), func(i int) bool { return samples[i].dts > target })

	// a sync sample presented after target is not a previous sync even when
	// it decodes before it
	prev := -1
	for i := after - 1; i >= 0; i-- {
		if samples[i].sync && samples[i].pts() <= target {
			prev = i
			break
		}
	}
	next := len(samples)
	start := after
	if after > 0 && samples[after-1].dts == target {
		start = after - 1
	}
	for i := start; i < len(samples); i++ {
		if samples[i].sync {
			next = i
			break
		}
	}

	switch mode {
	case media.SeekNextSync:
		return next
	case media.SeekClosestSync:
		if prev < 0 {
			return next
		}
		if next == len(samples) || target-samples[prev].pts() <= samples[next].pts()-target {
			return prev
		}
		return next
	default:
		if prev < 0 {
			return 0
		}
		return prev
	}
}

// active returns the selected track whose current sample comes first in the file.
func (e *Extractor) active() (int, *sampleEntry) {
	best, bestIdx := (*sampleEntry)(nil), -1
	for i, sel := range e.selected {
		if !sel {
			continue
		}
		s, ok := e.tracks[i].current()
		if !ok {
			continue
		}
		if best == nil || s.offset < best.offset {
			best, bestIdx = s, i
		}
	}
	return bestIdx, best
}

// ReadSampleData copies the current sample into buf and returns its size.
// It returns -1 with a nil error once every selected track is exhausted.
func (e *Extractor) ReadSampleData(buf []byte) (int, error) {
	idx, s := e.active()
	if s == nil {
		return -1, nil
	}
	if int(s.size) > len(buf) {
		return 0, errors.Wrapf(media.ErrSampleTooLarge, "track %d sample %d: %d bytes, buffer holds %d",
			idx, e.tracks[idx].cursor, s.size, len(buf))
	}
	n, err := e.file.ReadAt(buf[:s.size], s.offset)
	if err != nil && !(err == io.EOF && n == int(s.size)) {
		return 0, errors.Wrapf(media.ErrSourceFormat, "track %d: truncated sample at offset %d: %v", idx, s.offset, err)
	}
	return n, nil
}

// SampleTrackIndex returns the track of the current sample, or -1.
func (e *Extractor) SampleTrackIndex() int {
	idx, _ := e.active()
	return idx
}

// SampleTime returns the decode timestamp of the current sample in
// microseconds, or -1 when no sample is available.
func (e *Extractor) SampleTime() int64 {
	idx, s := e.active()
	if s == nil {
		return -1
	}
	return media.TicksToUs(s.dts, e.tracks[idx].desc.Timescale)
}

// SampleFlags returns the flags of the current sample.
func (e *Extractor) SampleFlags() media.SampleFlags {
	_, s := e.active()
	if s == nil || !s.sync {
		return 0
	}
	return media.SampleFlagSync
}

// SampleInfo returns size, timing and flags of the current sample.
func (e *Extractor) SampleInfo() (media.SampleInfo, bool) {
	idx, s := e.active()
	if s == nil {
		return media.SampleInfo{}, false
	}
	ts := e.tracks[idx].desc.Timescale
	info := media.SampleInfo{
		Size:                int(s.size),
		TimeUs:              media.TicksToUs(s.dts, ts),
		DurationUs:          media.TicksToUs(int64(s.duration), ts),
		CompositionOffsetUs: media.TicksToUs(s.cto, ts),
	}
	if s.sync {
		info.Flags = media.SampleFlagSync
	}
	return info, true
}

// Advance moves to the next sample. It reports false once no selected
// track has samples left.
func (e *Extractor) Advance() bool {
	idx, s := e.active()
	if s == nil {
		return false
	}
	e.tracks[idx].cursor++
	_, next := e.active()
	return next != nil
}

// Close releases the underlying file.
func (e *Extractor) Close() error {
	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file = nil
	return err
}
