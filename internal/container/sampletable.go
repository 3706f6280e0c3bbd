package container

import (
	"fmt"

	gomp4 "github.com/abema/go-mp4"
	"github.com/pkg/errors"
)

// sampleTables holds the stbl children of one track as parsed by go-mp4.
type sampleTables struct {
	stts *gomp4.Stts
	ctts *gomp4.Ctts
	stss *gomp4.Stss
	stsc *gomp4.Stsc
	stsz *gomp4.Stsz
	stco *gomp4.Stco
	co64 *gomp4.Co64
}

func (tbl *sampleTables) chunkOffsets() []uint64 {
	if tbl.co64 != nil {
		return tbl.co64.ChunkOffset
	}
	if tbl.stco == nil {
		return nil
	}
	offsets := make([]uint64, len(tbl.stco.ChunkOffset))
	for i, off := range tbl.stco.ChunkOffset {
		offsets[i] = uint64(off)
	}
	return offsets
}

func (tbl *sampleTables) sampleCount() int {
	if tbl.stsz.SampleSize != 0 {
		return int(tbl.stsz.SampleCount)
	}
	return len(tbl.stsz.EntrySize)
}

func (tbl *sampleTables) sampleSize(i int) uint32 {
	if tbl.stsz.SampleSize != 0 {
		return tbl.stsz.SampleSize
	}
	return tbl.stsz.EntrySize[i]
}

// expand flattens the run-length encoded tables into one entry per sample.
// fileSize bounds the sample count so a corrupt stsz cannot force a huge
// allocation.
func (tbl *sampleTables) expand(fileSize int64) ([]sampleEntry, error) {
	switch {
	case tbl.stts == nil:
		return nil, errors.New("missing stts")
	case tbl.stsz == nil:
		return nil, errors.New("missing stsz")
	case tbl.stsc == nil:
		return nil, errors.New("missing stsc")
	case tbl.stco == nil && tbl.co64 == nil:
		return nil, errors.New("missing stco/co64")
	}

	count := tbl.sampleCount()
	var described uint64
	for _, e := range tbl.stts.Entries {
		described += uint64(e.SampleCount)
	}
	if described != uint64(count) {
		return nil, fmt.Errorf("stts describes %d samples, stsz %d", described, count)
	}
	if size := uint64(tbl.stsz.SampleSize); size != 0 && uint64(count)*size > uint64(fileSize) {
		return nil, fmt.Errorf("stsz declares %d samples of %d bytes in a %d byte file", count, size, fileSize)
	}
	samples := make([]sampleEntry, count)

	// stts: decode times and durations
	n, dts := 0, int64(0)
	for _, e := range tbl.stts.Entries {
		for j := uint32(0); j < e.SampleCount; j++ {
			samples[n].dts = dts
			samples[n].duration = e.SampleDelta
			dts += int64(e.SampleDelta)
			n++
		}
	}

	// ctts: composition offsets
	if tbl.ctts != nil {
		n = 0
		for _, e := range tbl.ctts.Entries {
			// some writers store negative offsets in a version 0 box
			off := int64(int32(e.SampleOffsetV0))
			if tbl.ctts.GetVersion() == 1 {
				off = int64(e.SampleOffsetV1)
			}
			for j := uint32(0); j < e.SampleCount && n < count; j++ {
				samples[n].cto = off
				n++
			}
		}
	}

	// stss: sync samples; every sample is sync without it
	if tbl.stss == nil {
		for i := range samples {
			samples[i].sync = true
		}
	} else {
		for _, num := range tbl.stss.SampleNumber {
			if num >= 1 && int(num) <= count {
				samples[num-1].sync = true
			}
		}
	}

	// stsc + stsz + stco: file offsets
	chunks := tbl.chunkOffsets()
	entries := tbl.stsc.Entries
	n = 0
	for ei, e := range entries {
		if e.FirstChunk == 0 {
			return nil, errors.New("stsc entry references chunk 0")
		}
		last := uint32(len(chunks))
		if ei+1 < len(entries) {
			last = entries[ei+1].FirstChunk - 1
		}
		for c := e.FirstChunk; c <= last; c++ {
			if int(c) > len(chunks) {
				return nil, fmt.Errorf("stsc references chunk %d of %d", c, len(chunks))
			}
			off := int64(chunks[c-1])
			for j := uint32(0); j < e.SamplesPerChunk && n < count; j++ {
				size := tbl.sampleSize(n)
				samples[n].offset = off
				samples[n].size = size
				off += int64(size)
				n++
			}
		}
	}
	if n != count {
		return nil, fmt.Errorf("chunks hold %d samples, stsz declares %d", n, count)
	}
	return samples, nil
}

var codecMIME = map[string]string{
	"avc1": "video/avc",
	"avc3": "video/avc",
	"hvc1": "video/hevc",
	"hev1": "video/hevc",
	"mp4v": "video/mp4v-es",
	"av01": "video/av01",
	"vp08": "video/x-vnd.on2.vp8",
	"vp09": "video/x-vnd.on2.vp9",
	"s263": "video/3gpp",
	"mp4a": "audio/mp4a-latm",
	"Opus": "audio/opus",
	"ac-3": "audio/ac3",
	"ec-3": "audio/eac3",
	"fLaC": "audio/flac",
	"alac": "audio/alac",
	"samr": "audio/3gpp",
	"sawb": "audio/amr-wb",
	".mp3": "audio/mpeg",
	"tx3g": "text/3gpp-tt",
	"wvtt": "text/vtt",
	"stpp": "application/ttml+xml",
}

// mimeFor derives a MIME-like tag from the handler type and sample entry fourcc.
// Unknown codecs keep the kind implied by the handler.
func mimeFor(handler, codec string) string {
	if mime, ok := codecMIME[codec]; ok {
		return mime
	}
	switch handler {
	case "vide":
		return "video/x-" + codec
	case "soun":
		return "audio/x-" + codec
	case "text", "sbtl", "subt":
		return "text/x-" + codec
	default:
		return "application/x-" + handler
	}
}
