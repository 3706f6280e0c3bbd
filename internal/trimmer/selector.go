package trimmer

import (
	"github.com/vishalkuo/bimap"

	"github.com/diwenne/smashspeed-rn/internal/media"
)

// MappingEntry pairs a source track with its destination track.
type MappingEntry struct {
	Source      int
	Destination int
	Kind        media.Kind
}

// TrackMapping is the bijection between included source tracks and
// destination tracks. Destinations are dense from 0 in source order.
type TrackMapping struct {
	entries []MappingEntry
	index   *bimap.BiMap[int, int]
}

// SelectTracks includes every video and audio track and skips the rest.
// It fails with ErrNoVideoTrack when no video track is present.
func SelectTracks(tracks []media.TrackDescriptor) (*TrackMapping, error) {
	m := &TrackMapping{index: bimap.NewBiMap[int, int]()}
	hasVideo := false
	for src, d := range tracks {
		if d.Kind != media.KindVideo && d.Kind != media.KindAudio {
			continue
		}
		dst := len(m.entries)
		m.entries = append(m.entries, MappingEntry{Source: src, Destination: dst, Kind: d.Kind})
		m.index.Insert(src, dst)
		hasVideo = hasVideo || d.Kind == media.KindVideo
	}
	if !hasVideo {
		return nil, ErrNoVideoTrack
	}
	return m, nil
}

// Entries returns the mapping in destination order.
func (m *TrackMapping) Entries() []MappingEntry {
	out := make([]MappingEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Destination returns the destination index of source track src.
func (m *TrackMapping) Destination(src int) (int, bool) {
	return m.index.Get(src)
}

// Source returns the source index feeding destination track dst.
func (m *TrackMapping) Source(dst int) (int, bool) {
	return m.index.GetInverse(dst)
}

func (m *TrackMapping) Len() int {
	return len(m.entries)
}

// VideoSources returns the source indices of the included video tracks.
func (m *TrackMapping) VideoSources() []int {
	var out []int
	for _, e := range m.entries {
		if e.Kind == media.KindVideo {
			out = append(out, e.Source)
		}
	}
	return out
}
