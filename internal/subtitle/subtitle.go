package subtitle

import (
	"fmt"
	"sort"
	"strings"
)

// single timed piece of recognized (or translated) text, in seconds
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// returns a copy of the segment carrying new text and the same timing
func (s Segment) WithText(text string) Segment {
	return Segment{Start: s.Start, End: s.End, Text: text}
}

// reports whether the segment has any text worth a cue
func (s Segment) Usable() bool {
	return strings.TrimSpace(s.Text) != ""
}

// ordered caption track for one language
type Track struct {
	Language string
	Segments []Segment
}

// NewTrack copies segments and stable-sorts them by start time.
func NewTrack(language string, segments []Segment) Track {
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})
	return Track{Language: language, Segments: sorted}
}

// number of segments that produce a cue
func (t Track) Cues() int {
	n := 0
	for _, seg := range t.Segments {
		if seg.Usable() {
			n++
		}
	}
	return n
}

// supported subtitle formats
type Format string

const (
	FormatVTT Format = "vtt"
	FormatSRT Format = "srt"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatVTT:
		return FormatVTT, nil
	case FormatSRT:
		return FormatSRT, nil
	default:
		return "", fmt.Errorf("unsupported format %q: use vtt or srt", s)
	}
}

// file extension for a format, without the dot
func Extension(format Format) string {
	switch format {
	case FormatSRT:
		return "srt"
	default:
		return "vtt"
	}
}

// MIME type used when the document is uploaded
func ContentType(format Format) string {
	switch format {
	case FormatSRT:
		return "application/x-subrip"
	default:
		return "text/vtt"
	}
}

// serialized track ready for publishing
type Document struct {
	Language string
	Format   Format
	Body     []byte
	Cues     int
}

// serializes a track in the given format
func Render(track Track, format Format) Document {
	var body []byte
	switch format {
	case FormatSRT:
		body = EncodeSRT(track)
	default:
		format = FormatVTT
		body = EncodeVTT(track)
	}
	return Document{
		Language: track.Language,
		Format:   format,
		Body:     body,
		Cues:     track.Cues(),
	}
}
