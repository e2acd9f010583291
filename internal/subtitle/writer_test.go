package subtitle

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00.000"},
		{1.5, "00:00:01.500"},
		{61.123, "00:01:01.123"},
		{3661.999, "01:01:01.999"},
		{3599.9996, "01:00:00.000"},
		{12.4, "00:00:12.400"},
		{0.0625, "00:00:00.062"}, // half rounds to even
		{0.1875, "00:00:00.188"},
		{36000, "10:00:00.000"},
		{360000.001, "100:00:00.001"},
		{-5, "00:00:00.000"},
		{math.NaN(), "00:00:00.000"},
		{math.Inf(1), "00:00:00.000"},
	}

	for _, tt := range tests {
		got := FormatTimestamp(tt.seconds)
		if got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestEncodeVTTEmptyTrackIsHeaderOnly(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
	}{
		{"no segments", nil},
		{"only blank text", []Segment{
			{Start: 0, End: 1, Text: ""},
			{Start: 1, End: 2, Text: "   "},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(EncodeVTT(NewTrack("en", tt.segments)))
			if got != "WEBVTT\n\n" {
				t.Errorf("got %q, want header only", got)
			}
		})
	}
}

func TestEncodeVTTExactLayout(t *testing.T) {
	track := NewTrack("en", []Segment{
		{Start: 0, End: 1.25, Text: " hello "},
		{Start: 1.25, End: 1.5, Text: ""},
		{Start: 1.5, End: 3661.5, Text: "thank you"},
	})

	want := "WEBVTT\n\n" +
		"00:00:00.000 --> 00:00:01.250\nhello\n\n" +
		"00:00:01.500 --> 01:01:01.500\nthank you\n\n"

	if got := string(EncodeVTT(track)); got != want {
		t.Errorf("EncodeVTT mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestEncodeSRTNumbersOnlyUsableCues(t *testing.T) {
	track := NewTrack("en", []Segment{
		{Start: 0, End: 1, Text: "one"},
		{Start: 1, End: 2, Text: " "},
		{Start: 2, End: 3.5, Text: "two"},
	})

	want := "1\n00:00:00,000 --> 00:00:01,000\none\n\n" +
		"2\n00:00:02,000 --> 00:00:03,500\ntwo\n\n"

	if got := string(EncodeSRT(track)); got != want {
		t.Errorf("EncodeSRT mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestVTTRoundTripWithinOneMillisecond(t *testing.T) {
	var segments []Segment
	start := 0.0
	for i := 0; i < 200; i++ {
		// irregular steps exercise rounding at many fractional positions
		end := start + 0.3337*float64(i%7+1)
		segments = append(segments, Segment{Start: start, End: end, Text: "cue"})
		start = end + 0.0004*float64(i%3)
	}

	parsed, err := ParseVTT(bytes.NewReader(EncodeVTT(NewTrack("en", segments))))
	if err != nil {
		t.Fatalf("ParseVTT: %v", err)
	}
	if len(parsed) != len(segments) {
		t.Fatalf("parsed %d cues, want %d", len(parsed), len(segments))
	}

	for i, seg := range segments {
		if d := math.Abs(parsed[i].Start*1000 - seg.Start*1000); d > 1 {
			t.Errorf("cue %d start drift %.3fms", i, d)
		}
		if d := math.Abs(parsed[i].End*1000 - seg.End*1000); d > 1 {
			t.Errorf("cue %d end drift %.3fms", i, d)
		}
	}
}

func TestParseVTTSkipsIdentifiersAndNotes(t *testing.T) {
	content := "WEBVTT\n\n" +
		"NOTE written by hand\nsecond line\n\n" +
		"1\n00:00:01.000 --> 00:00:04.000\nHello, world!\n\n" +
		"00:05.500 --> 00:08.200\nThis is a test.\nWith multiple lines.\n"

	segments, err := ParseVTT(strings.NewReader(content))
	if err != nil {
		t.Fatalf("ParseVTT: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Start != 1 || segments[0].End != 4 || segments[0].Text != "Hello, world!" {
		t.Errorf("unexpected first segment %+v", segments[0])
	}
	if segments[1].Start != 5.5 || segments[1].Text != "This is a test.\nWith multiple lines." {
		t.Errorf("unexpected second segment %+v", segments[1])
	}
}

func TestParseVTTRequiresHeader(t *testing.T) {
	if _, err := ParseVTT(strings.NewReader("00:00:01.000 --> 00:00:02.000\nhi\n")); err == nil {
		t.Error("expected error for missing header")
	}
}

func TestNewTrackSortsByStartStably(t *testing.T) {
	track := NewTrack("en", []Segment{
		{Start: 2, End: 3, Text: "c"},
		{Start: 0, End: 1, Text: "a"},
		{Start: 2, End: 2.5, Text: "d"},
		{Start: 1, End: 2, Text: "b"},
	})

	var got []string
	for _, seg := range track.Segments {
		got = append(got, seg.Text)
	}
	if strings.Join(got, "") != "abcd" {
		t.Errorf("order = %v, want [a b c d]", got)
	}
}

func TestRenderSetsFormatAndCues(t *testing.T) {
	track := NewTrack("hi", []Segment{
		{Start: 0, End: 1, Text: "नमस्ते"},
		{Start: 1, End: 2, Text: ""},
	})

	doc := Render(track, FormatVTT)
	if doc.Language != "hi" || doc.Format != FormatVTT || doc.Cues != 1 {
		t.Errorf("unexpected document %+v", doc)
	}
	if ContentType(doc.Format) != "text/vtt" || Extension(doc.Format) != "vtt" {
		t.Errorf("unexpected content type/extension for %s", doc.Format)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatVTT, false},
		{"VTT", FormatVTT, false},
		{" srt ", FormatSRT, false},
		{"ass", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
