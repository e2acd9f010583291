package subtitle

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSRT(t *testing.T) {
	content := "\ufeff1\n00:00:00,000 --> 00:00:03,200\nhello\n\n" +
		"2\n00:00:03,200 --> 00:00:08,000\nthe student\nwill learn\n\n" +
		"3\n00:00:08,000 --> 00:00:12,400\nthank you\n"

	got, err := ParseSRT(strings.NewReader(content))
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	want := []Segment{
		{Start: 0, End: 3.2, Text: "hello"},
		{Start: 3.2, End: 8, Text: "the student\nwill learn"},
		{Start: 8, End: 12.4, Text: "thank you"},
	}
	if len(got) != len(want) {
		t.Fatalf("parsed %d cues, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cue %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseSRTRoundTripsEncoder(t *testing.T) {
	track := NewTrack("en", []Segment{
		{Start: 0.5, End: 1.25, Text: "one"},
		{Start: 3661.5, End: 3662, Text: "two"},
	})
	got, err := ParseSRT(bytes.NewReader(EncodeSRT(track)))
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if len(got) != 2 || got[1].Start != 3661.5 || got[1].Text != "two" {
		t.Errorf("unexpected cues %+v", got)
	}
}

func TestParseSRTRejectsMissingTiming(t *testing.T) {
	if _, err := ParseSRT(strings.NewReader("1\nnot a timing line\n")); err == nil {
		t.Error("expected an error for a cue without timing")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	vtt := filepath.Join(dir, "captions_en.vtt")
	if err := os.WriteFile(vtt, []byte("WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nhi\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	track, format, err := Open(vtt)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if format != FormatVTT || len(track.Segments) != 1 || track.Segments[0].Text != "hi" {
		t.Errorf("Open = %+v, %s", track, format)
	}

	if _, _, err := Open(filepath.Join(dir, "captions.ass")); err == nil {
		t.Error("expected an error for .ass files")
	}
}
