package media

import (
	"testing"
)

func TestParseProbeDuration(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    float64
		wantErr bool
	}{
		{"seconds", `{"format": {"duration": "12.400000"}}`, 12.4, false},
		{"not available", `{"format": {"duration": "N/A"}}`, 0, true},
		{"missing", `{"format": {}}`, 0, true},
		{"garbage", `not json`, 0, true},
		{"negative", `{"format": {"duration": "-1"}}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbeDuration([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAudioKwargs(t *testing.T) {
	mp3 := audioKwargs(DefaultExtractOptions())
	if mp3["acodec"] != "libmp3lame" || mp3["b:a"] != "64k" || mp3["ac"] != 1 {
		t.Errorf("unexpected mp3 args %v", mp3)
	}

	wav := audioKwargs(ExtractOptions{Format: "wav", SampleRate: 16000, Channels: 1, Bitrate: "64k"})
	if wav["acodec"] != "pcm_s16le" {
		t.Errorf("unexpected wav codec %v", wav["acodec"])
	}
	if _, ok := wav["b:a"]; ok {
		t.Error("bitrate should not be set for wav")
	}
}

func TestFileKinds(t *testing.T) {
	tests := []struct {
		path   string
		remote bool
		video  bool
		audio  bool
	}{
		{"lecture.MP4", false, true, false},
		{"https://b.storage.googleapis.com/a/master.m3u8", true, true, false},
		{"HTTP://host/a.mp3", true, false, true},
		{"notes.txt", false, false, false},
	}

	for _, tt := range tests {
		if got := IsRemote(tt.path); got != tt.remote {
			t.Errorf("IsRemote(%q) = %v", tt.path, got)
		}
		if got := IsVideoFile(tt.path); got != tt.video {
			t.Errorf("IsVideoFile(%q) = %v", tt.path, got)
		}
		if got := IsAudioFile(tt.path); got != tt.audio {
			t.Errorf("IsAudioFile(%q) = %v", tt.path, got)
		}
	}
}
