package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mgpai22/captionjob/internal/logging"
	"github.com/mgpai22/captionjob/internal/media"
)

func TestParseVerboseJSON(t *testing.T) {
	tests := []struct {
		name             string
		rawJSON          string
		fallbackDuration float64
		wantCount        int
		wantDuration     float64
		wantErr          bool
	}{
		{
			name: "valid verbose_json with segments",
			rawJSON: `{
				"text": "Hello world. How are you today?",
				"segments": [
					{"start": 0.0, "end": 1.5, "text": "Hello world."},
					{"start": 1.5, "end": 3.0, "text": "How are you today?"}
				],
				"language": "en",
				"duration": 3.0
			}`,
			fallbackDuration: 5,
			wantCount:        2,
			wantDuration:     3,
		},
		{
			name: "no segments but has text",
			rawJSON: `{
				"text": "This is a transcription without segments.",
				"segments": [],
				"duration": 2.5
			}`,
			fallbackDuration: 5,
			wantCount:        1,
			wantDuration:     2.5,
		},
		{
			name:             "null segments and no duration",
			rawJSON:          `{"text": "Transcription text only.", "segments": null}`,
			fallbackDuration: 5,
			wantCount:        1,
			wantDuration:     5,
		},
		{
			name: "empty text segments filtered out",
			rawJSON: `{
				"text": "Hello world",
				"segments": [
					{"start": 0.0, "end": 0.5, "text": ""},
					{"start": 0.5, "end": 1.5, "text": "Hello world"},
					{"start": 1.5, "end": 2.0, "text": "   "}
				],
				"duration": 2.0
			}`,
			wantCount:    1,
			wantDuration: 2,
		},
		{
			name:         "silence",
			rawJSON:      `{"text": "", "segments": [], "duration": 9.0}`,
			wantCount:    0,
			wantDuration: 9,
		},
		{
			name:    "empty body",
			rawJSON: "",
			wantErr: true,
		},
		{
			name:    "invalid JSON",
			rawJSON: `{"text": `,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments, duration, err := parseVerboseJSON(tt.rawJSON, tt.fallbackDuration)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(segments) != tt.wantCount {
				t.Errorf("got %d segments, want %d", len(segments), tt.wantCount)
			}
			if duration != tt.wantDuration {
				t.Errorf("duration = %v, want %v", duration, tt.wantDuration)
			}
			for _, seg := range segments {
				if seg.Text != "" && (seg.Text[0] == ' ' || seg.Text[len(seg.Text)-1] == ' ') {
					t.Errorf("segment text not trimmed: %q", seg.Text)
				}
			}
		})
	}
}

type fakeAudio struct {
	body   string
	err    error
	params openai.AudioTranscriptionNewParams
}

func (f *fakeAudio) New(
	ctx context.Context,
	body openai.AudioTranscriptionNewParams,
	opts ...option.RequestOption,
) (*openai.Transcription, error) {
	f.params = body
	if f.err != nil {
		return nil, f.err
	}
	var tr openai.Transcription
	if err := json.Unmarshal([]byte(f.body), &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

func newTestOpenAIModel(t *testing.T, audio *fakeAudio) (*openaiModel, *[]string) {
	t.Helper()
	var extracted []string
	return &openaiModel{
		audio:   audio,
		model:   "whisper-1",
		workDir: t.TempDir(),
		extract: func(ctx context.Context, input, output string, opts media.ExtractOptions) error {
			extracted = append(extracted, input)
			return os.WriteFile(output, []byte("ID3"), 0o644)
		},
		probe: func(ctx context.Context, input string) (float64, error) {
			return 12.4, nil
		},
		logger: logging.Nop(),
	}, &extracted
}

func TestOpenAIModelRecognize(t *testing.T) {
	audio := &fakeAudio{body: `{
		"text": "hello the student will learn thank you",
		"language": "english",
		"duration": 12.4,
		"segments": [
			{"start": 0, "end": 1.2, "text": " hello"},
			{"start": 1.2, "end": 4.75, "text": " the student will learn"},
			{"start": 4.75, "end": 12.4, "text": " thank you"}
		]
	}`}
	m, extracted := newTestOpenAIModel(t, audio)

	stream, info, err := m.Recognize(context.Background(), "https://b/a/master.m3u8", DefaultDecodeOptions())
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if info.Duration != 12.4 || info.Language != "en" {
		t.Errorf("unexpected info %+v", info)
	}
	if len(*extracted) != 1 || (*extracted)[0] != "https://b/a/master.m3u8" {
		t.Errorf("audio extracted from %v", *extracted)
	}
	if !audio.params.Language.Valid() || audio.params.Language.Value != "en" {
		t.Errorf("request language = %+v", audio.params.Language)
	}

	segments, err := Drain(stream)
	if err != nil || len(segments) != 3 || segments[0].Text != "hello" {
		t.Errorf("segments = %+v, %v", segments, err)
	}
}

func TestOpenAIModelRecognizeError(t *testing.T) {
	m, _ := newTestOpenAIModel(t, &fakeAudio{err: errors.New("429 rate limited")})

	if _, _, err := m.Recognize(context.Background(), "a.mp4", DefaultDecodeOptions()); err == nil {
		t.Error("expected API error")
	}
}
