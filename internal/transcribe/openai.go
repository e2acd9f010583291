package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mgpai22/captionjob/internal/logging"
	"github.com/mgpai22/captionjob/internal/media"
	"github.com/mgpai22/captionjob/internal/subtitle"
)

// the part of the OpenAI client used for transcription
type audioTranscriber interface {
	New(
		ctx context.Context,
		body openai.AudioTranscriptionNewParams,
		opts ...option.RequestOption,
	) (*openai.Transcription, error)
}

// OpenAILoader connects to the OpenAI audio API. Model size and compute
// profile only apply to local models and are logged, not used.
type OpenAILoader struct {
	config LoaderConfig
	logger *logging.Logger
}

func (l *OpenAILoader) Load(
	ctx context.Context,
	size ModelSize,
	profile ComputeProfile,
) (Model, error) {
	client := openai.NewClient(option.WithAPIKey(l.config.OpenAIKey))

	model := l.config.OpenAIModel
	if model == "" {
		model = "whisper-1"
	}

	l.logger.Infow("Using OpenAI transcription",
		"model", model,
		"requested_size", size,
		"requested_compute_type", profile,
	)

	return &openaiModel{
		audio:   &client.Audio.Transcriptions,
		model:   model,
		workDir: l.config.WorkDir,
		extract: media.ExtractAudio,
		probe:   media.ProbeDuration,
		logger:  l.logger,
	}, nil
}

// segment from OpenAI Whisper verbose_json response
type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// verbose_json response structure from Whisper
type whisperVerboseResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
}

type openaiModel struct {
	audio   audioTranscriber
	model   string
	workDir string
	extract func(ctx context.Context, input, output string, opts media.ExtractOptions) error
	probe   func(ctx context.Context, input string) (float64, error)
	logger  *logging.Logger
}

// transcribes the whole source in one request
func (m *openaiModel) Recognize(
	ctx context.Context,
	source string,
	opts DecodeOptions,
) (Stream, SessionInfo, error) {
	dir, err := os.MkdirTemp(m.workDir, "captionjob-audio-")
	if err != nil {
		return nil, SessionInfo{}, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	audioPath := filepath.Join(dir, "audio.mp3")
	if err := m.extract(ctx, source, audioPath, media.DefaultExtractOptions()); err != nil {
		return nil, SessionInfo{}, err
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return nil, SessionInfo{}, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	if info, err := file.Stat(); err == nil {
		m.logger.Infow("Audio prepared",
			"path", audioPath,
			"size", humanize.Bytes(uint64(info.Size())),
		)
	}

	params := openai.AudioTranscriptionNewParams{
		File:                   file,
		Model:                  openai.AudioModel(m.model),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
		Temperature:            openai.Float(opts.Temperature),
	}
	if opts.Language != "" {
		params.Language = openai.String(opts.Language)
	}

	resp, err := m.audio.New(ctx, params)
	if err != nil {
		return nil, SessionInfo{}, fmt.Errorf("transcription failed: %w", err)
	}

	var fallbackDuration float64
	if d, err := m.probe(ctx, audioPath); err == nil {
		fallbackDuration = d
	}

	segments, duration, err := parseVerboseJSON(resp.RawJSON(), fallbackDuration)
	if err != nil {
		segments = nil
		if text := strings.TrimSpace(resp.Text); text != "" {
			segments = []subtitle.Segment{{Start: 0, End: fallbackDuration, Text: text}}
		}
		duration = fallbackDuration
	}

	return NewSliceStream(segments), SessionInfo{Duration: duration, Language: opts.Language}, nil
}

func (m *openaiModel) Close() error {
	return nil
}

// parseVerboseJSON turns a verbose_json body into segments. Blank segments
// are dropped; a body without segments becomes a single cue.
func parseVerboseJSON(
	rawJSON string,
	fallbackDuration float64,
) ([]subtitle.Segment, float64, error) {
	if rawJSON == "" {
		return nil, 0, fmt.Errorf("empty response")
	}

	var verboseResp whisperVerboseResponse
	if err := json.Unmarshal([]byte(rawJSON), &verboseResp); err != nil {
		return nil, 0, fmt.Errorf("failed to parse verbose_json response: %w", err)
	}

	duration := fallbackDuration
	if verboseResp.Duration > 0 {
		duration = verboseResp.Duration
	}

	if len(verboseResp.Segments) == 0 {
		text := strings.TrimSpace(verboseResp.Text)
		if text == "" {
			return nil, duration, nil
		}
		return []subtitle.Segment{{Start: 0, End: duration, Text: text}}, duration, nil
	}

	segments := make([]subtitle.Segment, 0, len(verboseResp.Segments))
	for _, seg := range verboseResp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, subtitle.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		})
	}

	return segments, duration, nil
}
