package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/mgpai22/captionjob/internal/logging"
	"github.com/mgpai22/captionjob/internal/media"
	"github.com/mgpai22/captionjob/internal/subtitle"
)

// GeminiLoader transcribes through Google Gemini.
type GeminiLoader struct {
	config LoaderConfig
	logger *logging.Logger
}

func (l *GeminiLoader) Load(
	ctx context.Context,
	size ModelSize,
	profile ComputeProfile,
) (Model, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  l.config.GeminiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := l.config.GeminiModel
	if model == "" {
		model = "gemini-2.5-flash"
	}

	l.logger.Infow("Using Gemini transcription",
		"model", model,
		"requested_size", size,
		"requested_compute_type", profile,
	)

	return &geminiModel{
		client:  client,
		model:   model,
		workDir: l.config.WorkDir,
		logger:  l.logger,
	}, nil
}

// segment from Gemini's JSON response
type transcriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type geminiModel struct {
	client  *genai.Client
	model   string
	workDir string
	logger  *logging.Logger
}

func (m *geminiModel) Recognize(
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
	if err := media.ExtractAudio(ctx, source, audioPath, media.DefaultExtractOptions()); err != nil {
		return nil, SessionInfo{}, err
	}

	uploadedFile, err := m.client.Files.UploadFromPath(ctx, audioPath, nil)
	if err != nil {
		return nil, SessionInfo{}, fmt.Errorf("failed to upload audio file: %w", err)
	}
	defer func() {
		_, _ = m.client.Files.Delete(context.WithoutCancel(ctx), uploadedFile.Name, nil)
	}()

	parts := []*genai.Part{
		genai.NewPartFromText(buildTranscriptionPrompt(opts)),
		genai.NewPartFromURI(uploadedFile.URI, uploadedFile.MIMEType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	temperature := float32(opts.Temperature)
	result, err := m.client.Models.GenerateContent(ctx, m.model, contents, &genai.GenerateContentConfig{
		Temperature: &temperature,
	})
	if err != nil {
		return nil, SessionInfo{}, fmt.Errorf("transcription failed: %w", err)
	}

	segments, err := parseGeminiSegments(result.Text())
	if err != nil {
		return nil, SessionInfo{}, fmt.Errorf("failed to parse transcription: %w", err)
	}

	duration, err := media.ProbeDuration(ctx, audioPath)
	if err != nil {
		m.logger.Debugw("Duration unknown", "error", err)
		duration = 0
	}

	return NewSliceStream(segments), SessionInfo{Duration: duration, Language: opts.Language}, nil
}

func (m *geminiModel) Close() error {
	return nil
}

// creates the prompt for transcription
func buildTranscriptionPrompt(opts DecodeOptions) string {
	var sb strings.Builder

	sb.WriteString("Generate a detailed transcript of this audio. ")
	sb.WriteString("For each sentence or phrase, provide the start timestamp, end timestamp, and the exact text spoken. ")
	sb.WriteString("Format your response as a JSON array with objects containing 'start', 'end', and 'text' fields, ")
	sb.WriteString("where 'start' and 'end' are timestamps in seconds (as numbers). ")

	if opts.Language != "" {
		sb.WriteString(fmt.Sprintf("Transcribe in the language with code %q. ", opts.Language))
	}
	if opts.VADFilter {
		sb.WriteString("Skip silence, music and noise. ")
	}

	sb.WriteString("Return ONLY the JSON array, no other text or markdown formatting.")

	return sb.String()
}

var fenceRegex = regexp.MustCompile("```(?:json)?\\s*")

// parses Gemini's answer into segments, dropping blank ones
func parseGeminiSegments(text string) ([]subtitle.Segment, error) {
	text = strings.TrimSpace(fenceRegex.ReplaceAllString(text, ""))
	text = strings.TrimSpace(strings.ReplaceAll(text, "```", ""))
	if text == "" {
		return nil, fmt.Errorf("no text in Gemini response")
	}

	var transcriptSegments []transcriptSegment
	if err := json.Unmarshal([]byte(text), &transcriptSegments); err != nil {
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		return nil, fmt.Errorf("failed to parse JSON response: %w (response: %s)", err, text)
	}

	segments := make([]subtitle.Segment, 0, len(transcriptSegments))
	for _, ts := range transcriptSegments {
		trimmed := strings.TrimSpace(ts.Text)
		if trimmed == "" {
			continue
		}
		segments = append(segments, subtitle.Segment{
			Start: ts.Start,
			End:   ts.End,
			Text:  trimmed,
		})
	}

	return segments, nil
}
