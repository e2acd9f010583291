package translate

import (
	"context"
	"fmt"
	"sort"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mgpai22/captionjob/internal/subtitle"
)

const DefaultBatchSize = 50

// messageSender is the slice of the Anthropic client used here
type messageSender interface {
	New(
		ctx context.Context,
		body anthropic.MessageNewParams,
		opts ...option.RequestOption,
	) (*anthropic.Message, error)
}

// implements TrackTranslator using Anthropic Claude
type AnthropicTranslator struct {
	messages messageSender
	model    anthropic.Model
	options  Options
}

func NewAnthropicTranslator(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*AnthropicTranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	model := anthropic.Model(opts.Model)
	if opts.Model == "" {
		model = anthropic.ModelClaudeHaiku4_5
	}

	return &AnthropicTranslator{
		messages: &client.Messages,
		model:    model,
		options:  opts,
	}, nil
}

func (t *AnthropicTranslator) batchSize() int {
	if t.options.BatchSize > 0 {
		return t.options.BatchSize
	}
	return DefaultBatchSize
}

// TranslateTrack sends the usable cues in batches and rebuilds the track with
// the original timings. Blank segments are carried over untouched.
func (t *AnthropicTranslator) TranslateTrack(
	ctx context.Context,
	track subtitle.Track,
	targetLanguage string,
) (subtitle.Track, error) {
	var items []TranslationItem
	for i, seg := range track.Segments {
		if seg.Usable() {
			items = append(items, TranslationItem{Index: i, Text: seg.Text})
		}
	}

	results, err := t.Translate(ctx, items, targetLanguage)
	if err != nil {
		return subtitle.Track{}, err
	}

	byIndex := make(map[int]string, len(results))
	for _, r := range results {
		byIndex[r.Index] = r.Text
	}

	segments := make([]subtitle.Segment, len(track.Segments))
	for i, seg := range track.Segments {
		if text, ok := byIndex[i]; ok {
			segments[i] = seg.WithText(text)
		} else {
			segments[i] = seg
		}
	}

	return subtitle.Track{Language: targetLanguage, Segments: segments}, nil
}

func (t *AnthropicTranslator) Translate(
	ctx context.Context,
	items []TranslationItem,
	targetLanguage string,
) ([]TranslationResult, error) {
	if len(items) == 0 {
		return []TranslationResult{}, nil
	}

	batchSize := t.batchSize()
	var allResults []TranslationResult
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}

		results, err := t.translateBatch(ctx, items[i:end], targetLanguage)
		if err != nil {
			return nil, fmt.Errorf("batch %d failed: %w", i/batchSize, err)
		}
		allResults = append(allResults, results...)
	}

	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].Index < allResults[j].Index
	})

	return allResults, nil
}

func (t *AnthropicTranslator) translateBatch(
	ctx context.Context,
	items []TranslationItem,
	targetLanguage string,
) ([]TranslationResult, error) {
	prompt := BuildPrompt(t.options, targetLanguage, items)

	message, err := t.messages.New(
		ctx,
		anthropic.MessageNewParams{
			Model:     t.model,
			MaxTokens: 4096,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(
					anthropic.NewTextBlock(prompt),
				),
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	return t.parseResponse(message, items)
}

func (t *AnthropicTranslator) parseResponse(
	message *anthropic.Message,
	items []TranslationItem,
) ([]TranslationResult, error) {
	if message == nil || len(message.Content) == 0 {
		return nil, fmt.Errorf("empty response from Anthropic")
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	if responseText == "" {
		return nil, fmt.Errorf("no text in Anthropic response")
	}

	responseText = cleanJSONResponse(responseText)

	results, err := extractTranslationResults(responseText)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to parse JSON response: %w (response: %s)",
			err,
			truncateString(responseText, 200),
		)
	}

	if len(results) != len(items) {
		return nil, fmt.Errorf(
			"expected %d results, got %d",
			len(items),
			len(results),
		)
	}

	expected := make(map[int]bool, len(items))
	for _, item := range items {
		expected[item.Index] = true
	}
	for _, r := range results {
		if !expected[r.Index] {
			return nil, fmt.Errorf("unexpected result index %d", r.Index)
		}
	}

	return results, nil
}
