package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/mgpai22/captionjob/internal/subtitle"
)

// single text item to translate
type TranslationItem struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// translated text item
type TranslationResult struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// TrackTranslator derives a caption track in another language. Every
// returned segment keeps the timing of the segment it came from.
type TrackTranslator interface {
	TranslateTrack(
		ctx context.Context,
		track subtitle.Track,
		targetLanguage string,
	) (subtitle.Track, error)
}

// translation provider
type Provider string

const (
	ProviderLexicon   Provider = "lexicon"
	ProviderAnthropic Provider = "anthropic"
)

type Options struct {
	InputLanguage string
	LexiconDir    string
	APIKey        string
	Model         string
	Prompt        string
	BatchSize     int // items per API request (default 50)
}

// creates TrackTranslator based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	opts Options,
) (TrackTranslator, error) {
	switch provider {
	case "", ProviderLexicon:
		return NewLexiconTranslator(opts.LexiconDir)
	case ProviderAnthropic:
		return NewAnthropicTranslator(ctx, opts.APIKey, opts)
	default:
		return nil, fmt.Errorf("unsupported translation provider: %s", provider)
	}
}

// applies a Lexicon to each segment of a track
type LexiconTranslator struct {
	lexicons map[string]*Lexicon
}

func NewLexiconTranslator(dir string) (*LexiconTranslator, error) {
	lexicons, err := LoadLexicons(dir)
	if err != nil {
		return nil, err
	}
	return &LexiconTranslator{lexicons: lexicons}, nil
}

// lexicon for a language, if one is loaded
func (t *LexiconTranslator) Lexicon(lang string) (*Lexicon, bool) {
	lex, ok := t.lexicons[lang]
	return lex, ok
}

func (t *LexiconTranslator) TranslateTrack(
	ctx context.Context,
	track subtitle.Track,
	targetLanguage string,
) (subtitle.Track, error) {
	lex, ok := t.lexicons[targetLanguage]
	if !ok {
		return subtitle.Track{}, fmt.Errorf("no lexicon for language %q", targetLanguage)
	}

	segments := make([]subtitle.Segment, len(track.Segments))
	for i, seg := range track.Segments {
		segments[i] = lex.Translate(seg)
	}
	return subtitle.Track{Language: targetLanguage, Segments: segments}, nil
}

// English display name for a language code, falling back to the code
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.Languages(language.English).Name(tag); name != "" {
		return name
	}
	return code
}

// BuildPrompt creates the translation prompt for LLM providers
func BuildPrompt(opts Options, targetLanguage string, items []TranslationItem) string {
	var sb strings.Builder

	target := LanguageName(targetLanguage)
	if opts.InputLanguage != "" {
		sb.WriteString(fmt.Sprintf(
			"Translate the following %s caption texts to %s.\n\n",
			LanguageName(opts.InputLanguage),
			target,
		))
	} else {
		sb.WriteString(fmt.Sprintf(
			"Translate the following caption texts to %s.\n\n",
			target,
		))
	}

	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. Translate ONLY the text content, preserving the meaning.\n")
	sb.WriteString("2. Keep each caption short enough to read on screen.\n")
	sb.WriteString("3. Return ONLY a JSON array with the same structure.\n")
	sb.WriteString("4. Each object must have 'index' and 'text' fields.\n")
	sb.WriteString("5. The 'index' values must match the input indices exactly.\n")
	sb.WriteString("6. Do not add any explanation or markdown formatting.\n\n")

	if opts.Prompt != "" {
		sb.WriteString(fmt.Sprintf("Additional instructions: %s\n\n", opts.Prompt))
	}

	sb.WriteString("Input JSON:\n")

	inputJSON, _ := json.MarshalIndent(items, "", "  ")
	sb.Write(inputJSON)

	sb.WriteString("\n\nOutput the translated JSON array only:")

	return sb.String()
}
