package translate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mgpai22/captionjob/internal/subtitle"
)

func TestLexiconGloss(t *testing.T) {
	lex, err := NewLexicon("xx", map[string]string{
		"good":      "G",
		"very good": "VG",
		"thank you": "TY",
		"hi":        "HI",
		"let's go":  "LG",
	})
	if err != nil {
		t.Fatalf("NewLexicon: %v", err)
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"longer key wins", "that was very good", "that was VG"},
		{"shorter key alone", "good morning", "G morning"},
		{"case insensitive", "Very GOOD, Thank You!", "VG, TY!"},
		{"whole words only", "this is high", "this is high"},
		{"punctuation key", "Let's go now", "LG now"},
		{"unmatched passes through", "Nothing Here", "Nothing Here"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lex.Gloss(tt.in); got != tt.want {
				t.Errorf("Gloss(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLexiconTranslateKeepsTiming(t *testing.T) {
	lexicons, err := LoadLexicons("")
	if err != nil {
		t.Fatalf("LoadLexicons: %v", err)
	}

	segments := []subtitle.Segment{
		{Start: 0, End: 1.2, Text: "hello"},
		{Start: 1.2, End: 4.75, Text: "the student will learn"},
		{Start: 4.75, End: 12.4, Text: "thank you"},
		{Start: 12.4, End: 12.4, Text: ""},
	}

	for _, lang := range []string{"hi", "pa"} {
		lex, ok := lexicons[lang]
		if !ok {
			t.Fatalf("missing built-in lexicon %q", lang)
		}
		for _, seg := range segments {
			got := lex.Translate(seg)
			if got.Start != seg.Start || got.End != seg.End {
				t.Errorf("%s: timing changed %+v -> %+v", lang, seg, got)
			}
		}
	}
}

func TestBuiltinPunjabiLexicon(t *testing.T) {
	lexicons, err := LoadLexicons("")
	if err != nil {
		t.Fatalf("LoadLexicons: %v", err)
	}
	pa := lexicons["pa"]

	got := pa.Gloss("Very good, the student will learn")
	want := "ਬਹੁਤ ਵਧੀਆ, the ਵਿਦਿਆਰਥੀ will ਸਿੱਖਣਾ"
	if got != want {
		t.Errorf("Gloss = %q, want %q", got, want)
	}
}

func TestLoadLexiconsMergesDirectory(t *testing.T) {
	dir := t.TempDir()
	extra := "language = \"hi\"\n\n[entries]\n\"teacher\" = \"शिक्षक\"\n\"good\" = \"बढ़िया\"\n"
	if err := os.WriteFile(filepath.Join(dir, "hi.toml"), []byte(extra), 0o644); err != nil {
		t.Fatal(err)
	}
	fr := "[entries]\n\"hello\" = \"bonjour\"\n"
	if err := os.WriteFile(filepath.Join(dir, "fr.toml"), []byte(fr), 0o644); err != nil {
		t.Fatal(err)
	}

	lexicons, err := LoadLexicons(dir)
	if err != nil {
		t.Fatalf("LoadLexicons: %v", err)
	}

	if got := lexicons["hi"].Gloss("good teacher, hello"); got != "बढ़िया शिक्षक, नमस्ते" {
		t.Errorf("merged hi gloss = %q", got)
	}
	if got := lexicons["fr"].Gloss("Hello"); got != "bonjour" {
		t.Errorf("fr gloss = %q (language should default to file name)", got)
	}
}

func TestLexiconTranslatorTranslateTrack(t *testing.T) {
	tr, err := NewLexiconTranslator("")
	if err != nil {
		t.Fatalf("NewLexiconTranslator: %v", err)
	}

	track := subtitle.NewTrack("en", []subtitle.Segment{
		{Start: 0, End: 1, Text: "hello"},
		{Start: 1, End: 2, Text: "yes"},
	})

	got, err := tr.TranslateTrack(context.Background(), track, "hi")
	if err != nil {
		t.Fatalf("TranslateTrack: %v", err)
	}
	if got.Language != "hi" || len(got.Segments) != 2 {
		t.Fatalf("unexpected track %+v", got)
	}
	if got.Segments[0].Text != "नमस्ते" || got.Segments[1].Text != "हाँ" {
		t.Errorf("unexpected texts %q, %q", got.Segments[0].Text, got.Segments[1].Text)
	}

	if _, err := tr.TranslateTrack(context.Background(), track, "de"); err == nil {
		t.Error("expected error for language without lexicon")
	}
}

func TestFactory(t *testing.T) {
	ctx := context.Background()

	tr, err := Factory(ctx, ProviderLexicon, Options{})
	if err != nil {
		t.Fatalf("Factory(lexicon): %v", err)
	}
	if _, ok := tr.(*LexiconTranslator); !ok {
		t.Errorf("expected *LexiconTranslator, got %T", tr)
	}

	tr, err = Factory(ctx, ProviderAnthropic, Options{APIKey: "fake-key"})
	if err != nil {
		t.Fatalf("Factory(anthropic): %v", err)
	}
	if _, ok := tr.(*AnthropicTranslator); !ok {
		t.Errorf("expected *AnthropicTranslator, got %T", tr)
	}

	if _, err := Factory(ctx, ProviderAnthropic, Options{}); err == nil {
		t.Error("expected error for missing API key")
	}
	if _, err := Factory(ctx, Provider("unknown"), Options{}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

type fakeMessages struct {
	replies []string
	err     error
	prompts []string
}

func (f *fakeMessages) New(
	ctx context.Context,
	body anthropic.MessageNewParams,
	opts ...option.RequestOption,
) (*anthropic.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, m := range body.Messages {
		for _, block := range m.Content {
			if block.OfText != nil {
				f.prompts = append(f.prompts, block.OfText.Text)
			}
		}
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{{Type: "text", Text: reply}},
	}, nil
}

func TestAnthropicTranslatorKeepsTimingAndBlankCues(t *testing.T) {
	fake := &fakeMessages{replies: []string{
		"Here you go:\n```json\n[{\"index\": 0, \"text\": \"नमस्ते\"}, {\"index\": 2, \"text\": \"धन्यवाद\"}]\n```",
	}}
	tr := &AnthropicTranslator{messages: fake, model: anthropic.ModelClaudeHaiku4_5}

	track := subtitle.NewTrack("en", []subtitle.Segment{
		{Start: 0, End: 1.5, Text: "hello"},
		{Start: 1.5, End: 2, Text: " "},
		{Start: 2, End: 3.25, Text: "thank you"},
	})

	got, err := tr.TranslateTrack(context.Background(), track, "hi")
	if err != nil {
		t.Fatalf("TranslateTrack: %v", err)
	}

	want := []subtitle.Segment{
		{Start: 0, End: 1.5, Text: "नमस्ते"},
		{Start: 1.5, End: 2, Text: " "},
		{Start: 2, End: 3.25, Text: "धन्यवाद"},
	}
	for i := range want {
		if got.Segments[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, got.Segments[i], want[i])
		}
	}
	if len(fake.prompts) != 1 || !strings.Contains(fake.prompts[0], "Hindi") {
		t.Errorf("prompt should name the target language, got %v", fake.prompts)
	}
}

func TestAnthropicTranslatorRejectsCountMismatch(t *testing.T) {
	fake := &fakeMessages{replies: []string{`[{"index": 0, "text": "a"}]`}}
	tr := &AnthropicTranslator{messages: fake}

	items := []TranslationItem{{Index: 0, Text: "x"}, {Index: 1, Text: "y"}}
	if _, err := tr.Translate(context.Background(), items, "hi"); err == nil {
		t.Error("expected error for result count mismatch")
	}
}

func TestAnthropicTranslatorPropagatesAPIError(t *testing.T) {
	tr := &AnthropicTranslator{messages: &fakeMessages{err: errors.New("overloaded")}}

	items := []TranslationItem{{Index: 0, Text: "x"}}
	_, err := tr.Translate(context.Background(), items, "pa")
	if err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Errorf("expected wrapped API error, got %v", err)
	}
}

func TestExtractTranslationResults(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCount int
		wantErr   bool
	}{
		{"plain array", `[{"index": 0, "text": "a"}, {"index": 1, "text": "b"}]`, 2, false},
		{"preamble", "Sure!\n[{\"index\": 0, \"text\": \"a\"}]", 1, false},
		{"wrapper key", `{"translations": [{"index": 0, "text": "a"}]}`, 1, false},
		{"invalid escape", `[{"index": 0, "text": "line\Nbreak"}]`, 1, false},
		{"no json", "I cannot help with that.", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractTranslationResults(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.wantCount {
				t.Errorf("got %d results, want %d", len(got), tt.wantCount)
			}
		})
	}
}

func TestLanguageName(t *testing.T) {
	if got := LanguageName("pa"); got != "Punjabi" {
		t.Errorf("LanguageName(pa) = %q, want Punjabi", got)
	}
	if got := LanguageName("not a tag!"); got != "not a tag!" {
		t.Errorf("LanguageName fallback = %q", got)
	}
}
