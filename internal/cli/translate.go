package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/captionjob/internal/config"
	"github.com/mgpai22/captionjob/internal/subtitle"
	"github.com/mgpai22/captionjob/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate [caption_file]",
	Short: "Translate an existing caption file",
	Long: `Translate a local .vtt or .srt caption file into another language.

Cue timing is kept exactly. The lexicon provider glosses known words and
phrases; the anthropic provider translates whole cues.

The --overlay flag creates bilingual captions with the translated text
first, followed by the original text on the next line.

Examples:
  captionjob translate captions_en.vtt --target-language hi
  captionjob translate captions_en.srt -t pa --overlay
  captionjob translate captions_en.vtt -t hi --provider anthropic -o captions_hi.vtt`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().
		StringP("target-language", "t", "", "Target language code (required)")
	translateCmd.Flags().
		Bool("overlay", false, "Overlay translated text with original (bilingual captions)")
	translateCmd.Flags().
		String("provider", "", "Translation provider (lexicon, anthropic); defaults to translation.provider")
	translateCmd.Flags().
		StringP("output", "o", "", "Output file path")

	_ = translateCmd.MarkFlagRequired("target-language")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	captionPath := args[0]
	ctx := cmd.Context()

	targetLang, _ := cmd.Flags().GetString("target-language")
	overlay, _ := cmd.Flags().GetBool("overlay")
	providerName, _ := cmd.Flags().GetString("provider")
	outputPath, _ := cmd.Flags().GetString("output")

	targetLang = strings.ToLower(strings.TrimSpace(targetLang))
	if targetLang == "" {
		return fmt.Errorf("target language is required")
	}
	if _, err := os.Stat(captionPath); os.IsNotExist(err) {
		return fmt.Errorf("caption file not found: %s", captionPath)
	}

	cfg, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if providerName == "" {
		providerName = cfg.Translation.Provider
	}

	track, format, err := subtitle.Open(captionPath)
	if err != nil {
		return err
	}
	if len(track.Segments) == 0 {
		return fmt.Errorf("caption file contains no cues")
	}
	track.Language = "en"

	if outputPath == "" {
		outputPath = translatedPath(captionPath, targetLang, overlay)
	}

	logger.Infow("Starting caption translation",
		"input", captionPath,
		"output", outputPath,
		"target_language", targetLang,
		"provider", providerName,
		"overlay", overlay,
		"cues", len(track.Segments),
	)

	translator, err := translate.Factory(ctx, translate.Provider(providerName), translate.Options{
		InputLanguage: track.Language,
		LexiconDir:    cfg.Translation.LexiconDir,
		APIKey:        cfg.Translation.AnthropicAPIKey,
		Model:         cfg.Translation.AnthropicModel,
		BatchSize:     cfg.Translation.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}

	translated, err := translator.TranslateTrack(ctx, track, targetLang)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	if overlay {
		translated = overlayTrack(translated, track)
	}

	doc := subtitle.Render(translated, format)
	if err := os.WriteFile(outputPath, doc.Body, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Captions translated successfully: %s\n", absOutput)
	fmt.Fprintf(out, "  Cues: %d\n", doc.Cues)
	fmt.Fprintf(out, "  Target language: %s\n", translate.LanguageName(targetLang))
	if overlay {
		fmt.Fprintln(out, "  Mode: bilingual overlay")
	}
	return nil
}

// captions_en.vtt -> captions_en.hi.vtt
func translatedPath(path, lang string, overlay bool) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	if overlay {
		return fmt.Sprintf("%s.%s.overlay%s", base, lang, ext)
	}
	return fmt.Sprintf("%s.%s%s", base, lang, ext)
}

// overlayTrack puts the translated text above the original in every cue
func overlayTrack(translated, original subtitle.Track) subtitle.Track {
	segments := make([]subtitle.Segment, len(translated.Segments))
	for i, seg := range translated.Segments {
		text := seg.Text
		if i < len(original.Segments) && original.Segments[i].Text != seg.Text {
			text = seg.Text + "\n" + original.Segments[i].Text
		}
		segments[i] = seg.WithText(text)
	}
	return subtitle.Track{Language: translated.Language, Segments: segments}
}
