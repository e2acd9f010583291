package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mgpai22/captionjob/internal/media"
)

var extractCmd = &cobra.Command{
	Use:   "extract [media]",
	Short: "Extract the speech audio from a media file or URL",
	Long: `Extract the audio track of a video, audio file, URL or HLS manifest,
exactly as the API recognition backends prepare it before upload.

Supports multiple output formats: mp3, wav, aac, flac.

Examples:
  captionjob extract lecture.mp4
  captionjob extract lecture.mp4 -o audio.wav -f wav
  captionjob extract https://cdn.example.com/a1/720/index.m3u8 -o a1.mp3`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	defaults := media.DefaultExtractOptions()
	extractCmd.Flags().
		StringP("output", "o", "", "Output file path")
	extractCmd.Flags().
		StringP("format", "f", defaults.Format, "Output audio format (mp3, wav, aac, flac)")
	extractCmd.Flags().
		IntP("sample-rate", "r", defaults.SampleRate, "Sample rate in Hz")
	extractCmd.Flags().
		Int("channels", defaults.Channels, "Number of audio channels (1=mono, 2=stereo)")
	extractCmd.Flags().
		String("bitrate", defaults.Bitrate, "Bitrate for lossy formats (e.g., 64k, 128k)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	input := args[0]

	format, _ := cmd.Flags().GetString("format")
	sampleRate, _ := cmd.Flags().GetInt("sample-rate")
	channels, _ := cmd.Flags().GetInt("channels")
	bitrate, _ := cmd.Flags().GetString("bitrate")
	outputPath, _ := cmd.Flags().GetString("output")

	validFormats := map[string]bool{
		"wav":  true,
		"mp3":  true,
		"aac":  true,
		"flac": true,
	}
	if !validFormats[format] {
		return fmt.Errorf(
			"invalid format %q: supported formats are mp3, wav, aac, flac",
			format,
		)
	}

	if !media.IsRemote(input) {
		if _, err := os.Stat(input); os.IsNotExist(err) {
			return fmt.Errorf("media file not found: %s", input)
		}
		if !media.IsVideoFile(input) && !media.IsAudioFile(input) {
			return fmt.Errorf("unsupported file type: %s", filepath.Ext(input))
		}
	}

	if outputPath == "" {
		outputPath = extractOutputPath(input, format)
	}

	logger.Infow("Extracting audio",
		"input", input,
		"output", outputPath,
		"format", format,
		"sample_rate", sampleRate,
		"channels", channels,
	)

	opts := media.ExtractOptions{
		Format:     format,
		SampleRate: sampleRate,
		Channels:   channels,
		Bitrate:    bitrate,
	}
	if err := media.ExtractAudio(cmd.Context(), input, outputPath, opts); err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Audio extracted successfully: %s\n", absOutput)
	if info, err := os.Stat(outputPath); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  Size: %s\n", humanize.Bytes(uint64(info.Size())))
	}
	return nil
}

// local name for the extracted audio; URLs use their last path element
func extractOutputPath(input, format string) string {
	name := input
	if media.IsRemote(input) {
		name = filepath.Base(strings.SplitN(input, "?", 2)[0])
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + "." + format
}
