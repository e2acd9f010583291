package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Open parses a .vtt or .srt file into a track. The language is left to the
// caller.
func Open(path string) (Track, Format, error) {
	var (
		format Format
		parse  func(*os.File) ([]Segment, error)
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".vtt":
		format = FormatVTT
		parse = func(f *os.File) ([]Segment, error) { return ParseVTT(f) }
	case ".srt":
		format = FormatSRT
		parse = func(f *os.File) ([]Segment, error) { return ParseSRT(f) }
	default:
		return Track{}, "", fmt.Errorf("unsupported subtitle format: %s", ext)
	}

	file, err := os.Open(path)
	if err != nil {
		return Track{}, "", fmt.Errorf("failed to open subtitle file: %w", err)
	}
	defer file.Close()

	segments, err := parse(file)
	if err != nil {
		return Track{}, "", fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return NewTrack("", segments), format, nil
}
