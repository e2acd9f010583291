package ffmpeg

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// environment overrides for the tool locations
const (
	EnvFFmpegPath  = "CAPTIONJOB_FFMPEG_PATH"
	EnvFFprobePath = "CAPTIONJOB_FFPROBE_PATH"
)

var ErrNotFound = errors.New("ffmpeg tools not found")

type BinaryPaths struct {
	FFmpeg  string
	FFprobe string
}

var (
	ensureOnce sync.Once
	ensureErr  error
	ensurePath BinaryPaths
)

// Ensure locates ffmpeg and ffprobe once per process. Explicit environment
// paths win over PATH lookup.
func Ensure() (BinaryPaths, error) {
	ensureOnce.Do(func() {
		ensurePath, ensureErr = locate(os.Getenv, exec.LookPath)
	})
	return ensurePath, ensureErr
}

func FFmpegPath() (string, error) {
	paths, err := Ensure()
	if err != nil {
		return "", err
	}
	return paths.FFmpeg, nil
}

func FFprobePath() (string, error) {
	paths, err := Ensure()
	if err != nil {
		return "", err
	}
	return paths.FFprobe, nil
}

func locate(
	getenv func(string) string,
	lookPath func(string) (string, error),
) (BinaryPaths, error) {
	ffmpegPath, err := resolve("ffmpeg", getenv(EnvFFmpegPath), lookPath)
	if err != nil {
		return BinaryPaths{}, err
	}
	ffprobePath, err := resolve("ffprobe", getenv(EnvFFprobePath), lookPath)
	if err != nil {
		return BinaryPaths{}, err
	}
	return BinaryPaths{FFmpeg: ffmpegPath, FFprobe: ffprobePath}, nil
}

func resolve(
	name, override string,
	lookPath func(string) (string, error),
) (string, error) {
	if override != "" {
		if !fileExists(override) {
			return "", fmt.Errorf("%w: %s does not exist", ErrNotFound, override)
		}
		return override, nil
	}
	found, err := lookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s is not on PATH", ErrNotFound, name)
	}
	return found, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
