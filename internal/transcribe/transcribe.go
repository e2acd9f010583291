package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/mgpai22/captionjob/internal/logging"
	"github.com/mgpai22/captionjob/internal/subtitle"
)

// WorkingLanguage is the language every primary recognition pass decodes in.
const WorkingLanguage = "en"

// model size tier
type ModelSize string

const (
	ModelTiny    ModelSize = "tiny"
	ModelBase    ModelSize = "base"
	ModelSmall   ModelSize = "small"
	ModelMedium  ModelSize = "medium"
	ModelLargeV3 ModelSize = "large-v3"
)

func ParseModelSize(s string) (ModelSize, error) {
	switch size := ModelSize(strings.ToLower(strings.TrimSpace(s))); size {
	case ModelTiny, ModelBase, ModelSmall, ModelMedium, ModelLargeV3:
		return size, nil
	case "":
		return ModelBase, nil
	case "large":
		return ModelLargeV3, nil
	default:
		return "", fmt.Errorf("unsupported model size %q", s)
	}
}

// numeric precision / quantization of the loaded weights
type ComputeProfile string

const (
	ComputeInt8        ComputeProfile = "int8"
	ComputeInt8Float16 ComputeProfile = "int8_float16"
	ComputeFloat16     ComputeProfile = "float16"
	ComputeFloat32     ComputeProfile = "float32"
)

func ParseComputeProfile(s string) (ComputeProfile, error) {
	switch profile := ComputeProfile(strings.ToLower(strings.TrimSpace(s))); profile {
	case ComputeInt8, ComputeInt8Float16, ComputeFloat16, ComputeFloat32:
		return profile, nil
	case "":
		return ComputeInt8, nil
	default:
		return "", fmt.Errorf("unsupported compute type %q", s)
	}
}

// decoding parameters for one recognition call
type DecodeOptions struct {
	Language                string  `json:"language"`
	VADFilter               bool    `json:"vad_filter"`
	BeamSize                int     `json:"beam_size"`
	BestOf                  int     `json:"best_of"`
	Temperature             float64 `json:"temperature"`
	ConditionOnPreviousText bool    `json:"condition_on_previous_text"`
}

// greedy, deterministic decoding with voice activity filtering
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{
		Language:                WorkingLanguage,
		VADFilter:               true,
		BeamSize:                1,
		BestOf:                  1,
		Temperature:             0,
		ConditionOnPreviousText: false,
	}
}

// ReducedDecodeOptions is the fallback set: the cheapest settings the
// recognizer accepts, regardless of how the primary pass was tuned.
func ReducedDecodeOptions() DecodeOptions {
	return DecodeOptions{
		Language:                WorkingLanguage,
		VADFilter:               true,
		BeamSize:                1,
		BestOf:                  1,
		Temperature:             0,
		ConditionOnPreviousText: false,
	}
}

// metadata reported when a recognition call starts
type SessionInfo struct {
	Duration float64 // seconds, 0 when unknown
	Language string
}

// Stream yields recognized segments lazily in time order. It is forward
// only; Next returns io.EOF once the recognizer is finished.
type Stream interface {
	Next() (subtitle.Segment, error)
	Close() error
}

// loaded recognizer, reusable across calls
type Model interface {
	Recognize(ctx context.Context, source string, opts DecodeOptions) (Stream, SessionInfo, error)
	Close() error
}

// Loader materializes a model once per job.
type Loader interface {
	Load(ctx context.Context, size ModelSize, profile ComputeProfile) (Model, error)
}

// recognition backend
type Backend string

const (
	BackendWhisper Backend = "whisper"
	BackendOpenAI  Backend = "openai"
	BackendGemini  Backend = "gemini"
)

// backend settings
type LoaderConfig struct {
	Python       string // interpreter for the local worker
	Device       string // cpu, cuda or auto
	DownloadRoot string // model weight cache

	OpenAIKey   string
	OpenAIModel string
	GeminiKey   string
	GeminiModel string

	WorkDir string // scratch space for extracted audio
}

// creates the Loader for a backend
func NewLoader(backend Backend, cfg LoaderConfig, logger *logging.Logger) (Loader, error) {
	switch backend {
	case "", BackendWhisper:
		return NewWhisperLoader(cfg, logger), nil
	case BackendOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("openai backend requires an API key")
		}
		return &OpenAILoader{config: cfg, logger: logger}, nil
	case BackendGemini:
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("gemini backend requires an API key")
		}
		return &GeminiLoader{config: cfg, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}
