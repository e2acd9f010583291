package config

const (
	defaultConfigPath     = "~/.config/captionjob/config.toml"
	defaultBackend        = "whisper"
	defaultPython         = "python3"
	defaultDevice         = "cpu"
	defaultDownloadRoot   = "~/.cache/huggingface/hub"
	defaultOpenAIModel    = "whisper-1"
	defaultGeminiModel    = "gemini-2.5-flash"
	defaultProbeTimeout   = 5
	defaultMinSize        = 1 << 20
	defaultStorageTimeout = 120
	defaultTranslator     = "lexicon"
	defaultTranslateBatch = 50
	defaultFormat         = "vtt"
	defaultMetricsJobName = "captionjob"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Recognizer: Recognizer{
			Backend:      defaultBackend,
			Python:       defaultPython,
			Device:       defaultDevice,
			DownloadRoot: defaultDownloadRoot,
			BeamSize:     1,
			BestOf:       1,
			VADFilter:    true,
			OpenAIModel:  defaultOpenAIModel,
			GeminiModel:  defaultGeminiModel,
		},
		Source: Source{
			Variants:     []string{"1080", "720", "480"},
			ProbeTimeout: defaultProbeTimeout,
			MinSize:      defaultMinSize,
		},
		Storage: Storage{
			Timeout: defaultStorageTimeout,
		},
		Translation: Translation{
			Provider:  defaultTranslator,
			Languages: []string{"hi", "pa"},
			BatchSize: defaultTranslateBatch,
		},
		Output: Output{
			Format: defaultFormat,
		},
		Metrics: Metrics{
			JobName: defaultMetricsJobName,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}
