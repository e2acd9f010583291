package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Recognizer configures the speech recognition backend.
type Recognizer struct {
	Backend      string `toml:"backend"`
	Python       string `toml:"python"`
	Device       string `toml:"device"`
	DownloadRoot string `toml:"download_root"`
	BeamSize     int    `toml:"beam_size"`
	BestOf       int    `toml:"best_of"`
	VADFilter    bool   `toml:"vad_filter"`
	WorkDir      string `toml:"work_dir"`
	OpenAIAPIKey string `toml:"openai_api_key"`
	OpenAIModel  string `toml:"openai_model"`
	GeminiAPIKey string `toml:"gemini_api_key"`
	GeminiModel  string `toml:"gemini_model"`
}

// Source configures manifest resolution.
type Source struct {
	Variants     []string `toml:"variants"`
	ProbeTimeout int      `toml:"probe_timeout"` // seconds
	MinSize      int64    `toml:"min_size"`      // bytes
}

// Storage configures the object store.
type Storage struct {
	CredentialsFile string `toml:"credentials_file"`
	KeyPrefix       string `toml:"key_prefix"`
	Timeout         int    `toml:"timeout"` // seconds
}

// Translation configures the extra caption languages.
type Translation struct {
	Provider        string   `toml:"provider"`
	Languages       []string `toml:"languages"`
	LexiconDir      string   `toml:"lexicon_dir"`
	AnthropicAPIKey string   `toml:"anthropic_api_key"`
	AnthropicModel  string   `toml:"anthropic_model"`
	BatchSize       int      `toml:"batch_size"`
}

type Output struct {
	Format string `toml:"format"`
}

// Metrics configures the Pushgateway the job reports to.
type Metrics struct {
	PushgatewayURL string `toml:"pushgateway_url"`
	JobName        string `toml:"job_name"`
}

type Logging struct {
	Level string `toml:"level"`
}

// Config holds every setting of a caption job.
//
// Sections:
//   - Recognizer: backend choice, local model runtime and API credentials
//   - Source: variant names and limits used when resolving a manifest
//   - Storage: credentials, key prefix and timeouts for the bucket
//   - Translation: target languages and the translator that derives them
//   - Output: subtitle format
//   - Metrics: optional Pushgateway
//   - Logging: log level
type Config struct {
	Recognizer  Recognizer  `toml:"recognizer"`
	Source      Source      `toml:"source"`
	Storage     Storage     `toml:"storage"`
	Translation Translation `toml:"translation"`
	Output      Output      `toml:"output"`
	Metrics     Metrics     `toml:"metrics"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of the user configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads .env files, decodes the configuration file over the defaults,
// applies environment overrides and validates the result. An empty path
// looks in the default locations; a missing file there is not an error.
// The returned path is the file that was read, or "" when none was.
func Load(path string) (*Config, string, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, "", err
	}

	cfg := Default()

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}

	if resolved != "" {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, resolved, nil
}

// LoadDotEnv loads the given .env files (default ".env") without overriding
// variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(expanded); err != nil {
			return "", fmt.Errorf("stat config: %w", err)
		}
		return expanded, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", err
	}
	projectPath, err := filepath.Abs("captionjob.toml")
	if err != nil {
		return "", err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", nil
}

// applyEnv lets the usual credential variables override the file.
func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&c.Storage.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	override(&c.Recognizer.OpenAIAPIKey, "OPENAI_API_KEY")
	override(&c.Recognizer.GeminiAPIKey, "GEMINI_API_KEY")
	override(&c.Translation.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	override(&c.Metrics.PushgatewayURL, "CAPTIONJOB_PUSHGATEWAY_URL")
	override(&c.Recognizer.Python, "CAPTIONJOB_PYTHON")
}

// ProbeTimeout is the per-request variant probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Source.ProbeTimeout) * time.Second
}

// StorageTimeout bounds each list or upload call.
func (c *Config) StorageTimeout() time.Duration {
	return time.Duration(c.Storage.Timeout) * time.Second
}

// SampleConfig returns the commented sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
