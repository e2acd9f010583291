package config_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/mgpai22/captionjob/internal/config"
)

var envKeys = []string{
	"GOOGLE_APPLICATION_CREDENTIALS",
	"OPENAI_API_KEY",
	"GEMINI_API_KEY",
	"ANTHROPIC_API_KEY",
	"CAPTIONJOB_PUSHGATEWAY_URL",
	"CAPTIONJOB_PYTHON",
}

// isolate points HOME and the working directory at a temp dir and unsets
// every variable Load reads.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, path, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if path != "" {
		t.Fatalf("expected no config file, got %q", path)
	}

	if cfg.Recognizer.Backend != "whisper" || cfg.Recognizer.Python != "python3" {
		t.Errorf("unexpected recognizer defaults: %+v", cfg.Recognizer)
	}
	if want := filepath.Join(home, ".cache", "huggingface", "hub"); cfg.Recognizer.DownloadRoot != want {
		t.Errorf("download root = %q, want %q", cfg.Recognizer.DownloadRoot, want)
	}
	if !reflect.DeepEqual(cfg.Translation.Languages, []string{"hi", "pa"}) {
		t.Errorf("languages = %v", cfg.Translation.Languages)
	}
	if cfg.ProbeTimeout() != 5*time.Second {
		t.Errorf("probe timeout = %v", cfg.ProbeTimeout())
	}
	if cfg.StorageTimeout() != 2*time.Minute {
		t.Errorf("storage timeout = %v", cfg.StorageTimeout())
	}
	if cfg.Storage.KeyPrefix != "" {
		t.Errorf("key prefix should default to empty, got %q", cfg.Storage.KeyPrefix)
	}
}

func TestLoadFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "job.toml")
	writeFile(t, path, `
[recognizer]
backend = "OpenAI"
openai_api_key = "sk-test"
beam_size = 5

[storage]
key_prefix = "/assets"

[translation]
languages = ["HI", " pa ", "hi"]

[output]
format = "SRT"
`)

	cfg, resolved, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Recognizer.Backend != "openai" || cfg.Recognizer.BeamSize != 5 {
		t.Errorf("recognizer = %+v", cfg.Recognizer)
	}
	if cfg.Recognizer.BestOf != 1 {
		t.Errorf("unset keys keep their defaults, best_of = %d", cfg.Recognizer.BestOf)
	}
	if cfg.Storage.KeyPrefix != "assets/" {
		t.Errorf("key prefix = %q", cfg.Storage.KeyPrefix)
	}
	if !reflect.DeepEqual(cfg.Translation.Languages, []string{"hi", "pa"}) {
		t.Errorf("languages = %v", cfg.Translation.Languages)
	}
	if cfg.Output.Format != "srt" {
		t.Errorf("format = %q", cfg.Output.Format)
	}
}

func TestLoadProjectFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "captionjob.toml"), "[logging]\nlevel = \"DEBUG\"\n")

	cfg, resolved, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if filepath.Base(resolved) != "captionjob.toml" {
		t.Errorf("resolved = %q", resolved)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "job.toml")
	writeFile(t, path, "[recognizer]\nbackend = \"openai\"\nopenai_api_key = \"from-file\"\n")
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("CAPTIONJOB_PUSHGATEWAY_URL", "http://pushgateway:9091")

	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Recognizer.OpenAIAPIKey != "from-env" {
		t.Errorf("api key = %q", cfg.Recognizer.OpenAIAPIKey)
	}
	if cfg.Metrics.PushgatewayURL != "http://pushgateway:9091" {
		t.Errorf("pushgateway = %q", cfg.Metrics.PushgatewayURL)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".env"), "GEMINI_API_KEY=g-from-dotenv\n")
	path := filepath.Join(dir, "job.toml")
	writeFile(t, path, "[recognizer]\nbackend = \"gemini\"\n")

	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Recognizer.GeminiAPIKey != "g-from-dotenv" {
		t.Errorf("gemini key = %q", cfg.Recognizer.GeminiAPIKey)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "[recognizer]\nengine = \"x\"\n", "parse config"},
		{"bad backend", "[recognizer]\nbackend = \"vosk\"\n", "recognizer.backend"},
		{"openai without key", "[recognizer]\nbackend = \"openai\"\n", "openai_api_key"},
		{"gemini without key", "[recognizer]\nbackend = \"gemini\"\n", "gemini_api_key"},
		{"zero beam", "[recognizer]\nbeam_size = 0\n", "beam_size"},
		{"no variants", "[source]\nvariants = []\n", "source.variants"},
		{"bad variant", "[source]\nvariants = [\"720/x\"]\n", "invalid variant"},
		{"zero probe timeout", "[source]\nprobe_timeout = 0\n", "probe_timeout"},
		{"zero storage timeout", "[storage]\ntimeout = 0\n", "storage.timeout"},
		{"bad language", "[translation]\nlanguages = [\"not a tag\"]\n", "invalid language code"},
		{"anthropic without key", "[translation]\nprovider = \"anthropic\"\n", "anthropic_api_key"},
		{"bad provider", "[translation]\nprovider = \"deepl\"\n", "translation.provider"},
		{"bad format", "[output]\nformat = \"ass\"\n", "output.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			path := filepath.Join(dir, "job.toml")
			writeFile(t, path, tt.content)

			_, _, err := config.Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	dir := isolate(t)
	if _, _, err := config.Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatal("expected an error for a missing explicit config path")
	}
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	cfg := config.Default()
	decoder := toml.NewDecoder(strings.NewReader(config.SampleConfig())).DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		t.Fatalf("sample config does not decode: %v", err)
	}
	if !reflect.DeepEqual(cfg, config.Default()) {
		t.Errorf("sample config drifted from defaults:\n got %+v\nwant %+v", cfg, config.Default())
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != config.SampleConfig() {
		t.Error("written sample differs from the embedded one")
	}
}
