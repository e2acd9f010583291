package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRecognizer(); err != nil {
		return err
	}
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRecognizer() error {
	r := c.Recognizer
	switch r.Backend {
	case "whisper":
	case "openai":
		if r.OpenAIAPIKey == "" {
			return errors.New("recognizer.openai_api_key is required for the openai backend. Set OPENAI_API_KEY or edit the config file")
		}
	case "gemini":
		if r.GeminiAPIKey == "" {
			return errors.New("recognizer.gemini_api_key is required for the gemini backend. Set GEMINI_API_KEY or edit the config file")
		}
	default:
		return fmt.Errorf("recognizer.backend %q is not supported: use whisper, openai or gemini", r.Backend)
	}
	if r.BeamSize < 1 {
		return errors.New("recognizer.beam_size must be at least 1")
	}
	if r.BestOf < 1 {
		return errors.New("recognizer.best_of must be at least 1")
	}
	return nil
}

func (c *Config) validateSource() error {
	if len(c.Source.Variants) == 0 {
		return errors.New("source.variants must list at least one variant")
	}
	for _, v := range c.Source.Variants {
		if strings.TrimSpace(v) == "" || strings.Contains(v, "/") {
			return fmt.Errorf("source.variants contains invalid variant %q", v)
		}
	}
	if c.Source.ProbeTimeout <= 0 {
		return errors.New("source.probe_timeout must be positive")
	}
	if c.Source.MinSize < 0 {
		return errors.New("source.min_size must not be negative")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Timeout <= 0 {
		return errors.New("storage.timeout must be positive")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	t := c.Translation
	switch t.Provider {
	case "lexicon":
	case "anthropic":
		if t.AnthropicAPIKey == "" {
			return errors.New("translation.anthropic_api_key is required for the anthropic provider. Set ANTHROPIC_API_KEY or edit the config file")
		}
	default:
		return fmt.Errorf("translation.provider %q is not supported: use lexicon or anthropic", t.Provider)
	}
	for _, lang := range t.Languages {
		if _, err := language.Parse(lang); err != nil {
			return fmt.Errorf("translation.languages: invalid language code %q", lang)
		}
	}
	if t.BatchSize < 0 {
		return errors.New("translation.batch_size must not be negative")
	}
	return nil
}

func (c *Config) validateOutput() error {
	switch c.Output.Format {
	case "vtt", "srt":
		return nil
	default:
		return fmt.Errorf("output.format %q is not supported: use vtt or srt", c.Output.Format)
	}
}
