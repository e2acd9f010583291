package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	c.Recognizer.Backend = strings.ToLower(strings.TrimSpace(c.Recognizer.Backend))
	c.Recognizer.Device = strings.ToLower(strings.TrimSpace(c.Recognizer.Device))
	c.Translation.Provider = strings.ToLower(strings.TrimSpace(c.Translation.Provider))
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if c.Recognizer.Backend == "" {
		c.Recognizer.Backend = defaultBackend
	}
	if c.Translation.Provider == "" {
		c.Translation.Provider = defaultTranslator
	}
	if c.Output.Format == "" {
		c.Output.Format = defaultFormat
	}
	if strings.TrimSpace(c.Metrics.JobName) == "" {
		c.Metrics.JobName = defaultMetricsJobName
	}

	var err error
	if c.Recognizer.DownloadRoot, err = expandPath(c.Recognizer.DownloadRoot); err != nil {
		return fmt.Errorf("recognizer.download_root: %w", err)
	}
	if c.Recognizer.WorkDir, err = expandPath(c.Recognizer.WorkDir); err != nil {
		return fmt.Errorf("recognizer.work_dir: %w", err)
	}
	if c.Storage.CredentialsFile, err = expandPath(c.Storage.CredentialsFile); err != nil {
		return fmt.Errorf("storage.credentials_file: %w", err)
	}
	if c.Translation.LexiconDir, err = expandPath(c.Translation.LexiconDir); err != nil {
		return fmt.Errorf("translation.lexicon_dir: %w", err)
	}

	languages := make([]string, 0, len(c.Translation.Languages))
	seen := make(map[string]bool, len(c.Translation.Languages))
	for _, lang := range c.Translation.Languages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		languages = append(languages, lang)
	}
	c.Translation.Languages = languages

	prefix := strings.TrimLeft(strings.TrimSpace(c.Storage.KeyPrefix), "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	c.Storage.KeyPrefix = prefix
	return nil
}
