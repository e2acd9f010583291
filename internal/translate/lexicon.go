package translate

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/mgpai22/captionjob/internal/subtitle"
)

//go:embed lexicons/*.toml
var builtinLexicons embed.FS

// on-disk lexicon layout
type lexiconFile struct {
	Language string            `toml:"language"`
	Entries  map[string]string `toml:"entries"`
}

// Lexicon is a fixed English gloss table for one target language. It is a
// coarse word/phrase substitution, only suitable for short caption cues.
type Lexicon struct {
	Language string
	entries  map[string]string
	pattern  *regexp.Regexp
}

func NewLexicon(language string, entries map[string]string) (*Lexicon, error) {
	if language == "" {
		return nil, fmt.Errorf("lexicon language is required")
	}

	normalized := make(map[string]string, len(entries))
	for k, v := range entries {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		normalized[key] = v
	}

	lex := &Lexicon{Language: language, entries: normalized}
	if len(normalized) == 0 {
		return lex, nil
	}

	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	// longest first: RE2 alternation takes the first alternative that
	// matches at a position
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}

	pattern, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("compile %s lexicon: %w", language, err)
	}
	lex.pattern = pattern

	return lex, nil
}

// number of entries
func (l *Lexicon) Len() int {
	return len(l.entries)
}

// Gloss replaces every lexicon term in text, case-insensitively, in a single
// left-to-right pass. Text outside matches is kept as is.
func (l *Lexicon) Gloss(text string) string {
	if l.pattern == nil || text == "" {
		return text
	}
	return l.pattern.ReplaceAllStringFunc(text, func(match string) string {
		if repl, ok := l.entries[strings.ToLower(match)]; ok {
			return repl
		}
		return match
	})
}

// Translate returns a new segment with glossed text and the original timing.
func (l *Lexicon) Translate(seg subtitle.Segment) subtitle.Segment {
	return seg.WithText(l.Gloss(seg.Text))
}

// merges extra entries over the current ones
func (l *Lexicon) merge(entries map[string]string) (*Lexicon, error) {
	combined := make(map[string]string, len(l.entries)+len(entries))
	for k, v := range l.entries {
		combined[k] = v
	}
	for k, v := range entries {
		combined[k] = v
	}
	return NewLexicon(l.Language, combined)
}

func decodeLexicon(data []byte, source string) (lexiconFile, error) {
	var file lexiconFile
	decoder := toml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&file); err != nil {
		return lexiconFile{}, fmt.Errorf("parse lexicon %s: %w", source, err)
	}
	if file.Language == "" {
		file.Language = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	return file, nil
}

// LoadLexicons returns the built-in lexicons keyed by language code. When
// dir is set, every *.toml in it is merged over (or added to) the built-ins.
func LoadLexicons(dir string) (map[string]*Lexicon, error) {
	lexicons := make(map[string]*Lexicon)

	names, err := builtinLexicons.ReadDir("lexicons")
	if err != nil {
		return nil, fmt.Errorf("read built-in lexicons: %w", err)
	}
	for _, entry := range names {
		data, err := builtinLexicons.ReadFile("lexicons/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read lexicon %s: %w", entry.Name(), err)
		}
		file, err := decodeLexicon(data, entry.Name())
		if err != nil {
			return nil, err
		}
		lex, err := NewLexicon(file.Language, file.Entries)
		if err != nil {
			return nil, err
		}
		lexicons[lex.Language] = lex
	}

	if dir == "" {
		return lexicons, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return nil, fmt.Errorf("list lexicons in %s: %w", dir, err)
	}
	sort.Strings(paths)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read lexicon %s: %w", path, err)
		}
		file, err := decodeLexicon(data, path)
		if err != nil {
			return nil, err
		}

		var lex *Lexicon
		if existing, ok := lexicons[file.Language]; ok {
			lex, err = existing.merge(file.Entries)
		} else {
			lex, err = NewLexicon(file.Language, file.Entries)
		}
		if err != nil {
			return nil, err
		}
		lexicons[lex.Language] = lex
	}

	return lexicons, nil
}
