// Package i18n maps (key, language, params) to rendered strings from JSON
// locale catalogs.
package i18n

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/surimil/mediabot/internal/domain/user"
)

// Catalog holds the loaded translations for all supported languages.
type Catalog struct {
	translations map[user.Language]map[string]string
}

// Load reads <dir>/<lang>.json for every supported language. A missing
// file for one language is tolerated as long as English loads, since
// English is the fallback.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{translations: make(map[user.Language]map[string]string)}

	for _, lang := range []user.Language{user.LangRU, user.LangEN} {
		path := filepath.Join(dir, string(lang)+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read locale %s: %w", path, err)
		}

		var entries map[string]string
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", path, err)
		}
		c.translations[lang] = entries
	}

	if len(c.translations) == 0 {
		return nil, fmt.Errorf("no locale catalogs found in %s", dir)
	}
	return c, nil
}

// NewFromMaps builds a catalog from in-memory maps. Used by tests.
func NewFromMaps(translations map[user.Language]map[string]string) *Catalog {
	return &Catalog{translations: translations}
}

// Render resolves key in lang and substitutes {name} parameters. An
// unknown language falls back to English; an unknown key renders as a
// visibly wrapped placeholder instead of failing.
func (c *Catalog) Render(key string, lang user.Language, params map[string]string) string {
	entries, ok := c.translations[lang]
	if !ok {
		entries = c.translations[user.LangEN]
	}

	text, ok := entries[key]
	if !ok {
		// A key untranslated in one language still renders in English;
		// only a key absent everywhere shows the placeholder.
		if text, ok = c.translations[user.LangEN][key]; !ok {
			return "_" + key + "_"
		}
	}

	if len(params) == 0 {
		return text
	}

	pairs := make([]string, 0, len(params)*2)
	for name, value := range params {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
