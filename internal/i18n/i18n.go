// Package i18n resolves user-facing strings for the website. French is
// the canonical catalog; other locales fall back to it key by key.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/text/language"
)

//go:embed messages/*.json
var messagesFS embed.FS

// DefaultLocale is the catalog every lookup falls back to.
const DefaultLocale = "fr"

var supported = []language.Tag{
	language.French, // first entry is the matcher default
	language.English,
}

// Translator holds the loaded message catalogs.
type Translator struct {
	catalogs map[string]map[string]string
	matcher  language.Matcher
	logger   *slog.Logger
}

// New loads every embedded catalog. It fails when the French catalog is
// missing or malformed; other catalogs are optional.
func New(logger *slog.Logger) (*Translator, error) {
	t := &Translator{
		catalogs: make(map[string]map[string]string),
		matcher:  language.NewMatcher(supported),
		logger:   logger,
	}

	entries, err := messagesFS.ReadDir("messages")
	if err != nil {
		return nil, fmt.Errorf("failed to read message catalogs: %w", err)
	}

	for _, entry := range entries {
		locale := entry.Name()
		locale = locale[:len(locale)-len(".json")]

		raw, err := messagesFS.ReadFile("messages/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", locale, err)
		}

		catalog := make(map[string]string)
		if err := json.Unmarshal(raw, &catalog); err != nil {
			return nil, fmt.Errorf("failed to parse catalog %s: %w", locale, err)
		}
		t.catalogs[locale] = catalog
	}

	if _, ok := t.catalogs[DefaultLocale]; !ok {
		return nil, fmt.Errorf("missing default catalog %q", DefaultLocale)
	}

	logger.Info("message catalogs loaded", "count", len(t.catalogs))
	return t, nil
}

// Locale negotiates the best supported locale for an Accept-Language
// header. An empty or unparseable header yields the default locale.
func (t *Translator) Locale(acceptLanguage string) string {
	if acceptLanguage == "" {
		return DefaultLocale
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLocale
	}

	tag, _, _ := t.matcher.Match(tags...)
	base, _ := tag.Base()
	locale := base.String()
	if _, ok := t.catalogs[locale]; !ok {
		return DefaultLocale
	}
	return locale
}

// T resolves a message key for a locale. Unknown locales and keys fall
// back to the French catalog; a key missing there too returns the key
// itself so broken lookups stay visible in the page.
func (t *Translator) T(locale, key string) string {
	if catalog, ok := t.catalogs[locale]; ok {
		if msg, ok := catalog[key]; ok {
			return msg
		}
	}
	if msg, ok := t.catalogs[DefaultLocale][key]; ok {
		return msg
	}
	t.logger.Warn("missing message key", "locale", locale, "key", key)
	return key
}

// Messages returns the full catalog for a locale, with every key filled
// from the default catalog when the locale omits it. Page templates use
// it to hand the wizard its strings in one map.
func (t *Translator) Messages(locale string) map[string]string {
	merged := make(map[string]string, len(t.catalogs[DefaultLocale]))
	for key, msg := range t.catalogs[DefaultLocale] {
		merged[key] = msg
	}
	if locale != DefaultLocale {
		for key, msg := range t.catalogs[locale] {
			merged[key] = msg
		}
	}
	return merged
}
