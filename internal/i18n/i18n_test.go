package i18n

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTranslator(t *testing.T) *Translator {
	t.Helper()
	tr, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return tr
}

func TestLocaleNegotiation(t *testing.T) {
	tr := newTranslator(t)

	tests := []struct {
		header string
		want   string
	}{
		{"", "fr"},
		{"fr-FR,fr;q=0.9", "fr"},
		{"en-US,en;q=0.9", "en"},
		{"en-GB,en;q=0.8,fr;q=0.5", "en"},
		{"de-DE,de;q=0.9", "fr"},
		{"garbage;;;", "fr"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.Locale(tt.header), "header %q", tt.header)
	}
}

func TestTranslate(t *testing.T) {
	tr := newTranslator(t)

	assert.Equal(t, "Demande de devis", tr.T("fr", "quote.title"))
	assert.Equal(t, "Quote request", tr.T("en", "quote.title"))
}

func TestTranslateFallsBackToFrench(t *testing.T) {
	tr := newTranslator(t)

	// site.name is only defined in the French catalog.
	assert.Equal(t, "Atout Travaux", tr.T("en", "site.name"))
	// Unknown locales resolve entirely from the French catalog.
	assert.Equal(t, "Demande de devis", tr.T("de", "quote.title"))
}

func TestTranslateUnknownKeyReturnsKey(t *testing.T) {
	tr := newTranslator(t)

	assert.Equal(t, "quote.doesnotexist", tr.T("fr", "quote.doesnotexist"))
}

func TestMessagesMergesDefaultCatalog(t *testing.T) {
	tr := newTranslator(t)

	en := tr.Messages("en")
	assert.Equal(t, "Quote request", en["quote.title"])
	assert.Equal(t, "Atout Travaux", en["site.name"])

	fr := tr.Messages("fr")
	assert.Equal(t, "Votre demande de devis a bien été envoyée !", fr["quote.success.message"])
}
