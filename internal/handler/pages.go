package handler

import (
	"log/slog"
	"net/http"

	"github.com/atout-travaux/website/internal/domain"
	"github.com/atout-travaux/website/internal/i18n"
)

// PageData carries everything a page template needs.
type PageData struct {
	Title          string
	Description    string
	Locale         string
	T              map[string]string
	StructuredData interface{}
	WorkTypes      []WorkTypeOption
}

// WorkTypeOption is one selectable project type in the quote wizard.
type WorkTypeOption struct {
	Value string
	Label string
}

// PageHandler serves the marketing pages.
type PageHandler struct {
	renderer   *Renderer
	translator *i18n.Translator
	logger     *slog.Logger
	baseURL    string
}

// NewPageHandler creates a new PageHandler. baseURL is the public origin
// used in structured data.
func NewPageHandler(renderer *Renderer, translator *i18n.Translator, logger *slog.Logger, baseURL string) *PageHandler {
	return &PageHandler{
		renderer:   renderer,
		translator: translator,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// RegisterRoutes registers the page routes with the provided mux.
//
// Routes:
// - GET /                              -> Home
// - GET /request-quote                 -> Quote
// - GET /mentions-legales              -> Legal
// - GET /politique-de-confidentialite  -> Privacy
// - /                                  -> NotFound (everything unmatched)
func (h *PageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET /request-quote", h.Quote)
	mux.HandleFunc("GET /mentions-legales", h.Legal)
	mux.HandleFunc("GET /politique-de-confidentialite", h.Privacy)
	mux.HandleFunc("/", h.NotFound)
}

// pageData builds the shared template data for a request.
func (h *PageHandler) pageData(r *http.Request, titleKey string) PageData {
	locale := h.translator.Locale(r.Header.Get("Accept-Language"))
	return PageData{
		Title:  h.translator.T(locale, titleKey),
		Locale: locale,
		T:      h.translator.Messages(locale),
	}
}

// Home serves the landing page with LocalBusiness structured data.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r, "nav.home")
	data.Description = h.translator.T(data.Locale, "home.hero.subtitle")
	data.StructuredData = map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "LocalBusiness",
		"name":        h.translator.T(i18n.DefaultLocale, "site.name"),
		"description": h.translator.T(i18n.DefaultLocale, "site.tagline"),
		"url":         h.baseURL,
		"address": map[string]string{
			"@type":          "PostalAddress",
			"addressCountry": "FR",
		},
	}

	h.renderer.RenderHTTP(w, http.StatusOK, "home", data)
}

// Quote serves the quote request page hosting the wizard.
func (h *PageHandler) Quote(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r, "quote.title")
	data.WorkTypes = workTypeOptions()

	h.renderer.RenderHTTP(w, http.StatusOK, "quote", data)
}

// Legal serves the mentions légales page.
func (h *PageHandler) Legal(w http.ResponseWriter, r *http.Request) {
	h.renderer.RenderHTTP(w, http.StatusOK, "legal", h.pageData(r, "nav.legal"))
}

// Privacy serves the privacy policy page.
func (h *PageHandler) Privacy(w http.ResponseWriter, r *http.Request) {
	h.renderer.RenderHTTP(w, http.StatusOK, "privacy", h.pageData(r, "nav.privacy"))
}

// NotFound serves the 404 page for every unmatched path.
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	if acceptsJSON(r) {
		NotFoundResponse(w, r, h.logger)
		return
	}

	h.renderer.RenderHTTP(w, http.StatusNotFound, "notfound", h.pageData(r, "notfound.title"))
}

// workTypeOptions lists the selectable project types in display order.
func workTypeOptions() []WorkTypeOption {
	types := []domain.ProjectType{
		domain.ProjectRenovation,
		domain.ProjectConstruction,
		domain.ProjectAmenagement,
		domain.ProjectExtension,
	}

	options := make([]WorkTypeOption, 0, len(types))
	for _, t := range types {
		options = append(options, WorkTypeOption{
			Value: string(t),
			Label: domain.WorkTypeLabel(string(t)),
		})
	}
	return options
}
