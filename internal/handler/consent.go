package handler

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/atout-travaux/website/internal/events"
)

// consentCookieName stores the visitor's cookie choices.
const consentCookieName = "atout_consent"

// consentMaxAge follows the CNIL guideline of 13 months for consent storage.
const consentMaxAge = 13 * 30 * 24 * time.Hour

// Consent captures the visitor's choice per cookie category. Necessary
// cookies cannot be refused.
type Consent struct {
	Necessary bool `json:"necessary"`
	Analytics bool `json:"analytics"`
	Marketing bool `json:"marketing"`
}

// ConsentHandler reads and stores the cookie-consent choices.
type ConsentHandler struct {
	bus    *events.Bus
	logger *slog.Logger
	secure bool
}

// NewConsentHandler creates a new ConsentHandler. secure controls the
// Secure flag on the consent cookie and should be true behind TLS.
func NewConsentHandler(bus *events.Bus, logger *slog.Logger, secure bool) *ConsentHandler {
	return &ConsentHandler{bus: bus, logger: logger, secure: secure}
}

// RegisterRoutes registers the consent routes with the provided mux.
//
// Routes:
// - GET  /api/consent -> Show
// - POST /api/consent -> Save
func (h *ConsentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/consent", h.Show)
	mux.HandleFunc("POST /api/consent", h.Save)
}

// Show returns the stored consent, or 404 when the visitor has not
// answered the banner yet.
func (h *ConsentHandler) Show(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(consentCookieName)
	if err != nil {
		WriteJSONError(w, http.StatusNotFound, "Aucun consentement enregistré")
		return
	}

	consent, err := decodeConsent(cookie.Value)
	if err != nil {
		// A tampered or legacy cookie counts as unanswered.
		WriteJSONError(w, http.StatusNotFound, "Aucun consentement enregistré")
		return
	}

	WriteJSON(w, consent)
}

// Save stores the submitted consent in the cookie and broadcasts the
// update so interested components can react.
func (h *ConsentHandler) Save(w http.ResponseWriter, r *http.Request) {
	var consent Consent
	if err := json.NewDecoder(r.Body).Decode(&consent); err != nil {
		WriteJSONError(w, http.StatusBadRequest, errInvalidBody)
		return
	}
	consent.Necessary = true

	value, err := encodeConsent(consent)
	if err != nil {
		h.logger.Error("consent encode error", "error", err)
		WriteJSONError(w, http.StatusInternalServerError, "Erreur lors de l'enregistrement du consentement")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     consentCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(consentMaxAge.Seconds()),
		HttpOnly: false, // the banner script reads it to skip re-prompting
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	h.bus.Publish(events.TopicConsentUpdate, consent)
	h.logger.Info("consent saved",
		"analytics", consent.Analytics,
		"marketing", consent.Marketing)

	WriteJSON(w, consent)
}

// Consent is stored base64url-encoded so the JSON braces survive cookie
// value restrictions.
func encodeConsent(c Consent) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeConsent(value string) (Consent, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return Consent{}, err
	}
	var c Consent
	if err := json.Unmarshal(raw, &c); err != nil {
		return Consent{}, err
	}
	c.Necessary = true
	return c, nil
}
