// Package handler contains HTTP handlers for the Atout Travaux website.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/atout-travaux/website/internal/domain"
	"github.com/atout-travaux/website/internal/quote"
)

// maxUploadBytes bounds one details-step submission (plans + photos).
const maxUploadBytes = 32 << 20 // 32MB

// User-facing endpoint messages, matching what the wizard surfaces.
const (
	errMissingFields     = "Champs requis manquants"
	errMissingDemandeID  = "ID de demande manquant"
	errInvalidBody       = "Requête invalide"
	errContactSaveFailed = "Erreur lors de la sauvegarde du contact"
	errDemandeSaveFailed = "Erreur lors de la création de la demande"
	errDemandeEditFailed = "Erreur lors de la mise à jour de la demande"
)

// QuoteService is the slice of the quote service the endpoints need.
type QuoteService interface {
	SaveContact(ctx context.Context, in quote.ContactInput) (quote.ContactResult, error)
	SaveDemande(ctx context.Context, in quote.DemandeInput) (string, error)
	AttachDetails(ctx context.Context, in quote.DetailsInput) error
}

// QuoteHandler exposes the quote wizard's three submission endpoints.
type QuoteHandler struct {
	svc    QuoteService
	logger *slog.Logger
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(svc QuoteService, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers the quote API routes with the provided mux.
//
// Routes:
// - POST  /api/quote/contact -> SaveContact
// - POST  /api/quote/demande -> SaveDemande
// - PATCH /api/quote/demande -> AttachDetails
func (h *QuoteHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/quote/contact", h.SaveContact)
	mux.HandleFunc("POST /api/quote/demande", h.SaveDemande)
	mux.HandleFunc("PATCH /api/quote/demande", h.AttachDetails)
}

// =============================================================================
// POST /api/quote/contact - persist the identity step
// =============================================================================

type contactRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	ClientType  string `json:"clientType"`
	CompanyName string `json:"companyName,omitempty"`
}

type contactResponse struct {
	ContactID string `json:"contactId"`
	IsNew     bool   `json:"isNew"`
}

// SaveContact finds or creates the contact for the submitted identity.
func (h *QuoteHandler) SaveContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, errInvalidBody)
		return
	}

	if req.FirstName == "" || req.LastName == "" || req.Phone == "" || req.Email == "" {
		WriteJSONError(w, http.StatusBadRequest, errMissingFields)
		return
	}

	clientType := domain.ClientParticulier
	if req.ClientType == string(domain.ClientProfessionnel) {
		clientType = domain.ClientProfessionnel
	}

	res, err := h.svc.SaveContact(r.Context(), quote.ContactInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		Email:       req.Email,
		ClientType:  clientType,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		h.logger.Error("quote contact error", "error", err)
		WriteJSONError(w, http.StatusInternalServerError, errContactSaveFailed)
		return
	}

	WriteJSON(w, contactResponse{ContactID: res.ContactID, IsNew: res.IsNew})
}

// =============================================================================
// POST /api/quote/demande - persist the project step
// =============================================================================

type demandeRequest struct {
	ContactID   string `json:"contactId"`
	DemandeID   string `json:"demandeId,omitempty"`
	ProjectType string `json:"projectType"`
	Surface     string `json:"surface,omitempty"`
	Location    string `json:"location"`
}

type demandeResponse struct {
	DemandeID string `json:"demandeId"`
}

// SaveDemande creates the demande linked to the contact, or updates the
// existing one when a demande ID is supplied.
func (h *QuoteHandler) SaveDemande(w http.ResponseWriter, r *http.Request) {
	var req demandeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, errInvalidBody)
		return
	}

	if req.ContactID == "" || req.ProjectType == "" || req.Location == "" {
		WriteJSONError(w, http.StatusBadRequest, errMissingFields)
		return
	}

	demandeID, err := h.svc.SaveDemande(r.Context(), quote.DemandeInput{
		ContactID:   req.ContactID,
		DemandeID:   req.DemandeID,
		ProjectType: req.ProjectType,
		Surface:     req.Surface,
		Location:    req.Location,
	})
	if err != nil {
		h.logger.Error("quote demande error", "error", err)
		WriteJSONError(w, http.StatusInternalServerError, errDemandeSaveFailed)
		return
	}

	WriteJSON(w, demandeResponse{DemandeID: demandeID})
}

// =============================================================================
// PATCH /api/quote/demande - persist the details step (multipart)
// =============================================================================

// AttachDetails updates the demande with the optional description and
// forwards every plan and photo to the record store's attachment endpoint.
func (h *QuoteHandler) AttachDetails(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteJSONError(w, http.StatusBadRequest, errInvalidBody)
		return
	}

	demandeID := r.FormValue("demandeId")
	if demandeID == "" {
		WriteJSONError(w, http.StatusBadRequest, errMissingDemandeID)
		return
	}

	plans, err := h.readFiles(r, "plans")
	if err != nil {
		h.logger.Error("quote details error", "error", err, "field", "plans")
		WriteJSONError(w, http.StatusInternalServerError, errDemandeEditFailed)
		return
	}
	photos, err := h.readFiles(r, "photos")
	if err != nil {
		h.logger.Error("quote details error", "error", err, "field", "photos")
		WriteJSONError(w, http.StatusInternalServerError, errDemandeEditFailed)
		return
	}

	err = h.svc.AttachDetails(r.Context(), quote.DetailsInput{
		DemandeID:   demandeID,
		Description: r.FormValue("description"),
		Plans:       plans,
		Photos:      photos,
	})
	if err != nil {
		h.logger.Error("quote details error", "error", err)
		WriteJSONError(w, http.StatusInternalServerError, errDemandeEditFailed)
		return
	}

	WriteJSON(w, map[string]bool{"success": true})
}

// readFiles buffers every uploaded file of a multipart field. The declared
// content type travels with each file; the service applies per-kind
// defaults when it is missing.
func (h *QuoteHandler) readFiles(r *http.Request, field string) ([]domain.FileRef, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	headers := r.MultipartForm.File[field]
	files := make([]domain.FileRef, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, err
		}

		files = append(files, domain.FileRef{
			Name:        header.Filename,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}
