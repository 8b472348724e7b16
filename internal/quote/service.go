package quote

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/atout-travaux/website/internal/airtable"
	"github.com/atout-travaux/website/internal/domain"
	"github.com/atout-travaux/website/internal/metrics"
)

// Record-store values set once when a demande is created.
const (
	demandeStatusNew = "Nouvelle"
	demandeChannel   = "Site web"
)

// Default content types for attachments whose type was not declared.
const (
	defaultPlanContentType  = "application/octet-stream"
	defaultPhotoContentType = "image/jpeg"
)

// RecordStore is the external record API boundary the submission logic
// depends on. *airtable.Client satisfies it.
type RecordStore interface {
	FindContactByIdentity(ctx context.Context, phone, email string) (*airtable.Record, error)
	CreateContact(ctx context.Context, fields map[string]any) (*airtable.Record, error)
	UpdateContact(ctx context.Context, recordID string, fields map[string]any) (*airtable.Record, error)
	CreateDemande(ctx context.Context, fields map[string]any) (*airtable.Record, error)
	UpdateDemande(ctx context.Context, recordID string, fields map[string]any) (*airtable.Record, error)
	UploadAttachment(ctx context.Context, recordID, fieldID, fileBase64, filename, contentType string) error
	ContactFieldIDs() airtable.ContactFields
	DemandeFieldIDs() airtable.DemandeFields
}

// ContactInput carries the identity step's fields.
type ContactInput struct {
	FirstName   string
	LastName    string
	Phone       string
	Email       string
	ClientType  domain.ClientType
	CompanyName string
}

// ContactResult reports the persisted contact.
type ContactResult struct {
	ContactID string
	IsNew     bool
}

// DemandeInput carries the project step's fields. DemandeID is empty on
// the first submission and set on subsequent edits.
type DemandeInput struct {
	ContactID   string
	DemandeID   string
	ProjectType string
	Surface     string
	Location    string
}

// DetailsInput carries the details step's payload.
type DetailsInput struct {
	DemandeID   string
	Description string
	Plans       []domain.FileRef
	Photos      []domain.FileRef
}

// Service implements the server side of the three submission phases.
type Service struct {
	store  RecordStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a quote service backed by the given record store.
func NewService(store RecordStore, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// SaveContact persists the identity step. Contacts are matched by phone OR
// email before creation so the same visitor never produces duplicates: an
// existing contact is updated in place with their latest details.
func (s *Service) SaveContact(ctx context.Context, in ContactInput) (ContactResult, error) {
	f := s.store.ContactFieldIDs()

	fullName := in.FirstName + " " + in.LastName
	fields := map[string]any{
		f.Nom:       fullName,
		f.Type:      in.ClientType.Label(),
		f.Telephone: in.Phone,
		f.Email:     in.Email,
	}
	if in.CompanyName != "" {
		fields[f.Entreprise] = in.CompanyName
	}

	existing, err := s.store.FindContactByIdentity(ctx, in.Phone, in.Email)
	if err != nil {
		return ContactResult{}, err
	}

	if existing != nil {
		updated, err := s.store.UpdateContact(ctx, existing.ID, fields)
		if err != nil {
			return ContactResult{}, err
		}
		s.logger.Info("contact updated", "contact_id", updated.ID)
		return ContactResult{ContactID: updated.ID, IsNew: false}, nil
	}

	created, err := s.store.CreateContact(ctx, fields)
	if err != nil {
		return ContactResult{}, err
	}
	s.logger.Info("contact created", "contact_id", created.ID)
	return ContactResult{ContactID: created.ID, IsNew: true}, nil
}

// SaveDemande persists the project step. The first submission creates a
// demande linked to the contact with its status and channel metadata;
// later submissions update the existing record's work-type, city and
// surface only, keyed by the stored demande ID.
func (s *Service) SaveDemande(ctx context.Context, in DemandeInput) (string, error) {
	f := s.store.DemandeFieldIDs()

	workType := domain.WorkTypeLabel(in.ProjectType)
	surface, hasSurface := parseSurface(in.Surface)

	if in.DemandeID != "" {
		fields := map[string]any{
			f.TypeTravaux: workType,
			f.Ville:       in.Location,
		}
		if hasSurface {
			fields[f.TailleM2] = surface
		}
		if _, err := s.store.UpdateDemande(ctx, in.DemandeID, fields); err != nil {
			return "", err
		}
		s.logger.Info("demande updated", "demande_id", in.DemandeID)
		return in.DemandeID, nil
	}

	fields := map[string]any{
		f.Contact:       []string{in.ContactID},
		f.TypeTravaux:   workType,
		f.Ville:         in.Location,
		f.Canal:         demandeChannel,
		f.Statut:        demandeStatusNew,
		f.DateReception: s.now().UTC().Format(time.RFC3339),
	}
	if hasSurface {
		fields[f.TailleM2] = surface
	}

	created, err := s.store.CreateDemande(ctx, fields)
	if err != nil {
		return "", err
	}
	s.logger.Info("demande created", "demande_id", created.ID, "contact_id", in.ContactID)
	return created.ID, nil
}

// AttachDetails persists the details step: an optional free-text message,
// then every plan, then every photo, uploaded strictly sequentially in
// list order. A failure partway through stops subsequent uploads but does
// not roll back files already attached; resubmitting the step re-uploads
// everything as new attachments.
func (s *Service) AttachDetails(ctx context.Context, in DetailsInput) error {
	f := s.store.DemandeFieldIDs()

	if in.Description != "" {
		if _, err := s.store.UpdateDemande(ctx, in.DemandeID, map[string]any{
			f.Message: in.Description,
		}); err != nil {
			return err
		}
	}

	if err := s.uploadAll(ctx, in.DemandeID, f.Plans, in.Plans, FileFieldPlans, defaultPlanContentType); err != nil {
		return err
	}
	if err := s.uploadAll(ctx, in.DemandeID, f.Images, in.Photos, FileFieldPhotos, defaultPhotoContentType); err != nil {
		return err
	}

	s.logger.Info("demande completed",
		"demande_id", in.DemandeID,
		"plans", len(in.Plans),
		"photos", len(in.Photos),
	)
	return nil
}

func (s *Service) uploadAll(ctx context.Context, demandeID, fieldID string, files []domain.FileRef, kind, fallbackType string) error {
	for _, file := range files {
		if file.Size <= 0 || len(file.Data) == 0 {
			continue
		}

		contentType := file.ContentType
		if contentType == "" {
			contentType = fallbackType
		}
		encoded := base64.StdEncoding.EncodeToString(file.Data)

		err := s.store.UploadAttachment(ctx, demandeID, fieldID, encoded, file.Name, contentType)
		if err != nil {
			metrics.QuoteAttachmentsTotal.WithLabelValues(kind, "error").Inc()
			return err
		}
		metrics.QuoteAttachmentsTotal.WithLabelValues(kind, "ok").Inc()
	}
	return nil
}

// parseSurface converts the free-text surface field to a number. Values
// that do not parse are silently dropped rather than rejected.
func parseSurface(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
