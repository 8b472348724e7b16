// Package airtable implements the external record-store boundary: two
// linked tables (contacts and demandes) plus an attachment upload
// endpoint, reached over HTTPS with bearer-token auth.
//
// The store is treated as an opaque CRUD collaborator. Every failure,
// whether a transport error or a non-2xx response, is mapped to a single
// domain error so callers only ever see one shape.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/atout-travaux/website/internal/domain"
	"github.com/atout-travaux/website/internal/metrics"
)

const (
	// DefaultAPIBaseURL is the base URL for record CRUD operations.
	DefaultAPIBaseURL = "https://api.airtable.com/v0"

	// DefaultContentBaseURL is the base URL for attachment uploads.
	DefaultContentBaseURL = "https://content.airtable.com/v0"

	// DefaultRequestTimeout bounds every call so a hung upstream can
	// never wedge a submission indefinitely.
	DefaultRequestTimeout = 60 * time.Second
)

// Tables holds the table IDs of the production base.
type Tables struct {
	Contacts string
	Demandes string
}

// ContactFields holds the opaque field IDs of the contacts table.
type ContactFields struct {
	Nom        string
	Type       string
	Entreprise string
	Telephone  string
	Email      string
}

// DemandeFields holds the opaque field IDs of the demandes table.
type DemandeFields struct {
	DateReception string
	Message       string
	Contact       string
	Statut        string
	TypeTravaux   string
	Canal         string
	Plans         string
	Images        string
	TailleM2      string
	Ville         string
}

// DefaultTables returns the table IDs of the production base.
func DefaultTables() Tables {
	return Tables{
		Contacts: "tblrGcw3ZWq0nkCWp",
		Demandes: "tbl4llqCthZ5CpeZ2",
	}
}

// DefaultContactFields returns the field IDs of the contacts table.
func DefaultContactFields() ContactFields {
	return ContactFields{
		Nom:        "flddqJ7PgYsGqpnWb",
		Type:       "fldRbFzozqzFuu8mJ",
		Entreprise: "fldvVAMmbs4GHEgwy",
		Telephone:  "fldEkwPKkSZZDTF5n",
		Email:      "fldICXXirX9t8lWjS",
	}
}

// DefaultDemandeFields returns the field IDs of the demandes table.
func DefaultDemandeFields() DemandeFields {
	return DemandeFields{
		DateReception: "fld1WbnDNBKnJIkaM",
		Message:       "fldNKLsKeWNbKpx5F",
		Contact:       "fldv3kgWVlfcHFCIO",
		Statut:        "fld6QfuKLFglfvxzB",
		TypeTravaux:   "fld7uzSC7I8jWyRjz",
		Canal:         "fld3m9qjAJdxJVfDm",
		Plans:         "fldFq4lgugjo1v4Mo",
		Images:        "fldiK38cnsXM6yXln",
		TailleM2:      "fldU6GwH7UqkJiz54",
		Ville:         "fldibDTfs7v9bR2ab",
	}
}

// Config contains configuration for the record-store client.
type Config struct {
	APIToken string
	BaseID   string

	// Base URLs, overridable for tests.
	APIBaseURL     string
	ContentBaseURL string

	RequestTimeout time.Duration

	Tables        Tables
	ContactFields ContactFields
	DemandeFields DemandeFields
}

// Record is a row in the external store: an opaque ID plus a field map
// keyed by field IDs.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Client talks to the record store.
type Client struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// New creates a record-store client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("record store API token is required")
	}
	if cfg.BaseID == "" {
		return nil, fmt.Errorf("record store base ID is required")
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.ContentBaseURL == "" {
		cfg.ContentBaseURL = DefaultContentBaseURL
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Tables == (Tables{}) {
		cfg.Tables = DefaultTables()
	}
	if cfg.ContactFields == (ContactFields{}) {
		cfg.ContactFields = DefaultContactFields()
	}
	if cfg.DemandeFields == (DemandeFields{}) {
		cfg.DemandeFields = DefaultDemandeFields()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "airtable",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("record store breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		breaker: breaker,
		logger:  logger,
	}, nil
}

// ContactFieldIDs exposes the configured contact field IDs.
func (c *Client) ContactFieldIDs() ContactFields { return c.cfg.ContactFields }

// DemandeFieldIDs exposes the configured demande field IDs.
func (c *Client) DemandeFieldIDs() DemandeFields { return c.cfg.DemandeFields }

// FindContactByIdentity looks up at most one contact whose phone OR email
// matches. Returns nil when no contact matches.
func (c *Client) FindContactByIdentity(ctx context.Context, phone, email string) (*Record, error) {
	const op = "airtable.find_contact"

	formula := fmt.Sprintf(`OR({%s}="%s",{%s}="%s")`,
		c.cfg.ContactFields.Telephone, escapeFormulaValue(phone),
		c.cfg.ContactFields.Email, escapeFormulaValue(email),
	)
	params := url.Values{}
	params.Set("filterByFormula", formula)
	params.Set("maxRecords", "1")

	path := fmt.Sprintf("%s/%s/%s?%s", c.cfg.APIBaseURL, c.cfg.BaseID, c.cfg.Tables.Contacts, params.Encode())

	var list listResponse
	if err := c.do(ctx, op, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	if len(list.Records) == 0 {
		return nil, nil
	}
	return &list.Records[0], nil
}

// CreateContact inserts a contact record.
func (c *Client) CreateContact(ctx context.Context, fields map[string]any) (*Record, error) {
	const op = "airtable.create_contact"
	path := fmt.Sprintf("%s/%s/%s", c.cfg.APIBaseURL, c.cfg.BaseID, c.cfg.Tables.Contacts)

	var rec Record
	if err := c.do(ctx, op, http.MethodPost, path, recordBody{Fields: fields}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateContact patches an existing contact record.
func (c *Client) UpdateContact(ctx context.Context, recordID string, fields map[string]any) (*Record, error) {
	const op = "airtable.update_contact"
	path := fmt.Sprintf("%s/%s/%s/%s", c.cfg.APIBaseURL, c.cfg.BaseID, c.cfg.Tables.Contacts, recordID)

	var rec Record
	if err := c.do(ctx, op, http.MethodPatch, path, recordBody{Fields: fields}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateDemande inserts a demande record.
func (c *Client) CreateDemande(ctx context.Context, fields map[string]any) (*Record, error) {
	const op = "airtable.create_demande"
	path := fmt.Sprintf("%s/%s/%s", c.cfg.APIBaseURL, c.cfg.BaseID, c.cfg.Tables.Demandes)

	var rec Record
	if err := c.do(ctx, op, http.MethodPost, path, recordBody{Fields: fields}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateDemande patches an existing demande record.
func (c *Client) UpdateDemande(ctx context.Context, recordID string, fields map[string]any) (*Record, error) {
	const op = "airtable.update_demande"
	path := fmt.Sprintf("%s/%s/%s/%s", c.cfg.APIBaseURL, c.cfg.BaseID, c.cfg.Tables.Demandes, recordID)

	var rec Record
	if err := c.do(ctx, op, http.MethodPatch, path, recordBody{Fields: fields}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UploadAttachment attaches one base64-encoded file to the given field of
// a record via the content endpoint.
func (c *Client) UploadAttachment(ctx context.Context, recordID, fieldID, fileBase64, filename, contentType string) error {
	const op = "airtable.upload_attachment"
	path := fmt.Sprintf("%s/%s/%s/%s/uploadAttachment", c.cfg.ContentBaseURL, c.cfg.BaseID, recordID, fieldID)

	body := attachmentBody{
		ContentType: contentType,
		File:        fileBase64,
		Filename:    filename,
	}
	return c.do(ctx, op, http.MethodPost, path, body, nil)
}

// do executes one request through the circuit breaker and decodes the
// response into out (when out is non-nil).
func (c *Client) do(ctx context.Context, op, method, rawURL string, body, out any) error {
	start := time.Now()

	result, err := c.breaker.Execute(func() (any, error) {
		return c.execute(ctx, method, rawURL, body)
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordStoreRequestsTotal.WithLabelValues(op, status).Inc()
	metrics.RecordStoreRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.Unavailable(err, op, "record store temporarily unavailable")
		}
		var de *domain.Error
		if errors.As(err, &de) {
			return err
		}
		return domain.Unavailable(err, op, "record store request failed")
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result.([]byte), out); err != nil {
		return domain.Internal(err, op, "record store returned an unreadable response")
	}
	return nil
}

// execute performs a single HTTP round trip and returns the raw body.
func (c *Client) execute(ctx context.Context, method, rawURL string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Transport failures look the same to callers as error responses.
		return nil, domain.Unavailable(err, "airtable.request", "record store unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("record store error response",
			"status", resp.StatusCode,
			"url", rawURL,
			"body", truncate(string(respBody), 500),
		)
		return nil, domain.Unavailable(
			fmt.Errorf("record store status %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
			"airtable.request",
			fmt.Sprintf("record store error (status %d)", resp.StatusCode),
		)
	}

	return respBody, nil
}

// escapeFormulaValue escapes double quotes so identity values cannot break
// out of the filter formula's string literals.
func escapeFormulaValue(v string) string {
	return strings.ReplaceAll(v, `"`, `\"`)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// API request/response types

type recordBody struct {
	Fields map[string]any `json:"fields"`
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

type attachmentBody struct {
	ContentType string `json:"contentType"`
	File        string `json:"file"`
	Filename    string `json:"filename"`
}
