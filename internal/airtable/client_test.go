package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atout-travaux/website/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{
		APIToken:       "key-test",
		BaseID:         "appTESTBASE000000",
		APIBaseURL:     srv.URL,
		ContentBaseURL: srv.URL,
	}, testLogger())
	require.NoError(t, err)
	return client, srv
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{BaseID: "app123"}, testLogger())
	assert.Error(t, err)

	_, err = New(Config{APIToken: "key"}, testLogger())
	assert.Error(t, err)
}

func TestFindContactByIdentity_Found(t *testing.T) {
	var gotPath, gotAuth, gotFormula, gotMax string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotFormula = r.URL.Query().Get("filterByFormula")
		gotMax = r.URL.Query().Get("maxRecords")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]any{
				{"id": "rec123", "fields": map[string]any{"fldICXXirX9t8lWjS": "a@b.fr"}},
			},
		})
	})

	rec, err := client.FindContactByIdentity(context.Background(), "0612345678", "a@b.fr")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "rec123", rec.ID)
	assert.Equal(t, "/appTESTBASE000000/tblrGcw3ZWq0nkCWp", gotPath)
	assert.Equal(t, "Bearer key-test", gotAuth)
	assert.Equal(t, `OR({fldEkwPKkSZZDTF5n}="0612345678",{fldICXXirX9t8lWjS}="a@b.fr")`, gotFormula)
	assert.Equal(t, "1", gotMax)
}

func TestFindContactByIdentity_NoMatch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"records": []any{}})
	})

	rec, err := client.FindContactByIdentity(context.Background(), "0600000000", "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFindContactByIdentity_EscapesQuotes(t *testing.T) {
	var gotFormula string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotFormula = r.URL.Query().Get("filterByFormula")
		_ = json.NewEncoder(w).Encode(map[string]any{"records": []any{}})
	})

	_, err := client.FindContactByIdentity(context.Background(), `06"),TRUE(),("`, "a@b.fr")
	require.NoError(t, err)
	assert.Contains(t, gotFormula, `\"`)
}

func TestCreateContact_SendsFieldsBody(t *testing.T) {
	var gotMethod string
	var gotBody map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_ = json.NewEncoder(w).Encode(Record{ID: "recNEW", Fields: map[string]any{}})
	})

	rec, err := client.CreateContact(context.Background(), map[string]any{
		"flddqJ7PgYsGqpnWb": "Marie Dupont",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "recNEW", rec.ID)
	fields := gotBody["fields"].(map[string]any)
	assert.Equal(t, "Marie Dupont", fields["flddqJ7PgYsGqpnWb"])
}

func TestUpdateDemande_PatchesRecordPath(t *testing.T) {
	var gotMethod, gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(Record{ID: "recABC"})
	})

	_, err := client.UpdateDemande(context.Background(), "recABC", map[string]any{
		"fldibDTfs7v9bR2ab": "Lyon",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/appTESTBASE000000/tbl4llqCthZ5CpeZ2/recABC", gotPath)
}

func TestUploadAttachment_SendsContentPayload(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{}`)
	})

	err := client.UploadAttachment(context.Background(), "recABC", "fldFq4lgugjo1v4Mo", "cGxhbg==", "plan.pdf", "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "/appTESTBASE000000/recABC/fldFq4lgugjo1v4Mo/uploadAttachment", gotPath)
	assert.Equal(t, "cGxhbg==", gotBody["file"])
	assert.Equal(t, "plan.pdf", gotBody["filename"])
	assert.Equal(t, "application/pdf", gotBody["contentType"])
}

func TestClient_MapsErrorResponses(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":{"type":"INVALID_VALUE_FOR_COLUMN"}}`)
	})

	_, err := client.CreateContact(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestClient_MapsTransportFailures(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close() // force connection refused

	_, err := client.FindContactByIdentity(context.Background(), "06", "a@b.fr")
	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 5; i++ {
		_, err := client.CreateContact(context.Background(), map[string]any{})
		require.Error(t, err)
	}
	assert.Equal(t, 5, calls)

	// Breaker is open now: the upstream must not be hit again.
	_, err := client.CreateContact(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.Equal(t, 5, calls)
}
