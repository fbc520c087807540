package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgen/internal/config"
	"leadgen/internal/intake"
	"leadgen/internal/logging"
	"leadgen/internal/model"
	"leadgen/internal/storage"
	"leadgen/internal/worker"
)

type testServer struct {
	handler   http.Handler
	leadsFile string
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Leads.File = filepath.Join(t.TempDir(), "data", "leads.json")
	if mutate != nil {
		mutate(cfg)
	}

	log := logging.Discard()
	w := worker.NewSerialWriter(storage.NewFileStore(cfg.Leads.File, log), cfg.Storage.QueueSize, log)
	w.Start()
	t.Cleanup(w.Stop)

	svc := intake.NewService(intake.Options{
		Store:     w,
		BrandName: cfg.BrandName,
		Logger:    log,
	})
	return &testServer{
		handler:   NewAPI(svc, cfg, log).Router(),
		leadsFile: cfg.Leads.File,
	}
}

func (s *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postLead(body string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, "/api/lead", body, map[string]string{"Content-Type": "application/json"})
}

func (s *testServer) leads(t *testing.T) []model.Lead {
	t.Helper()
	data, err := os.ReadFile(s.leadsFile)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var leads []model.Lead
	require.NoError(t, json.Unmarshal(data, &leads))
	return leads
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSubmitLead_FirstSubmissionPersists(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.postLead(`{"name":"User","email":"test@example.com","company":"Co","phone":"123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"ok": true}, decodeBody(t, rec))

	leads := srv.leads(t)
	require.Len(t, leads, 1)
	lead := leads[0]
	assert.Equal(t, "User", lead.Name)
	assert.Equal(t, "test@example.com", lead.Email)
	assert.Equal(t, "Co", lead.Company)
	assert.Equal(t, "123", lead.Phone)
	assert.Equal(t, "", lead.Message)
	assert.NotEmpty(t, lead.ID)
	assert.False(t, lead.CreatedAt.IsZero())
}

func TestSubmitLead_DuplicateEmailKeepsFirstRecord(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.postLead(`{"name":"User","email":"test@example.com","company":"Co","phone":"123"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.postLead(`{"name":"User2","email":"test@example.com","company":"Co2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"ok": true}, decodeBody(t, rec))

	rec = srv.postLead(`{"name":"User3","email":"TEST@Example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	leads := srv.leads(t)
	require.Len(t, leads, 1)
	assert.Equal(t, "User", leads[0].Name)
	assert.Equal(t, "Co", leads[0].Company)
}

func TestSubmitLead_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad email", body: `{"name":"User","email":"not-an-email"}`},
		{name: "missing name", body: `{"email":"test@example.com"}`},
		{name: "blank name", body: `{"name":"   ","email":"test@example.com"}`},
		{name: "missing email", body: `{"name":"User"}`},
		{name: "malformed json", body: `{"name":`},
		{name: "wrong type", body: `{"name":42,"email":"test@example.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil)

			rec := srv.postLead(tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, map[string]any{"error": "Invalid input"}, decodeBody(t, rec))
			assert.Empty(t, srv.leads(t))
		})
	}
}

func TestSubmitLead_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := srv.do(method, "/api/lead", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
		assert.Equal(t, map[string]any{"error": "Method not allowed"}, decodeBody(t, rec))
	}
	assert.Empty(t, srv.leads(t))
}

func TestSubmitLead_TruncatesLongFields(t *testing.T) {
	srv := newTestServer(t, nil)

	body, err := json.Marshal(map[string]string{
		"name":    strings.Repeat("n", 250),
		"email":   "long@example.com",
		"phone":   strings.Repeat("5", 80),
		"message": strings.Repeat("m", 2500),
	})
	require.NoError(t, err)

	rec := srv.postLead(string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	leads := srv.leads(t)
	require.Len(t, leads, 1)
	assert.Len(t, leads[0].Name, model.MaxNameLength)
	assert.Len(t, leads[0].Phone, model.MaxPhoneLength)
	assert.Len(t, leads[0].Message, model.MaxMessageLength)
}

func TestSubmitLead_RecordsForwardedClientIP(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(http.MethodPost, "/api/lead", `{"name":"User","email":"test@example.com"}`, map[string]string{
		"Content-Type":    "application/json",
		"X-Forwarded-For": "203.0.113.7",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	leads := srv.leads(t)
	require.Len(t, leads, 1)
	assert.Equal(t, "203.0.113.7", leads[0].SourceIP)
}

func TestSubmitLead_SetsRequestID(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(http.MethodGet, "/api/lead", "", map[string]string{"X-Request-ID": "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	rec = srv.do(http.MethodGet, "/api/lead", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCheckout(t *testing.T) {
	t.Run("redirects to payment link", func(t *testing.T) {
		srv := newTestServer(t, func(c *config.Config) {
			c.Checkout.PaymentURL = "https://buy.stripe.com/test_123"
		})

		rec := srv.do(http.MethodGet, "/checkout", "", nil)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://buy.stripe.com/test_123", rec.Header().Get("Location"))
	})

	t.Run("renders unavailable page", func(t *testing.T) {
		srv := newTestServer(t, func(c *config.Config) {
			c.BrandName = "Acme & Sons"
		})

		rec := srv.do(http.MethodGet, "/checkout", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "Checkout unavailable")
		assert.Contains(t, rec.Body.String(), "Acme &amp; Sons")
	})
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok"}, decodeBody(t, rec))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitLead_LargeMessageIsTruncatedNotRejected(t *testing.T) {
	srv := newTestServer(t, nil)

	body, err := json.Marshal(map[string]string{
		"name":    "User",
		"email":   "big@example.com",
		"message": strings.Repeat("m", 70000),
	})
	require.NoError(t, err)

	rec := srv.postLead(string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	leads := srv.leads(t)
	require.Len(t, leads, 1)
	assert.Len(t, leads[0].Message, model.MaxMessageLength)
}

func TestSubmitLead_BodyOverLimitRejected(t *testing.T) {
	srv := newTestServer(t, nil)

	body := `{"name":"User","email":"huge@example.com","message":"` + strings.Repeat("m", maxBodyBytes) + `"}`
	rec := srv.postLead(body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, srv.leads(t))
}

func TestSubmitLead_TrailingDataRejected(t *testing.T) {
	for _, body := range []string{
		`{"name":"User","email":"x@example.com"} garbage`,
		`{"name":"User","email":"x@example.com"}{"name":"Other","email":"y@example.com"}`,
	} {
		srv := newTestServer(t, nil)

		rec := srv.postLead(body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Empty(t, srv.leads(t))
	}

	srv := newTestServer(t, nil)
	rec := srv.postLead("{\"name\":\"User\",\"email\":\"x@example.com\"}\n")
	assert.Equal(t, http.StatusOK, rec.Code, "trailing whitespace is fine")
}
