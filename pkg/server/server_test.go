package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/fieldmap/pkg/logging"
	"github.com/coolbeans/fieldmap/pkg/pipeline"
)

const guideText = `Figure 1. Fields in the ISSUERS data file
Field Name Field Description Format Max Size May be NULL Key
CIK Central Index Key ALPHANUMERIC 10 No *
entityName Name of issuer ALPHANUMERIC 150 No
`

func newTestServer(opts Options) *Server {
	return New(pipeline.New(nil, nil, nil), opts, nil)
}

func do(t *testing.T, s *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(DefaultOptions()), http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListProfiles(t *testing.T) {
	rec := do(t, newTestServer(DefaultOptions()), http.MethodGet, "/v1/profiles", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var profiles []profileSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profiles))
	require.Len(t, profiles, 2)
	assert.Equal(t, "data-dictionary", profiles[0].ID)
	assert.Equal(t, "sec-form-d", profiles[1].ID)
	assert.Equal(t, "builtin", profiles[1].Source)
}

func TestGetProfile(t *testing.T) {
	s := newTestServer(DefaultOptions())

	rec := do(t, s, http.MethodGet, "/v1/profiles/sec-form-d", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sec-form-d")

	rec = do(t, s, http.MethodGet, "/v1/profiles/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtract_Text(t *testing.T) {
	rec := do(t, newTestServer(DefaultOptions()), http.MethodPost, "/v1/extract", "text/plain", guideText)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out pipeline.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Records, 2)
	assert.Equal(t, "CIK", out.Records[0].FieldName)
	assert.Equal(t, "ENTITY_NAME", out.Records[1].FieldName)
	assert.Equal(t, "Name of issuer", out.Records[1].FieldDescription)
	assert.Equal(t, "sec-form-d", out.Profile)
}

func TestExtract_QueryOptions(t *testing.T) {
	s := newTestServer(DefaultOptions())

	rec := do(t, s, http.MethodPost, "/v1/extract?name_case=preserve&format=csv", "text/plain", guideText)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t,
		"Section,Field Name,Field Description\nISSUERS,CIK,Central Index Key\nISSUERS,entityName,Name of issuer\n",
		rec.Body.String())

	rec = do(t, s, http.MethodPost, "/v1/extract?header_mode=loose", "text/plain", guideText)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/extract?format=pdf", "text/plain", guideText)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/extract?profile=missing", "text/plain", guideText)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtract_BadBodies(t *testing.T) {
	s := newTestServer(Options{MaxBodyBytes: 64})

	rec := do(t, s, http.MethodPost, "/v1/extract", "text/plain", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/extract", "text/plain", guideText)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/extract", "application/pdf", "plain text pretending")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestExtract_RateLimit(t *testing.T) {
	s := newTestServer(Options{RatePerSecond: 0.001, Burst: 1})

	rec := do(t, s, http.MethodPost, "/v1/extract", "text/plain", guideText)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/extract", "text/plain", guideText)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Other routes are not limited
	rec = do(t, s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// brokenWriter accepts headers but fails every body write.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (w brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestExtract_CSVWriteErrorIsLogged(t *testing.T) {
	var logs bytes.Buffer
	s := New(pipeline.New(nil, nil, nil), DefaultOptions(), logging.ToWriter(&logs, "info"))

	req := httptest.NewRequest(http.MethodPost, "/v1/extract?format=csv", strings.NewReader(guideText))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(brokenWriter{rec}, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "writing CSV response")
	assert.Contains(t, logs.String(), "connection reset")
}
