package rest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/errors"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/values"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/config"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/service/bulkreturns"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/service/wizard"
)

const testReturnID = "v1:1:03/28/78/0033:10021668:2018-04-01:2019-03-31"

// fakeBackend doubles as the wizard state store and the bulk return loader
type fakeBackend struct {
	returns map[string]*returns.WaterReturn
	submits int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{returns: map[string]*returns.WaterReturn{}}
}

func (f *fakeBackend) Get(_ context.Context, returnID string) (*returns.WaterReturn, error) {
	wr, ok := f.returns[returnID]
	if !ok {
		return nil, errors.ErrReturnNotFound
	}
	return wr, nil
}

func (f *fakeBackend) Set(_ context.Context, wr *returns.WaterReturn) error {
	f.returns[wr.ReturnID] = wr
	return nil
}

func (f *fakeBackend) Submit(_ context.Context, wr *returns.WaterReturn) error {
	f.submits++
	f.returns[wr.ReturnID] = wr
	return nil
}

func (f *fakeBackend) GetReturn(ctx context.Context, returnID string) (*returns.WaterReturn, error) {
	return f.Get(ctx, returnID)
}

func (f *fakeBackend) SaveUpdated(ctx context.Context, wr *returns.WaterReturn) error {
	return f.Set(ctx, wr)
}

func (f *fakeBackend) ListDue(_ context.Context, _, _ time.Time) ([]*returns.WaterReturn, error) {
	var due []*returns.WaterReturn
	for _, wr := range f.returns {
		if wr.Status == returns.StatusDue {
			due = append(due, wr)
		}
	}
	return due, nil
}

func newAPIReturn(t *testing.T) *returns.WaterReturn {
	t.Helper()

	wr, err := returns.NewWaterReturn(
		testReturnID,
		"03/28/78/0033",
		time.Date(2018, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2019, 3, 31, 0, 0, 0, 0, time.UTC),
		values.MustNewFrequency(values.FrequencyMonth),
		returns.Metadata{Nald: values.MustNewAbstractionPeriod(1, 4, 31, 10)},
	)
	require.NoError(t, err)
	return wr
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeBackend) {
	t.Helper()

	backend := newFakeBackend()
	backend.returns[testReturnID] = newAPIReturn(t)

	logger := zaptest.NewLogger(t)
	handler := NewHandler(
		wizard.NewService(backend, logger),
		bulkreturns.NewService(logger),
		backend,
		config.BulkConfig{CompanyName: "Acme Water"},
		logger,
	)

	mux := http.NewServeMux()
	handler.Routes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, backend
}

func stepURL(server *httptest.Server, path string) string {
	return server.URL + path + "?returnId=" + url.QueryEscape(testReturnID)
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetStepEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(stepURL(server, "/return"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view wizard.StepView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, "start", view.Step)
	assert.NotNil(t, view.Form)
}

func TestGetStepRequiresReturnID(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/return")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetStepUnknownReturn(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/return?returnId=" +
		url.QueryEscape("v1:1:99/99:1:2018-04-01:2019-03-31"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPostStepValid(t *testing.T) {
	server, backend := newTestServer(t)

	resp, err := http.Post(stepURL(server, "/return"), "application/json",
		strings.NewReader(`{"isNil": true}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result wizard.StepResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Contains(t, result.Redirect, "/return/confirm")
	assert.True(t, backend.returns[testReturnID].IsNilReturn())
}

func TestPostStepValidationFailure(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(stepURL(server, "/return"), "application/json",
		strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var result wizard.StepResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Contains(t, result.FieldErrors, "isNil")
}

func TestConfirmSubmits(t *testing.T) {
	server, backend := newTestServer(t)

	resp, err := http.Post(stepURL(server, "/return/confirm"), "application/json",
		strings.NewReader(`{"email": "licensee@example.com", "entityId": "6f8e9c2a-4d3b-4a1e-9f7d-2c5b8a0e1d4f"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 1, backend.submits)
	assert.Equal(t, returns.StatusCompleted, backend.returns[testReturnID].Status)
}

func TestDownloadTemplates(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/bulk/templates?date=2018-06-01")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "readme.txt")
	assert.Contains(t, names, "Acme Water monthly return.csv")
}

func TestUploadTemplate(t *testing.T) {
	server, _ := newTestServer(t)

	cycle := bulkreturns.CycleFromDate(time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC), false)
	template := bulkreturns.NewTemplate(cycle, values.MustNewFrequency(values.FrequencyMonth))
	source := newAPIReturn(t)
	require.NoError(t, source.Reading.SetMethod(returns.MethodAbstractionVolumes))
	require.NoError(t, source.Reading.SetReadingType(returns.ReadingTypeEstimated))
	require.NoError(t, template.AddReturn(source))

	content, err := template.CSV()
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/bulk/upload", "text/csv", bytes.NewReader(content))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Updated []struct {
			ReturnID string `json:"returnId"`
			Status   string `json:"status"`
		} `json:"updated"`
		Processed int `json:"processed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.Processed)
	require.Len(t, result.Updated, 1)
	assert.Equal(t, testReturnID, result.Updated[0].ReturnID)
	assert.Equal(t, "Due", result.Updated[0].Status)
}

// loadOnlyBackend resolves returns but cannot persist them
type loadOnlyBackend struct {
	backend *fakeBackend
}

func (l loadOnlyBackend) GetReturn(ctx context.Context, returnID string) (*returns.WaterReturn, error) {
	return l.backend.GetReturn(ctx, returnID)
}

// An upload must fail outright when the loader cannot persist the updated
// returns; reporting success without saving would silently drop the data.
func TestUploadTemplateRequiresSaver(t *testing.T) {
	backend := newFakeBackend()
	backend.returns[testReturnID] = newAPIReturn(t)

	logger := zaptest.NewLogger(t)
	handler := NewHandler(
		wizard.NewService(backend, logger),
		bulkreturns.NewService(logger),
		loadOnlyBackend{backend: backend},
		config.BulkConfig{CompanyName: "Acme Water"},
		logger,
	)
	mux := http.NewServeMux()
	handler.Routes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	resp, err := http.Post(server.URL+"/bulk/upload", "text/csv",
		strings.NewReader("Licence number\n"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRateLimiter(t *testing.T) {
	backend := newFakeBackend()
	logger := zaptest.NewLogger(t)
	handler := NewHandler(
		wizard.NewService(backend, logger),
		bulkreturns.NewService(logger),
		backend,
		config.BulkConfig{CompanyName: "Acme Water"},
		logger,
	)

	mux := http.NewServeMux()
	handler.Routes(mux)
	limited := rateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})(mux)

	server := httptest.NewServer(limited)
	defer server.Close()

	first, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	first.Body.Close()
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}
