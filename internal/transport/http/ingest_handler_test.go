package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "finsheet/internal/errors"
	"finsheet/internal/exporter"
	"finsheet/internal/middleware"
	"finsheet/internal/services"
	"finsheet/internal/shared/testutil"
	"finsheet/internal/store"
)

type stubFetcher map[string]string

func (f stubFetcher) Download(_ context.Context, symbol string) (string, error) {
	if path, ok := f[symbol]; ok {
		return path, nil
	}
	return "", errors.New("no export for " + symbol)
}

type apiFixture struct {
	router  chi.Router
	store   *store.MemoryStore
	fetcher stubFetcher
}

func newAPI(t *testing.T, withStore bool, maxUpload int64) *apiFixture {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	f := &apiFixture{fetcher: stubFetcher{}}
	deps := services.IngestDeps{
		Fetcher:   f.fetcher,
		SheetName: testutil.ExportSheetName,
		Logger:    logger,
	}
	if withStore {
		f.store = store.NewMemoryStore()
		deps.Store = f.store
	}

	errorHandler := apperrors.NewErrorHandler(logger, false)
	h := NewIngestHandler(services.NewIngestService(deps), middleware.NewValidator(), errorHandler, maxUpload, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Mount("/api/v1", h.Routes())
	f.router = r
	return f
}

func (f *apiFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, target string, workbook []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if workbook != nil {
		part, err := mw.CreateFormFile(uploadField, "export.xlsx")
		require.NoError(t, err)
		_, err = part.Write(workbook)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("other", "x"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func workbookBytes(t *testing.T, rows [][]string) []byte {
	t.Helper()
	data, err := os.ReadFile(testutil.WriteWorkbook(t, testutil.ExportSheetName, rows))
	require.NoError(t, err)
	return data
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func TestIngestHandler_Ingest(t *testing.T) {
	api := newAPI(t, true, 32<<20)

	w := api.do(uploadRequest(t, "/api/v1/ingest?symbol=acme&persist=true", workbookBytes(t, testutil.StatementSheet())))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "ACME", body["symbol"])
	assert.Equal(t, "success", body["status"])
	assert.EqualValues(t, testutil.StatementSheetEvents, body["events"])
	assert.EqualValues(t, testutil.StatementSheetEvents, body["persisted"])
	assert.Equal(t, testutil.StatementSheetEvents, api.store.Len())
}

func TestIngestHandler_IngestCSV(t *testing.T) {
	api := newAPI(t, false, 32<<20)

	w := api.do(uploadRequest(t, "/api/v1/ingest?symbol=acme&format=csv", workbookBytes(t, testutil.StatementSheet())))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "ACME_timeseries.csv")

	records, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, testutil.StatementSheetEvents+1)
	assert.Equal(t, exporter.EventHeaders, records[0])
	assert.Equal(t, "ACME", records[1][len(records[1])-1])
}

func TestIngestHandler_IngestErrors(t *testing.T) {
	missingRatio := testutil.StatementSheet()
	for _, row := range missingRatio {
		if len(row) > 0 && row[0] == "CASH FLOW:" {
			row[0] = "CASHFLOW"
		}
	}

	tests := []struct {
		name       string
		withStore  bool
		maxUpload  int64
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantType   string
	}{
		{
			name:      "missing symbol",
			withStore: true,
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/ingest", workbookBytes(t, testutil.StatementSheet()))
			},
			wantStatus: http.StatusBadRequest,
			wantType:   apperrors.TypeValidation,
		},
		{
			name:      "bad persist flag",
			withStore: true,
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/ingest?symbol=ACME&persist=maybe", workbookBytes(t, testutil.StatementSheet()))
			},
			wantStatus: http.StatusBadRequest,
			wantType:   apperrors.TypeValidation,
		},
		{
			name:      "unknown format",
			withStore: true,
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/ingest?symbol=ACME&format=xml", workbookBytes(t, testutil.StatementSheet()))
			},
			wantStatus: http.StatusBadRequest,
			wantType:   apperrors.TypeValidation,
		},
		{
			name: "persist without store",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/ingest?symbol=ACME&persist=1", workbookBytes(t, testutil.StatementSheet()))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantType:   apperrors.TypeServiceDown,
		},
		{
			name:      "missing file field",
			withStore: true,
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/ingest?symbol=ACME", nil)
			},
			wantStatus: http.StatusBadRequest,
			wantType:   apperrors.TypeValidation,
		},
		{
			name:      "not multipart",
			withStore: true,
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/v1/ingest?symbol=ACME", strings.NewReader("plain"))
			},
			wantStatus: http.StatusBadRequest,
			wantType:   apperrors.TypeValidation,
		},
		{
			name:      "too large",
			withStore: true,
			maxUpload: 64,
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/ingest?symbol=ACME", workbookBytes(t, testutil.StatementSheet()))
			},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   apperrors.TypePayloadTooLarge,
		},
		{
			name:      "not a workbook",
			withStore: true,
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/ingest?symbol=ACME", []byte("definitely not a zip"))
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   apperrors.TypeWorkbookInvalid,
		},
		{
			name:      "ratio input missing",
			withStore: true,
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/ingest?symbol=ACME", workbookBytes(t, missingRatio))
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   apperrors.TypeRequiredColumn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maxUpload := tt.maxUpload
			if maxUpload == 0 {
				maxUpload = 32 << 20
			}
			api := newAPI(t, tt.withStore, maxUpload)

			w := api.do(tt.req(t))
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantType, decode(t, w)["type"])
		})
	}
}

func TestIngestHandler_RefreshAndEvents(t *testing.T) {
	api := newAPI(t, true, 32<<20)
	api.fetcher["TCS"] = testutil.WriteWorkbook(t, testutil.ExportSheetName, testutil.StatementSheet())

	w := api.do(httptest.NewRequest(http.MethodPost, "/api/v1/symbols/tcs/refresh?persist=true", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, testutil.StatementSheetEvents, decode(t, w)["persisted"])

	w = api.do(httptest.NewRequest(http.MethodGet, "/api/v1/symbols/TCS/events", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "TCS", body["symbol"])
	assert.EqualValues(t, testutil.StatementSheetEvents, body["count"])
	events, ok := body["events"].([]interface{})
	require.True(t, ok)
	first := events[0].(map[string]interface{})
	assert.Contains(t, first, "metric_name")
	assert.Contains(t, first, "period_code")

	w = api.do(httptest.NewRequest(http.MethodGet, "/api/v1/symbols/TCS/events?format=csv", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	records, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, exporter.EventHeaders, records[0])
	assert.Len(t, records, testutil.StatementSheetEvents+1)
}

func TestIngestHandler_EventsErrors(t *testing.T) {
	tests := []struct {
		name       string
		withStore  bool
		path       string
		wantStatus int
	}{
		{"unknown symbol", true, "/api/v1/symbols/NOPE/events", http.StatusNotFound},
		{"invalid symbol", true, "/api/v1/symbols/bad%20sym/events", http.StatusBadRequest},
		{"bad format", true, "/api/v1/symbols/TCS/events?format=xml", http.StatusBadRequest},
		{"no store", false, "/api/v1/symbols/TCS/events", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newAPI(t, tt.withStore, 32<<20)
			w := api.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestIngestHandler_RefreshFetchFailure(t *testing.T) {
	api := newAPI(t, true, 32<<20)

	w := api.do(httptest.NewRequest(http.MethodPost, "/api/v1/symbols/NOPE/refresh", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decode(t, w)
	assert.Equal(t, apperrors.TypeUpstream, body["type"])
	assert.Equal(t, "NOPE", body["symbol"])
}

func TestIngestHandler_RefreshBatch(t *testing.T) {
	api := newAPI(t, true, 32<<20)
	api.fetcher["TCS"] = testutil.WriteWorkbook(t, testutil.ExportSheetName, testutil.StatementSheet())

	payload := `{"symbols": ["tcs", " nope "], "persist": true}`
	w := api.do(httptest.NewRequest(http.MethodPost, "/api/v1/refresh", strings.NewReader(payload)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.EqualValues(t, 1, body["succeeded"])
	assert.EqualValues(t, 1, body["failed"])
	companies := body["companies"].([]interface{})
	require.Len(t, companies, 2)
	assert.Equal(t, "NOPE", companies[1].(map[string]interface{})["symbol"])
}

func TestIngestHandler_RefreshBatchValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "symbols=TCS"},
		{"empty list", `{"symbols": []}`},
		{"bad ticker", `{"symbols": ["TCS", "no/slash"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newAPI(t, true, 32<<20)
			w := api.do(httptest.NewRequest(http.MethodPost, "/api/v1/refresh", strings.NewReader(tt.payload)))
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, apperrors.TypeValidation, decode(t, w)["type"])
		})
	}
}
