package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-dashboard/internal/api"
	"github.com/dvloznov/finance-dashboard/internal/api/handlers"
	"github.com/dvloznov/finance-dashboard/internal/auth"
	authmem "github.com/dvloznov/finance-dashboard/internal/auth/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	jobsmem "github.com/dvloznov/finance-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/notion"
	"github.com/dvloznov/finance-dashboard/internal/snapshot"
	"github.com/shopspring/decimal"
)

type staticLoader struct {
	ds *notion.Dataset
}

func (l staticLoader) Load(ctx context.Context, param string) (*notion.Dataset, error) {
	return l.ds, nil
}

func (l staticLoader) Databases() notion.DatabaseConfig {
	return notion.NewDatabaseConfig([2]string{"Finance 2026", l.ds.DatabaseID})
}

type testServer struct {
	handler http.Handler
	logs    *bytes.Buffer
	store   *jobsmem.Store
	queue   *jobsmem.Queue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logs := &bytes.Buffer{}
	log := logger.NewWithWriter(logs)

	created := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	loader := staticLoader{ds: &notion.Dataset{
		DatabaseID: "db-1",
		Records: []domain.Record{
			{ID: "1", Kind: domain.KindIncome, Amount: decimal.NewFromInt(100), Created: &created},
		},
	}}

	verifier := auth.NewVerifier("4321", authmem.NewStore(), time.Hour)
	store := jobsmem.NewStore()
	builder := snapshot.NewBuilder(loader, nil, -1)
	runner := snapshot.NewRunner(builder, nil, nil)
	queue := jobsmem.NewQueue(4, store, jobsmem.WithRetryDelay(time.Millisecond))
	require.NoError(t, queue.Start(context.Background(), runner.Handle))
	t.Cleanup(func() {
		_ = queue.Stop(context.Background())
	})

	h := api.Handlers{
		Auth:       handlers.NewAuthHandler(verifier, false, log),
		Notion:     handlers.NewNotionHandler(loader, log),
		Trading212: handlers.NewTrading212Handler(nil, nil, log),
		Snapshots:  handlers.NewSnapshotsHandler(queue, nil, log),
		Jobs:       handlers.NewJobsHandler(store, log),
	}
	router := api.NewRouter(h, verifier, []string{"http://localhost:3000"}, log)
	return &testServer{handler: router, logs: logs, store: store, queue: queue}
}

func (s *testServer) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, s *testServer) *http.Cookie {
	t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/verify", `{"passcode":"4321"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestRouter_AuthGate(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/notion/summary", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/notion/summary", "", &http.Cookie{Name: auth.CookieName, Value: "authenticated"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/auth/verify", "", nil)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	cookie := login(t, s)
	rec = s.do(http.MethodGet, "/api/notion/summary", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body struct {
		DatabaseID string `json:"databaseId"`
		Ledger     struct {
			Income string `json:"income"`
		} `json:"ledger"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "db-1", body.DatabaseID)
	assert.Equal(t, "100", body.Ledger.Income)

	rec = s.do(http.MethodPost, "/api/auth/logout", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/notion/summary", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_Routing(t *testing.T) {
	s := newTestServer(t)
	cookie := login(t, s)

	rec := s.do(http.MethodGet, "/api/unknown", "", cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, "/api/notion", "", cookie)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = s.do(http.MethodGet, "/api/notion/databases", "", cookie)
	assert.JSONEq(t, `{"databases":{"Finance 2026":"db-1"}}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/trading212", "", cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = s.do(http.MethodGet, "/api/snapshots", "", cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Preflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/notion", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_LogsRequestID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "rid-7")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rid-7", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, s.logs.String(), `"request_id":"rid-7"`)
	assert.Contains(t, s.logs.String(), "HTTP request")
}

func TestRouter_SnapshotJob(t *testing.T) {
	s := newTestServer(t)
	cookie := login(t, s)

	rec := s.do(http.MethodPost, "/api/snapshots", `{"exclude":["rent"]}`, cookie)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.JobID)

	require.Eventually(t, func() bool {
		job, err := s.store.GetJob(context.Background(), accepted.JobID)
		return err == nil && job.Status == jobs.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	rec = s.do(http.MethodGet, "/api/jobs/"+accepted.JobID, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var job jobs.SnapshotJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, []string{"rent"}, job.ExcludedTags)
	require.NotNil(t, job.Result)
	assert.NotEmpty(t, job.Result.SnapshotID)
}
