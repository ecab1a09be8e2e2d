package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/dvloznov/finance-dashboard/internal/auth"
	authmem "github.com/dvloznov/finance-dashboard/internal/auth/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	jobsmem "github.com/dvloznov/finance-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/notion"
	"github.com/dvloznov/finance-dashboard/internal/paginate"
	"github.com/dvloznov/finance-dashboard/internal/snapshot"
)

var testLog = logger.NewWithWriter(&bytes.Buffer{})

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// Auth

func TestAuthHandler(t *testing.T) {
	v := auth.NewVerifier("1234", authmem.NewStore(), time.Hour)
	h := NewAuthHandler(v, true, testLog)

	rec := httptest.NewRecorder()
	h.Verify(rec, httptest.NewRequest(http.MethodPost, "/api/auth/verify", strings.NewReader(`{"passcode":"1234"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":true}`, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, auth.CookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.NotEmpty(t, c.Value)

	status := func(cookie *http.Cookie) string {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		h.Status(rec, req)
		return rec.Body.String()
	}
	assert.JSONEq(t, `{"authenticated":true}`, status(c))
	assert.JSONEq(t, `{"authenticated":false}`, status(nil))
	assert.JSONEq(t, `{"authenticated":false}`, status(&http.Cookie{Name: auth.CookieName, Value: "authenticated"}))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(c)
	rec = httptest.NewRecorder()
	h.Logout(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false}`, status(c))
}

func TestAuthHandler_Failures(t *testing.T) {
	tests := []struct {
		name     string
		passcode string
		body     string
		want     int
		message  string
	}{
		{"wrong passcode", "1234", `{"passcode":"0000"}`, http.StatusUnauthorized, "Invalid passcode"},
		{"missing passcode", "1234", `{}`, http.StatusUnauthorized, "Invalid passcode"},
		{"not configured", "", `{"passcode":"1234"}`, http.StatusInternalServerError, "Passcode not configured on server"},
		{"bad body", "1234", `not json`, http.StatusBadRequest, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(auth.NewVerifier(tt.passcode, authmem.NewStore(), time.Hour), false, testLog)
			rec := httptest.NewRecorder()
			h.Verify(rec, httptest.NewRequest(http.MethodPost, "/api/auth/verify", strings.NewReader(tt.body)))

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.message, decode(t, rec)["error"])
			assert.Empty(t, rec.Result().Cookies())
		})
	}
}

func TestAuthHandler_VerifyRateLimited(t *testing.T) {
	v := auth.NewVerifier("1234", authmem.NewStore(), time.Hour)
	h := NewAuthHandler(v, false, testLog, WithVerifyLimiter(rate.NewLimiter(rate.Every(time.Minute), 2)))

	verify := func(passcode string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Verify(rec, httptest.NewRequest(http.MethodPost, "/api/auth/verify", strings.NewReader(`{"passcode":"`+passcode+`"}`)))
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, verify("0000").Code)
	assert.Equal(t, http.StatusUnauthorized, verify("0001").Code)

	rec := verify("1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many attempts", decode(t, rec)["error"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Empty(t, rec.Result().Cookies())
}

// Notion

type fakeLoader struct {
	ds     *notion.Dataset
	err    error
	params []string
	cfg    notion.DatabaseConfig
}

func (f *fakeLoader) Load(ctx context.Context, param string) (*notion.Dataset, error) {
	f.params = append(f.params, param)
	return f.ds, f.err
}

func (f *fakeLoader) Databases() notion.DatabaseConfig {
	return f.cfg
}

func day(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func testDataset() *notion.Dataset {
	return &notion.Dataset{
		DatabaseID: "db-2026",
		Tags:       []domain.Tag{{ID: "t1", Name: "rent", Color: "red"}},
		Records: []domain.Record{
			{ID: "1", Kind: domain.KindMaster, Amount: d("1000"), Created: day("2026-01-01")},
			{ID: "2", Kind: domain.KindIncome, Amount: d("500"), Tags: []string{"salary"}, Created: day("2026-01-20")},
			{ID: "3", Kind: domain.KindExpenditure, Amount: d("-300"), Tags: []string{"rent"}, Created: day("2026-02-01")},
		},
	}
}

func TestNotionHandler_GetDataset(t *testing.T) {
	loader := &fakeLoader{ds: testDataset()}
	h := NewNotionHandler(loader, testLog)

	rec := httptest.NewRecorder()
	h.GetDataset(rec, httptest.NewRequest(http.MethodGet, "/api/notion?databaseId=Finance%202026", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "db-2026", body["databaseId"])
	assert.Len(t, body["records"], 3)
	assert.Len(t, body["tags"], 1)
	assert.Equal(t, []string{"Finance 2026"}, loader.params)
}

func TestNotionHandler_Errors(t *testing.T) {
	tests := []struct {
		name    string
		loader  DatasetLoader
		message string
	}{
		{"not configured", nil, "Missing required environment variables"},
		{"invalid config", &fakeLoader{err: fmt.Errorf("Load: %w", notion.ErrInvalidDatabaseConfig)}, notion.ErrInvalidDatabaseConfig.Error()},
		{"no database", &fakeLoader{err: fmt.Errorf("Load: %w", notion.ErrNoDatabaseID)}, notion.ErrNoDatabaseID.Error()},
		{"upstream", &fakeLoader{err: errors.New("Load: 502 bad gateway")}, "Failed to fetch Notion data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewNotionHandler(tt.loader, testLog)
			rec := httptest.NewRecorder()
			h.GetDataset(rec, httptest.NewRequest(http.MethodGet, "/api/notion", nil))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, tt.message, decode(t, rec)["error"])
		})
	}
}

func TestNotionHandler_ListDatabases(t *testing.T) {
	cfg := notion.NewDatabaseConfig([2]string{"Finance 2025", "a"}, [2]string{"Finance 2026", "b"})
	h := NewNotionHandler(&fakeLoader{cfg: cfg}, testLog)

	rec := httptest.NewRecorder()
	h.ListDatabases(rec, httptest.NewRequest(http.MethodGet, "/api/notion/databases", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"databases":{"Finance 2025":"a","Finance 2026":"b"}}`, strings.TrimSpace(rec.Body.String()))

	rec = httptest.NewRecorder()
	NewNotionHandler(nil, testLog).ListDatabases(rec, httptest.NewRequest(http.MethodGet, "/api/notion/databases", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNotionHandler_Summary(t *testing.T) {
	h := NewNotionHandler(&fakeLoader{ds: testDataset()}, testLog)

	rec := httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodGet, "/api/notion/summary?end=2026-01-31", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	ledger := body["ledger"].(map[string]interface{})
	assert.Equal(t, "500", ledger["income"])
	assert.Equal(t, "0", ledger["expenditure"])
	assert.Equal(t, "1500", ledger["checking"])
	assert.Len(t, body["incomeBreakdown"], 1)
	assert.Len(t, body["expenditureBreakdown"], 0)

	rec = httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodGet, "/api/notion/summary?exclude=salary", nil))
	ledger = decode(t, rec)["ledger"].(map[string]interface{})
	assert.Equal(t, "0", ledger["income"])
	assert.Equal(t, "300", ledger["expenditure"])

	rec = httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodGet, "/api/notion/summary?start=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotionHandler_Monthly(t *testing.T) {
	h := NewNotionHandler(&fakeLoader{ds: testDataset()}, testLog)
	h.now = func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) }

	rec := httptest.NewRecorder()
	h.Monthly(rec, httptest.NewRequest(http.MethodGet, "/api/notion/monthly", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	months := decode(t, rec)["months"].([]interface{})
	require.Len(t, months, 2)
	assert.Equal(t, "2026-01", months[0].(map[string]interface{})["month"])
	assert.Equal(t, "1200", months[1].(map[string]interface{})["checkingAtEnd"])

	rec = httptest.NewRecorder()
	h.Monthly(rec, httptest.NewRequest(http.MethodGet, "/api/notion/monthly?recent=4", nil))
	months = decode(t, rec)["months"].([]interface{})
	require.Len(t, months, 4)
	assert.Equal(t, "2026-03", months[3].(map[string]interface{})["month"])
}

func TestNotionHandler_MonthlyRecentTooLarge(t *testing.T) {
	loader := &fakeLoader{ds: testDataset()}
	h := NewNotionHandler(loader, testLog)

	rec := httptest.NewRecorder()
	h.Monthly(rec, httptest.NewRequest(http.MethodGet, "/api/notion/monthly?recent=2000000000", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "recent must be at most 120", decode(t, rec)["error"])
	assert.Empty(t, loader.params)
}

// Trading 212

type fakeBroker struct {
	positions []domain.Position
	fills     []domain.Fill
	divs      []domain.Dividend
	err       error
}

func (f *fakeBroker) Positions(ctx context.Context) ([]domain.Position, error) {
	return f.positions, f.err
}

func (f *fakeBroker) HistoricalOrders(ctx context.Context) ([]domain.Fill, error) {
	return f.fills, f.err
}

func (f *fakeBroker) Dividends(ctx context.Context) ([]domain.Dividend, error) {
	return f.divs, f.err
}

func newTradingHandler(b snapshot.Brokerage) *Trading212Handler {
	if b == nil {
		return NewTrading212Handler(nil, nil, testLog)
	}
	return NewTrading212Handler(b, snapshot.NewBuilder(nil, b, -1), testLog)
}

func TestTrading212Handler_Endpoints(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	b := &fakeBroker{
		positions: []domain.Position{{Ticker: "AAPL", Quantity: d("2"), CurrentPrice: d("150"), Value: d("300")}},
		fills: []domain.Fill{
			{OrderID: "1", Ticker: "AAPL", Side: domain.SideBuy, Status: domain.StatusFilled, NetValue: decimal.NewNullDecimal(d("-250")), FilledAt: &t1},
			{OrderID: "2", Ticker: "AAPL", Side: domain.SideBuy, Status: "CANCELLED"},
			{OrderID: "3", Ticker: "TSLA", Side: domain.SideSell, Status: domain.StatusFilled, NetValue: decimal.NewNullDecimal(d("90")), FilledAt: &t2},
		},
		divs: []domain.Dividend{{Ticker: "AAPL", Amount: d("1.5")}},
	}
	h := newTradingHandler(b)

	rec := httptest.NewRecorder()
	h.Positions(rec, httptest.NewRequest(http.MethodGet, "/api/trading212", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 1)

	rec = httptest.NewRecorder()
	h.HistoricalOrders(rec, httptest.NewRequest(http.MethodGet, "/api/trading212/historical_orders", nil))
	assert.Len(t, decode(t, rec)["data"], 3)

	rec = httptest.NewRecorder()
	h.HistoricalOrders(rec, httptest.NewRequest(http.MethodGet, "/api/trading212/historical_orders?filled=true", nil))
	data := decode(t, rec)["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, "3", data[0].(map[string]interface{})["orderId"])

	rec = httptest.NewRecorder()
	h.HistoricalDividends(rec, httptest.NewRequest(http.MethodGet, "/api/trading212/historical_dividends", nil))
	assert.Len(t, decode(t, rec)["data"], 1)

	rec = httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodGet, "/api/trading212/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "300", body["portfolioValue"])
	assert.Equal(t, "50", body["unrealizedProfitLoss"])
	assert.Len(t, body["openPositions"], 1)
	assert.Len(t, body["closedPositions"], 1)
}

func TestTrading212Handler_Errors(t *testing.T) {
	tests := []struct {
		name    string
		broker  snapshot.Brokerage
		want    int
		message string
		details string
	}{
		{"missing credentials", nil, http.StatusInternalServerError,
			"Missing required environment variables: TRADING_212_API_KEY or TRADING_212_API_SECRET", ""},
		{"upstream 401", &fakeBroker{err: fmt.Errorf("Positions: %w", &paginate.UpstreamError{StatusCode: 401, Body: "bad key"})},
			http.StatusUnauthorized, "Trading 212 API error: 401", "bad key"},
		{"rate limited", &fakeBroker{err: &paginate.UpstreamError{StatusCode: 429, Body: "slow down", Err: paginate.ErrRateLimited}},
			http.StatusTooManyRequests, "Trading 212 API error: 429", "slow down"},
		{"malformed", &fakeBroker{err: &paginate.ParseError{Body: "<html>", Err: errors.New("not an object")}},
			http.StatusInternalServerError, "Invalid JSON response from Trading 212 API", ""},
		{"network", &fakeBroker{err: errors.New("dial tcp: refused")},
			http.StatusInternalServerError, "Failed to fetch Trading 212 data", "dial tcp: refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTradingHandler(tt.broker).Positions(rec, httptest.NewRequest(http.MethodGet, "/api/trading212", nil))

			assert.Equal(t, tt.want, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.message, body["error"])
			if tt.details != "" {
				assert.Equal(t, tt.details, body["details"])
			}
		})
	}
}

func TestTrading212Handler_SummaryUpstreamError(t *testing.T) {
	b := &fakeBroker{err: &paginate.UpstreamError{StatusCode: 503, Body: "maintenance"}}
	rec := httptest.NewRecorder()
	newTradingHandler(b).Summary(rec, httptest.NewRequest(http.MethodGet, "/api/trading212/summary", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTrading212Handler_SummaryIgnoresNotion(t *testing.T) {
	b := &fakeBroker{
		positions: []domain.Position{{Ticker: "AAPL", Quantity: d("2"), CurrentPrice: d("150"), Value: d("300")}},
	}
	loader := &fakeLoader{err: errors.New("notion down")}
	h := NewTrading212Handler(b, snapshot.NewBuilder(loader, b, -1), testLog)

	rec := httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodGet, "/api/trading212/summary", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "300", decode(t, rec)["portfolioValue"])
	assert.Empty(t, loader.params)
}

// Snapshots and jobs

type fakePublisher struct {
	published []*jobs.SnapshotJob
	err       error
}

func (f *fakePublisher) PublishSnapshot(ctx context.Context, job *jobs.SnapshotJob) error {
	if f.err != nil {
		return f.err
	}
	job.JobID = fmt.Sprintf("job-%d", len(f.published)+1)
	job.Status = jobs.JobStatusPending
	f.published = append(f.published, job)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeLister struct {
	rows []*snapshot.Row
	n    int
}

func (f *fakeLister) ListRecent(ctx context.Context, n int) ([]*snapshot.Row, error) {
	f.n = n
	return f.rows, nil
}

func TestSnapshotsHandler_Enqueue(t *testing.T) {
	pub := &fakePublisher{}
	h := NewSnapshotsHandler(pub, nil, testLog)

	rec := httptest.NewRecorder()
	h.Enqueue(rec, httptest.NewRequest(http.MethodPost, "/api/snapshots",
		strings.NewReader(`{"databaseId":"Finance 2026","exclude":["rent,travel"],"start":"2026-01-01"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"job_id":"job-1","status":"pending"}`, rec.Body.String())

	require.Len(t, pub.published, 1)
	job := pub.published[0]
	assert.Equal(t, "Finance 2026", job.DatabaseID)
	assert.Equal(t, []string{"rent", "travel"}, job.ExcludedTags)
	require.NotNil(t, job.Start)
	assert.Nil(t, job.End)

	rec = httptest.NewRecorder()
	h.Enqueue(rec, httptest.NewRequest(http.MethodPost, "/api/snapshots", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	h.Enqueue(rec, httptest.NewRequest(http.MethodPost, "/api/snapshots", strings.NewReader(`{"end":"soon"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Enqueue(rec, httptest.NewRequest(http.MethodPost, "/api/snapshots", strings.NewReader(`[`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	NewSnapshotsHandler(&fakePublisher{err: jobs.ErrQueueClosed}, nil, testLog).
		Enqueue(rec, httptest.NewRequest(http.MethodPost, "/api/snapshots", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSnapshotsHandler_List(t *testing.T) {
	rec := httptest.NewRecorder()
	NewSnapshotsHandler(&fakePublisher{}, nil, testLog).List(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	lister := &fakeLister{rows: []*snapshot.Row{{SnapshotID: "s1", Income: d("12.5").Rat(), Records: 3}}}
	rec = httptest.NewRecorder()
	NewSnapshotsHandler(&fakePublisher{}, lister, testLog).List(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, lister.n)

	body := decode(t, rec)
	assert.Equal(t, float64(1), body["count"])
	first := body["snapshots"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "s1", first["snapshotId"])
	assert.Equal(t, "12.5", first["income"])
}

func TestJobsHandler(t *testing.T) {
	ctx := context.Background()
	store := jobsmem.NewStore()
	now := time.Now()
	require.NoError(t, store.SaveJob(ctx, &jobs.SnapshotJob{JobID: "a", Status: jobs.JobStatusCompleted, CreatedAt: now}))
	require.NoError(t, store.SaveJob(ctx, &jobs.SnapshotJob{JobID: "b", Status: jobs.JobStatusFailed, CreatedAt: now.Add(time.Second)}))
	h := NewJobsHandler(store, testLog)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/jobs/a", nil), map[string]string{"id": "a"})
	rec := httptest.NewRecorder()
	h.GetJob(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decode(t, rec)["status"])

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/jobs/zzz", nil), map[string]string{"id": "zzz"})
	rec = httptest.NewRecorder()
	h.GetJob(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=failed", nil))
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["count"])

	rec = httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?limit=1", nil))
	list := decode(t, rec)["jobs"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].(map[string]interface{})["job_id"])
}
