package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whale-tracker/internal/broadcast"
	"github.com/whale-tracker/internal/models"
	"github.com/whale-tracker/internal/storage"
	"github.com/whale-tracker/internal/types"
)

type fakeWhaleReader struct {
	whales []*models.Whale
	count  int
	err    error
}

func (f *fakeWhaleReader) ListActiveByRank(ctx context.Context, limit int) ([]*models.Whale, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.whales) > limit {
		return f.whales[:limit], nil
	}
	return f.whales, nil
}

func (f *fakeWhaleReader) CountActive(ctx context.Context) (int, error) {
	return f.count, f.err
}

type fakeTxReader struct {
	txs       []*models.WhaleTransaction
	analytics *storage.Analytics
	err       error
}

func (f *fakeTxReader) Recent(ctx context.Context, limit int) ([]*models.WhaleTransaction, error) {
	return f.txs, f.err
}

func (f *fakeTxReader) Analytics24h(ctx context.Context) (*storage.Analytics, error) {
	return f.analytics, f.err
}

type fakeAlertStore struct {
	alerts map[string]*models.Alert
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{alerts: make(map[string]*models.Alert)}
}

func (f *fakeAlertStore) Create(ctx context.Context, alert *models.Alert) error {
	if alert.ID == "" {
		alert.ID = "alert-1"
	}
	f.alerts[alert.ID] = alert
	return nil
}

func (f *fakeAlertStore) Get(ctx context.Context, id string) (*models.Alert, error) {
	return f.alerts[id], nil
}

func (f *fakeAlertStore) ListByUser(ctx context.Context, uid string) ([]*models.Alert, error) {
	var out []*models.Alert
	for _, a := range f.alerts {
		if a.UserID == uid {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAlertStore) Update(ctx context.Context, alert *models.Alert) error {
	f.alerts[alert.ID] = alert
	return nil
}

func (f *fakeAlertStore) Delete(ctx context.Context, id string) error {
	delete(f.alerts, id)
	return nil
}

type fakeHistoryReader struct {
	entries []*models.AlertHistory
}

func (f *fakeHistoryReader) ListByUser(ctx context.Context, uid string, limit int) ([]*models.AlertHistory, error) {
	return f.entries, nil
}

type fakeStatsCache struct {
	metrics *storage.MetricsSnapshot
	whales  []*models.Whale
	stored  int
}

func (f *fakeStatsCache) StoreMetrics(ctx context.Context, snapshot *storage.MetricsSnapshot) error {
	f.metrics = snapshot
	f.stored++
	return nil
}

func (f *fakeStatsCache) LoadMetrics(ctx context.Context) (*storage.MetricsSnapshot, error) {
	return f.metrics, nil
}

func (f *fakeStatsCache) LoadTopWhales(ctx context.Context) ([]*models.Whale, error) {
	return f.whales, nil
}

type serverFixture struct {
	server  *Server
	whales  *fakeWhaleReader
	txs     *fakeTxReader
	alerts  *fakeAlertStore
	history *fakeHistoryReader
	stats   *fakeStatsCache
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()

	f := &serverFixture{
		whales:  &fakeWhaleReader{},
		txs:     &fakeTxReader{},
		alerts:  newFakeAlertStore(),
		history: &fakeHistoryReader{},
		stats:   &fakeStatsCache{},
	}

	cfg := &ServerConfig{
		Host:              "127.0.0.1",
		Port:              "0",
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       30 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             1000,
	}

	f.server = NewServer(cfg, f.whales, f.txs, f.alerts, f.history, f.stats, broadcast.NewHub(time.Minute), nil)
	return f
}

func doRequest(s *Server, method, path, uid string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if uid != "" {
		req.Header.Set("X-User-ID", uid)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	f := newTestServer(t)

	rec := doRequest(f.server, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", body["status"])
	}
}

func TestHandleTopWhales(t *testing.T) {
	f := newTestServer(t)
	f.whales.whales = []*models.Whale{
		{ID: "w1", Rank: 1, Balance: decimal.NewFromInt(1000000), IsActive: true},
		{ID: "w2", Rank: 2, Balance: decimal.NewFromInt(500000), IsActive: true},
	}

	rec := doRequest(f.server, "GET", "/api/top-whales", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Whales []models.Whale `json:"whales"`
		Count  int            `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Count != 2 || len(body.Whales) != 2 {
		t.Errorf("count = %d, whales = %d, want 2/2", body.Count, len(body.Whales))
	}
	if body.Whales[0].Rank != 1 {
		t.Errorf("first whale rank = %d, want 1", body.Whales[0].Rank)
	}
}

func TestHandleTopWhalesDegraded(t *testing.T) {
	f := newTestServer(t)
	f.whales.err = errors.New("connection refused")
	f.stats.whales = []*models.Whale{{ID: "cached", Rank: 1}}

	rec := doRequest(f.server, "GET", "/api/top-whales", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 from cache fallback", rec.Code)
	}

	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["degraded"] != true {
		t.Error("degraded flag missing on cache fallback")
	}
}

func TestHandleWhaleMetrics(t *testing.T) {
	f := newTestServer(t)
	f.whales.count = 12
	f.txs.analytics = &storage.Analytics{
		Volume24h:  decimal.NewFromInt(50000),
		TxCount24h: 7,
	}

	rec := doRequest(f.server, "GET", "/api/whale-metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if f.stats.stored != 1 {
		t.Errorf("snapshot stored %d times, want 1", f.stats.stored)
	}
}

func TestHandleWhaleMetricsDegraded(t *testing.T) {
	f := newTestServer(t)
	f.txs.err = errors.New("clickhouse down")
	f.stats.metrics = &storage.MetricsSnapshot{
		Analytics:  &storage.Analytics{Volume24h: decimal.NewFromInt(1000)},
		WhaleCount: 5,
		CachedAt:   time.Now(),
	}

	rec := doRequest(f.server, "GET", "/api/whale-metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 from cache fallback", rec.Code)
	}

	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["degraded"] != true {
		t.Error("degraded flag missing on cache fallback")
	}
}

func TestHandleWhaleMetricsUnavailable(t *testing.T) {
	f := newTestServer(t)
	f.txs.err = errors.New("clickhouse down")

	rec := doRequest(f.server, "GET", "/api/whale-metrics", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 with no cache", rec.Code)
	}
}

func TestAlertsRequireUser(t *testing.T) {
	f := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{"POST", "/api/alerts"},
		{"GET", "/api/alerts"},
		{"PUT", "/api/alerts/a1"},
		{"DELETE", "/api/alerts/a1"},
		{"GET", "/api/alert-history"},
	} {
		rec := doRequest(f.server, tc.method, tc.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}
}

func TestCreateAlert(t *testing.T) {
	f := newTestServer(t)

	body := map[string]interface{}{
		"name":       "Big Buys",
		"conditions": []map[string]interface{}{{"type": "large_transfer", "value": "5000"}},
		"channels":   []string{"discord"},
		"webhookUrl": "https://discord.com/api/webhooks/x",
	}

	rec := doRequest(f.server, "POST", "/api/alerts", "u1", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var created models.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if created.UserID != "u1" || !created.IsActive {
		t.Errorf("created alert = %+v, want owned by u1 and active", created)
	}
}

func TestCreateAlertValidation(t *testing.T) {
	f := newTestServer(t)

	// balance_change without operator is rejected
	body := map[string]interface{}{
		"name":       "Broken",
		"conditions": []map[string]interface{}{{"type": "balance_change", "value": "5000"}},
		"channels":   []string{"discord"},
	}

	rec := doRequest(f.server, "POST", "/api/alerts", "u1", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateAlertOwnership(t *testing.T) {
	f := newTestServer(t)
	f.alerts.alerts["a1"] = &models.Alert{
		ID:       "a1",
		UserID:   "owner",
		Name:     "Theirs",
		Channels: []types.ChannelType{types.ChannelDiscord},
		IsActive: true,
	}

	rec := doRequest(f.server, "PUT", "/api/alerts/a1", "intruder", map[string]interface{}{"name": "Mine now"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestDeleteAlert(t *testing.T) {
	f := newTestServer(t)
	f.alerts.alerts["a1"] = &models.Alert{ID: "a1", UserID: "u1", Name: "Mine"}

	rec := doRequest(f.server, "DELETE", "/api/alerts/a1", "u1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	if _, ok := f.alerts.alerts["a1"]; ok {
		t.Error("alert still present after delete")
	}

	rec = doRequest(f.server, "DELETE", "/api/alerts/a1", "u1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	f := newTestServer(t)

	rec := doRequest(f.server, "GET", "/api/top-whales", "", nil)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !bytes.Contains([]byte(got), []byte("X-User-ID")) {
		t.Errorf("Allow-Headers = %q, want X-User-ID listed", got)
	}
}
