package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-watch/internal/fetcher"
	"auction-watch/internal/scheduler"
	"auction-watch/internal/storage"
)

type memMonitors struct {
	storage.MonitorStore
	byID   map[int64]storage.Monitor
	nextID int64
}

func newMemMonitors() *memMonitors {
	return &memMonitors{byID: make(map[int64]storage.Monitor), nextID: 1}
}

func (m *memMonitors) CreateMonitor(ctx context.Context, cfg storage.Monitor) (int64, error) {
	cfg.ID = m.nextID
	m.nextID++
	m.byID[cfg.ID] = cfg
	return cfg.ID, nil
}

func (m *memMonitors) ListMonitors(ctx context.Context) ([]storage.Monitor, error) {
	out := make([]storage.Monitor, 0, len(m.byID))
	for _, cfg := range m.byID {
		out = append(out, cfg)
	}
	return out, nil
}

func (m *memMonitors) GetMonitor(ctx context.Context, id int64) (*storage.Monitor, error) {
	cfg, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (m *memMonitors) UpdateMonitor(ctx context.Context, id int64, cfg storage.Monitor) (bool, error) {
	if _, ok := m.byID[id]; !ok {
		return false, nil
	}
	cfg.ID = id
	m.byID[id] = cfg
	return true, nil
}

func (m *memMonitors) DeleteMonitor(ctx context.Context, id int64) (bool, error) {
	if _, ok := m.byID[id]; !ok {
		return false, nil
	}
	delete(m.byID, id)
	return true, nil
}

type memItems struct {
	storage.ListingStore
	byID map[int64]storage.Listing
}

func (m *memItems) GetListing(ctx context.Context, id int64) (*storage.Listing, error) {
	l, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *memItems) ListListings(ctx context.Context, archived bool) ([]storage.Listing, error) {
	out := make([]storage.Listing, 0)
	for _, l := range m.byID {
		if l.Archived == archived {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memItems) ArchiveListing(ctx context.Context, id int64, archived bool) (bool, error) {
	l, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	l.Archived = archived
	m.byID[id] = l
	return true, nil
}

type memSubs struct {
	storage.SubscriptionStore
	sub *storage.Subscription
}

func (m *memSubs) GetSubscription(ctx context.Context) (*storage.Subscription, error) {
	return m.sub, nil
}

func (m *memSubs) UpsertSubscription(ctx context.Context, sub storage.Subscription) (int64, error) {
	sub.ID = 1
	m.sub = &sub
	return 1, nil
}

type memHistory struct {
	storage.HistoryStore
	entries []storage.PriceChange
}

func (m *memHistory) ListPriceChanges(ctx context.Context, listingID int64) ([]storage.PriceChange, error) {
	return m.entries, nil
}

type fakeManualRunner struct {
	known map[int64]bool
	calls []int64
}

func (f *fakeManualRunner) RunNow(ctx context.Context, id int64) error {
	if !f.known[id] {
		return scheduler.ErrMonitorNotFound
	}
	f.calls = append(f.calls, id)
	return nil
}

type fakePreviewFetcher struct {
	offers []fetcher.Offer
}

func (f *fakePreviewFetcher) FetchListings(ctx context.Context, url string) ([]fetcher.Offer, error) {
	return f.offers, nil
}

type testEnv struct {
	server   *Server
	monitors *memMonitors
	items    *memItems
	subs     *memSubs
	runner   *fakeManualRunner
	fetcher  *fakePreviewFetcher
	router   http.Handler
}

func newTestEnv() *testEnv {
	env := &testEnv{
		monitors: newMemMonitors(),
		items:    &memItems{byID: make(map[int64]storage.Listing)},
		subs:     &memSubs{},
		runner:   &fakeManualRunner{known: make(map[int64]bool)},
		fetcher:  &fakePreviewFetcher{},
	}
	env.server = NewServer(env.monitors, env.items, &memHistory{}, env.subs, env.runner, env.fetcher, zerolog.Nop())
	env.router = env.server.Router()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func validMonitorBody() map[string]any {
	return map[string]any{
		"name":            "notebooks",
		"url":             "https://api.example/offers",
		"keywords":        []string{"notebook+dell"},
		"keywordMode":     "or",
		"intervalMinutes": 5,
		"active":          true,
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"OK"`)
}

func TestCreateAndGetMonitor(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/monitors", validMonitorBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, int64(1), created["id"])

	rec = env.do(t, http.MethodGet, "/api/monitors/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got storage.Monitor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "notebooks", got.Name)
	assert.Equal(t, "OR", got.KeywordMode, "mode is normalised on write")
}

func TestCreateMonitorValidation(t *testing.T) {
	env := newTestEnv()

	body := validMonitorBody()
	body["intervalMinutes"] = 0
	rec := env.do(t, http.MethodPost, "/api/monitors", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = validMonitorBody()
	body["name"] = ""
	rec = env.do(t, http.MethodPost, "/api/monitors", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMonitorNotFound(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/monitors/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateAndDeleteMonitor(t *testing.T) {
	env := newTestEnv()
	env.do(t, http.MethodPost, "/api/monitors", validMonitorBody())

	body := validMonitorBody()
	body["name"] = "renamed"
	rec := env.do(t, http.MethodPut, "/api/monitors/1", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "renamed", env.monitors.byID[1].Name)

	rec = env.do(t, http.MethodDelete, "/api/monitors/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/monitors/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunMonitorNow(t *testing.T) {
	env := newTestEnv()
	env.runner.known[7] = true

	rec := env.do(t, http.MethodPost, "/api/monitors/7/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{7}, env.runner.calls)

	rec = env.do(t, http.MethodPost, "/api/monitors/8/run", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMonitorPreview(t *testing.T) {
	env := newTestEnv()
	env.fetcher.offers = []fetcher.Offer{
		{OfferID: "1", Title: "Dell Notebook", Price: decimal.NewFromInt(1000)},
		{OfferID: "2", Title: "HP Desktop", Price: decimal.NewFromInt(500)},
	}

	rec := env.do(t, http.MethodPost, "/api/monitors/test", validMonitorBody())
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Success        bool             `json:"success"`
		TotalFound     int              `json:"totalFound"`
		FilteredCount  int              `json:"filteredCount"`
		PreviewResults []map[string]any `json:"previewResults"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.TotalFound)
	assert.Equal(t, 1, result.FilteredCount)
	require.Len(t, result.PreviewResults, 1)
	assert.Equal(t, "Dell Notebook", result.PreviewResults[0]["title"])
}

func TestArchiveItem(t *testing.T) {
	env := newTestEnv()
	env.items.byID[3] = storage.Listing{ID: 3, OfferID: "x", Title: "t"}

	rec := env.do(t, http.MethodPatch, "/api/items/3/archive", map[string]bool{"archived": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.items.byID[3].Archived)

	rec = env.do(t, http.MethodPatch, "/api/items/3/archive", map[string]bool{"archived": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.items.byID[3].Archived)
}

func TestTelegramConfigRoundTrip(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/telegram", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/telegram", map[string]any{
		"botToken":       "token",
		"chatId":         "chat",
		"notifyNewItems": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/telegram", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"chat"`)
}
