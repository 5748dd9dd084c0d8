package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fiffu/tickerwatch/config"
	"github.com/fiffu/tickerwatch/lib"
	"github.com/fiffu/tickerwatch/lib/extractor"
	"github.com/fiffu/tickerwatch/lib/models"
	"github.com/fiffu/tickerwatch/lib/notifier"
	"github.com/fiffu/tickerwatch/lib/poller"
	"github.com/fiffu/tickerwatch/lib/scheduler"
	"github.com/fiffu/tickerwatch/lib/store"
	"github.com/fiffu/tickerwatch/senders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type staticFeed []models.FeedItem

func (f staticFeed) Fetch(ctx context.Context) ([]models.FeedItem, error) {
	return f, nil
}

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	log := zaptest.NewLogger(t)
	ctx := context.Background()

	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "api.sqlite"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	st, err := store.NewGormStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	x, err := extractor.NewExtractor(ctx, log, st)
	require.NoError(t, err)

	n := notifier.New(log, st, senders.Registry{}, 1)
	deps := poller.Deps{Checkpoints: st, Notifier: n, Log: log}
	feed := staticFeed{
		{ID: "101", Title: "Fed holds rates", URL: "u101", Key: models.WatermarkFromInt(101)},
		{ID: "102", Title: "Tesla recalls Model Y", URL: "u102", Key: models.WatermarkFromInt(102)},
		{ID: "103", Title: "Oil slides", URL: "u103", Key: models.WatermarkFromInt(103)},
	}
	news := poller.New(poller.Config{Name: poller.SourceFinnhub, Interval: time.Minute}, feed, poller.NewsPipeline{Extractor: x}, deps)
	reddit := poller.NewDiscussionPoller(poller.Config{Interval: time.Minute}, staticFeed{}, false, deps)
	sched := scheduler.New(log, []*poller.Poller{news, reddit}, n)

	svc := lib.NewService(cfg, log, st, x, sched, senders.Registry{})
	server := httptest.NewServer(router(cfg, log, svc))
	t.Cleanup(server.Close)
	return server
}

func loadConfig(t *testing.T) *config.Config {
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAPI_Health(t *testing.T) {
	server := newTestServer(t, loadConfig(t))

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_Subscribers(t *testing.T) {
	server := newTestServer(t, loadConfig(t))
	base := server.URL + "/api/subscribers"

	resp, err := http.PostForm(base, url.Values{"identifier": {"42"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[SubscriberView](t, resp)
	assert.Equal(t, senders.PlatformDiscord, created.Platform)
	require.NotNil(t, created.CreatedAt)
	_, err = time.Parse(time.RFC3339, *created.CreatedAt)
	assert.NoError(t, err)

	// Idempotent.
	resp, err = http.PostForm(base, url.Values{"platform": {"discord"}, "identifier": {"42"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.PostForm(base, url.Values{"platform": {"email"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(base)
	require.NoError(t, err)
	list := decode[[]SubscriberView](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, "42", list[0].Identifier)
	assert.NotNil(t, list[0].CreatedAt)

	req, _ := http.NewRequest(http.MethodDelete, base+"/discord/42", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(base)
	require.NoError(t, err)
	assert.Empty(t, decode[[]SubscriberView](t, resp))
}

func TestAPI_Extract(t *testing.T) {
	server := newTestServer(t, loadConfig(t))

	resp, err := http.PostForm(server.URL+"/api/extract", url.Values{"text": {"Apple announced new iPhone"}})
	require.NoError(t, err)
	body := decode[map[string][]string](t, resp)
	assert.Equal(t, []string{"AAPL"}, body["tickers"])

	resp, err = http.PostForm(server.URL+"/api/extract", url.Values{"text": {""}})
	require.NoError(t, err)
	body = decode[map[string][]string](t, resp)
	assert.Equal(t, []string{}, body["tickers"])
}

func TestAPI_TickAndCheckpoint(t *testing.T) {
	server := newTestServer(t, loadConfig(t))

	resp, err := http.Get(server.URL + "/api/checkpoints/finnhub")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(server.URL+"/api/pollers/finnhub/tick", "", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[poller.TickReport](t, resp)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, "103", report.Watermark)

	resp, err = http.Get(server.URL + "/api/checkpoints/finnhub")
	require.NoError(t, err)
	cp := decode[lib.CheckpointView](t, resp)
	assert.Equal(t, "103", cp.Watermark)

	resp, err = http.Post(server.URL+"/api/pollers/reddit_wsb/tick", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(server.URL+"/api/pollers/nope/tick", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/api/pollers")
	require.NoError(t, err)
	statuses := decode[[]map[string]any](t, resp)
	require.Len(t, statuses, 2)
	assert.Equal(t, "idle", statuses[0]["state"])
	assert.NotNil(t, statuses[0]["last_tick"])
	assert.Equal(t, "disabled", statuses[1]["state"])
}

func TestAPI_ReloadCompanies(t *testing.T) {
	server := newTestServer(t, loadConfig(t))

	resp, err := http.Post(server.URL+"/api/companies/reload", "", nil)
	require.NoError(t, err)
	body := decode[map[string]int](t, resp)
	assert.Greater(t, body["companies"], 10)
}

func TestAPI_BasicAuth(t *testing.T) {
	t.Setenv("BASIC_AUTH_CREDS", "admin:s3cret")
	cfg, err := config.NewConfig(zaptest.NewLogger(t))
	require.NoError(t, err)
	server := newTestServer(t, cfg)

	resp, err := http.Get(server.URL + "/api/pollers")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/pollers", nil)
	req.SetBasicAuth("admin", "s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTransport_LogsAndPassesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer upstream.Close()

	client := &http.Client{Transport: NewTransport(zaptest.NewLogger(t))}
	resp, err := client.Get(upstream.URL + "/news?token=secret")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	resp.Body.Close()

	_, err = client.Get("http://127.0.0.1:1/unreachable")
	assert.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "secret"))
}
