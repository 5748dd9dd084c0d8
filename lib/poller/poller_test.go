package poller

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/fiffu/tickerwatch/lib/extractor"
	"github.com/fiffu/tickerwatch/lib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeFeed struct {
	items      []models.FeedItem
	err        error
	calls      int
	configured bool
	onFetch    func()
}

func (f *fakeFeed) Fetch(ctx context.Context) ([]models.FeedItem, error) {
	f.calls++
	if f.onFetch != nil {
		f.onFetch()
	}
	return f.items, f.err
}

func (f *fakeFeed) Configured() bool { return f.configured }

type memCheckpoints struct {
	mu      sync.Mutex
	values  map[string]models.Watermark
	writes  int
	readErr error
	saveErr error
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{values: map[string]models.Watermark{}}
}

func (m *memCheckpoints) GetLast(ctx context.Context, source string) (models.Watermark, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Watermark{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return models.Watermark{}, false, m.readErr
	}
	w, ok := m.values[source]
	return w, ok, nil
}

func (m *memCheckpoints) UpdateLast(ctx context.Context, source string, w models.Watermark) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.writes++
	m.values[source] = w
	return nil
}

func (m *memCheckpoints) get(source string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.values[source]
	if !ok {
		return ""
	}
	return w.String()
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	onNotify func()
	// waitForDeadline makes Notify hang until its context is done.
	waitForDeadline bool
}

func (r *recordingNotifier) Notify(ctx context.Context, message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
	if r.onNotify != nil {
		r.onNotify()
	}
	if r.waitForDeadline {
		<-ctx.Done()
	}
}

func (r *recordingNotifier) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

type memSeen map[string]bool

func (m memSeen) Seen(ctx context.Context, source, id string) bool {
	return ctx.Err() == nil && m[source+"/"+id]
}

func (m memSeen) MarkSeen(ctx context.Context, source, id string) {
	if ctx.Err() == nil {
		m[source+"/"+id] = true
	}
}

func article(id int64, headline string) models.FeedItem {
	s := strconv.FormatInt(id, 10)
	return models.FeedItem{ID: s, Title: headline, URL: "https://news.example/" + s, Key: models.WatermarkFromInt(id)}
}

func post(key float64, title string) models.FeedItem {
	s := strconv.FormatFloat(key, 'f', -1, 64)
	return models.FeedItem{ID: "t3_" + s, Title: title, URL: "https://reddit.com/r/wallstreetbets/comments/" + s, Key: models.WatermarkFromFloat(key)}
}

var testIndex = extractor.Build(map[string]string{
	"Apple":  "AAPL",
	"Tesla":  "TSLA",
	"Nvidia": "NVDA",
})

type harness struct {
	feed        *fakeFeed
	checkpoints *memCheckpoints
	notifier    *recordingNotifier
	seen        memSeen
}

func newHarness(items ...models.FeedItem) *harness {
	return &harness{
		feed:        &fakeFeed{items: items, configured: true},
		checkpoints: newMemCheckpoints(),
		notifier:    &recordingNotifier{},
		seen:        memSeen{},
	}
}

func (h *harness) deps(t *testing.T) Deps {
	return Deps{Checkpoints: h.checkpoints, Seen: h.seen, Notifier: h.notifier, Log: zaptest.NewLogger(t)}
}

func (h *harness) news(t *testing.T) *Poller {
	return NewNewsPoller(Config{Interval: time.Minute, TickTimeout: time.Second}, h.feed, testIndex, h.deps(t))
}

func (h *harness) discussion(t *testing.T) *Poller {
	return NewDiscussionPoller(Config{Interval: time.Minute, TickTimeout: time.Second}, h.feed, true, h.deps(t))
}

func TestFilterAfter_IdempotentResumption(t *testing.T) {
	var items []models.FeedItem
	for id := int64(1); id <= 10; id++ {
		items = append(items, article(id, "x"))
	}

	fresh, high, ok := FilterAfter(items, models.Watermark{}, false)
	assert.Len(t, fresh, 10)
	assert.True(t, ok)
	assert.Equal(t, "10", high.String())

	for w := int64(0); w <= 11; w++ {
		fresh, high, ok := FilterAfter(items, models.WatermarkFromInt(w), true)
		for _, item := range fresh {
			assert.True(t, item.Key.GreaterThan(models.WatermarkFromInt(w)), "W=%d id=%s", w, item.ID)
		}
		if w >= 10 {
			assert.Empty(t, fresh)
			assert.False(t, ok)
			continue
		}
		assert.Len(t, fresh, int(10-w))
		assert.Equal(t, "10", high.String())
	}
}

func TestFilterAfter_KeepsFeedOrder(t *testing.T) {
	items := []models.FeedItem{article(7, "a"), article(3, "b"), article(9, "c"), article(5, "d")}
	fresh, high, ok := FilterAfter(items, models.WatermarkFromInt(4), true)
	require.True(t, ok)
	assert.Equal(t, "9", high.String())
	assert.Equal(t, []string{"7", "9", "5"}, []string{fresh[0].ID, fresh[1].ID, fresh[2].ID})
}

func TestNewsPoller_EndToEnd(t *testing.T) {
	h := newHarness(
		article(101, "Fed holds rates steady"),
		article(102, "Tesla recalls Model Y"),
		article(103, "Oil slides on supply news"),
	)
	p := h.news(t)

	report, err := p.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "103", h.checkpoints.get(SourceFinnhub))
	assert.Equal(t, []string{"New article mentioning TSLA: Tesla recalls Model Y - https://news.example/102"}, h.notifier.sent())
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 3, report.Fresh)
	assert.Equal(t, 1, report.Delivered)
	assert.True(t, report.Advanced)
	assert.NotEmpty(t, report.TickID)
	assert.Equal(t, Idle, p.State())

	// Same feed again: nothing new, nothing written.
	report, err = p.Tick(context.Background())
	require.NoError(t, err)
	assert.Len(t, h.notifier.sent(), 1)
	assert.Equal(t, 1, h.checkpoints.writes)
	assert.False(t, report.Advanced)

	st := p.Status()
	assert.Equal(t, SourceFinnhub, st.Name)
	require.NotNil(t, st.LastTick)
	assert.Equal(t, report.TickID, st.LastTick.TickID)
}

func TestNewsPoller_MultipleTickersSorted(t *testing.T) {
	h := newHarness(article(1, "Tesla and Apple lead gains"))
	p := h.news(t)

	_, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"New article mentioning AAPL, TSLA: Tesla and Apple lead gains - https://news.example/1"}, h.notifier.sent())
}

func TestNewsPoller_ExtractsFromSummary(t *testing.T) {
	item := article(1, "Chipmakers rally")
	item.Summary = "Nvidia jumps 5%"
	h := newHarness(item)

	_, err := h.news(t).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"New article mentioning NVDA: Chipmakers rally - https://news.example/1"}, h.notifier.sent())
}

func TestNewsPoller_CheckpointNeverRegresses(t *testing.T) {
	h := newHarness(article(101, "Tesla"), article(102, "Apple"))
	h.checkpoints.values[SourceFinnhub] = models.WatermarkFromInt(200)

	_, err := h.news(t).Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.notifier.sent())
	assert.Equal(t, 0, h.checkpoints.writes)
	assert.Equal(t, "200", h.checkpoints.get(SourceFinnhub))
}

func TestNewsPoller_NoMatchIsDroppedButCheckpointed(t *testing.T) {
	h := newHarness(article(5, "Markets are quiet"), article(6, "Bond yields inch up"))

	_, err := h.news(t).Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.notifier.sent())
	assert.Equal(t, "6", h.checkpoints.get(SourceFinnhub))
}

func TestNewsPoller_DuplicateIDsBothProcessed(t *testing.T) {
	h := newHarness(article(7, "Apple opens store"), article(7, "Apple opens store"))

	_, err := h.news(t).Tick(context.Background())
	require.NoError(t, err)
	assert.Len(t, h.notifier.sent(), 2)
	assert.Equal(t, "7", h.checkpoints.get(SourceFinnhub))
}

func TestNewsPoller_FetchFailureIsEmpty(t *testing.T) {
	h := newHarness()
	h.feed.err = errors.New("503 service unavailable")
	h.checkpoints.values[SourceFinnhub] = models.WatermarkFromInt(50)

	report, err := h.news(t).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Fetched)
	assert.Empty(t, h.notifier.sent())
	assert.Equal(t, 0, h.checkpoints.writes)
	assert.Equal(t, "50", h.checkpoints.get(SourceFinnhub))
}

func TestNewsPoller_ReadFailureTreatedAsAbsent(t *testing.T) {
	h := newHarness(article(1, "Apple"), article(2, "Tesla"))
	h.checkpoints.readErr = errors.New("database is locked")

	_, err := h.news(t).Tick(context.Background())
	require.NoError(t, err)
	assert.Len(t, h.notifier.sent(), 2)
	assert.Equal(t, "2", h.checkpoints.get(SourceFinnhub))
}

func TestNewsPoller_WriteFailureIsLogged(t *testing.T) {
	h := newHarness(article(1, "Apple"))
	h.checkpoints.saveErr = errors.New("disk full")

	report, err := h.news(t).Tick(context.Background())
	require.NoError(t, err)
	assert.Len(t, h.notifier.sent(), 1)
	assert.False(t, report.Advanced)
	assert.Equal(t, "1", report.Watermark)
}

func TestNewsPoller_SlowDeliveryStillAdvancesCheckpoint(t *testing.T) {
	h := newHarness(article(101, "Apple beats estimates"), article(102, "Tesla recalls Model Y"))
	h.notifier.waitForDeadline = true
	p := NewNewsPoller(Config{Interval: time.Minute, TickTimeout: 50 * time.Millisecond}, h.feed, testIndex, h.deps(t))

	report, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Delivered)
	assert.True(t, report.Advanced)
	assert.Equal(t, "102", h.checkpoints.get(SourceFinnhub))
	assert.True(t, h.seen.Seen(context.Background(), SourceFinnhub, "102"))

	// Later ticks do not deliver the same items again.
	for i := 0; i < 2; i++ {
		report, err = p.Tick(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, report.Delivered)
	}
	assert.Len(t, h.notifier.sent(), 2)
}

func TestNewsPoller_SeenItemsSkipped(t *testing.T) {
	h := newHarness(article(102, "Tesla"), article(103, "Apple"))
	h.seen.MarkSeen(context.Background(), SourceFinnhub, "103")

	report, err := h.news(t).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"New article mentioning TSLA: Tesla - https://news.example/102"}, h.notifier.sent())
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, "103", h.checkpoints.get(SourceFinnhub))
	assert.True(t, h.seen.Seen(context.Background(), SourceFinnhub, "102"))
}

func TestNewsPoller_DisabledWithoutCredentials(t *testing.T) {
	h := newHarness(article(1, "Apple"))
	h.feed.configured = false
	p := h.news(t)

	assert.Equal(t, Disabled, p.State())
	_, err := p.Tick(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Equal(t, 0, h.feed.calls)
	assert.Equal(t, "FINNHUB_API_KEY is not set", p.Status().Reason)

	p.Disable("again")
	assert.Equal(t, "FINNHUB_API_KEY is not set", p.Status().Reason)
}

func TestDiscussionPoller_DeliversOldestFirst(t *testing.T) {
	h := newHarness(post(5, "five"), post(3, "three"), post(4, "four"), post(1, "one"))
	h.checkpoints.values[SourceRedditWSB] = models.WatermarkFromInt(2)

	_, err := h.discussion(t).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"New DD post: three - https://reddit.com/r/wallstreetbets/comments/3",
		"New DD post: four - https://reddit.com/r/wallstreetbets/comments/4",
		"New DD post: five - https://reddit.com/r/wallstreetbets/comments/5",
	}, h.notifier.sent())
	assert.Equal(t, "5", h.checkpoints.get(SourceRedditWSB))
}

func TestDiscussionPoller_StrictlyAfterWatermark(t *testing.T) {
	h := newHarness(post(1700000000.5, "same instant"), post(1700000000.75, "later"))
	h.checkpoints.values[SourceRedditWSB] = models.WatermarkFromFloat(1700000000.5)

	_, err := h.discussion(t).Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, h.notifier.sent(), 1)
	assert.Contains(t, h.notifier.sent()[0], "later")
	assert.Equal(t, "1700000000.75", h.checkpoints.get(SourceRedditWSB))
}

func TestDiscussionPoller_Disabled(t *testing.T) {
	h := newHarness()
	p := NewDiscussionPoller(Config{}, h.feed, false, h.deps(t))
	assert.Equal(t, SourceRedditWSB, p.Name())
	_, err := p.Tick(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestPoller_CancelledDuringFetchSkipsCheckpoint(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(article(1, "Apple"))
	h.feed.onFetch = cancel

	report, err := h.news(t).Tick(ctx)
	require.NoError(t, err)
	assert.True(t, report.Abandoned)
	assert.Equal(t, 1, h.feed.calls)
	assert.Empty(t, h.notifier.sent())
	assert.Equal(t, 0, h.checkpoints.writes)
}

func TestPoller_CancelledDuringNotifyFinishesStage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(article(1, "Apple"), article(2, "Tesla"))
	h.notifier.onNotify = cancel

	report, err := h.news(t).Tick(ctx)
	require.NoError(t, err)
	assert.True(t, report.Abandoned)
	assert.Len(t, h.notifier.sent(), 2)
	assert.Equal(t, 0, h.checkpoints.writes)
}

func TestPoller_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(article(1, "Apple"))
	h.feed.onFetch = func() { <-release }
	p := h.news(t)

	done := make(chan error, 1)
	go func() {
		_, err := p.Tick(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return p.State() == Fetching }, time.Second, time.Millisecond)
	_, err := p.Tick(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.feed.calls)
	assert.Equal(t, "1", h.checkpoints.get(SourceFinnhub))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "checkpointing", Checkpointing.String())
	assert.Equal(t, "unknown", State(42).String())
}
