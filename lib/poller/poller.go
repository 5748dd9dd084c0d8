// Package poller runs one source's fetch, filter, extract, notify and
// checkpoint cycle.
//
// A Poller owns the checkpoint row for its source. Ticks are single-flight:
// a tick requested while another is running is refused with ErrBusy rather
// than queued.
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fiffu/tickerwatch/lib/models"
	"github.com/fiffu/tickerwatch/lib/seen"
	"github.com/fiffu/tickerwatch/lib/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// bookkeepingTimeout bounds each checkpoint and seen-cache access. They
// get their own deadline so a slow fetch or delivery cannot starve them.
const bookkeepingTimeout = 5 * time.Second

var (
	ErrBusy     = errors.New("poller tick already in progress")
	ErrDisabled = errors.New("poller is disabled")
)

type Fetcher interface {
	Fetch(ctx context.Context) ([]models.FeedItem, error)
}

// Notifier delivers a message to every subscriber. It must not fail.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Pipeline turns fresh items into deliverable ones, in delivery order.
type Pipeline interface {
	Enrich(items []models.FeedItem) models.EnrichedItems
	Format(item models.EnrichedItem) string
}

type Config struct {
	Name        string
	Interval    time.Duration
	TickTimeout time.Duration
}

// Deps are shared by every poller.
type Deps struct {
	Checkpoints store.Checkpoints
	Seen        seen.Cache
	Notifier    Notifier
	Log         *zap.Logger
}

type TickReport struct {
	TickID    string    `json:"tick_id"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Fetched   int       `json:"fetched"`
	Fresh     int       `json:"fresh"`
	Skipped   int       `json:"skipped_seen"`
	Delivered int       `json:"delivered"`
	Watermark string    `json:"watermark,omitempty"`
	Advanced  bool      `json:"advanced"`
	Abandoned bool      `json:"abandoned"`
}

type Status struct {
	Name     string      `json:"name"`
	State    State       `json:"state"`
	Interval string      `json:"interval"`
	Reason   string      `json:"disabled_reason,omitempty"`
	LastTick *TickReport `json:"last_tick,omitempty"`
}

type Poller struct {
	cfg      Config
	fetcher  Fetcher
	pipeline Pipeline

	checkpoints store.Checkpoints
	seen        seen.Cache
	notifier    Notifier
	log         *zap.Logger

	state   atomic.Int32
	running atomic.Bool

	mu       sync.Mutex
	reason   string
	lastTick *TickReport
}

func New(cfg Config, fetcher Fetcher, pipeline Pipeline, deps Deps) *Poller {
	cache := deps.Seen
	if cache == nil {
		cache = seen.Noop{}
	}
	return &Poller{
		cfg:         cfg,
		fetcher:     fetcher,
		pipeline:    pipeline,
		checkpoints: deps.Checkpoints,
		seen:        cache,
		notifier:    deps.Notifier,
		log:         deps.Log.With(zap.String("source", cfg.Name)),
	}
}

// Disable parks the poller permanently. Only the first call is logged.
func (p *Poller) Disable(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if State(p.state.Swap(int32(Disabled))) == Disabled {
		return
	}
	p.reason = reason
	p.log.Sugar().Warnw("Poller disabled", "reason", reason)
}

func (p *Poller) Name() string {
	return p.cfg.Name
}

func (p *Poller) Interval() time.Duration {
	return p.cfg.Interval
}

func (p *Poller) State() State {
	return State(p.state.Load())
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{
		Name:     p.cfg.Name,
		State:    p.State(),
		Interval: p.cfg.Interval.String(),
		Reason:   p.reason,
	}
	if p.lastTick != nil {
		last := *p.lastTick
		st.LastTick = &last
	}
	return st
}

func (p *Poller) setState(s State) {
	p.state.Store(int32(s))
}

// Tick runs one full cycle. Cancelling ctx lets the current stage finish
// but prevents the checkpoint write.
func (p *Poller) Tick(ctx context.Context) (TickReport, error) {
	if p.State() == Disabled {
		return TickReport{}, ErrDisabled
	}
	if !p.running.CompareAndSwap(false, true) {
		return TickReport{}, ErrBusy
	}
	defer p.running.Store(false)

	report := TickReport{TickID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := p.log.With(zap.String("tick_id", report.TickID)).Sugar()

	work := context.WithoutCancel(ctx)
	if p.cfg.TickTimeout > 0 {
		var cancel context.CancelFunc
		work, cancel = context.WithTimeout(work, p.cfg.TickTimeout)
		defer cancel()
	}

	p.run(ctx, work, &report, log)

	p.setState(Idle)
	report.Duration = time.Since(report.StartedAt).String()
	p.mu.Lock()
	p.lastTick = &report
	p.mu.Unlock()
	return report, nil
}

func (p *Poller) run(ctx, work context.Context, report *TickReport, log *zap.SugaredLogger) {
	p.setState(Fetching)
	items, err := p.fetcher.Fetch(work)
	if err != nil {
		log.Warnw("Fetch failed, treating as empty", "err", err)
		items = nil
	}
	report.Fetched = len(items)
	if p.abandon(ctx, report, log) {
		return
	}

	p.setState(Filtering)
	readCtx, cancelRead := bookkeepingContext(ctx)
	last, hasLast, err := p.checkpoints.GetLast(readCtx, p.cfg.Name)
	if err != nil {
		log.Warnw("Failed to read checkpoint, treating as absent", "err", err)
		last, hasLast = models.Watermark{}, false
	}
	fresh, high, hasHigh := FilterAfter(items, last, hasLast)
	report.Fresh = len(fresh)
	fresh = p.dropSeen(readCtx, fresh, report)
	cancelRead()
	if p.abandon(ctx, report, log) {
		return
	}

	p.setState(Extracting)
	enriched := p.pipeline.Enrich(fresh)
	if p.abandon(ctx, report, log) {
		return
	}

	p.setState(Notifying)
	for _, item := range enriched {
		p.notifier.Notify(work, p.pipeline.Format(item))
		p.markSeen(ctx, item.ID)
		report.Delivered++
	}
	if p.abandon(ctx, report, log) {
		return
	}

	p.setState(Checkpointing)
	if !hasHigh || (hasLast && !high.GreaterThan(last)) {
		log.Debugw("No new items", "fetched", report.Fetched)
		return
	}
	report.Watermark = high.String()
	saveCtx, cancel := bookkeepingContext(ctx)
	defer cancel()
	if err := p.checkpoints.UpdateLast(saveCtx, p.cfg.Name, high); err != nil {
		log.Errorw("Failed to write checkpoint, next tick may reprocess items", "watermark", report.Watermark, "err", err)
		return
	}
	report.Advanced = true
	log.Infow("Tick complete",
		"fetched", report.Fetched,
		"fresh", report.Fresh,
		"delivered", report.Delivered,
		"watermark", report.Watermark,
	)
}

// bookkeepingContext detaches from both the caller's cancellation and the
// tick deadline. Cancellation is checked separately before the write.
func bookkeepingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

func (p *Poller) markSeen(ctx context.Context, id string) {
	markCtx, cancel := bookkeepingContext(ctx)
	defer cancel()
	p.seen.MarkSeen(markCtx, p.cfg.Name, id)
}

func (p *Poller) abandon(ctx context.Context, report *TickReport, log *zap.SugaredLogger) bool {
	if ctx.Err() == nil {
		return false
	}
	report.Abandoned = true
	log.Infow("Tick abandoned after cancellation", "state", p.State().String(), "delivered", report.Delivered)
	return true
}

func (p *Poller) dropSeen(ctx context.Context, items []models.FeedItem, report *TickReport) []models.FeedItem {
	kept := items[:0:0]
	for _, item := range items {
		if p.seen.Seen(ctx, p.cfg.Name, item.ID) {
			report.Skipped++
			continue
		}
		kept = append(kept, item)
	}
	return kept
}
