package lib

import (
	"context"
	"errors"
	"fmt"

	"github.com/fiffu/tickerwatch/config"
	"github.com/fiffu/tickerwatch/lib/extractor"
	"github.com/fiffu/tickerwatch/lib/poller"
	"github.com/fiffu/tickerwatch/lib/scheduler"
	"github.com/fiffu/tickerwatch/lib/store"
	"github.com/fiffu/tickerwatch/senders"
	"go.uber.org/zap"
)

var ErrUnknownPoller = errors.New("unknown poller")

type Service struct {
	cfg       *config.Config
	log       *zap.Logger
	store     store.Store
	extractor *extractor.Extractor
	scheduler *scheduler.Scheduler

	*subscribe
}

func NewService(cfg *config.Config, log *zap.Logger, st store.Store, x *extractor.Extractor, sched *scheduler.Scheduler, registry senders.Registry) *Service {
	return &Service{
		cfg, log, st, x, sched,
		&subscribe{log, st, registry},
	}
}

type CheckpointView struct {
	Source    string `json:"source"`
	Watermark string `json:"watermark"`
}

// Checkpoint returns the stored watermark for source, if any.
func (svc *Service) Checkpoint(ctx context.Context, source string) (*CheckpointView, error) {
	w, ok, err := svc.store.GetLast(ctx, source)
	if err != nil || !ok {
		return nil, err
	}
	return &CheckpointView{source, w.String()}, nil
}

func (svc *Service) PollerStatuses() []poller.Status {
	pollers := svc.scheduler.Pollers()
	out := make([]poller.Status, len(pollers))
	for i, p := range pollers {
		out[i] = p.Status()
	}
	return out
}

// TickNow runs one tick of the named poller outside its schedule. It
// competes with scheduled ticks for the poller's single flight.
func (svc *Service) TickNow(ctx context.Context, name string) (poller.TickReport, error) {
	p, ok := svc.scheduler.Lookup(name)
	if !ok {
		return poller.TickReport{}, fmt.Errorf("%w: %s", ErrUnknownPoller, name)
	}
	svc.log.Sugar().Infow("Manual tick requested", "source", name)
	return p.Tick(context.WithoutCancel(ctx))
}

func (svc *Service) Extract(text string) []string {
	return svc.extractor.Extract(text)
}

func (svc *Service) ReloadCompanies(ctx context.Context) (int, error) {
	return svc.extractor.Reload(ctx)
}
