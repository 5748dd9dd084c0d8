// Package scheduler drives every poller on its own fixed-interval timer.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fiffu/tickerwatch/lib/poller"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const OnlineMessage = "tickerwatch is now online"

type Scheduler struct {
	log      *zap.Logger
	pollers  []*poller.Poller
	notifier poller.Notifier

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(lc fx.Lifecycle, log *zap.Logger, pollers []*poller.Poller, notifier poller.Notifier) *Scheduler {
	s := New(log, pollers, notifier)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start(context.Background())
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop scheduler")
			return s.Stop(ctx)
		},
	})

	return s
}

func New(log *zap.Logger, pollers []*poller.Poller, notifier poller.Notifier) *Scheduler {
	return &Scheduler{log: log, pollers: pollers, notifier: notifier}
}

// Start launches one loop per enabled poller. Each loop ticks immediately
// and then on its interval until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.notifier.Notify(ctx, OnlineMessage)
	}()

	for _, p := range s.pollers {
		if p.State() == poller.Disabled {
			s.log.Sugar().Infow("Not scheduling disabled poller", "source", p.Name())
			continue
		}
		s.wg.Add(1)
		go s.run(ctx, p)
		s.log.Sugar().Infow("Scheduled poller", "source", p.Name(), "interval", p.Interval())
	}
	return nil
}

// Stop cancels every loop. In-flight ticks finish their current stage and
// skip the checkpoint write.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Sugar().Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Pollers() []*poller.Poller {
	return s.pollers
}

func (s *Scheduler) Lookup(name string) (*poller.Poller, bool) {
	for _, p := range s.pollers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

func (s *Scheduler) run(ctx context.Context, p *poller.Poller) {
	defer s.wg.Done()

	interval := p.Interval()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tick(ctx, p)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, p)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, p *poller.Poller) {
	_, err := p.Tick(ctx)
	switch {
	case err == nil:
	case errors.Is(err, poller.ErrBusy):
		s.log.Sugar().Infow("Skipping tick, previous tick still running", "source", p.Name())
	case errors.Is(err, poller.ErrDisabled):
	default:
		s.log.Sugar().Errorw("Tick failed", "source", p.Name(), "err", err)
	}
}
