// Package notifier fans a message out to every subscriber through the
// sender registered for the subscriber's platform.
package notifier

import (
	"context"
	"sync/atomic"

	"github.com/fiffu/tickerwatch/config"
	"github.com/fiffu/tickerwatch/lib/store"
	"github.com/fiffu/tickerwatch/senders"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Notifier struct {
	log         *zap.Logger
	subscribers store.Subscribers
	senders     senders.Registry
	concurrency int
}

func NewNotifier(log *zap.Logger, cfg *config.Config, subscribers store.Subscribers, registry senders.Registry) *Notifier {
	return New(log, subscribers, registry, cfg.NotifyConcurrency)
}

func New(log *zap.Logger, subscribers store.Subscribers, registry senders.Registry, concurrency int) *Notifier {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Notifier{log, subscribers, registry, concurrency}
}

// Notify sends message to a snapshot of the subscriber list. Failures are
// logged per recipient and never returned.
func (n *Notifier) Notify(ctx context.Context, message string) {
	subs, err := n.subscribers.ListSubscribers(ctx)
	if err != nil {
		n.log.Sugar().Errorw("Failed to list subscribers, message dropped", "err", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	var sent, failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(n.concurrency)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			sender, ok := n.senders[sub.Platform]
			if !ok {
				n.log.Sugar().Warnw("No sender for platform, skipping", "recipient", sub.String())
				failed.Add(1)
				return nil
			}
			id, err := sender.Send(ctx, sub, message)
			if err != nil {
				n.log.Sugar().Warnw("Failed to notify subscriber", "recipient", sub.String(), "err", err)
				failed.Add(1)
				return nil
			}
			n.log.Sugar().Debugw("Notified subscriber", "recipient", sub.String(), "message_id", id)
			sent.Add(1)
			return nil
		})
	}
	g.Wait()

	n.log.Sugar().Infow("Notification sent", "recipients", len(subs), "sent", sent.Load(), "failed", failed.Load())
}
