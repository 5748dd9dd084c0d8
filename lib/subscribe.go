package lib

import (
	"context"
	"errors"
	"strings"

	"github.com/fiffu/tickerwatch/lib/models"
	"github.com/fiffu/tickerwatch/lib/store"
	"github.com/fiffu/tickerwatch/senders"
	"go.uber.org/zap"
)

var ErrMissingIdentifier = errors.New("identifier is required")

type subscribe struct {
	log         *zap.Logger
	subscribers store.Subscribers
	senders     senders.Registry
}

// NewSubscriber normalises a platform/identifier pair. The platform
// defaults to discord.
func NewSubscriber(platform, identifier string) (models.Subscriber, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	identifier = strings.TrimSpace(identifier)
	if platform == "" {
		platform = senders.PlatformDiscord
	}
	if identifier == "" {
		return models.Subscriber{}, ErrMissingIdentifier
	}
	return models.Subscriber{Platform: platform, Identifier: identifier}, nil
}

func (svc *subscribe) Subscribe(ctx context.Context, platform, identifier string) (models.Subscriber, error) {
	sub, err := NewSubscriber(platform, identifier)
	if err != nil {
		return sub, err
	}
	if _, ok := svc.senders[sub.Platform]; !ok {
		svc.log.Sugar().Warnw("Subscribing on a platform without a configured sender", "recipient", sub.String())
	}
	sub, err = svc.subscribers.AddSubscriber(ctx, sub)
	if err != nil {
		return sub, err
	}
	svc.log.Sugar().Infow("Subscribed", "recipient", sub.String())
	return sub, nil
}

func (svc *subscribe) Unsubscribe(ctx context.Context, platform, identifier string) error {
	sub, err := NewSubscriber(platform, identifier)
	if err != nil {
		return err
	}
	if err := svc.subscribers.RemoveSubscriber(ctx, sub); err != nil {
		return err
	}
	svc.log.Sugar().Infow("Unsubscribed", "recipient", sub.String())
	return nil
}

func (svc *subscribe) Subscribers(ctx context.Context) (models.Subscribers, error) {
	return svc.subscribers.ListSubscribers(ctx)
}
