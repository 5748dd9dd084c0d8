package app

import (
	"context"
	"net/http"

	"github.com/fiffu/tickerwatch/config"
	"github.com/fiffu/tickerwatch/lib/extractor"
	"github.com/fiffu/tickerwatch/lib/feeds"
	"github.com/fiffu/tickerwatch/lib/notifier"
	"github.com/fiffu/tickerwatch/lib/poller"
	"github.com/fiffu/tickerwatch/lib/seen"
	"github.com/fiffu/tickerwatch/lib/store"
	"github.com/fiffu/tickerwatch/senders"
	"go.uber.org/zap"
)

func NewExtractor(log *zap.Logger, st store.Store) (*extractor.Extractor, error) {
	return extractor.NewExtractor(context.Background(), log, st)
}

func NewNotifier(log *zap.Logger, cfg *config.Config, st store.Store, registry senders.Registry) poller.Notifier {
	return notifier.NewNotifier(log, cfg, st, registry)
}

func NewPollers(
	cfg *config.Config,
	log *zap.Logger,
	transport http.RoundTripper,
	st store.Store,
	cache seen.Cache,
	x *extractor.Extractor,
	n poller.Notifier,
) []*poller.Poller {
	deps := poller.Deps{Checkpoints: st, Seen: cache, Notifier: n, Log: log}

	news := feeds.NewFinnhub(feeds.FinnhubConfig{
		BaseURL:  cfg.Finnhub.BaseURL,
		APIKey:   cfg.Finnhub.APIKey,
		Category: cfg.Finnhub.Category,
		MaxItems: cfg.Finnhub.MaxItems,
		Timeout:  cfg.HTTPTimeout,
	}, transport, log)

	discussion := feeds.NewReddit(feeds.RedditConfig{
		BaseURL:   cfg.Reddit.BaseURL,
		Subreddit: cfg.Reddit.Subreddit,
		Query:     cfg.Reddit.Query,
		Limit:     cfg.Reddit.Limit,
		UserAgent: cfg.Reddit.UserAgent,
		Timeout:   cfg.HTTPTimeout,
	}, transport, log)

	return []*poller.Poller{
		poller.NewNewsPoller(poller.Config{
			Name:        poller.SourceFinnhub,
			Interval:    cfg.PollInterval,
			TickTimeout: cfg.TickTimeout,
		}, news, x, deps),
		poller.NewDiscussionPoller(poller.Config{
			Name:        poller.SourceRedditWSB,
			Interval:    cfg.PollInterval,
			TickTimeout: cfg.TickTimeout,
		}, discussion, cfg.Reddit.Enabled, deps),
	}
}
