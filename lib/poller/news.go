package poller

import (
	"fmt"
	"strings"

	"github.com/fiffu/tickerwatch/lib/models"
)

const SourceFinnhub = "finnhub"

type TickerExtractor interface {
	Extract(text string) []string
}

// NewsPipeline tags articles with the tickers they mention and drops the
// rest. Feed order is kept.
type NewsPipeline struct {
	Extractor TickerExtractor
}

func (n NewsPipeline) Enrich(items []models.FeedItem) models.EnrichedItems {
	out := make(models.EnrichedItems, 0, len(items))
	for _, item := range items {
		tickers := n.Extractor.Extract(item.Title + " " + item.Summary)
		if len(tickers) == 0 {
			continue
		}
		out = append(out, models.EnrichedItem{FeedItem: item, Tickers: tickers})
	}
	return out
}

func (NewsPipeline) Format(item models.EnrichedItem) string {
	return fmt.Sprintf("New article mentioning %s: %s - %s", strings.Join(item.Tickers, ", "), item.Title, item.URL)
}

// NewNewsPoller returns the news poller, disabled when the feed has no
// credentials.
func NewNewsPoller(cfg Config, feed interface {
	Fetcher
	Configured() bool
}, extractor TickerExtractor, deps Deps) *Poller {
	if cfg.Name == "" {
		cfg.Name = SourceFinnhub
	}
	p := New(cfg, feed, NewsPipeline{extractor}, deps)
	if !feed.Configured() {
		p.Disable("FINNHUB_API_KEY is not set")
	}
	return p
}
