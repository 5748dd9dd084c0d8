package poller

import (
	"fmt"
	"slices"

	"github.com/fiffu/tickerwatch/lib/models"
)

const SourceRedditWSB = "reddit_wsb"

// DiscussionPipeline delivers every fresh post, oldest first.
type DiscussionPipeline struct{}

func (DiscussionPipeline) Enrich(items []models.FeedItem) models.EnrichedItems {
	out := make(models.EnrichedItems, 0, len(items))
	for _, item := range items {
		out = append(out, models.EnrichedItem{FeedItem: item})
	}
	slices.SortStableFunc(out, func(a, b models.EnrichedItem) int {
		return a.Key.Cmp(b.Key)
	})
	return out
}

func (DiscussionPipeline) Format(item models.EnrichedItem) string {
	return fmt.Sprintf("New DD post: %s - %s", item.Title, item.URL)
}

// NewDiscussionPoller returns the discussion poller, disabled unless
// enabled is set.
func NewDiscussionPoller(cfg Config, feed Fetcher, enabled bool, deps Deps) *Poller {
	if cfg.Name == "" {
		cfg.Name = SourceRedditWSB
	}
	p := New(cfg, feed, DiscussionPipeline{}, deps)
	if !enabled {
		p.Disable("REDDIT_ENABLED is false")
	}
	return p
}
