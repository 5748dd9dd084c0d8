package feeds

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/fiffu/tickerwatch/lib/models"
	"go.uber.org/zap"
)

const redditPermalinkBase = "https://reddit.com"

type RedditConfig struct {
	BaseURL   string
	Subreddit string
	Query     string
	Limit     int
	UserAgent string
	Timeout   time.Duration
}

type Reddit struct {
	cfg       RedditConfig
	transport http.RoundTripper
	log       *zap.Logger
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Name       string  `json:"name"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
}

func NewReddit(cfg RedditConfig, transport http.RoundTripper, log *zap.Logger) *Reddit {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Reddit{cfg, transport, log}
}

// Fetch returns the newest posts matching the query, newest first.
func (r *Reddit) Fetch(ctx context.Context) ([]models.FeedItem, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	var listing redditListing
	err := requests.URL(r.cfg.BaseURL+"/r/"+r.cfg.Subreddit+"/search.json").
		Param("q", r.cfg.Query).
		Param("restrict_sr", "on").
		Param("sort", "new").
		Param("limit", strconv.Itoa(r.cfg.Limit)).
		Header("User-Agent", r.cfg.UserAgent).
		Transport(r.transport).
		ToJSON(&listing).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]models.FeedItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		p := child.Data
		sec, frac := math.Modf(p.CreatedUTC)
		items = append(items, models.FeedItem{
			ID:        p.Name,
			Title:     p.Title,
			Summary:   compactWhitespace(p.Selftext),
			URL:       redditPermalinkBase + p.Permalink,
			Key:       models.WatermarkFromFloat(p.CreatedUTC),
			Published: time.Unix(int64(sec), int64(frac*1e9)).UTC(),
		})
	}
	r.log.Sugar().Debugw("Fetched posts", "subreddit", r.cfg.Subreddit, "count", len(items))
	return items, nil
}
