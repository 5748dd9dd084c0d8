// Package feeds holds the upstream clients for the news and discussion
// sources. Clients return errors instead of partial results; callers treat
// any error as an empty fetch.
package feeds

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/fiffu/tickerwatch/lib/models"
	"go.uber.org/zap"
)

var ErrNoAPIKey = errors.New("finnhub API key not configured")

type FinnhubConfig struct {
	BaseURL  string
	APIKey   string
	Category string
	MaxItems int
	Timeout  time.Duration
}

type Finnhub struct {
	cfg       FinnhubConfig
	transport http.RoundTripper
	log       *zap.Logger
}

type finnhubArticle struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

func NewFinnhub(cfg FinnhubConfig, transport http.RoundTripper, log *zap.Logger) *Finnhub {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Finnhub{cfg, transport, log}
}

// Configured reports whether credentials are present.
func (f *Finnhub) Configured() bool {
	return f.cfg.APIKey != ""
}

// Fetch returns up to MaxItems of the most recent articles in feed order.
func (f *Finnhub) Fetch(ctx context.Context) ([]models.FeedItem, error) {
	if !f.Configured() {
		return nil, ErrNoAPIKey
	}
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	var articles []finnhubArticle
	err := requests.URL(f.cfg.BaseURL+"/news").
		Param("category", f.cfg.Category).
		Param("token", f.cfg.APIKey).
		Transport(f.transport).
		ToJSON(&articles).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}

	if f.cfg.MaxItems > 0 && len(articles) > f.cfg.MaxItems {
		articles = articles[:f.cfg.MaxItems]
	}

	items := make([]models.FeedItem, 0, len(articles))
	for _, a := range articles {
		items = append(items, models.FeedItem{
			ID:        strconv.FormatInt(a.ID, 10),
			Title:     a.Headline,
			Summary:   PlainText(a.Summary),
			URL:       a.URL,
			Key:       models.WatermarkFromInt(a.ID),
			Published: time.Unix(a.Datetime, 0).UTC(),
		})
	}
	f.log.Sugar().Debugw("Fetched news", "category", f.cfg.Category, "count", len(items))
	return items, nil
}
