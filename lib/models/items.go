package models

import "time"

// FeedItem is a raw record from an upstream source.
type FeedItem struct {
	ID        string
	Title     string
	Summary   string
	URL       string
	Key       Watermark // ordering key in the source's watermark domain
	Published time.Time
}

// EnrichedItem is a FeedItem tagged with the tickers mentioned in it.
type EnrichedItem struct {
	FeedItem
	Tickers []string
}

type EnrichedItems []EnrichedItem
