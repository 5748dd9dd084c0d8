package poller

import "github.com/fiffu/tickerwatch/lib/models"

// FilterAfter keeps the items whose key is strictly above last, in their
// original order, and returns the largest key among them. Without a stored
// watermark every item is fresh.
func FilterAfter(items []models.FeedItem, last models.Watermark, hasLast bool) (fresh []models.FeedItem, high models.Watermark, hasHigh bool) {
	for _, item := range items {
		if hasLast && !item.Key.GreaterThan(last) {
			continue
		}
		fresh = append(fresh, item)
		if !hasHigh || item.Key.GreaterThan(high) {
			high, hasHigh = item.Key, true
		}
	}
	return fresh, high, hasHigh
}
