// Package store persists checkpoints, subscribers and the company list.
//
// Each source's checkpoint row is written by exactly one poller, so the
// stores only need atomic upsert-by-key; they do not serialise writers and
// do not enforce watermark monotonicity.
package store

import (
	"context"

	"github.com/fiffu/tickerwatch/lib/models"
)

type Checkpoints interface {
	// GetLast returns the stored watermark and whether one exists.
	GetLast(ctx context.Context, source string) (models.Watermark, bool, error)
	// UpdateLast inserts or overwrites the watermark for source.
	UpdateLast(ctx context.Context, source string, w models.Watermark) error
}

// Subscribers is the subscriber directory. Add and Remove are idempotent.
type Subscribers interface {
	// AddSubscriber returns the stored row, which keeps its original
	// CreatedAt when sub already exists.
	AddSubscriber(ctx context.Context, sub models.Subscriber) (models.Subscriber, error)
	RemoveSubscriber(ctx context.Context, sub models.Subscriber) error
	ListSubscribers(ctx context.Context) (models.Subscribers, error)
}

type Companies interface {
	ListCompanies(ctx context.Context) (models.Companies, error)
	// InsertCompanies inserts companies whose name is not yet present and
	// returns how many were inserted.
	InsertCompanies(ctx context.Context, companies models.Companies) (int, error)
}

type Store interface {
	Checkpoints
	Subscribers
	Companies
	Close() error
}
