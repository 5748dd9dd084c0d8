package extractor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fiffu/tickerwatch/lib/store"
	"go.uber.org/zap"
)

var ErrNoCompanies = errors.New("company list is empty")

// Extractor holds the current Index and swaps it on Reload.
type Extractor struct {
	log       *zap.Logger
	companies store.Companies
	index     atomic.Pointer[Index]
}

// NewExtractor loads the company list from storage, seeding it from the
// embedded defaults when empty. A failure here aborts startup.
func NewExtractor(ctx context.Context, log *zap.Logger, companies store.Companies) (*Extractor, error) {
	if n, err := store.SeedIfEmpty(ctx, companies); err != nil {
		return nil, fmt.Errorf("seeding companies: %w", err)
	} else if n > 0 {
		log.Sugar().Infow("Seeded company list", "inserted", n)
	}

	x := &Extractor{log: log, companies: companies}
	if _, err := x.Reload(ctx); err != nil {
		return nil, err
	}
	return x, nil
}

// Reload rebuilds the index from storage. The previous index stays in
// place if loading fails.
func (x *Extractor) Reload(ctx context.Context) (int, error) {
	list, err := x.companies.ListCompanies(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading companies: %w", err)
	}
	if len(list) == 0 {
		return 0, ErrNoCompanies
	}

	ix := Build(list.Keywords())
	x.index.Store(ix)
	x.log.Sugar().Infow("Loaded companies into extractor", "companies", ix.Companies(), "keywords", ix.keywords)
	return ix.Companies(), nil
}

func (x *Extractor) Extract(text string) []string {
	return x.index.Load().Extract(text)
}
