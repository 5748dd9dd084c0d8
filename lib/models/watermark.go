package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Watermark is the last-processed position of a source. It covers both
// numeric item IDs and fractional unix timestamps, and is persisted as
// decimal text.
type Watermark struct {
	d decimal.Decimal
}

func WatermarkFromInt(v int64) Watermark {
	return Watermark{decimal.NewFromInt(v)}
}

func WatermarkFromFloat(v float64) Watermark {
	return Watermark{decimal.NewFromFloat(v)}
}

func ParseWatermark(s string) (Watermark, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Watermark{}, fmt.Errorf("invalid watermark %q: %w", s, err)
	}
	return Watermark{d}, nil
}

func (w Watermark) Cmp(other Watermark) int {
	return w.d.Cmp(other.d)
}

func (w Watermark) GreaterThan(other Watermark) bool {
	return w.d.GreaterThan(other.d)
}

func (w Watermark) String() string {
	return w.d.String()
}
